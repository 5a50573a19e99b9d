package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bondedlink/internal/common"
)

func init() {
	tokenCmd.Flags().String("university", "", "university ID")
	tokenCmd.Flags().String("email", "", "email claim")
	tokenCmd.Flags().String("name", "", "full name claim")
	tokenCmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Mint a bearer token signed with JWT_SECRET, for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}

		university, _ := cmd.Flags().GetString("university")
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := common.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer).GenerateToken(common.Claims{
			UserID:       args[0],
			UniversityID: university,
			Email:        email,
			FullName:     name,
		}, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}
