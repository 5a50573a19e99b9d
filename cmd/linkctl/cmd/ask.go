package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bondedlink/internal/link/normalize"
	"bondedlink/internal/linkapi"
)

func init() {
	askCmd.Flags().String("user", "", "user ID to ask as")
	askCmd.Flags().String("university", "", "university ID")
	askCmd.Flags().String("session", "", "existing session ID")
	askCmd.Flags().String("name", "", "preferred name to send")
	askCmd.Flags().Bool("raw", false, "print the raw backend response")
	_ = askCmd.MarkFlagRequired("user")
	_ = askCmd.MarkFlagRequired("university")
	rootCmd.AddCommand(askCmd)

	outreachCmd.Flags().String("user", "", "user ID asking")
	outreachCmd.Flags().String("university", "", "university ID")
	_ = outreachCmd.MarkFlagRequired("user")
	_ = outreachCmd.MarkFlagRequired("university")
	rootCmd.AddCommand(outreachCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message to the agent and print what the chat would render",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		user, _ := cmd.Flags().GetString("user")
		university, _ := cmd.Flags().GetString("university")
		sessionID, _ := cmd.Flags().GetString("session")
		name, _ := cmd.Flags().GetString("name")

		req := linkapi.AgentRequest{
			UserID:        user,
			MessageText:   strings.Join(args, " "),
			UniversityID:  university,
			PreferredName: name,
		}
		if sessionID != "" {
			req.SessionID = &sessionID
		}

		resp, err := backend(cmd, cfg).Query(cmd.Context(), req)
		if err != nil {
			return err
		}
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			return printJSON(resp)
		}

		printNormalized(normalize.Normalize(resp))
		return nil
	},
}

func printNormalized(n normalize.Result) {
	if n.Text != "" {
		fmt.Println(n.Text)
	}
	for _, line := range normalize.FormatCitations(n.Citations) {
		fmt.Println("  " + line)
	}
	for _, card := range n.Cards {
		fmt.Printf("[%s] %s\n", card.Kind, card.FallbackText)
	}
	if n.Outreach != nil {
		fmt.Printf("outreach run %s (%s)\n", n.Outreach.RunID, n.Outreach.Status)
	}
}

var outreachCmd = &cobra.Command{
	Use:   "outreach [question]",
	Short: "Start an outreach run directly",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		user, _ := cmd.Flags().GetString("user")
		university, _ := cmd.Flags().GetString("university")

		resp, err := backend(cmd, cfg).StartOutreach(cmd.Context(), linkapi.StartOutreachRequest{
			UserID:       user,
			Question:     strings.Join(args, " "),
			UniversityID: university,
		})
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}
