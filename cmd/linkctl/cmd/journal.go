package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bondedlink/internal/dbmongo"
)

func init() {
	journalCmd.Flags().Int("days", 7, "how many days back to read")
	journalCmd.Flags().Bool("local", false, "read the Mongo journal store instead of the backend")
	rootCmd.AddCommand(journalCmd)
}

var journalCmd = &cobra.Command{
	Use:   "journal [user-id]",
	Short: "Show a user's recent journal entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")

		if local, _ := cmd.Flags().GetBool("local"); !local {
			resp, err := backend(cmd, cfg).Journal(cmd.Context(), args[0], days)
			if err != nil {
				return err
			}
			return printJSON(resp)
		}

		mc, err := dbmongo.NewMongoConnection(cfg, zap.NewNop())
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer mc.Close(context.Background())

		entries, err := dbmongo.NewJournalStore(mc, cfg.MongoDB.JournalCollection).Recent(cmd.Context(), args[0], days)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  [%s] %s\n", e.CreatedAt.Local().Format("Jan 02 15:04"), e.EntryType, e.Content)
		}
		return nil
	},
}
