// Package cmd holds the linkctl commands for poking at a running Link
// deployment: the AI backend, the realtime feed and the journal store.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bondedlink/internal/config"
	"bondedlink/internal/linkapi"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "linkctl",
	Short:   "Operator tool for the Link chat service",
	Version: version,
}

// Execute is called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("api", "", "Link backend base URL (default from LINK_API_URL)")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "request timeout")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func backend(cmd *cobra.Command, cfg *config.Config) *linkapi.Client {
	base := cfg.LinkAPI.BaseURL
	if api, _ := cmd.Flags().GetString("api"); api != "" {
		base = api
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return linkapi.NewClient(base, linkapi.WithTimeout(timeout))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
