package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/metadata"

	"bondedlink/internal/link/model"
	"bondedlink/internal/link/realtime"
)

func init() {
	watchCmd.Flags().String("addr", "", "realtime gRPC address (default localhost:REALTIME_PORT)")
	watchCmd.Flags().String("token", "", "bearer token for the realtime feed")
	_ = watchCmd.MarkFlagRequired("token")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [conversation-id]",
	Short: "Print messages of a conversation as they are saved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			addr = "localhost:" + cfg.Server.RealtimePort
		}
		token, _ := cmd.Flags().GetString("token")

		client, err := realtime.Dial(addr)
		if err != nil {
			return fmt.Errorf("dial realtime: %w", err)
		}
		defer client.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)

		err = client.Subscribe(ctx, args[0], func(msg model.Message) {
			fmt.Printf("%s  %-9s %s\n", msg.CreatedAt.Local().Format(time.Kitchen), msg.Role, msg.Content)
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}
