package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"bondedlink/internal/link/normalize"
)

func init() {
	rootCmd.AddCommand(renderCmd)
}

// renderCmd replays a captured backend response through the normalizer, which
// is handy when a payload renders oddly in the app.
var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Show how a saved backend response would be rendered (stdin when no file)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(os.Stdin)
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		b, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		printNormalized(normalize.Normalize(normalize.DecodeJSON(b)))
		return nil
	},
}
