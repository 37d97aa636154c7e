package commands

import (
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		prompt    string
		maxTokens int
	)

	c := &cobra.Command{
		Use:   "analyze IMAGE",
		Short: "Describe an image through a running daemon",
		Args:  requireExactArgs(1, "analyze", "IMAGE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, err := newClient().Analyze(cmd.Context(), args[0], prompt, maxTokens)
			if err != nil {
				return handleClientError(err, "Failed to analyze image")
			}
			cmd.Println(description)
			return nil
		},
	}

	c.Flags().StringVar(&prompt, "prompt", "", "custom prompt to send with the image")
	c.Flags().IntVar(&maxTokens, "max-tokens", 0, "maximum tokens to generate (64-1024, 0 uses the daemon default)")

	return c
}
