package commands

import (
	"github.com/ST2Projects/vision-runner/pkg/vision"
	"github.com/spf13/cobra"
)

func newTagsCmd() *cobra.Command {
	var numTags int

	c := &cobra.Command{
		Use:   "tags IMAGE",
		Short: "Generate descriptive tags for an image through a running daemon",
		Args:  requireExactArgs(1, "tags", "IMAGE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := newClient().Tags(cmd.Context(), args[0], numTags)
			if err != nil {
				return handleClientError(err, "Failed to generate tags")
			}
			result := vision.TagResult{Tags: response.Tags, Raw: response.Raw}
			cmd.Println(result.Text())
			return nil
		},
	}

	c.Flags().IntVar(&numTags, "num-tags", 0, "number of tags to request (5-20, 0 uses the daemon default)")

	return c
}
