package commands

import (
	"errors"

	"github.com/ST2Projects/vision-runner/cmd/vision-runner/client"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the vision-runner daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := newClient().Status(cmd.Context())
			if err != nil {
				if errors.Is(err, client.ErrServiceUnavailable) {
					return notRunningErr
				}
				return handleClientError(err, "Failed to query status")
			}

			running := color.New(color.FgGreen, color.Bold)
			_, _ = running.Fprintln(cmd.OutOrStdout(), "vision-runner is running")

			table := tablewriter.NewTable(cmd.OutOrStdout())
			table.Header("Field", "Value")
			_ = table.Append("Engine", status.Engine)
			_ = table.Append("Status", status.Status)
			if status.Model != nil {
				_ = table.Append("Model", status.Model.String())
			}
			return table.Render()
		},
	}
}
