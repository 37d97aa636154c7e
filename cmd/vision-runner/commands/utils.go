package commands

import (
	"errors"
	"fmt"

	"github.com/ST2Projects/vision-runner/cmd/vision-runner/client"
	"github.com/spf13/cobra"
)

var notRunningErr = fmt.Errorf("vision-runner is not running. Start it with \"vision-runner serve\" and try again.\n")

func handleClientError(err error, message string) error {
	if errors.Is(err, client.ErrServiceUnavailable) {
		return notRunningErr
	}
	return fmt.Errorf("%s: %w", message, err)
}

// requireExactArgs returns a positional argument validator that reports the
// expected usage when the count is wrong.
func requireExactArgs(count int, command, usage string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != count {
			return fmt.Errorf("%q requires exactly %d argument(s)\n\nUsage:  vision-runner %s %s", command, count, command, usage)
		}
		return nil
	}
}
