package main

import (
	"os"

	"github.com/ST2Projects/vision-runner/cmd/vision-runner/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
