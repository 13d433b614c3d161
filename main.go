package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/procpool/cmd"
)

func main() {
	root := &cobra.Command{
		Use:   "procpool",
		Short: "A dynamic pool of reusable worker processes",
		Long: `procpool maintains a pool of child processes and executes textual ` +
			`submissions on them over stdin/stdout/stderr.`,
	}
	root.AddCommand(
		cmd.CreateRunCmd(),
		cmd.CreateExecCmd(),
		cmd.CreateVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
