package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ordermesh/tokengate/cmd/tokengate/commands"
	"github.com/ordermesh/tokengate/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile string
		noColor bool
		debug   bool
	)

	rt := &commands.Runtime{}

	rootCmd := &cobra.Command{
		Use:   "tokengate",
		Short: "Commerce API adapter with managed credential rotation",
		Long: `tokengate sits between internal callers and the upstream commerce API.
It keeps provider access tokens fresh through background rotation, gates
manual rotation behind admin-issued user refresh tokens, and runs order
update batches as bounded-concurrency jobs.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			rt.Logger = logging.New(debug, noColor)
			rt.EnvFile = envFile
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewServeCommand(rt),
		commands.NewCheckCommand(rt),
	)

	return rootCmd.Execute()
}
