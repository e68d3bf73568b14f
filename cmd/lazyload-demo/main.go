// Command lazyload-demo serves the billing fixtures behind the debug server
// so lazy loads can be provoked with GET /demo/invoices and inspected with
// GET /debug/lazyload.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lazyload-demo",
		Short: "Demo service for lazy-load detection",
		Long: `Runs the billing demo against a tracked database connection with the
lazy-load interceptor registered, and reports every call site that issued
deferred loads.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(),
		newValidateCommand(),
		newVersionCommand(version),
	)
	return root
}
