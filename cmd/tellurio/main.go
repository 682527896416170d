// Command tellurio is the CLI surface afnio/tellurio/cli.py exposes,
// narrowed to login/whoami: both call straight into the tellurio package's
// Login, giving the credential-store and REST-login wiring a caller.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	tellurio "github.com/tellurio-ai/tellurio-go"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync() //nolint:errcheck
	tellurio.SetLogger(logger)

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tellurio",
		Short: "Tellurio CLI Tool",
	}
	root.AddCommand(loginCmd(), whoamiCmd())
	return root
}
