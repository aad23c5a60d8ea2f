// internal/cli/serve.go
package cli

import (
	"github.com/spf13/cobra"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("host", "", "Listen host (default from config: 127.0.0.1)")
	cmd.Flags().String("listen", "", "Listen port (default from config: 8085)")
	cmd.Flags().String("parts", "", "Additional parts file merged over the built-in database")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := loadApplication(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Serve(cmd.Context()); err != nil {
		return exitError(exitFailure, "%v", err)
	}
	return nil
}
