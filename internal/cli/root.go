// internal/cli/root.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the gdp command tree
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "gdp",
		Short: "Generic device programmer",
		Long:  "gdp connects to a programming tool, verifies the target device and reads its memories.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Path to gdp.yaml (default: ./gdp.yaml, ~/.config/gdp, /etc/gdp)")
	root.PersistentFlags().String("log-level", "", "Log level: debug | info | warn | error")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("gdp version %s\n", version))

	root.AddCommand(NewProbeCmd())
	root.AddCommand(NewReadCmd())
	root.AddCommand(NewToolsCmd())
	root.AddCommand(NewDevicesCmd())
	root.AddCommand(NewPortsCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewVersionCmd(version))

	return root
}

// NewVersionCmd creates the "version" subcommand.
func NewVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gdp version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gdp version %s\n", version)
		},
	}
}
