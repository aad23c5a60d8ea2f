// internal/cli/catalog.go
package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"device-programmer/internal/session"
)

// NewToolsCmd creates the "tools" subcommand.
func NewToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List supported programming tools",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}
}

func runTools(cmd *cobra.Command, _ []string) error {
	app, err := loadApplication(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tALIASES\tINTERFACES\tUSB")
	for _, info := range app.tools.Info() {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			info.Name,
			orDash(strings.Join(info.Aliases, ",")),
			orDash(strings.Join(info.Interfaces, ",")),
			orDash(strings.Join(info.USBIDs, ",")),
		)
	}
	return writer.Flush()
}

// NewDevicesCmd creates the "devices" subcommand.
func NewDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List known target parts",
		Args:  cobra.NoArgs,
		RunE:  runDevices,
	}
	cmd.Flags().String("parts", "", "Additional parts file merged over the built-in database")
	return cmd
}

func runDevices(cmd *cobra.Command, _ []string) error {
	app, err := loadApplication(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tALIASES\tVCC\tSIGNATURE\tINTERFACES")
	for _, descriptor := range app.devices.List() {
		vccMin, vccMax := descriptor.VCCRange()
		fmt.Fprintf(writer, "%s\t%s\t%.2f-%.2f V\t%s\t%s\n",
			descriptor.Name(),
			orDash(strings.Join(descriptor.Aliases(), ",")),
			vccMin, vccMax,
			session.FormatBytes(descriptor.Signature("")),
			orDash(strings.Join(descriptor.Interfaces(), ",")),
		)
	}
	return writer.Flush()
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
