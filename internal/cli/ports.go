// internal/cli/ports.go
package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"device-programmer/internal/discovery"
)

// NewPortsCmd creates the "ports" subcommand.
func NewPortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial and USB ports a tool may be attached to",
		Args:  cobra.NoArgs,
		RunE:  runPorts,
	}
	cmd.Flags().String("type", "all", "Scanner: all | serial | usb")
	return cmd
}

func runPorts(cmd *cobra.Command, _ []string) error {
	scanType, _ := cmd.Flags().GetString("type")

	app, err := loadApplication(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var ports []*discovery.DiscoveredPort
	if scanType == "all" {
		ports, err = app.scanners.ScanAll(cmd.Context())
		if err != nil {
			app.logger.Warn("Port scan incomplete", zap.Error(err))
		}
	} else {
		ports, err = app.scanners.ScanByType(cmd.Context(), scanType)
		if err != nil {
			return exitError(exitFailure, "scanning ports: %v", err)
		}
	}

	writePorts(cmd, ports)
	return nil
}

func writePorts(cmd *cobra.Command, ports []*discovery.DiscoveredPort) {
	if len(ports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No ports found.")
		return
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "TYPE\tPORT\tUSB ID\tSERIAL\tTOOL")
	for _, port := range ports {
		usbID := "-"
		if port.VendorID != "" {
			usbID = port.VendorID + ":" + port.ProductID
		}
		location := port.Port
		if location == "" {
			location = port.Location
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			port.Type,
			orDash(location),
			usbID,
			orDash(port.SerialNumber),
			orDash(port.Tool),
		)
	}
	writer.Flush()
}
