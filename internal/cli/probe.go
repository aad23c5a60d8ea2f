// internal/cli/probe.go
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"device-programmer/internal/service"
)

// addSessionFlags registers the connection flags shared by probe and read
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("tool", "c", "", "Programming tool or alias (see gdp tools)")
	cmd.Flags().StringP("device", "p", "", "Target part or alias (see gdp devices)")
	cmd.Flags().StringP("interface", "i", "", "Programming interface (isp, jtag, pdi, updi, ...)")
	cmd.Flags().StringP("port", "P", "", "Serial port or net:host:port")
	cmd.Flags().String("serial", "", "USB serial number of the tool")
	cmd.Flags().IntP("baud", "b", 0, "Serial baud rate")
	cmd.Flags().IntP("frequency", "B", 0, "Programming clock frequency in Hz")
	cmd.Flags().Bool("skip-voltage-check", false, "Do not check the target voltage")
	cmd.Flags().Bool("skip-signature-check", false, "Do not check the device signature")
	cmd.Flags().String("parts", "", "Additional parts file merged over the built-in database")
	cmd.Flags().String("format", "text", "Output format: text | json")
}

// NewProbeCmd creates the "probe" subcommand.
func NewProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Open a session and verify the target device",
		Args:  cobra.NoArgs,
		RunE:  runProbe,
	}
	addSessionFlags(cmd)
	return cmd
}

func runProbe(cmd *cobra.Command, _ []string) error {
	return probe(cmd, nil)
}

func probe(cmd *cobra.Command, reads []service.ReadRequest) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return exitError(exitUsage, "unknown format %q (use text or json)", format)
	}

	app, err := loadApplication(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.probeService.Probe(cmd.Context(), &service.ProbeRequest{
		Options: service.OptionsFromConfig(app.config.Session),
		Reads:   reads,
	})
	if err != nil {
		return sessionExit(err)
	}

	if format == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return exitError(exitFailure, "marshaling result: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	skipSignature := app.config.Session.SkipSignatureCheck
	writeProbeResult(cmd.OutOrStdout(), result, skipSignature)
	return nil
}

func writeProbeResult(w io.Writer, result *service.ProbeResult, skipSignature bool) {
	status := "verified"
	if skipSignature {
		status = "not checked"
	}

	fmt.Fprintf(w, "Session:   %s\n", result.SessionID)
	fmt.Fprintf(w, "Tool:      %s\n", result.Tool)
	fmt.Fprintf(w, "Device:    %s\n", result.Device)
	fmt.Fprintf(w, "Interface: %s\n", result.Interface)
	fmt.Fprintf(w, "VCC range: %s V - %s V\n", result.VCCMin.StringFixed(2), result.VCCMax.StringFixed(2))
	fmt.Fprintf(w, "Signature: %s (%s)\n", result.ExpectedSignature, status)

	for _, read := range result.Reads {
		label := read.Space
		if read.Offset > 0 {
			label = fmt.Sprintf("%s+%d", read.Space, read.Offset)
		}
		switch {
		case read.Error != "":
			fmt.Fprintf(w, "%s: %s\n", label, read.Error)
		case read.Data == "":
			fmt.Fprintf(w, "%s: (empty)\n", label)
		default:
			fmt.Fprintf(w, "%s: %s\n", label, strings.TrimSpace(read.Data))
		}
	}
}
