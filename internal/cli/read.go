// internal/cli/read.go
package cli

import (
	"github.com/spf13/cobra"

	"device-programmer/internal/service"
)

// NewReadCmd creates the "read" subcommand.
func NewReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <space>...",
		Short: "Open a session and read target memory spaces",
		Long: "Opens a verified session and reads each named memory space " +
			"(signatures, fuses, lockbits, calibration, ...). " +
			"Without --length the whole space is read.",
		Args: cobra.MinimumNArgs(1),
		RunE: runRead,
	}
	addSessionFlags(cmd)
	cmd.Flags().Int("offset", 0, "Start offset within each space")
	cmd.Flags().Int("length", 0, "Number of bytes to read from each space")
	return cmd
}

func runRead(cmd *cobra.Command, args []string) error {
	offset, _ := cmd.Flags().GetInt("offset")
	length, _ := cmd.Flags().GetInt("length")
	if offset < 0 || length < 0 {
		return exitError(exitUsage, "offset and length must not be negative")
	}

	reads := make([]service.ReadRequest, 0, len(args))
	for _, space := range args {
		reads = append(reads, service.ReadRequest{
			Space:  space,
			Offset: offset,
			Length: length,
		})
	}

	return probe(cmd, reads)
}
