// pkg/programmer/interfaces.go
package programmer

import (
	"context"

	"go.uber.org/zap"
)

// Device is the capability view of a target part the session verifies against
type Device interface {
	// Name returns the canonical part name
	Name() string

	// VCCRange returns the inclusive supply range in volts
	VCCRange() (min, max float64)

	// Signature returns the expected identity bytes for an interface
	Signature(iface string) []byte

	// SignatureSpace names the memory space the signature is read from
	SignatureSpace() string

	// InterfaceParams returns the interface-specific timing parameters
	InterfaceParams(iface string) map[string]int
}

// Tool is a programmer bound to a single device
type Tool interface {
	// Connection management
	Open(ctx context.Context) error
	Close() error

	// Protocol returns the handle used to talk to the target.
	// Its lifetime is bounded by the tool's.
	Protocol() Protocol
}

// Protocol is the live target session exposed by an open tool
type Protocol interface {
	// Target configuration
	SetInterfaceFrequency(ctx context.Context, hz int) error

	// VTarget returns the measured target voltage, or nil when the tool
	// cannot measure it
	VTarget(ctx context.Context) (*float64, error)

	// Programming mode
	EnterSession(ctx context.Context) error
	ExitSession(ctx context.Context) error

	// ReadMemory may return fewer bytes than requested
	ReadMemory(ctx context.Context, space string, offset, length int) ([]byte, error)
}

// ToolFactory creates a tool bound to device
type ToolFactory func(device Device, opts ToolOptions, logger *zap.Logger) (Tool, error)

// ToolType describes a registered kind of programmer
type ToolType struct {
	Name       string
	Aliases    []string
	Interfaces []string
	USBIDs     []USBID
	Factory    ToolFactory
}

// SupportsInterface reports whether iface is one of the tool's interfaces
func (t *ToolType) SupportsInterface(iface string) bool {
	for _, candidate := range t.Interfaces {
		if candidate == iface {
			return true
		}
	}
	return false
}
