// internal/driver/registry_init.go
package driver

import (
	"fmt"

	"go.uber.org/zap"

	"device-programmer/internal/driver/simulator"
	"device-programmer/internal/driver/stk500v2"
	"device-programmer/pkg/programmer"
)

// DefaultToolTypes returns the built-in tool types
func DefaultToolTypes() []*programmer.ToolType {
	return []*programmer.ToolType{
		{
			Name:       "stk500v2",
			Aliases:    []string{"avrisp", "stk500"},
			Interfaces: []string{programmer.InterfaceISP},
			Factory:    stk500v2.NewSerialTool,
		},
		{
			Name:       "avrispmk2",
			Aliases:    []string{"avrisp2", "avrispmkii"},
			Interfaces: []string{programmer.InterfaceISP},
			USBIDs:     []programmer.USBID{stk500v2.AVRISPmkIIUSBID},
			Factory:    stk500v2.NewUSBTool,
		},
		{
			Name:    "simulator",
			Aliases: []string{"sim", "dummy"},
			Interfaces: []string{
				programmer.InterfaceISP,
				programmer.InterfaceJTAG,
				programmer.InterfacePDI,
				programmer.InterfaceUPDI,
			},
			Factory: simulator.NewTool,
		},
	}
}

// RegisterDefaultTools registers all built-in tool types
func RegisterDefaultTools(registry *Registry, logger *zap.Logger) error {
	for _, toolType := range DefaultToolTypes() {
		if err := registry.Register(toolType); err != nil {
			return fmt.Errorf("failed to register default tools: %w", err)
		}
	}

	logger.Debug("Default tools registered", zap.Int("count", len(registry.List())))
	return nil
}
