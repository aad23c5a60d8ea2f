// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"strconv"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"device-programmer/internal/discovery"
	"device-programmer/pkg/programmer"
)

// Scanner lists serial ports and tags those whose USB identity belongs to a known tool
type Scanner struct {
	logger  *zap.Logger
	matcher discovery.ToolMatcher

	// listPorts is swapped in tests
	listPorts func() ([]*enumerator.PortDetails, error)
}

// NewScanner creates a new serial scanner
func NewScanner(matcher discovery.ToolMatcher, logger *zap.Logger) *Scanner {
	return &Scanner{
		logger:    logger.With(zap.String("scanner", "serial")),
		matcher:   matcher,
		listPorts: enumerator.GetDetailedPortsList,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable reports whether serial enumeration is supported
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists the serial ports
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	ports, err := s.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	discovered := make([]*discovery.DiscoveredPort, 0, len(ports))
	for _, details := range ports {
		if err := ctx.Err(); err != nil {
			return discovered, err
		}

		port := &discovery.DiscoveredPort{
			Type: "serial",
			Port: details.Name,
		}

		if details.IsUSB {
			port.VendorID = details.VID
			port.ProductID = details.PID
			port.SerialNumber = details.SerialNumber
			port.Product = details.Product
			port.Tool = s.matchTool(details.VID, details.PID)
		}

		discovered = append(discovered, port)
	}

	s.logger.Debug("Serial scan completed", zap.Int("ports_found", len(discovered)))
	return discovered, nil
}

func (s *Scanner) matchTool(vid, pid string) string {
	if s.matcher == nil {
		return ""
	}

	vendor, err := strconv.ParseUint(vid, 16, 16)
	if err != nil {
		return ""
	}
	product, err := strconv.ParseUint(pid, 16, 16)
	if err != nil {
		return ""
	}

	toolType, ok := s.matcher.FindByUSBID(programmer.USBID{Vendor: uint16(vendor), Product: uint16(product)})
	if !ok {
		return ""
	}
	return toolType.Name
}
