// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"device-programmer/internal/discovery"
	"device-programmer/pkg/programmer"
)

// Scanner finds USB programmers claimed by a registered tool type
type Scanner struct {
	logger  *zap.Logger
	matcher discovery.ToolMatcher
}

// NewScanner creates a new USB scanner
func NewScanner(matcher discovery.ToolMatcher, logger *zap.Logger) *Scanner {
	return &Scanner{
		logger:  logger.With(zap.String("scanner", "usb")),
		matcher: matcher,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "usb"
}

// IsAvailable reports whether libusb enumeration is supported on this OS
func (s *Scanner) IsAvailable() bool {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		return s.matcher != nil
	default:
		return false
	}
}

// Scan opens every device a tool claims and reads its serial number
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	startTime := time.Now()

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := s.toolFor(desc.Vendor, desc.Product)
		return ok
	})
	defer func() {
		for _, device := range devices {
			device.Close()
		}
	}()
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("device enumeration failed: %w", err)
	}
	if err != nil {
		s.logger.Debug("Some USB devices could not be opened", zap.Error(err))
	}

	discovered := make([]*discovery.DiscoveredPort, 0, len(devices))
	for _, device := range devices {
		if err := ctx.Err(); err != nil {
			return discovered, err
		}
		tool, _ := s.toolFor(device.Desc.Vendor, device.Desc.Product)
		discovered = append(discovered, s.describe(device, tool))
	}

	s.logger.Debug("USB scan completed",
		zap.Int("ports_found", len(discovered)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return discovered, nil
}

func (s *Scanner) toolFor(vendor, product gousb.ID) (string, bool) {
	toolType, ok := s.matcher.FindByUSBID(programmer.USBID{Vendor: uint16(vendor), Product: uint16(product)})
	if !ok {
		return "", false
	}
	return toolType.Name, true
}

func (s *Scanner) describe(device *gousb.Device, tool string) *discovery.DiscoveredPort {
	desc := device.Desc

	port := &discovery.DiscoveredPort{
		Type:      "usb",
		VendorID:  discovery.FormatUSBID(uint16(desc.Vendor)),
		ProductID: discovery.FormatUSBID(uint16(desc.Product)),
		Tool:      tool,
		Location:  fmt.Sprintf("USB-Bus%d-Port%d", desc.Bus, desc.Address),
	}

	if serialNumber, err := device.SerialNumber(); err == nil {
		port.SerialNumber = serialNumber
	} else {
		s.logger.Debug("Failed to read serial number", zap.String("location", port.Location), zap.Error(err))
	}
	if product, err := device.Product(); err == nil {
		port.Product = product
	}
	return port
}
