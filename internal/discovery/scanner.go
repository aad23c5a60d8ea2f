// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"device-programmer/pkg/programmer"
)

// PortScanner finds ports a programmer may be attached to
type PortScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredPort, error)
	GetScannerType() string
	IsAvailable() bool
}

// ToolMatcher identifies tool types by USB identity
type ToolMatcher interface {
	FindByUSBID(id programmer.USBID) (*programmer.ToolType, bool)
}

// DiscoveredPort is a candidate connection for a tool
type DiscoveredPort struct {
	Type         string `json:"type"`
	Port         string `json:"port,omitempty"`
	VendorID     string `json:"vendor_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
	Tool         string `json:"tool,omitempty"`
	Location     string `json:"location,omitempty"`
}

// ScannerManager runs the registered scanners
type ScannerManager struct {
	scanners map[string]PortScanner
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]PortScanner),
		logger:   logger,
	}
}

// RegisterScanner registers a port scanner, replacing one of the same type
func (sm *ScannerManager) RegisterScanner(scanner PortScanner) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	scannerType := scanner.GetScannerType()
	sm.scanners[scannerType] = scanner
	sm.logger.Debug("Scanner registered", zap.String("type", scannerType))
}

// ScanAll runs every available scanner. Ports found by scanners that
// succeeded are returned together with the combined errors of those that failed.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredPort, error) {
	var (
		all  []*DiscoveredPort
		errs error
	)

	for _, scannerType := range sm.GetAvailableScanners() {
		ports, err := sm.ScanByType(ctx, scannerType)
		if err != nil {
			sm.logger.Warn("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s scan: %w", scannerType, err))
			continue
		}

		all = append(all, ports...)
		sm.logger.Debug("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("ports_found", len(ports)),
		)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Type != all[j].Type {
			return all[i].Type < all[j].Type
		}
		return all[i].Port < all[j].Port
	})
	return all, errs
}

// ScanByType runs one scanner
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredPort, error) {
	sm.mutex.RLock()
	scanner, exists := sm.scanners[scannerType]
	sm.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}
	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}

	return scanner.Scan(ctx)
}

// GetAvailableScanners returns the available scanner types, sorted
func (sm *ScannerManager) GetAvailableScanners() []string {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	var available []string
	for scannerType, scanner := range sm.scanners {
		if scanner.IsAvailable() {
			available = append(available, scannerType)
		}
	}
	sort.Strings(available)
	return available
}

// FormatUSBID renders a vendor or product id the way ports report it
func FormatUSBID(id uint16) string {
	return fmt.Sprintf("%04X", id)
}
