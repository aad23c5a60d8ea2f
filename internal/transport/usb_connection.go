// internal/transport/usb_connection.go
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// USBConnection implements Transport over a pair of USB bulk endpoints
type USBConnection struct {
	config   *USBConfig
	ctx      *gousb.Context
	device   *gousb.Device
	intf     *gousb.Interface
	done     func()
	outEndpt *gousb.OutEndpoint
	inEndpt  *gousb.InEndpoint
	logger   *zap.Logger
	mutex    sync.Mutex
	isOpen   bool
	stats    Stats
}

// NewUSBConnection creates a new USB connection
func NewUSBConnection(config *USBConfig, logger *zap.Logger) *USBConnection {
	if config.Timeout == 0 {
		config.Timeout = DefaultUSBTimeout
	}

	return &USBConnection{
		config: config,
		logger: logger.With(
			zap.String("transport", "usb"),
			zap.String("usb_id", fmt.Sprintf("%04X:%04X", config.VendorID, config.ProductID)),
		),
	}
}

// Open finds the device, claims its default interface and resolves both endpoints
func (uc *USBConnection) Open(ctx context.Context) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if uc.isOpen {
		return nil
	}

	uc.logger.Debug("Opening USB connection", zap.String("serial_number", uc.config.SerialNumber))

	uc.ctx = gousb.NewContext()

	device, err := uc.findAndOpenDevice()
	if err != nil {
		uc.ctx.Close()
		uc.ctx = nil
		return err
	}

	intf, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		uc.ctx.Close()
		uc.ctx = nil
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	outEndpt, err := intf.OutEndpoint(uc.config.OutEndpoint)
	if err != nil {
		done()
		device.Close()
		uc.ctx.Close()
		uc.ctx = nil
		return fmt.Errorf("failed to get out endpoint: %w", err)
	}

	inEndpt, err := intf.InEndpoint(uc.config.InEndpoint)
	if err != nil {
		done()
		device.Close()
		uc.ctx.Close()
		uc.ctx = nil
		return fmt.Errorf("failed to get in endpoint: %w", err)
	}

	uc.device = device
	uc.intf = intf
	uc.done = done
	uc.outEndpt = outEndpt
	uc.inEndpt = inEndpt
	uc.isOpen = true
	uc.stats.IsConnected = true
	uc.stats.LastActivity = time.Now()

	uc.logger.Debug("USB connection opened successfully")
	return nil
}

// Close releases the interface, device and libusb context
func (uc *USBConnection) Close() error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return nil
	}

	var err error
	if uc.done != nil {
		uc.done()
		uc.done = nil
	}
	if uc.device != nil {
		err = multierr.Append(err, uc.device.Close())
		uc.device = nil
	}
	if uc.ctx != nil {
		err = multierr.Append(err, uc.ctx.Close())
		uc.ctx = nil
	}

	uc.intf = nil
	uc.outEndpt = nil
	uc.inEndpt = nil
	uc.isOpen = false
	uc.stats.IsConnected = false

	if err != nil {
		return fmt.Errorf("failed to close USB connection: %w", err)
	}

	uc.logger.Debug("USB connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (uc *USBConnection) IsOpen() bool {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.isOpen && uc.outEndpt != nil && uc.inEndpt != nil
}

// Write sends data as a single bulk transfer
func (uc *USBConnection) Write(ctx context.Context, data []byte) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen || uc.outEndpt == nil {
		return ErrNotOpen
	}

	opCtx, cancel := context.WithTimeout(ctx, uc.config.Timeout)
	defer cancel()

	startTime := time.Now()
	n, err := uc.outEndpt.WriteContext(opCtx, data)
	if err != nil {
		uc.stats.ErrorCount++
		return fmt.Errorf("failed to write to USB device: %w", err)
	}
	if n != len(data) {
		uc.stats.ErrorCount++
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	uc.stats.recordWrite(n, time.Since(startTime))
	return nil
}

// Read receives a single bulk transfer of up to maxBytes
func (uc *USBConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen || uc.inEndpt == nil {
		return nil, ErrNotOpen
	}

	opCtx, cancel := context.WithTimeout(ctx, uc.config.Timeout)
	defer cancel()

	buffer := make([]byte, maxBytes)
	n, err := uc.inEndpt.ReadContext(opCtx, buffer)
	if err != nil {
		uc.stats.ErrorCount++
		return nil, fmt.Errorf("failed to read from USB device: %w", err)
	}

	uc.stats.recordRead(n)
	return buffer[:n], nil
}

// Type returns the transport type
func (uc *USBConnection) Type() Type {
	return TypeUSB
}

// Stats returns a snapshot of the transport statistics
func (uc *USBConnection) Stats() Stats {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.stats
}

// findAndOpenDevice opens the first device matching the configured IDs and serial number
func (uc *USBConnection) findAndOpenDevice() (*gousb.Device, error) {
	vendorID := gousb.ID(uc.config.VendorID)
	productID := gousb.ID(uc.config.ProductID)

	devices, err := uc.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vendorID && desc.Product == productID
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var selected *gousb.Device
	for _, device := range devices {
		if selected == nil && uc.matchesSerial(device) {
			selected = device
			continue
		}
		device.Close()
	}

	if selected == nil {
		if uc.config.SerialNumber != "" {
			return nil, fmt.Errorf("USB device not found (VID: %04X, PID: %04X, serial: %s)",
				uc.config.VendorID, uc.config.ProductID, uc.config.SerialNumber)
		}
		return nil, fmt.Errorf("USB device not found (VID: %04X, PID: %04X)",
			uc.config.VendorID, uc.config.ProductID)
	}

	if len(devices) > 1 && uc.config.SerialNumber == "" {
		uc.logger.Warn("Multiple matching USB devices found, using first one", zap.Int("count", len(devices)))
	}
	return selected, nil
}

func (uc *USBConnection) matchesSerial(device *gousb.Device) bool {
	if uc.config.SerialNumber == "" {
		return true
	}
	serialNumber, err := device.SerialNumber()
	if err != nil {
		uc.logger.Debug("Failed to read USB serial number", zap.Error(err))
		return false
	}
	return serialNumber == uc.config.SerialNumber
}
