// internal/driver/stk500v2/tool.go
package stk500v2

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"device-programmer/internal/transport"
	"device-programmer/pkg/programmer"
)

// AVRISP mkII USB identity and bulk endpoints
var AVRISPmkIIUSBID = programmer.USBID{Vendor: 0x03EB, Product: 0x2104}

const (
	avrispmkIIOutEndpoint = 0x02
	avrispmkIIInEndpoint  = 0x02
)

// Tool is an STK500v2 programmer bound to one device
type Tool struct {
	name      string
	transport transport.Transport
	protocol  *Protocol
	logger    *zap.Logger
	mutex     sync.Mutex
	signature string
}

// NewSerialTool creates an STK500v2 tool on a serial port or net:host:port bridge
func NewSerialTool(device programmer.Device, opts programmer.ToolOptions, logger *zap.Logger) (programmer.Tool, error) {
	if opts.Port == "" {
		return nil, &programmer.ToolError{Tool: "stk500v2", Err: errors.New("port is required")}
	}

	t, err := transport.CreateFromPort(opts.Port, opts.Baud, logger)
	if err != nil {
		return nil, &programmer.ToolError{Tool: "stk500v2", Err: err}
	}

	return newTool("stk500v2", t, newFramedLink(t), device, opts, logger), nil
}

// NewUSBTool creates an AVRISP mkII tool, optionally selected by USB serial number
func NewUSBTool(device programmer.Device, opts programmer.ToolOptions, logger *zap.Logger) (programmer.Tool, error) {
	t := transport.NewUSBConnection(&transport.USBConfig{
		VendorID:     AVRISPmkIIUSBID.Vendor,
		ProductID:    AVRISPmkIIUSBID.Product,
		SerialNumber: opts.Serial,
		OutEndpoint:  avrispmkIIOutEndpoint,
		InEndpoint:   avrispmkIIInEndpoint,
	}, logger)

	return newTool("avrispmk2", t, &rawLink{transport: t}, device, opts, logger), nil
}

func newTool(name string, t transport.Transport, l link, device programmer.Device, opts programmer.ToolOptions, logger *zap.Logger) *Tool {
	toolLogger := logger.With(
		zap.String("tool", name),
		zap.String("device", device.Name()),
	)

	return &Tool{
		name:      name,
		transport: t,
		protocol:  newProtocol(l, device, opts.Interface, toolLogger),
		logger:    toolLogger,
	}
}

// Open opens the transport and signs on to the programmer
func (t *Tool) Open(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err := t.transport.Open(ctx); err != nil {
		return fmt.Errorf("failed to open %s transport: %w", t.transport.Type(), err)
	}

	signature, err := t.protocol.SignOn(ctx)
	if err != nil {
		err = fmt.Errorf("failed to sign on to %s: %w", t.name, err)
		return multierr.Append(err, t.transport.Close())
	}

	t.signature = signature
	t.logger.Info("Programmer connected",
		zap.String("transport", string(t.transport.Type())),
		zap.String("signature", signature),
	)
	return nil
}

// Close leaves programming mode if still in it and closes the transport
func (t *Tool) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var err error
	if t.transport.IsOpen() {
		err = multierr.Append(err, t.protocol.ExitSession(context.Background()))
	}
	err = multierr.Append(err, t.transport.Close())

	stats := t.transport.Stats()
	t.logger.Debug("Programmer closed",
		zap.Int64("bytes_written", stats.BytesWritten),
		zap.Int64("bytes_read", stats.BytesRead),
		zap.Int64("operations", stats.OperationCount),
		zap.Int64("errors", stats.ErrorCount),
		zap.Duration("average_latency", stats.AverageLatency),
	)
	return err
}

// Protocol returns the STK500v2 protocol handle
func (t *Tool) Protocol() programmer.Protocol {
	return t.protocol
}

// Signature returns the sign-on string reported by the programmer
func (t *Tool) Signature() string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.signature
}
