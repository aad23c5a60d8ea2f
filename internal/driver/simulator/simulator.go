// internal/driver/simulator/simulator.go
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"device-programmer/pkg/programmer"
)

// ErrNotOpen is returned by protocol calls on a closed simulator
var ErrNotOpen = errors.New("simulator not open")

// Tool is a virtual programmer that answers from the bound device descriptor.
// It cannot measure target voltage.
type Tool struct {
	device   programmer.Device
	iface    string
	logger   *zap.Logger
	mutex    sync.Mutex
	isOpen   bool
	protocol *Protocol
}

// Protocol is the simulator's programmer.Protocol
type Protocol struct {
	tool       *Tool
	frequency  int
	inProgmode bool
}

// NewTool creates a simulator bound to device
func NewTool(device programmer.Device, opts programmer.ToolOptions, logger *zap.Logger) (programmer.Tool, error) {
	t := &Tool{
		device: device,
		iface:  opts.Interface,
		logger: logger.With(
			zap.String("tool", "simulator"),
			zap.String("device", device.Name()),
		),
	}
	t.protocol = &Protocol{tool: t}
	return t, nil
}

// Open marks the simulator connected
func (t *Tool) Open(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t.isOpen = true
	t.logger.Info("Simulator connected", zap.String("interface", t.iface))
	return nil
}

// Close marks the simulator disconnected
func (t *Tool) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.isOpen = false
	t.protocol.inProgmode = false
	t.logger.Debug("Simulator closed")
	return nil
}

// Protocol returns the simulator protocol
func (t *Tool) Protocol() programmer.Protocol {
	return t.protocol
}

// Frequency returns the last interface frequency set
func (p *Protocol) Frequency() int {
	p.tool.mutex.Lock()
	defer p.tool.mutex.Unlock()
	return p.frequency
}

// SetInterfaceFrequency records the frequency
func (p *Protocol) SetInterfaceFrequency(ctx context.Context, hz int) error {
	p.tool.mutex.Lock()
	defer p.tool.mutex.Unlock()

	if !p.tool.isOpen {
		return ErrNotOpen
	}
	if hz <= 0 {
		return fmt.Errorf("invalid interface frequency %d", hz)
	}
	p.frequency = hz
	return nil
}

// VTarget always reports no measurement
func (p *Protocol) VTarget(ctx context.Context) (*float64, error) {
	p.tool.mutex.Lock()
	defer p.tool.mutex.Unlock()

	if !p.tool.isOpen {
		return nil, ErrNotOpen
	}
	return nil, nil
}

// EnterSession enters the simulated programming mode
func (p *Protocol) EnterSession(ctx context.Context) error {
	p.tool.mutex.Lock()
	defer p.tool.mutex.Unlock()

	if !p.tool.isOpen {
		return ErrNotOpen
	}
	p.inProgmode = true
	p.tool.logger.Debug("Entered programming mode")
	return nil
}

// ExitSession leaves the simulated programming mode
func (p *Protocol) ExitSession(ctx context.Context) error {
	p.tool.mutex.Lock()
	defer p.tool.mutex.Unlock()

	p.inProgmode = false
	return nil
}

// ReadMemory serves the device's signature from its signature space and
// erased bytes from fuses and lockbits
func (p *Protocol) ReadMemory(ctx context.Context, space string, offset, length int) ([]byte, error) {
	p.tool.mutex.Lock()
	defer p.tool.mutex.Unlock()

	if !p.tool.isOpen {
		return nil, ErrNotOpen
	}
	if !p.inProgmode {
		return nil, fmt.Errorf("cannot read %s: not in programming mode", space)
	}
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("invalid read range %d+%d", offset, length)
	}

	var memory []byte
	switch space {
	case p.tool.device.SignatureSpace():
		memory = p.tool.device.Signature(p.tool.iface)
	case programmer.MemoryFuses:
		memory = []byte{0xFF, 0xFF, 0xFF}
	case programmer.MemoryLockbits:
		memory = []byte{0xFF}
	default:
		return nil, &programmer.UnsupportedMemoryError{Space: space}
	}

	if offset >= len(memory) {
		return []byte{}, nil
	}
	end := offset + length
	if end > len(memory) {
		end = len(memory)
	}

	data := make([]byte, end-offset)
	copy(data, memory[offset:end])
	return data, nil
}
