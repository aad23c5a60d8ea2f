// internal/driver/stk500v2/protocol.go
package stk500v2

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"device-programmer/pkg/programmer"
)

// ErrFrequencyTooLow is returned when no supported SCK rate is at or below the request
var ErrFrequencyTooLow = errors.New("interface frequency below slowest supported rate")

// StatusError reports a non-OK answer status
type StatusError struct {
	Command byte
	Status  byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("command 0x%02X failed with status 0x%02X (%s)", e.Command, e.Status, statusText(e.Status))
}

// Protocol implements programmer.Protocol for STK500v2 ISP programmers
type Protocol struct {
	link       link
	device     programmer.Device
	iface      string
	logger     *zap.Logger
	mutex      sync.Mutex
	inProgmode bool
}

func newProtocol(l link, device programmer.Device, iface string, logger *zap.Logger) *Protocol {
	return &Protocol{
		link:   l,
		device: device,
		iface:  iface,
		logger: logger,
	}
}

// SignOn identifies the programmer and returns its signature string
func (p *Protocol) SignOn(ctx context.Context) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	answer, err := p.command(ctx, []byte{CmdSignOn}, 3)
	if err != nil {
		return "", err
	}

	length := int(answer[2])
	if len(answer) < 3+length {
		return "", fmt.Errorf("short sign-on answer: %d bytes", len(answer))
	}
	return string(answer[3 : 3+length]), nil
}

// VTarget reads PARAM_VTARGET, reported in tenths of a volt
func (p *Protocol) VTarget(ctx context.Context) (*float64, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	raw, err := p.getParameter(ctx, ParamVTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to read target voltage: %w", err)
	}

	volts := float64(raw) / 10
	p.logger.Debug("Target voltage measured", zap.Float64("volts", volts))
	return &volts, nil
}

// SetInterfaceFrequency selects the fastest SCK rate not above hz
func (p *Protocol) SetInterfaceFrequency(ctx context.Context, hz int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	rate, duration, err := sckDuration(hz)
	if err != nil {
		return err
	}

	if _, err := p.command(ctx, []byte{CmdSetParameter, ParamSCKDuration, duration}, 2); err != nil {
		return fmt.Errorf("failed to set SCK duration: %w", err)
	}

	p.logger.Debug("Interface frequency set",
		zap.Int("requested_hz", hz),
		zap.Int("actual_hz", rate),
	)
	return nil
}

// EnterSession puts the target into ISP programming mode
func (p *Protocol) EnterSession(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.iface != programmer.InterfaceISP {
		return fmt.Errorf("interface %s is not supported by this programmer", p.iface)
	}

	params := p.ispParams()
	body := []byte{
		CmdEnterProgmodeISP,
		byte(params["timeout"]),
		byte(params["stab_delay"]),
		byte(params["cmdexe_delay"]),
		byte(params["synch_loops"]),
		byte(params["byte_delay"]),
		byte(params["poll_value"]),
		byte(params["poll_index"]),
		ispInstructions.ProgrammingEnable[0],
		ispInstructions.ProgrammingEnable[1],
		0x00,
		0x00,
	}

	if _, err := p.command(ctx, body, 2); err != nil {
		return fmt.Errorf("failed to enter programming mode: %w", err)
	}

	p.inProgmode = true
	p.logger.Debug("Entered ISP programming mode")
	return nil
}

// ExitSession leaves programming mode; it is a no-op when not in it
func (p *Protocol) ExitSession(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.inProgmode {
		return nil
	}

	params := p.ispParams()
	body := []byte{CmdLeaveProgmodeISP, byte(params["pre_delay"]), byte(params["post_delay"])}

	// Programming mode is considered left even when the answer is lost
	p.inProgmode = false
	if _, err := p.command(ctx, body, 2); err != nil {
		return fmt.Errorf("failed to leave programming mode: %w", err)
	}

	p.logger.Debug("Left ISP programming mode")
	return nil
}

// ReadMemory reads bytes from one of the ISP-readable spaces. Reads past the
// end of the space are truncated.
func (p *Protocol) ReadMemory(ctx context.Context, space string, offset, length int) ([]byte, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("invalid read range %d+%d", offset, length)
	}

	var (
		size int
		read func(ctx context.Context, addr int) (byte, error)
	)

	switch space {
	case programmer.MemorySignatures:
		size, read = 3, p.readSignatureByte
	case programmer.MemoryFuses:
		size, read = 3, p.readFuseByte
	case programmer.MemoryLockbits:
		size, read = 1, p.readLockByte
	case programmer.MemoryCalibration:
		size, read = 1, p.readCalibrationByte
	default:
		return nil, &programmer.UnsupportedMemoryError{Space: space}
	}

	if !p.inProgmode {
		return nil, fmt.Errorf("cannot read %s: not in programming mode", space)
	}

	end := offset + length
	if end > size {
		end = size
	}

	data := make([]byte, 0, length)
	for addr := offset; addr < end; addr++ {
		value, err := read(ctx, addr)
		if err != nil {
			return data, fmt.Errorf("failed to read %s[%d]: %w", space, addr, err)
		}
		data = append(data, value)
	}
	return data, nil
}

func (p *Protocol) readSignatureByte(ctx context.Context, addr int) (byte, error) {
	return p.ispRead(ctx, CmdReadSignatureISP, [4]byte{ispInstructions.ReadSignature, 0x00, byte(addr), 0x00})
}

func (p *Protocol) readFuseByte(ctx context.Context, addr int) (byte, error) {
	var instruction [2]byte
	switch addr {
	case 0:
		instruction = ispInstructions.ReadLowFuse
	case 1:
		instruction = ispInstructions.ReadHighFuse
	default:
		instruction = ispInstructions.ReadExtFuse
	}
	return p.ispRead(ctx, CmdReadFuseISP, [4]byte{instruction[0], instruction[1], 0x00, 0x00})
}

func (p *Protocol) readLockByte(ctx context.Context, _ int) (byte, error) {
	return p.ispRead(ctx, CmdReadLockISP, [4]byte{ispInstructions.ReadLock[0], ispInstructions.ReadLock[1], 0x00, 0x00})
}

func (p *Protocol) readCalibrationByte(ctx context.Context, addr int) (byte, error) {
	return p.ispRead(ctx, CmdReadOsccalISP, [4]byte{ispInstructions.ReadCalibration, 0x00, byte(addr), 0x00})
}

// ispRead sends a four byte ISP instruction and returns the byte read back.
// Answers are [cmd, status1, data, status2].
func (p *Protocol) ispRead(ctx context.Context, cmd byte, instruction [4]byte) (byte, error) {
	body := []byte{cmd, 4, instruction[0], instruction[1], instruction[2], instruction[3]}

	answer, err := p.command(ctx, body, 4)
	if err != nil {
		return 0, err
	}
	if answer[3] != StatusCmdOK {
		return 0, &StatusError{Command: cmd, Status: answer[3]}
	}
	return answer[2], nil
}

func (p *Protocol) getParameter(ctx context.Context, param byte) (byte, error) {
	answer, err := p.command(ctx, []byte{CmdGetParameter, param}, 3)
	if err != nil {
		return 0, err
	}
	return answer[2], nil
}

// command exchanges body and checks the echoed command, the status byte and
// the minimum answer length
func (p *Protocol) command(ctx context.Context, body []byte, minAnswer int) ([]byte, error) {
	answer, err := p.link.exchange(ctx, body)
	if err != nil {
		return nil, err
	}

	if len(answer) < 2 {
		return nil, fmt.Errorf("short answer to command 0x%02X: %d bytes", body[0], len(answer))
	}
	if answer[0] != body[0] {
		return nil, fmt.Errorf("answer to command 0x%02X echoes 0x%02X", body[0], answer[0])
	}
	if answer[1] != StatusCmdOK {
		return nil, &StatusError{Command: body[0], Status: answer[1]}
	}
	if len(answer) < minAnswer {
		return nil, fmt.Errorf("short answer to command 0x%02X: %d bytes", body[0], len(answer))
	}
	return answer, nil
}

// ispParams merges the part's ISP timings over the defaults
func (p *Protocol) ispParams() map[string]int {
	params := make(map[string]int, len(defaultISPParams))
	for key, value := range defaultISPParams {
		params[key] = value
	}
	for key, value := range p.device.InterfaceParams(programmer.InterfaceISP) {
		params[key] = value
	}
	return params
}

// sckDuration picks the fastest supported rate not above hz
func sckDuration(hz int) (int, byte, error) {
	for _, rate := range sckRates {
		if rate.Hz <= hz {
			return rate.Hz, rate.Duration, nil
		}
	}
	slowest := sckRates[len(sckRates)-1].Hz
	return 0, 0, fmt.Errorf("%w: requested %d Hz, slowest is %d Hz", ErrFrequencyTooLow, hz, slowest)
}
