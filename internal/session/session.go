// internal/session/session.go
package session

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"device-programmer/internal/utils"
	"device-programmer/pkg/programmer"
)

// Options is the caller-supplied session configuration.
// The session keeps the pointer and only writes back an auto-selected Interface.
type Options struct {
	Tool      string `json:"tool" mapstructure:"tool"`
	Device    string `json:"device" mapstructure:"device"`
	Interface string `json:"interface,omitempty" mapstructure:"interface"`
	Port      string `json:"port,omitempty" mapstructure:"port"`
	Serial    string `json:"serial,omitempty" mapstructure:"serial"`
	Baud      int    `json:"baud,omitempty" mapstructure:"baud"`
	Frequency int    `json:"frequency,omitempty" mapstructure:"frequency"`

	SkipVoltageCheck   bool `json:"skip_voltage_check,omitempty" mapstructure:"skip_voltage_check"`
	SkipSignatureCheck bool `json:"skip_signature_check,omitempty" mapstructure:"skip_signature_check"`
}

// ToolRegistry resolves tool identifiers and aliases
type ToolRegistry interface {
	Lookup(name string) (*programmer.ToolType, error)
	Aliases() map[string][]string
}

// DeviceRegistry resolves part identifiers
type DeviceRegistry interface {
	Resolve(name string) (programmer.Device, error)
}

// State is the lifecycle position of a session
type State int

const (
	StateClosed State = iota
	StateConnected
	StateVerified
	StateInSession
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnected:
		return "connected"
	case StateVerified:
		return "verified"
	case StateInSession:
		return "in_session"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session binds a resolved device, tool and protocol.
// A session is not safe for concurrent use.
type Session struct {
	id       string
	options  *Options
	device   programmer.Device
	tool     programmer.Tool
	protocol programmer.Protocol
	state    State
	active   bool
	logger   *utils.SessionLogger
}

// New resolves opts against the registries and constructs the tool.
// Tool construction errors are returned unwrapped.
func New(opts *Options, tools ToolRegistry, devices DeviceRegistry, logger *zap.Logger) (*Session, error) {
	toolType, err := tools.Lookup(opts.Tool)
	if err != nil {
		return nil, &SupportError{Param: "tool", Value: opts.Tool, Supported: tools.Aliases()}
	}

	if opts.Device == "" {
		return nil, &MissingParamError{Param: "device"}
	}

	if opts.Tool == "" {
		return nil, &MissingParamError{Param: "tool"}
	}

	if opts.Interface == "" {
		if len(toolType.Interfaces) != 1 {
			return nil, &MissingParamError{Param: "interface"}
		}
		opts.Interface = toolType.Interfaces[0]
	} else if !toolType.SupportsInterface(opts.Interface) {
		return nil, &SupportError{
			Param:     "interface",
			Value:     opts.Interface,
			Supported: map[string][]string{toolType.Name: toolType.Interfaces},
		}
	}

	device, err := devices.Resolve(opts.Device)
	if err != nil {
		return nil, &SupportError{Param: "device", Value: opts.Device}
	}

	id := uuid.NewString()
	sessionLogger := utils.NewSessionLogger(logger, id, toolType.Name, device.Name())

	tool, err := toolType.Factory(device, programmer.ToolOptions{
		Port:      opts.Port,
		Serial:    opts.Serial,
		Baud:      opts.Baud,
		Interface: opts.Interface,
	}, sessionLogger.Logger)
	if err != nil {
		return nil, err
	}

	sessionLogger.Debug("Session resolved",
		zap.String("interface", opts.Interface),
		zap.String("port", opts.Port),
		zap.Int("baud", opts.Baud),
	)

	return &Session{
		id:       id,
		options:  opts,
		device:   device,
		tool:     tool,
		protocol: tool.Protocol(),
		state:    StateClosed,
		logger:   sessionLogger,
	}, nil
}

// Open connects to the tool and verifies the target.
// Any failure leaves the session in the state it reached; the caller must
// still call Close before the session can be opened again.
func (s *Session) Open(ctx context.Context) error {
	if s.active {
		return fmt.Errorf("%w: state %s", ErrSessionOpen, s.state)
	}
	s.active = true

	if err := s.tool.Open(ctx); err != nil {
		s.logger.LogConnection("open", false, err)
		return err
	}
	s.state = StateConnected
	s.logger.LogConnection("open", true, nil)

	if !s.options.SkipVoltageCheck {
		if err := s.verifyVoltage(ctx); err != nil {
			s.logger.LogStep("verify_voltage", err)
			return err
		}
	}
	s.state = StateVerified

	if err := s.protocol.SetInterfaceFrequency(ctx, s.options.Frequency); err != nil {
		s.logger.LogStep("set_frequency", err)
		return err
	}

	if err := s.protocol.EnterSession(ctx); err != nil {
		s.logger.LogStep("enter_session", err)
		return err
	}
	s.state = StateInSession

	if !s.options.SkipSignatureCheck {
		if err := s.verifySignature(ctx); err != nil {
			s.logger.LogStep("verify_signature", err)
			return err
		}
	}

	s.logger.Info("Session opened", zap.String("interface", s.options.Interface))
	return nil
}

// Close exits the programming session, then releases the tool transport,
// once per Open. Closing a session that was never opened is a no-op.
func (s *Session) Close() error {
	if !s.active {
		return nil
	}

	ctx := context.Background()
	err := s.protocol.ExitSession(ctx)
	err = multierr.Append(err, s.tool.Close())
	s.state = StateClosed
	s.active = false

	s.logger.LogConnection("close", err == nil, err)
	return err
}

func (s *Session) verifyVoltage(ctx context.Context) error {
	measured, err := s.protocol.VTarget(ctx)
	if err != nil {
		return err
	}
	if measured == nil {
		s.logger.Debug("Tool cannot measure VTARGET, skipping voltage check")
		return nil
	}

	vccMin, vccMax := s.device.VCCRange()
	if *measured < vccMin || *measured > vccMax {
		return &VoltageError{Min: vccMin, Max: vccMax, Measured: *measured}
	}

	s.logger.Debug("VTARGET within device range", zap.Float64("vtarget", *measured))
	return nil
}

func (s *Session) verifySignature(ctx context.Context) error {
	expected := s.device.Signature(s.options.Interface)
	read, err := s.protocol.ReadMemory(ctx, s.device.SignatureSpace(), 0, len(expected))
	if err != nil {
		return err
	}

	// a short read is compared against the matching prefix
	if len(read) > len(expected) {
		read = read[:len(expected)]
	}
	if !bytes.Equal(expected[:len(read)], read) {
		return &SignatureError{Expected: expected, Read: read}
	}

	s.logger.Debug("Device signature verified", zap.String("signature", FormatBytes(read)))
	return nil
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// Options returns the fully resolved options
func (s *Session) Options() *Options {
	return s.options
}

// Device returns the resolved device descriptor
func (s *Session) Device() programmer.Device {
	return s.device
}

// Tool returns the tool handle owned by the session
func (s *Session) Tool() programmer.Tool {
	return s.tool
}

// Protocol returns the protocol handle borrowed from the tool
func (s *Session) Protocol() programmer.Protocol {
	return s.protocol
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return s.state
}
