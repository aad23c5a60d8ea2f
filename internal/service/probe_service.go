// internal/service/probe_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"device-programmer/internal/config"
	"device-programmer/internal/session"
	"device-programmer/internal/utils"
	"device-programmer/pkg/programmer"
)

// ErrToolBusy is returned when a probe is already running
var ErrToolBusy = errors.New("a programming session is already in progress")

// readLengths are the default read sizes for the fixed-size memory spaces
var readLengths = map[string]int{
	programmer.MemoryFuses:       3,
	programmer.MemoryLockbits:    1,
	programmer.MemoryCalibration: 1,
}

// ReadRequest names a memory range to read once the session is open.
// A zero Length reads the whole space.
type ReadRequest struct {
	Space  string `json:"space" mapstructure:"space"`
	Offset int    `json:"offset,omitempty" mapstructure:"offset"`
	Length int    `json:"length,omitempty" mapstructure:"length"`
}

// ProbeRequest is a session configuration plus the reads to perform
type ProbeRequest struct {
	session.Options `mapstructure:",squash"`
	Reads           []ReadRequest `json:"reads,omitempty" mapstructure:"reads"`
}

// MemoryRead is the outcome of one ReadRequest
type MemoryRead struct {
	Space  string `json:"space"`
	Offset int    `json:"offset"`
	Data   string `json:"data,omitempty"`
	Bytes  []byte `json:"-"`
	Error  string `json:"error,omitempty"`
}

// ProbeResult describes an opened and verified session
type ProbeResult struct {
	SessionID         string          `json:"session_id"`
	Tool              string          `json:"tool"`
	Device            string          `json:"device"`
	Interface         string          `json:"interface"`
	VCCMin            decimal.Decimal `json:"vcc_min"`
	VCCMax            decimal.Decimal `json:"vcc_max"`
	ExpectedSignature string          `json:"expected_signature"`
	Reads             []MemoryRead    `json:"reads,omitempty"`
	Duration          time.Duration   `json:"duration"`
}

// ProbeService opens sessions and reads target memory, one at a time
type ProbeService struct {
	tools    session.ToolRegistry
	devices  session.DeviceRegistry
	defaults config.SessionConfig
	logger   *utils.ServiceLogger
	mutex    sync.Mutex
}

// NewProbeService creates a new probe service
func NewProbeService(
	tools session.ToolRegistry,
	devices session.DeviceRegistry,
	defaults config.SessionConfig,
	logger *zap.Logger,
) *ProbeService {
	return &ProbeService{
		tools:    tools,
		devices:  devices,
		defaults: defaults,
		logger:   utils.NewServiceLogger(logger, "probe-service"),
	}
}

// Probe opens a session for req, runs the requested reads and closes the
// session on every path. Only one probe runs at a time.
func (ps *ProbeService) Probe(ctx context.Context, req *ProbeRequest) (result *ProbeResult, err error) {
	if !ps.mutex.TryLock() {
		return nil, ErrToolBusy
	}
	defer ps.mutex.Unlock()

	opts := req.Options
	ps.applyDefaults(&opts)

	s, err := session.New(&opts, ps.tools, ps.devices, ps.logger.Logger)
	if err != nil {
		return nil, err
	}

	opLogger := utils.NewOperationLogger(ps.logger.Logger, "probe", s.ID())
	opLogger.Start(
		zap.String("tool", opts.Tool),
		zap.String("device", opts.Device),
		zap.String("interface", opts.Interface),
	)
	defer func() {
		if err != nil {
			opLogger.Error(err)
		}
	}()

	defer multierr.AppendInvoke(&err, multierr.Close(s))

	if err = s.Open(ctx); err != nil {
		return nil, err
	}

	device := s.Device()
	vccMin, vccMax := device.VCCRange()

	result = &ProbeResult{
		SessionID:         s.ID(),
		Tool:              opts.Tool,
		Device:            device.Name(),
		Interface:         opts.Interface,
		VCCMin:            decimal.NewFromFloat(vccMin),
		VCCMax:            decimal.NewFromFloat(vccMax),
		ExpectedSignature: session.FormatBytes(device.Signature(opts.Interface)),
	}

	for _, read := range req.Reads {
		memoryRead, readErr := ps.read(ctx, s, read)
		if readErr != nil {
			return nil, readErr
		}
		result.Reads = append(result.Reads, memoryRead)
	}

	result.Duration = opLogger.Elapsed()
	opLogger.Success(zap.Int("reads", len(result.Reads)))
	return result, nil
}

func (ps *ProbeService) read(ctx context.Context, s *session.Session, req ReadRequest) (MemoryRead, error) {
	space := strings.ToLower(strings.TrimSpace(req.Space))
	if space == "" {
		return MemoryRead{}, fmt.Errorf("read: memory space is required")
	}
	if req.Offset < 0 || req.Length < 0 {
		return MemoryRead{}, fmt.Errorf("read %s: invalid range %d+%d", space, req.Offset, req.Length)
	}

	length := req.Length
	if length == 0 {
		length = defaultReadLength(s.Device(), s.Options().Interface, space) - req.Offset
	}

	memoryRead := MemoryRead{Space: space, Offset: req.Offset}
	if length <= 0 {
		return memoryRead, nil
	}

	data, err := s.Protocol().ReadMemory(ctx, space, req.Offset, length)
	var unsupported *programmer.UnsupportedMemoryError
	if errors.As(err, &unsupported) {
		memoryRead.Error = err.Error()
		return memoryRead, nil
	}
	if err != nil {
		return MemoryRead{}, fmt.Errorf("read %s: %w", space, err)
	}

	memoryRead.Bytes = data
	memoryRead.Data = session.FormatBytes(data)
	return memoryRead, nil
}

func defaultReadLength(device programmer.Device, iface, space string) int {
	if space == device.SignatureSpace() {
		return len(device.Signature(iface))
	}
	if length, ok := readLengths[space]; ok {
		return length
	}
	return 1
}

// applyDefaults fills unset connection parameters from the configured
// session defaults. The interface default only applies with the default tool.
func (ps *ProbeService) applyDefaults(opts *session.Options) {
	if opts.Tool == "" {
		opts.Tool = ps.defaults.Tool
		if opts.Interface == "" {
			opts.Interface = ps.defaults.Interface
		}
	}
	if opts.Port == "" {
		opts.Port = ps.defaults.Port
	}
	if opts.Serial == "" {
		opts.Serial = ps.defaults.Serial
	}
	if opts.Baud == 0 {
		opts.Baud = ps.defaults.Baud
	}
	if opts.Frequency == 0 {
		opts.Frequency = ps.defaults.Frequency
	}
}

// OptionsFromConfig converts configured session defaults into session options
func OptionsFromConfig(cfg config.SessionConfig) session.Options {
	return session.Options{
		Tool:               cfg.Tool,
		Device:             cfg.Device,
		Interface:          cfg.Interface,
		Port:               cfg.Port,
		Serial:             cfg.Serial,
		Baud:               cfg.Baud,
		Frequency:          cfg.Frequency,
		SkipVoltageCheck:   cfg.SkipVoltageCheck,
		SkipSignatureCheck: cfg.SkipSignatureCheck,
	}
}
