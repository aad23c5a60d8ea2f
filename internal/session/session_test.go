package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"device-programmer/pkg/programmer"
)

// journal records collaborator calls in order
type journal struct {
	calls []string
}

func (j *journal) record(call string) {
	j.calls = append(j.calls, call)
}

func (j *journal) count(call string) int {
	n := 0
	for _, c := range j.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeDevice struct {
	name      string
	vccMin    float64
	vccMax    float64
	signature []byte
}

func (d *fakeDevice) Name() string                          { return d.name }
func (d *fakeDevice) VCCRange() (float64, float64)          { return d.vccMin, d.vccMax }
func (d *fakeDevice) Signature(string) []byte               { return d.signature }
func (d *fakeDevice) SignatureSpace() string                { return programmer.MemorySignatures }
func (d *fakeDevice) InterfaceParams(string) map[string]int { return nil }

type fakeProtocol struct {
	journal   *journal
	vtarget   *float64
	signature []byte
	frequency int
	failOn    map[string]error
}

func (p *fakeProtocol) fail(call string) error {
	p.journal.record(call)
	return p.failOn[call]
}

func (p *fakeProtocol) SetInterfaceFrequency(_ context.Context, hz int) error {
	p.frequency = hz
	return p.fail("set_frequency")
}

func (p *fakeProtocol) VTarget(context.Context) (*float64, error) {
	if err := p.fail("vtarget"); err != nil {
		return nil, err
	}
	return p.vtarget, nil
}

func (p *fakeProtocol) EnterSession(context.Context) error { return p.fail("enter_session") }
func (p *fakeProtocol) ExitSession(context.Context) error  { return p.fail("exit_session") }

func (p *fakeProtocol) ReadMemory(_ context.Context, space string, offset, length int) ([]byte, error) {
	if err := p.fail("read_memory:" + space); err != nil {
		return nil, err
	}
	end := offset + length
	if end > len(p.signature) {
		end = len(p.signature)
	}
	return p.signature[offset:end], nil
}

type fakeTool struct {
	protocol *fakeProtocol
	options  programmer.ToolOptions
	device   programmer.Device
}

func (t *fakeTool) Open(context.Context) error    { return t.protocol.fail("tool_open") }
func (t *fakeTool) Close() error                  { return t.protocol.fail("tool_close") }
func (t *fakeTool) Protocol() programmer.Protocol { return t.protocol }

type fakeTools struct {
	types map[string]*programmer.ToolType
}

func (r *fakeTools) Lookup(name string) (*programmer.ToolType, error) {
	for _, toolType := range r.types {
		if toolType.Name == name {
			return toolType, nil
		}
		for _, alias := range toolType.Aliases {
			if alias == name {
				return toolType, nil
			}
		}
	}
	return nil, fmt.Errorf("unknown tool %q", name)
}

func (r *fakeTools) Aliases() map[string][]string {
	groups := make(map[string][]string)
	for name, toolType := range r.types {
		groups[name] = append([]string{name}, toolType.Aliases...)
	}
	return groups
}

type fakeDevices struct {
	devices  map[string]*fakeDevice
	resolved int
}

func (r *fakeDevices) Resolve(name string) (programmer.Device, error) {
	r.resolved++
	if device, ok := r.devices[name]; ok {
		return device, nil
	}
	return nil, fmt.Errorf("unknown part %q", name)
}

// harness wires a tool registry with an ISP-only avrisp, a multi-interface
// debugger and an interface-less stub to a single atmega328p
type harness struct {
	journal  *journal
	protocol *fakeProtocol
	tools    *fakeTools
	devices  *fakeDevices
	built    int
	lastTool *fakeTool
}

func newHarness() *harness {
	h := &harness{journal: &journal{}}
	h.protocol = &fakeProtocol{
		journal:   h.journal,
		signature: []byte{0x1E, 0x95, 0x0F},
		failOn:    map[string]error{},
	}

	factory := func(device programmer.Device, opts programmer.ToolOptions, _ *zap.Logger) (programmer.Tool, error) {
		h.built++
		h.lastTool = &fakeTool{protocol: h.protocol, options: opts, device: device}
		return h.lastTool, nil
	}

	h.tools = &fakeTools{types: map[string]*programmer.ToolType{
		"stk500v2": {
			Name:       "stk500v2",
			Aliases:    []string{"avrisp"},
			Interfaces: []string{programmer.InterfaceISP},
			Factory:    factory,
		},
		"jtagice3": {
			Name:       "jtagice3",
			Interfaces: []string{programmer.InterfaceJTAG, programmer.InterfacePDI},
			Factory:    factory,
		},
		"stub": {
			Name:    "stub",
			Factory: factory,
		},
	}}

	h.devices = &fakeDevices{devices: map[string]*fakeDevice{
		"atmega328p": {name: "atmega328p", vccMin: 1.8, vccMax: 5.5, signature: []byte{0x1E, 0x95, 0x0F}},
	}}
	return h
}

func (h *harness) newSession(opts *Options) (*Session, error) {
	return New(opts, h.tools, h.devices, zap.NewNop())
}

func volt(v float64) *float64 {
	return &v
}

func TestNew_MissingDevice(t *testing.T) {
	for _, opts := range []*Options{
		{Tool: "avrisp"},
		{Tool: "avrisp", Interface: programmer.InterfaceISP, Port: "/dev/ttyUSB0"},
		{Tool: "jtagice3"},
		{Tool: "stub", Baud: 9600},
	} {
		h := newHarness()
		_, err := h.newSession(opts)

		var missing *MissingParamError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "device", missing.Param)
		assert.Equal(t, "No device specified.", err.Error())
		assert.ErrorIs(t, err, ErrMissingParam)
		assert.Zero(t, h.built)
	}
}

func TestNew_UnknownTool(t *testing.T) {
	for _, name := range []string{"usbasp", ""} {
		h := newHarness()
		_, err := h.newSession(&Options{Tool: name, Device: "atmega328p"})

		var support *SupportError
		require.ErrorAs(t, err, &support)
		assert.Equal(t, "tool", support.Param)
		assert.Equal(t, name, support.Value)
		assert.Equal(t, h.tools.Aliases(), support.Supported)
		assert.ErrorIs(t, err, ErrUnsupported)

		assert.Zero(t, h.devices.resolved, "no device work before tool resolution")
		assert.Zero(t, h.built)
	}
}

func TestNew_UnknownToolPrecedesMissingDevice(t *testing.T) {
	h := newHarness()
	_, err := h.newSession(&Options{Tool: "usbasp"})

	var support *SupportError
	require.ErrorAs(t, err, &support)
	assert.Equal(t, "tool", support.Param)
}

func TestNew_InterfaceResolution(t *testing.T) {
	t.Run("single interface is selected", func(t *testing.T) {
		h := newHarness()
		opts := &Options{Tool: "avrisp", Device: "atmega328p"}

		s, err := h.newSession(opts)
		require.NoError(t, err)
		assert.Equal(t, programmer.InterfaceISP, opts.Interface)
		assert.Same(t, opts, s.Options())
		assert.Equal(t, programmer.InterfaceISP, h.lastTool.options.Interface)
	})

	t.Run("several interfaces are ambiguous", func(t *testing.T) {
		h := newHarness()
		_, err := h.newSession(&Options{Tool: "jtagice3", Device: "atmega328p"})

		var missing *MissingParamError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "interface", missing.Param)
	})

	t.Run("no interfaces", func(t *testing.T) {
		h := newHarness()
		_, err := h.newSession(&Options{Tool: "stub", Device: "atmega328p"})

		var missing *MissingParamError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "interface", missing.Param)
	})

	t.Run("explicit interface is kept", func(t *testing.T) {
		h := newHarness()
		opts := &Options{Tool: "jtagice3", Device: "atmega328p", Interface: programmer.InterfacePDI}

		_, err := h.newSession(opts)
		require.NoError(t, err)
		assert.Equal(t, programmer.InterfacePDI, opts.Interface)
	})

	t.Run("unsupported explicit interface", func(t *testing.T) {
		h := newHarness()
		_, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p", Interface: programmer.InterfaceUPDI})

		var support *SupportError
		require.ErrorAs(t, err, &support)
		assert.Equal(t, "interface", support.Param)
		assert.Equal(t, "updi", support.Value)
		assert.Zero(t, h.built)
	})
}

func TestNew_UnknownDevice(t *testing.T) {
	h := newHarness()
	_, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega9000"})

	var support *SupportError
	require.ErrorAs(t, err, &support)
	assert.Equal(t, "device", support.Param)
	assert.Equal(t, "atmega9000", support.Value)
	assert.Nil(t, support.Supported)
	assert.Equal(t, `Unknown or unsupported device "atmega9000".`, err.Error())
	assert.Zero(t, h.built)
}

func TestNew_ToolConstructionErrorPropagates(t *testing.T) {
	h := newHarness()
	factoryErr := &programmer.ToolError{Tool: "stk500v2", Err: errors.New("port is required")}
	h.tools.types["stk500v2"].Factory = func(programmer.Device, programmer.ToolOptions, *zap.Logger) (programmer.Tool, error) {
		return nil, factoryErr
	}

	_, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p"})
	assert.Same(t, factoryErr, err)
}

func TestNew_PassesOptionsToFactory(t *testing.T) {
	h := newHarness()
	s, err := h.newSession(&Options{
		Tool:   "avrisp",
		Device: "atmega328p",
		Port:   "/dev/ttyACM0",
		Serial: "000200012345",
		Baud:   57600,
	})
	require.NoError(t, err)

	assert.Equal(t, programmer.ToolOptions{
		Port:      "/dev/ttyACM0",
		Serial:    "000200012345",
		Baud:      57600,
		Interface: programmer.InterfaceISP,
	}, h.lastTool.options)
	assert.Equal(t, "atmega328p", h.lastTool.device.Name())

	assert.Same(t, h.lastTool, s.Tool())
	assert.Same(t, h.protocol, s.Protocol())
	assert.Equal(t, "atmega328p", s.Device().Name())
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, StateClosed, s.State())
}

func TestOpen_EndToEndWithChecksDisabled(t *testing.T) {
	h := newHarness()
	opts := &Options{
		Tool:               "avrisp",
		Device:             "atmega328p",
		Frequency:          125000,
		SkipVoltageCheck:   true,
		SkipSignatureCheck: true,
	}

	s, err := h.newSession(opts)
	require.NoError(t, err)
	assert.Equal(t, programmer.InterfaceISP, opts.Interface)

	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, StateInSession, s.State())
	assert.Equal(t, []string{"tool_open", "set_frequency", "enter_session"}, h.journal.calls)
	assert.Equal(t, 125000, h.protocol.frequency)

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
}

func TestOpen_FullSequence(t *testing.T) {
	h := newHarness()
	h.protocol.vtarget = volt(5.0)

	s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p", Frequency: 1000000})
	require.NoError(t, err)

	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, []string{
		"tool_open",
		"vtarget",
		"set_frequency",
		"enter_session",
		"read_memory:signatures",
	}, h.journal.calls)
	assert.Equal(t, StateInSession, s.State())
}

func TestOpen_VoltageCheck(t *testing.T) {
	tests := []struct {
		name    string
		vtarget *float64
		wantErr string
	}{
		{"unmeasurable", nil, ""},
		{"at minimum", volt(1.8), ""},
		{"at maximum", volt(5.5), ""},
		{"below range", volt(1.2), "Device VCC range of (1.80V-5.50V) is outside the measured VTARGET of 1.20V."},
		{"above range", volt(12.04), "Device VCC range of (1.80V-5.50V) is outside the measured VTARGET of 12.04V."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.protocol.vtarget = tt.vtarget

			s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p"})
			require.NoError(t, err)

			err = s.Open(context.Background())
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			var voltageErr *VoltageError
			require.ErrorAs(t, err, &voltageErr)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.ErrorIs(t, err, ErrVerification)
			assert.Equal(t, StateConnected, s.State())
			assert.Equal(t, []string{"tool_open", "vtarget"}, h.journal.calls)
		})
	}
}

func TestOpen_VoltageCheckSkipped(t *testing.T) {
	h := newHarness()
	h.protocol.vtarget = volt(0.0)

	s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p", SkipVoltageCheck: true})
	require.NoError(t, err)

	require.NoError(t, s.Open(context.Background()))
	assert.Zero(t, h.journal.count("vtarget"))
}

func TestOpen_SignatureMismatch(t *testing.T) {
	h := newHarness()
	h.protocol.signature = []byte{0x1E, 0x95, 0x14}

	s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p", SkipVoltageCheck: true})
	require.NoError(t, err)

	err = s.Open(context.Background())
	var sigErr *SignatureError
	require.ErrorAs(t, err, &sigErr)
	assert.ErrorIs(t, err, ErrVerification)
	assert.Contains(t, err.Error(), "0x1E 0x95 0x0F")
	assert.Contains(t, err.Error(), "0x1E 0x95 0x14")
	assert.Equal(t,
		"Read device signature [0x1E 0x95 0x14] does not match the expected signature [0x1E 0x95 0x0F].",
		err.Error())
	assert.Equal(t, StateInSession, s.State())
}

func TestOpen_ShortSignatureReadComparesPrefix(t *testing.T) {
	h := newHarness()
	h.protocol.signature = []byte{0x1E, 0x95}

	s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p", SkipVoltageCheck: true})
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))

	h = newHarness()
	h.protocol.signature = []byte{0x1E, 0x94}
	s, err = h.newSession(&Options{Tool: "avrisp", Device: "atmega328p", SkipVoltageCheck: true})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Open(context.Background()), ErrVerification)
}

func TestOpen_SignatureCheckSkipped(t *testing.T) {
	h := newHarness()
	h.protocol.signature = []byte{0x00, 0x00, 0x00}

	s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p", SkipSignatureCheck: true})
	require.NoError(t, err)

	require.NoError(t, s.Open(context.Background()))
	assert.Zero(t, h.journal.count("read_memory:signatures"))
}

func TestOpen_CollaboratorErrorsPropagate(t *testing.T) {
	for _, step := range []string{"tool_open", "vtarget", "set_frequency", "enter_session", "read_memory:signatures"} {
		t.Run(step, func(t *testing.T) {
			h := newHarness()
			h.protocol.vtarget = volt(3.3)
			stepErr := errors.New(step + " failed")
			h.protocol.failOn[step] = stepErr

			s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p"})
			require.NoError(t, err)

			assert.Same(t, stepErr, s.Open(context.Background()))
			assert.Equal(t, step, h.journal.calls[len(h.journal.calls)-1], "no step runs after a failure")
		})
	}
}

func TestOpen_Twice(t *testing.T) {
	h := newHarness()
	s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p", SkipVoltageCheck: true})
	require.NoError(t, err)

	require.NoError(t, s.Open(context.Background()))
	assert.ErrorIs(t, s.Open(context.Background()), ErrSessionOpen)

	require.NoError(t, s.Close())
	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, 2, h.journal.count("tool_open"))
}

func TestClose_OrderAndOnce(t *testing.T) {
	h := newHarness()
	s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p", SkipVoltageCheck: true})
	require.NoError(t, err)

	require.NoError(t, s.Open(context.Background()))
	h.journal.calls = nil

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"exit_session", "tool_close"}, h.journal.calls)
}

func TestClose_AfterPartialOpen(t *testing.T) {
	for _, step := range []string{"tool_open", "vtarget", "enter_session"} {
		t.Run(step, func(t *testing.T) {
			h := newHarness()
			h.protocol.vtarget = volt(3.3)
			h.protocol.failOn[step] = errors.New("boom")

			s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p"})
			require.NoError(t, err)
			require.Error(t, s.Open(context.Background()))

			h.journal.calls = nil
			require.NoError(t, s.Close())
			assert.Equal(t, []string{"exit_session", "tool_close"}, h.journal.calls)
			assert.Equal(t, StateClosed, s.State())
		})
	}
}

func TestClose_AfterVerificationFailure(t *testing.T) {
	h := newHarness()
	h.protocol.vtarget = volt(9.9)

	s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p"})
	require.NoError(t, err)
	require.Error(t, s.Open(context.Background()))

	require.NoError(t, s.Close())
	assert.Equal(t, 1, h.journal.count("exit_session"))
	assert.Equal(t, 1, h.journal.count("tool_close"))
}

func TestClose_BeforeOpenIsNoop(t *testing.T) {
	h := newHarness()
	s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p"})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Empty(t, h.journal.calls)
}

func TestClose_JoinsErrors(t *testing.T) {
	h := newHarness()
	h.protocol.failOn["exit_session"] = errors.New("leave failed")
	h.protocol.failOn["tool_close"] = errors.New("port vanished")

	s, err := h.newSession(&Options{Tool: "avrisp", Device: "atmega328p", SkipVoltageCheck: true, SkipSignatureCheck: true})
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))

	err = s.Close()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "leave failed") && strings.Contains(err.Error(), "port vanished"))
	assert.Equal(t, []string{"exit_session", "tool_close"}, h.journal.calls[len(h.journal.calls)-2:])
	assert.Equal(t, StateClosed, s.State())
}
