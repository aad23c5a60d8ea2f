package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"device-programmer/internal/config"
	"device-programmer/internal/device"
	"device-programmer/internal/driver"
	"device-programmer/internal/session"
)

func newTestProbeService(t *testing.T, defaults config.SessionConfig) *ProbeService {
	t.Helper()
	logger := zap.NewNop()

	tools := driver.NewRegistry(logger)
	require.NoError(t, driver.RegisterDefaultTools(tools, logger))

	devices, err := device.NewRegistry(logger)
	require.NoError(t, err)

	return NewProbeService(tools, devices, defaults, logger)
}

func TestProbeService_Probe(t *testing.T) {
	ps := newTestProbeService(t, config.SessionConfig{Frequency: 125000})

	result, err := ps.Probe(context.Background(), &ProbeRequest{
		Options: session.Options{Tool: "sim", Device: "ATmega328P", Interface: "isp"},
		Reads: []ReadRequest{
			{Space: "signatures"},
			{Space: "signatures", Offset: 1, Length: 1},
			{Space: "fuses"},
			{Space: "eeprom", Length: 4},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, "sim", result.Tool)
	assert.Equal(t, "atmega328p", result.Device)
	assert.Equal(t, "isp", result.Interface)
	assert.Equal(t, "1.8", result.VCCMin.String())
	assert.Equal(t, "5.5", result.VCCMax.String())
	assert.Equal(t, "0x1E 0x95 0x0F", result.ExpectedSignature)

	require.Len(t, result.Reads, 4)
	assert.Equal(t, "0x1E 0x95 0x0F", result.Reads[0].Data)
	assert.Equal(t, []byte{0x95}, result.Reads[1].Bytes)
	assert.Equal(t, "0xFF 0xFF 0xFF", result.Reads[2].Data)
	assert.Empty(t, result.Reads[3].Data)
	assert.Contains(t, result.Reads[3].Error, "eeprom")
}

func TestProbeService_Defaults(t *testing.T) {
	ps := newTestProbeService(t, config.SessionConfig{Tool: "simulator", Interface: "updi", Frequency: 125000})

	result, err := ps.Probe(context.Background(), &ProbeRequest{
		Options: session.Options{Device: "atmega4809"},
		Reads:   []ReadRequest{{Space: "sigrow"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "updi", result.Interface)
	assert.Equal(t, "0x1E 0x96 0x51", result.Reads[0].Data)
}

func TestProbeService_ResolutionErrors(t *testing.T) {
	ps := newTestProbeService(t, config.SessionConfig{})

	_, err := ps.Probe(context.Background(), &ProbeRequest{Options: session.Options{Tool: "usbasp", Device: "atmega328p"}})
	assert.ErrorIs(t, err, session.ErrUnsupported)

	_, err = ps.Probe(context.Background(), &ProbeRequest{Options: session.Options{Tool: "sim"}})
	assert.ErrorIs(t, err, session.ErrMissingParam)

	_, err = ps.Probe(context.Background(), &ProbeRequest{Options: session.Options{Tool: "sim", Device: "atmega328p"}})
	var missing *session.MissingParamError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "interface", missing.Param)
}

func TestProbeService_InvalidRead(t *testing.T) {
	ps := newTestProbeService(t, config.SessionConfig{Frequency: 125000})

	_, err := ps.Probe(context.Background(), &ProbeRequest{
		Options: session.Options{Tool: "sim", Device: "atmega328p", Interface: "isp"},
		Reads:   []ReadRequest{{Space: ""}},
	})
	assert.Error(t, err)

	// the session was released, so the next probe runs
	_, err = ps.Probe(context.Background(), &ProbeRequest{
		Options: session.Options{Tool: "sim", Device: "atmega328p", Interface: "isp"},
	})
	assert.NoError(t, err)
}

func TestProbeService_Busy(t *testing.T) {
	ps := newTestProbeService(t, config.SessionConfig{})

	ps.mutex.Lock()
	_, err := ps.Probe(context.Background(), &ProbeRequest{Options: session.Options{Tool: "sim", Device: "atmega328p", Interface: "isp"}})
	ps.mutex.Unlock()

	assert.ErrorIs(t, err, ErrToolBusy)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.SessionConfig{Tool: "avrisp", Device: "atmega328p", Baud: 115200, SkipVoltageCheck: true})
	assert.Equal(t, session.Options{Tool: "avrisp", Device: "atmega328p", Baud: 115200, SkipVoltageCheck: true}, opts)
}
