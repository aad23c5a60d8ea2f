package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"device-programmer/internal/service"
	"device-programmer/internal/session"
)

// executeCommand runs a fresh command tree with args and captures stdout/stderr.
func executeCommand(args ...string) (stdout, stderr string, err error) {
	root := NewRootCmd("test")
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

func requireExitCode(t *testing.T, err error, code int) *ExitError {
	t.Helper()
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, code, exitErr.Code)
	return exitErr
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCommand("version")
	require.NoError(t, err)
	assert.Equal(t, "gdp version test\n", stdout)
}

func TestTools(t *testing.T) {
	stdout, _, err := executeCommand("tools")
	require.NoError(t, err)
	assert.Contains(t, stdout, "NAME")
	assert.Contains(t, stdout, "avrispmk2")
	assert.Contains(t, stdout, "03EB:2104")
	assert.Contains(t, stdout, "avrisp,stk500")
}

func TestDevices(t *testing.T) {
	stdout, _, err := executeCommand("devices")
	require.NoError(t, err)
	assert.Contains(t, stdout, "atmega328p")
	assert.Contains(t, stdout, "0x1E 0x95 0x0F")
	assert.Contains(t, stdout, "1.80-5.50 V")
}

func TestDevices_ExtraParts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`parts:
  - name: attiny2313
    vcc: { min: 1.8, max: 5.5 }
    signature: [0x1E, 0x91, 0x0A]
    interfaces: [isp]
`), 0o644))

	stdout, _, err := executeCommand("devices", "--parts", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "attiny2313")
	assert.Contains(t, stdout, "atmega328p")
}

func TestProbe(t *testing.T) {
	stdout, _, err := executeCommand("probe", "-c", "sim", "-p", "ATmega328P", "-i", "isp")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Tool:      sim")
	assert.Contains(t, stdout, "Device:    atmega328p")
	assert.Contains(t, stdout, "VCC range: 1.80 V - 5.50 V")
	assert.Contains(t, stdout, "Signature: 0x1E 0x95 0x0F (verified)")
}

func TestProbe_JSON(t *testing.T) {
	stdout, _, err := executeCommand("probe", "--tool", "sim", "--device", "atmega328p", "--interface", "isp", "--format", "json")
	require.NoError(t, err)

	var result service.ProbeResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "atmega328p", result.Device)
	assert.Equal(t, "0x1E 0x95 0x0F", result.ExpectedSignature)
	assert.NotEmpty(t, result.SessionID)
}

func TestProbe_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		code    int
		message string
	}{
		{"missing device", []string{"probe", "-c", "sim"}, exitUsage, "No device specified."},
		{"missing interface", []string{"probe", "-c", "sim", "-p", "atmega328p"}, exitUsage, "No interface specified."},
		{"unknown tool", []string{"probe", "-c", "usbasp", "-p", "atmega328p"}, exitUsage, "usbasp"},
		{"unknown device", []string{"probe", "-c", "sim", "-p", "pic16f84", "-i", "isp"}, exitUsage, "pic16f84"},
		{"bad format", []string{"probe", "--format", "xml"}, exitUsage, "xml"},
		{"bad log level", []string{"probe", "--log-level", "loud"}, exitUsage, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(tt.args...)
			exitErr := requireExitCode(t, err, tt.code)
			assert.Contains(t, exitErr.Message, tt.message)
		})
	}
}

func TestRead(t *testing.T) {
	stdout, _, err := executeCommand("read", "signatures", "fuses", "eeprom", "-c", "sim", "-p", "atmega328p", "-i", "isp")
	require.NoError(t, err)
	assert.Contains(t, stdout, "signatures: 0x1E 0x95 0x0F")
	assert.Contains(t, stdout, "fuses: 0xFF 0xFF 0xFF")
	assert.Contains(t, stdout, `eeprom: memory space "eeprom" is not supported`)
}

func TestRead_Range(t *testing.T) {
	stdout, _, err := executeCommand("read", "signatures", "--offset", "1", "--length", "2", "-c", "sim", "-p", "atmega328p", "-i", "isp")
	require.NoError(t, err)
	assert.Contains(t, stdout, "signatures+1: 0x95 0x0F")

	_, _, err = executeCommand("read", "signatures", "--offset", "-1", "-c", "sim", "-p", "atmega328p", "-i", "isp")
	requireExitCode(t, err, exitUsage)

	_, _, err = executeCommand("read")
	assert.Error(t, err)
}

func TestSessionExit(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&session.MissingParamError{Param: "tool"}, exitUsage},
		{&session.SupportError{Param: "device", Value: "pic16f84"}, exitUsage},
		{&session.SignatureError{Expected: []byte{0x1E}, Read: []byte{0xFF}}, exitVerification},
		{&session.VoltageError{Min: 1.8, Max: 5.5, Measured: 0.1}, exitVerification},
		{service.ErrToolBusy, exitFailure},
		{errors.New("answer timeout"), exitFailure},
	}

	for _, tt := range tests {
		err := sessionExit(tt.err)
		exitErr := requireExitCode(t, err, tt.code)
		assert.ErrorIs(t, exitErr, tt.err)
		assert.Equal(t, tt.err.Error(), exitErr.Message)
	}

	assert.NoError(t, sessionExit(nil))
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd("test")
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"probe", "read", "tools", "devices", "ports", "serve", "version"})

	probe, _, err := root.Find([]string{"probe"})
	require.NoError(t, err)
	for _, flag := range []string{"tool", "device", "interface", "port", "serial", "baud", "frequency"} {
		assert.NotNil(t, probe.Flags().Lookup(flag), flag)
	}
}

func TestBindFlags(t *testing.T) {
	cmd := NewProbeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--tool", "avrisp", "-P", "net:localhost:4242", "-b", "57600"}))

	v := viper.New()
	v.SetDefault("session.baud", 115200)
	v.SetDefault("session.device", "atmega328p")
	require.NoError(t, bindFlags(v, cmd.Flags()))

	assert.Equal(t, "avrisp", v.GetString("session.tool"))
	assert.Equal(t, "net:localhost:4242", v.GetString("session.port"))
	assert.Equal(t, 57600, v.GetInt("session.baud"))
	assert.Equal(t, "atmega328p", v.GetString("session.device"))
	assert.Empty(t, v.GetString("server.host"))
}
