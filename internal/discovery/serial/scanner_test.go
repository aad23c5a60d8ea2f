package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"device-programmer/pkg/programmer"
)

type stubMatcher map[programmer.USBID]string

func (m stubMatcher) FindByUSBID(id programmer.USBID) (*programmer.ToolType, bool) {
	name, ok := m[id]
	if !ok {
		return nil, false
	}
	return &programmer.ToolType{Name: name}, true
}

func TestScanner_Scan(t *testing.T) {
	scanner := NewScanner(stubMatcher{{Vendor: 0x2341, Product: 0x0043}: "stk500v2"}, zap.NewNop())
	scanner.listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043", SerialNumber: "95530343", Product: "Arduino Uno"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
			{Name: "/dev/ttyUSB1", IsUSB: true, VID: "zz", PID: "6001"},
		}, nil
	}

	ports, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, ports, 4)

	assert.Equal(t, "serial", ports[0].Type)
	assert.Empty(t, ports[0].VendorID)

	assert.Equal(t, "/dev/ttyACM0", ports[1].Port)
	assert.Equal(t, "stk500v2", ports[1].Tool)
	assert.Equal(t, "95530343", ports[1].SerialNumber)
	assert.Equal(t, "Arduino Uno", ports[1].Product)

	assert.Empty(t, ports[2].Tool)
	assert.Empty(t, ports[3].Tool)
}

func TestScanner_ScanError(t *testing.T) {
	scanner := NewScanner(nil, zap.NewNop())
	scanner.listPorts = func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("permission denied")
	}

	_, err := scanner.Scan(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "serial", scanner.GetScannerType())
	assert.True(t, scanner.IsAvailable())
}
