// internal/driver/stk500v2/command.go
package stk500v2

// Message framing
const (
	messageStart = 0x1B
	messageToken = 0x0E

	// start, sequence, size (2), token
	headerSize = 5
	// largest body the programmer accepts
	maxBodySize = 275
)

// General commands
const (
	CmdSignOn       byte = 0x01
	CmdSetParameter byte = 0x02
	CmdGetParameter byte = 0x03
)

// ISP commands
const (
	CmdEnterProgmodeISP byte = 0x10
	CmdLeaveProgmodeISP byte = 0x11
	CmdReadFuseISP      byte = 0x18
	CmdReadLockISP      byte = 0x1A
	CmdReadSignatureISP byte = 0x1B
	CmdReadOsccalISP    byte = 0x1C
)

// Status codes
const (
	StatusCmdOK           byte = 0x00
	StatusCmdTimeout      byte = 0x80
	StatusRdyBsyTout      byte = 0x81
	StatusSetParamMissing byte = 0x82
	StatusCmdFailed       byte = 0xC0
	StatusCksumError      byte = 0xC1
	StatusCmdUnknown      byte = 0xC9
)

// Parameters
const (
	ParamBuildNumberLow  byte = 0x80
	ParamBuildNumberHigh byte = 0x81
	ParamHWVersion       byte = 0x90
	ParamSWMajor         byte = 0x91
	ParamSWMinor         byte = 0x92
	ParamVTarget         byte = 0x94
	ParamSCKDuration     byte = 0x98
)

// ISP instruction bytes sent through to the target
var ispInstructions = struct {
	ProgrammingEnable [2]byte
	ReadSignature     byte
	ReadCalibration   byte
	ReadLowFuse       [2]byte
	ReadHighFuse      [2]byte
	ReadExtFuse       [2]byte
	ReadLock          [2]byte
}{
	ProgrammingEnable: [2]byte{0xAC, 0x53},
	ReadSignature:     0x30,
	ReadCalibration:   0x38,
	ReadLowFuse:       [2]byte{0x50, 0x00},
	ReadHighFuse:      [2]byte{0x58, 0x08},
	ReadExtFuse:       [2]byte{0x50, 0x08},
	ReadLock:          [2]byte{0x58, 0x00},
}

// sckRates maps each supported ISP clock to its PARAM_SCK_DURATION value,
// fastest first
var sckRates = []struct {
	Hz       int
	Duration byte
}{
	{8000000, 0},
	{4000000, 1},
	{2000000, 2},
	{1000000, 3},
	{500000, 4},
	{250000, 5},
	{125000, 6},
}

// Default ISP timings, overridden per part
var defaultISPParams = map[string]int{
	"timeout":      200,
	"stab_delay":   100,
	"cmdexe_delay": 25,
	"synch_loops":  32,
	"byte_delay":   0,
	"poll_value":   0x53,
	"poll_index":   3,
	"pre_delay":    1,
	"post_delay":   1,
}

func statusText(status byte) string {
	switch status {
	case StatusCmdOK:
		return "ok"
	case StatusCmdTimeout:
		return "command timeout"
	case StatusRdyBsyTout:
		return "ready/busy timeout"
	case StatusSetParamMissing:
		return "parameter missing"
	case StatusCmdFailed:
		return "command failed"
	case StatusCksumError:
		return "checksum error"
	case StatusCmdUnknown:
		return "unknown command"
	default:
		return "unknown status"
	}
}
