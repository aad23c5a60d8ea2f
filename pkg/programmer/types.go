// pkg/programmer/types.go
package programmer

import "fmt"

// Interface identifiers
const (
	InterfaceISP  = "isp"
	InterfaceJTAG = "jtag"
	InterfacePDI  = "pdi"
	InterfaceUPDI = "updi"
	InterfaceTPI  = "tpi"
)

// Memory space names
const (
	MemorySignatures  = "signatures"
	MemoryFuses       = "fuses"
	MemoryLockbits    = "lockbits"
	MemoryCalibration = "calibration"
)

// ToolOptions carries the connection parameters passed to a tool factory
type ToolOptions struct {
	Port      string `json:"port,omitempty"`
	Serial    string `json:"serial,omitempty"`
	Baud      int    `json:"baud,omitempty"`
	Interface string `json:"interface"`
}

// USBID identifies a USB programmer by vendor and product
type USBID struct {
	Vendor  uint16 `json:"vendor"`
	Product uint16 `json:"product"`
}

func (id USBID) String() string {
	return fmt.Sprintf("%04X:%04X", id.Vendor, id.Product)
}
