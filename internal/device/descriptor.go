// internal/device/descriptor.go
package device

import (
	"encoding/json"
	"fmt"

	"device-programmer/pkg/programmer"
)

// Descriptor is the capability record of a single part
type Descriptor struct {
	name           string
	aliases        []string
	vccMin         float64
	vccMax         float64
	signature      []byte
	signatures     map[string][]byte
	signatureSpace string
	interfaces     []string
	isp            map[string]int
}

var _ programmer.Device = (*Descriptor)(nil)

func newDescriptor(entry partEntry) (*Descriptor, error) {
	if entry.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if entry.VCC.Min > entry.VCC.Max {
		return nil, fmt.Errorf("%s: vcc min %.2f above max %.2f", entry.Name, entry.VCC.Min, entry.VCC.Max)
	}

	signature, err := toBytes(entry.Signature)
	if err != nil {
		return nil, fmt.Errorf("%s: signature: %w", entry.Name, err)
	}

	signatures := make(map[string][]byte, len(entry.Signatures))
	for iface, values := range entry.Signatures {
		sig, err := toBytes(values)
		if err != nil {
			return nil, fmt.Errorf("%s: %s signature: %w", entry.Name, iface, err)
		}
		signatures[iface] = sig
	}

	space := entry.SignatureSpace
	if space == "" {
		space = programmer.MemorySignatures
	}

	return &Descriptor{
		name:           normalize(entry.Name),
		aliases:        entry.Aliases,
		vccMin:         entry.VCC.Min,
		vccMax:         entry.VCC.Max,
		signature:      signature,
		signatures:     signatures,
		signatureSpace: space,
		interfaces:     entry.Interfaces,
		isp:            entry.ISP,
	}, nil
}

func toBytes(values []int) ([]byte, error) {
	data := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 0xFF {
			return nil, fmt.Errorf("byte %d out of range: %d", i, v)
		}
		data[i] = byte(v)
	}
	return data, nil
}

// Name returns the canonical part name
func (d *Descriptor) Name() string {
	return d.name
}

// Aliases returns the alternative part names
func (d *Descriptor) Aliases() []string {
	return d.aliases
}

// VCCRange returns the inclusive supply range in volts
func (d *Descriptor) VCCRange() (float64, float64) {
	return d.vccMin, d.vccMax
}

// Signature returns a copy of the expected signature for iface
func (d *Descriptor) Signature(iface string) []byte {
	signature := d.signature
	if override, ok := d.signatures[iface]; ok {
		signature = override
	}
	return append([]byte(nil), signature...)
}

// SignatureSpace names the memory space holding the signature
func (d *Descriptor) SignatureSpace() string {
	return d.signatureSpace
}

// Interfaces returns the programming interfaces the part exposes
func (d *Descriptor) Interfaces() []string {
	return d.interfaces
}

// InterfaceParams returns timing parameters for iface, nil when none are known
func (d *Descriptor) InterfaceParams(iface string) map[string]int {
	if iface == programmer.InterfaceISP {
		return d.isp
	}
	return nil
}

// MarshalJSON renders the descriptor for API and CLI listings
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	signature := make([]int, len(d.signature))
	for i, b := range d.signature {
		signature[i] = int(b)
	}

	return json.Marshal(struct {
		Name           string   `json:"name"`
		Aliases        []string `json:"aliases,omitempty"`
		VCCMin         float64  `json:"vcc_min"`
		VCCMax         float64  `json:"vcc_max"`
		Signature      []int    `json:"signature"`
		SignatureSpace string   `json:"signature_space"`
		Interfaces     []string `json:"interfaces"`
	}{
		Name:           d.name,
		Aliases:        d.aliases,
		VCCMin:         d.vccMin,
		VCCMax:         d.vccMax,
		Signature:      signature,
		SignatureSpace: d.signatureSpace,
		Interfaces:     d.interfaces,
	})
}
