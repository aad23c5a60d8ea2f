// internal/session/errors.go
package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinels matched through errors.Is
var (
	ErrMissingParam = errors.New("missing parameter")
	ErrUnsupported  = errors.New("unsupported parameter")
	ErrVerification = errors.New("session verification failed")
	ErrSessionOpen  = errors.New("session already open")
)

// MissingParamError indicates a required parameter is unset and has no default
type MissingParamError struct {
	Param string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("No %s specified.", e.Param)
}

func (e *MissingParamError) Is(target error) bool {
	return target == ErrMissingParam
}

// SupportError indicates a supplied value matches no known option.
// Supported maps a canonical name to its aliases; nil for open-ended
// namespaces such as devices.
type SupportError struct {
	Param     string
	Value     string
	Supported map[string][]string
}

func (e *SupportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unknown or unsupported %s %q.", e.Param, e.Value)

	if e.Supported == nil {
		return b.String()
	}

	fmt.Fprintf(&b, "\n\nSupported %ss are:", e.Param)

	canonical := make([]string, 0, len(e.Supported))
	for name := range e.Supported {
		canonical = append(canonical, name)
	}
	sort.Strings(canonical)

	for _, name := range canonical {
		for _, alias := range e.Supported[name] {
			fmt.Fprintf(&b, "\n  - %s (%s)", alias, name)
		}
	}
	return b.String()
}

func (e *SupportError) Is(target error) bool {
	return target == ErrUnsupported
}

// VoltageError indicates the measured VTARGET is outside the device VCC range
type VoltageError struct {
	Min      float64
	Max      float64
	Measured float64
}

func (e *VoltageError) Error() string {
	return fmt.Sprintf("Device VCC range of (%sV-%sV) is outside the measured VTARGET of %sV.",
		volts(e.Min), volts(e.Max), volts(e.Measured))
}

func (e *VoltageError) Is(target error) bool {
	return target == ErrVerification
}

// SignatureError indicates the signature read back differs from the expected one
type SignatureError struct {
	Expected []byte
	Read     []byte
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("Read device signature [%s] does not match the expected signature [%s].",
		FormatBytes(e.Read), FormatBytes(e.Expected))
}

func (e *SignatureError) Is(target error) bool {
	return target == ErrVerification
}

// FormatBytes renders data as space-separated 0xHH tokens
func FormatBytes(data []byte) string {
	tokens := make([]string, len(data))
	for i, b := range data {
		tokens[i] = fmt.Sprintf("0x%02X", b)
	}
	return strings.Join(tokens, " ")
}

// volts renders v with two decimals, rounding its exact binary value
func volts(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
