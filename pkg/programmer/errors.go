// pkg/programmer/errors.go
package programmer

import "fmt"

// ToolError is returned by a ToolFactory that cannot build its tool
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// UnsupportedMemoryError is returned when a protocol cannot read a memory space
type UnsupportedMemoryError struct {
	Space string
}

func (e *UnsupportedMemoryError) Error() string {
	return fmt.Sprintf("memory space %q is not supported", e.Space)
}
