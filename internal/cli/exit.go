// internal/cli/exit.go
package cli

import (
	"errors"
	"fmt"

	"device-programmer/internal/session"
)

// Process exit codes
const (
	exitFailure      = 1
	exitUsage        = 2
	exitVerification = 3
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// sessionExit wraps a probe failure with the exit code of its category
func sessionExit(err error) error {
	if err == nil {
		return nil
	}

	code := exitFailure
	switch {
	case errors.Is(err, session.ErrMissingParam), errors.Is(err, session.ErrUnsupported):
		code = exitUsage
	case errors.Is(err, session.ErrVerification):
		code = exitVerification
	}

	return &ExitError{Code: code, Message: err.Error(), Err: err}
}
