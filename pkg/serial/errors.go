package serial

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

var (
	ErrPortNotFound     = errors.New("port not found")
	ErrPortAlreadyOpen  = errors.New("port already open")
	ErrPortNotOpen      = errors.New("port not open")
	ErrInvalidSettings  = errors.New("invalid port settings")
	ErrPortBusy         = errors.New("port busy")
	ErrPermissionDenied = errors.New("permission denied")
	ErrPortClosed       = errors.New("port closed")
)

// ConnectionError represents a failed operation on a serial port
type ConnectionError struct {
	Op   string
	Port string
	Err  error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serial %s failed on port %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("serial %s failed on port %s", e.Op, e.Port)
}

// Unwrap returns the underlying error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// newConnectionError wraps err, translating driver error codes to the
// package sentinels so callers can match them with errors.Is
func newConnectionError(op, port string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Port: port, Err: classify(err)}
}

func classify(err error) error {
	var pe *serial.PortError
	if !errors.As(err, &pe) {
		return err
	}

	var sentinel error
	switch pe.Code() {
	case serial.PortNotFound:
		sentinel = ErrPortNotFound
	case serial.PortBusy:
		sentinel = ErrPortBusy
	case serial.PermissionDenied:
		sentinel = ErrPermissionDenied
	case serial.PortClosed:
		sentinel = ErrPortClosed
	case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity,
		serial.InvalidStopBits, serial.InvalidTimeoutValue:
		sentinel = ErrInvalidSettings
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
