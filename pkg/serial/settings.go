package serial

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Parity is the parity mode of a port
type Parity string

const (
	ParityNone Parity = "None"
	ParityOdd  Parity = "Odd"
	ParityEven Parity = "Even"
)

// FlowControl is the flow control mode of a port
type FlowControl string

const (
	FlowNone     FlowControl = "None"
	FlowSoftware FlowControl = "Software"
	FlowHardware FlowControl = "Hardware"
)

// ValidBaudRates lists the accepted baud rates
var ValidBaudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

// PortSettings defines the line settings used to open a port
type PortSettings struct {
	BaudRate    int         `json:"baud_rate"`
	DataBits    int         `json:"data_bits"`
	StopBits    int         `json:"stop_bits"`
	Parity      Parity      `json:"parity"`
	FlowControl FlowControl `json:"flow_control"`
	TimeoutMs   int         `json:"timeout_ms"`
	RTS         *bool       `json:"rts,omitempty"`
	CTS         *bool       `json:"cts,omitempty"`
	DTR         *bool       `json:"dtr,omitempty"`
	DSR         *bool       `json:"dsr,omitempty"`
	DCD         *bool       `json:"dcd,omitempty"`
}

// DefaultPortSettings returns 115200 8N1 without flow control
func DefaultPortSettings() PortSettings {
	return PortSettings{
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      ParityNone,
		FlowControl: FlowNone,
		TimeoutMs:   1000,
	}
}

// Validate checks if the port settings are valid
func (s PortSettings) Validate() error {
	validBaud := false
	for _, rate := range ValidBaudRates {
		if s.BaudRate == rate {
			validBaud = true
			break
		}
	}
	if !validBaud {
		return fmt.Errorf("invalid baud rate: %d", s.BaudRate)
	}

	if s.DataBits < 5 || s.DataBits > 8 {
		return fmt.Errorf("data bits must be between 5 and 8, got: %d", s.DataBits)
	}

	if s.StopBits < 1 || s.StopBits > 2 {
		return fmt.Errorf("stop bits must be 1 or 2, got: %d", s.StopBits)
	}

	if _, err := ParseParity(string(s.Parity)); err != nil {
		return err
	}

	if _, err := ParseFlowControl(string(s.FlowControl)); err != nil {
		return err
	}

	if s.TimeoutMs < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	return nil
}

// ReadTimeout returns the read timeout as a duration
func (s PortSettings) ReadTimeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// String returns a short description such as "115200 8N1"
func (s PortSettings) String() string {
	p := "N"
	switch s.Parity {
	case ParityOdd:
		p = "O"
	case ParityEven:
		p = "E"
	}
	return fmt.Sprintf("%d %d%s%d", s.BaudRate, s.DataBits, p, s.StopBits)
}

// ParseParity converts a parity name, in any case, to a Parity
func ParseParity(name string) (Parity, error) {
	switch strings.ToLower(name) {
	case "none", "n":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	default:
		return "", fmt.Errorf("invalid parity: %s", name)
	}
}

// ParseFlowControl converts a flow control name, in any case, to a FlowControl
func ParseFlowControl(name string) (FlowControl, error) {
	switch strings.ToLower(name) {
	case "none":
		return FlowNone, nil
	case "software", "xonxoff":
		return FlowSoftware, nil
	case "hardware", "rtscts":
		return FlowHardware, nil
	default:
		return "", fmt.Errorf("invalid flow control: %s", name)
	}
}

// toMode converts port settings to the driver's mode
func (s PortSettings) toMode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: s.DataBits,
		StopBits: convertStopBits(s.StopBits),
		Parity:   convertParity(s.Parity),
	}

	if s.RTS != nil || s.DTR != nil {
		bits := &serial.ModemOutputBits{RTS: true, DTR: true}
		if s.RTS != nil {
			bits.RTS = *s.RTS
		}
		if s.DTR != nil {
			bits.DTR = *s.DTR
		}
		mode.InitialStatusBits = bits
	}

	return mode
}

// convertStopBits converts our stop bits format to go.bug.st/serial format
func convertStopBits(stopBits int) serial.StopBits {
	switch stopBits {
	case 2:
		return serial.TwoStopBits
	default:
		return serial.OneStopBit
	}
}

// convertParity converts our parity format to go.bug.st/serial format
func convertParity(parity Parity) serial.Parity {
	switch parity {
	case ParityOdd:
		return serial.OddParity
	case ParityEven:
		return serial.EvenParity
	default:
		return serial.NoParity
	}
}
