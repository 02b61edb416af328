// Package serial provides serial port communication functionality
package serial

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo contains information about a serial port
type PortInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// ModemStatus holds the modem input lines of an open port
type ModemStatus struct {
	CTS bool `json:"cts"`
	DSR bool `json:"dsr"`
	RI  bool `json:"ri"`
	DCD bool `json:"dcd"`
}

// Provider is the serial I/O surface the terminal core consumes
type Provider interface {
	ListPorts() ([]PortInfo, error)
	OpenPort(name string, settings PortSettings) error
	ClosePort(name string) error
	WriteBytes(name string, data []byte) error
	// ReadBytes returns at most maxLen bytes. An empty result means no data
	// is currently available.
	ReadBytes(name string, maxLen int) ([]byte, error)
	SendBreak(name string, d time.Duration) error
	ModemStatus(name string) (ModemStatus, error)
}

// LineController is implemented by providers that can drive the modem
// output lines of an open port
type LineController interface {
	SetRTS(name string, on bool) error
	SetDTR(name string, on bool) error
}

// Opener opens a port with the driver
type Opener func(name string, mode *serial.Mode) (serial.Port, error)

// Lister enumerates ports with the driver
type Lister func() ([]*enumerator.PortDetails, error)

// Option configures a Manager
type Option func(*Manager)

// WithOpener replaces the driver's open function
func WithOpener(open Opener) Option {
	return func(m *Manager) { m.open = open }
}

// WithLister replaces the driver's port enumeration
func WithLister(list Lister) Option {
	return func(m *Manager) { m.list = list }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

type openPort struct {
	port serial.Port
	// writeMu serializes writes and breaks. Reads run alongside them.
	writeMu sync.Mutex
}

// Manager implements Provider using go.bug.st/serial. It keeps any number
// of ports open at once, keyed by name.
type Manager struct {
	mu     sync.RWMutex
	ports  map[string]*openPort
	open   Opener
	list   Lister
	logger zerolog.Logger
}

// NewManager creates a manager backed by the system's serial ports
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		ports:  make(map[string]*openPort),
		open:   serial.Open,
		list:   enumerator.GetDetailedPortsList,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListPorts returns the ports present on the system, sorted by name
func (m *Manager) ListPorts() ([]PortInfo, error) {
	details, err := m.list()
	if err != nil {
		return nil, newConnectionError("list", "", err)
	}

	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		info := PortInfo{Name: d.Name}
		if d.IsUSB {
			info.VID = d.VID
			info.PID = d.PID
			info.SerialNumber = d.SerialNumber
			info.Description = d.Product
			if info.Description == "" {
				info.Description = fmt.Sprintf("USB Serial Port (%s %s)", d.VID, d.PID)
			}
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// OpenPort opens the named port with the given settings
func (m *Manager) OpenPort(name string, settings PortSettings) error {
	if name == "" {
		return newConnectionError("open", name, fmt.Errorf("%w: empty port name", ErrPortNotFound))
	}
	if err := settings.Validate(); err != nil {
		return newConnectionError("open", name, fmt.Errorf("%w: %w", ErrInvalidSettings, err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ports[name]; ok {
		return newConnectionError("open", name, ErrPortAlreadyOpen)
	}

	port, err := m.open(name, settings.toMode())
	if err != nil {
		m.logger.Debug().Err(err).Str("port", name).Msg("open failed")
		return newConnectionError("open", name, err)
	}

	if err := port.SetReadTimeout(settings.ReadTimeout()); err != nil {
		port.Close()
		return newConnectionError("open", name, fmt.Errorf("failed to set read timeout: %w", err))
	}

	if settings.FlowControl != FlowNone {
		m.logger.Warn().
			Str("port", name).
			Str("flow_control", string(settings.FlowControl)).
			Msg("flow control is not supported by the driver and was not applied")
	}

	m.ports[name] = &openPort{port: port}
	m.logger.Info().Str("port", name).Str("settings", settings.String()).Msg("port opened")
	return nil
}

// ClosePort closes the named port
func (m *Manager) ClosePort(name string) error {
	m.mu.Lock()
	p, ok := m.ports[name]
	delete(m.ports, name)
	m.mu.Unlock()

	if !ok {
		return newConnectionError("close", name, ErrPortNotOpen)
	}

	if err := p.port.Close(); err != nil {
		return newConnectionError("close", name, err)
	}

	m.logger.Info().Str("port", name).Msg("port closed")
	return nil
}

// WriteBytes writes all of data to the named port
func (m *Manager) WriteBytes(name string, data []byte) error {
	p, err := m.get("write", name)
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	for len(data) > 0 {
		n, err := p.port.Write(data)
		if err != nil {
			return newConnectionError("write", name, err)
		}
		if n == 0 {
			return newConnectionError("write", name, fmt.Errorf("short write"))
		}
		data = data[n:]
	}

	if err := p.port.Drain(); err != nil {
		m.logger.Debug().Err(err).Str("port", name).Msg("drain failed")
	}
	return nil
}

// ReadBytes reads up to maxLen bytes, waiting at most the port's read timeout
func (m *Manager) ReadBytes(name string, maxLen int) ([]byte, error) {
	if maxLen <= 0 {
		return nil, newConnectionError("read", name, fmt.Errorf("invalid read size: %d", maxLen))
	}

	p, err := m.get("read", name)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, maxLen)
	n, err := p.port.Read(buf)
	if err != nil {
		return nil, newConnectionError("read", name, err)
	}
	return buf[:n], nil
}

// SendBreak holds the TX line in the break state for d
func (m *Manager) SendBreak(name string, d time.Duration) error {
	p, err := m.get("break", name)
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := p.port.Break(d); err != nil {
		return newConnectionError("break", name, err)
	}
	return nil
}

// ModemStatus returns the modem input lines of the named port
func (m *Manager) ModemStatus(name string) (ModemStatus, error) {
	p, err := m.get("modem status", name)
	if err != nil {
		return ModemStatus{}, err
	}

	bits, err := p.port.GetModemStatusBits()
	if err != nil {
		return ModemStatus{}, newConnectionError("modem status", name, err)
	}
	return ModemStatus{CTS: bits.CTS, DSR: bits.DSR, RI: bits.RI, DCD: bits.DCD}, nil
}

// SetRTS sets the RTS output line
func (m *Manager) SetRTS(name string, on bool) error {
	p, err := m.get("set rts", name)
	if err != nil {
		return err
	}
	if err := p.port.SetRTS(on); err != nil {
		return newConnectionError("set rts", name, err)
	}
	return nil
}

// SetDTR sets the DTR output line
func (m *Manager) SetDTR(name string, on bool) error {
	p, err := m.get("set dtr", name)
	if err != nil {
		return err
	}
	if err := p.port.SetDTR(on); err != nil {
		return newConnectionError("set dtr", name, err)
	}
	return nil
}

func (m *Manager) get(op, name string) (*openPort, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.ports[name]
	if !ok {
		return nil, newConnectionError(op, name, ErrPortNotOpen)
	}
	return p, nil
}
