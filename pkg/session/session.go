// Package session ties the serial provider, the RX decoder, the display
// buffer and the history log together for one connection
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"uart-terminal/pkg/config"
	"uart-terminal/pkg/display"
	"uart-terminal/pkg/history"
	"uart-terminal/pkg/rx"
	"uart-terminal/pkg/serial"
	"uart-terminal/pkg/tx"
)

var (
	ErrNotOpen       = errors.New("session is not open")
	ErrAlreadyOpen   = errors.New("session is already open")
	ErrPaused        = errors.New("session is paused")
	ErrDisconnected  = errors.New("connection lost")
	ErrNoLineControl = errors.New("port does not support RTS/DTR control")
)

// Sink receives every batch of instructions applied to the display, in
// sequence order
type Sink func(origin display.Origin, seq uint64, instrs []rx.Instruction)

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithSink adds a sink that mirrors display updates
func WithSink(sink Sink) Option {
	return func(s *Session) { s.sinks = append(s.sinks, sink) }
}

// WithNotify sets a function called after the display changes
func WithNotify(notify func()) Option {
	return func(s *Session) { s.notify = notify }
}

// WithDisplayOptions overrides the display buffer options
func WithDisplayOptions(opts display.Options) Option {
	return func(s *Session) { s.displayOpts = &opts }
}

// Stats holds the traffic counters of a session
type Stats struct {
	BytesSent  int64
	BytesRecv  int64
	Breaks     int
	ReadErrors int
	StartTime  time.Time
	EndTime    *time.Time
}

// Duration returns how long the session has been open
func (st Stats) Duration() time.Duration {
	if st.StartTime.IsZero() {
		return 0
	}
	if st.EndTime != nil {
		return st.EndTime.Sub(st.StartTime)
	}
	return time.Since(st.StartTime)
}

// Session owns one serial connection. A single reader goroutine polls the
// provider and is the only user of the RX decoder; transmitted bytes are
// echoed through a separate decoder. Display, history and sinks see TX and
// RX batches in the order of their sequence numbers.
type Session struct {
	provider serial.Provider
	logger   zerolog.Logger
	sinks    []Sink
	notify   func()

	displayOpts *display.Options
	display     *display.Buffer
	history     *history.MemoryHistoryManager
	errs        chan error
	seq         atomic.Uint64

	// mu guards everything below and serializes display updates
	mu        sync.Mutex
	settings  config.Settings
	decoder   *rx.Decoder
	echo      *rx.Decoder
	state     serial.ConnectionState
	paused    bool
	localEcho bool
	stats     Stats
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a closed session for settings.Port
func New(provider serial.Provider, settings config.Settings, opts ...Option) (*Session, error) {
	if settings.Port == "" {
		return nil, fmt.Errorf("port cannot be empty")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		provider:  provider,
		logger:    zerolog.Nop(),
		settings:  settings,
		history:   history.NewMemoryHistoryManager(settings.Session.HistorySize),
		errs:      make(chan error, 16),
		echo:      rx.NewDecoder(rx.EchoSettings()),
		localEcho: settings.Session.LocalEcho,
		state:     serial.StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}

	dopts := display.Options{MaxLines: settings.Session.MaxLines}
	if s.displayOpts != nil {
		dopts = *s.displayOpts
	}
	s.display = display.NewBuffer(dopts)
	s.logger = s.logger.With().Str("port", settings.Port).Logger()

	return s, nil
}

// Open opens the port and starts the reader. The reader stops when ctx is
// done, when Close is called or after too many consecutive read failures.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state == serial.StateConnected || s.state == serial.StateConnecting {
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.state = serial.StateConnecting
	settings := s.settings
	s.mu.Unlock()

	err := serial.OpenWithRetry(ctx, s.provider, settings.Port, settings.Serial, settings.Session.RetryConfig())

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = serial.StateError
		s.logger.Error().Err(err).Msg("open failed")
		return err
	}

	readCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.decoder = rx.NewDecoder(settings.RX)
	s.echo.Reset()
	s.state = serial.StateConnected
	s.stats = Stats{StartTime: time.Now()}

	s.logger.Info().Str("settings", settings.Serial.String()).Msg("session opened")

	s.wg.Add(1)
	go s.readLoop(readCtx, s.done, settings)

	return nil
}

// Close stops the reader and closes the port
func (s *Session) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	wasOpen := s.state == serial.StateConnected
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	var err error
	if wasOpen {
		err = s.provider.ClosePort(s.settings.Port)
	}
	s.wg.Wait()

	s.mu.Lock()
	s.state = serial.StateDisconnected
	s.endStats()
	s.mu.Unlock()

	if err != nil && !errors.Is(err, serial.ErrPortNotOpen) {
		return fmt.Errorf("failed to close session: %w", err)
	}

	s.logger.Info().Msg("session closed")
	return nil
}

func (s *Session) readLoop(ctx context.Context, done chan struct{}, settings config.Settings) {
	defer s.wg.Done()
	defer close(done)

	ticker := time.NewTicker(settings.Session.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if s.IsPaused() {
			continue
		}

		// Drain until the provider has nothing more to give.
		for {
			data, err := s.provider.ReadBytes(settings.Port, settings.Session.ReadSize)
			if ctx.Err() != nil {
				return
			}

			if err != nil {
				failures++
				s.logger.Warn().Err(err).Int("failures", failures).Msg("read failed")
				s.recordReadError()
				s.report(err)

				if failures >= settings.Session.MaxReadFailures {
					s.lose(err)
					return
				}
				break
			}

			failures = 0
			if len(data) == 0 {
				break
			}
			s.receive(data)
		}
	}
}

// lose marks the connection as dropped after repeated read failures
func (s *Session) lose(cause error) {
	s.mu.Lock()
	s.state = serial.StateError
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.endStats()
	s.mu.Unlock()

	if err := s.provider.ClosePort(s.settings.Port); err != nil {
		s.logger.Debug().Err(err).Msg("close after failures")
	}

	s.logger.Error().Err(cause).Msg("connection lost")
	s.report(fmt.Errorf("%w: %w", ErrDisconnected, cause))
}

func (s *Session) receive(data []byte) {
	s.mu.Lock()
	seq := s.seq.Add(1)
	instrs := s.decoder.Feed(data)
	s.display.Apply(display.OriginRX, seq, instrs)
	s.history.Write(seq, data, history.DirectionRX)
	s.stats.BytesRecv += int64(len(data))
	s.emit(display.OriginRX, seq, instrs)
	s.mu.Unlock()

	s.logger.Trace().Int("bytes", len(data)).Uint64("seq", seq).Msg("received")
	s.changed()
}

// Send encodes one input event and transmits it
func (s *Session) Send(ev tx.Event) error {
	s.mu.Lock()
	out := tx.Encode(ev, s.settings.TX)
	s.mu.Unlock()

	return s.transmit(out)
}

// SendText encodes pasted text and transmits it. Line breaks follow the
// Enter mode.
func (s *Session) SendText(text string) error {
	s.mu.Lock()
	outputs := tx.EncodeAll(tx.EventsFromText(text), s.settings.TX)
	s.mu.Unlock()

	for _, out := range outputs {
		if err := s.transmit(out); err != nil {
			return err
		}
	}
	return nil
}

// SendBytes transmits raw bytes without encoding
func (s *Session) SendBytes(data []byte) error {
	return s.transmit(tx.Output{Bytes: data})
}

// SendBreak transmits a break signal
func (s *Session) SendBreak() error {
	return s.transmit(tx.Output{Break: true})
}

func (s *Session) transmit(out tx.Output) error {
	if out.Empty() {
		return nil
	}

	s.mu.Lock()
	state, paused := s.state, s.paused
	breakDuration := s.settings.Session.BreakDuration
	s.mu.Unlock()

	if state != serial.StateConnected {
		return ErrNotOpen
	}
	if paused {
		return ErrPaused
	}

	port := s.settings.Port
	if out.Break {
		if err := s.provider.SendBreak(port, breakDuration); err != nil {
			s.report(err)
			return err
		}
	} else {
		if err := s.provider.WriteBytes(port, out.Bytes); err != nil {
			s.report(err)
			return err
		}
	}

	s.sent(out)
	return nil
}

// sent records a transmission and echoes it when local echo is on
func (s *Session) sent(out tx.Output) {
	s.mu.Lock()
	seq := s.seq.Add(1)

	var instrs []rx.Instruction
	if out.Break {
		s.history.WriteBreak(seq)
		s.stats.Breaks++
		instrs = []rx.Instruction{{
			Op:    rx.OpGlyph,
			Glyph: rx.Glyph{Text: "BRK", Class: rx.ClassControl},
		}}
	} else {
		s.history.Write(seq, out.Bytes, history.DirectionTX)
		s.stats.BytesSent += int64(len(out.Bytes))
		instrs = s.echo.Feed(out.Bytes)
	}

	echo := s.localEcho
	if echo {
		s.display.Apply(display.OriginTX, seq, instrs)
		s.emit(display.OriginTX, seq, instrs)
	}
	s.mu.Unlock()

	s.logger.Trace().Int("bytes", len(out.Bytes)).Bool("break", out.Break).Uint64("seq", seq).Msg("sent")
	if echo {
		s.changed()
	}
}

// emit passes a batch to the sinks. Callers hold mu.
func (s *Session) emit(origin display.Origin, seq uint64, instrs []rx.Instruction) {
	for _, sink := range s.sinks {
		sink(origin, seq, instrs)
	}
}

func (s *Session) changed() {
	if s.notify != nil {
		s.notify()
	}
}

// report queues an error for Errors without blocking
func (s *Session) report(err error) {
	select {
	case s.errs <- err:
	default:
		s.logger.Debug().Err(err).Msg("error channel full, dropping error")
	}
}

func (s *Session) recordReadError() {
	s.mu.Lock()
	s.stats.ReadErrors++
	s.mu.Unlock()
}

// endStats stamps the end time once. Callers hold mu.
func (s *Session) endStats() {
	if s.stats.StartTime.IsZero() || s.stats.EndTime != nil {
		return
	}
	now := time.Now()
	s.stats.EndTime = &now
}

// Display returns the display buffer
func (s *Session) Display() *display.Buffer {
	return s.display
}

// History returns the traffic log
func (s *Session) History() *history.MemoryHistoryManager {
	return s.history
}

// Errors returns the channel transport errors are reported on
func (s *Session) Errors() <-chan error {
	return s.errs
}

// Done returns a channel closed when the reader of the current connection
// stops. It is nil before the first Open.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.done
}

// Stats returns a copy of the traffic counters
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// State returns the connection state
func (s *Session) State() serial.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// IsOpen reports whether the connection is up
func (s *Session) IsOpen() bool {
	return s.State() == serial.StateConnected
}

// Port returns the port name
func (s *Session) Port() string {
	return s.settings.Port
}

// Settings returns a copy of the current settings
func (s *Session) Settings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

// Pause stops reading and sending until Resume
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = true
}

// Resume undoes Pause
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = false
}

// IsPaused reports whether the session is paused
func (s *Session) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.paused
}

// SetLocalEcho turns local echo on or off
func (s *Session) SetLocalEcho(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.localEcho = on
}

// LocalEcho reports whether local echo is on
func (s *Session) LocalEcho() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.localEcho
}

// SetTXSettings changes how input events are encoded
func (s *Session) SetTXSettings(settings tx.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.TX = settings
	return nil
}

// SetRXSettings changes how received bytes are rendered. The decoder keeps
// its settings for the life of a connection, so changes are refused while
// the session is open and take effect on the next Open.
func (s *Session) SetRXSettings(settings rx.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == serial.StateConnected || s.state == serial.StateConnecting {
		return fmt.Errorf("cannot change rx settings: %w", ErrAlreadyOpen)
	}

	s.settings.RX = settings
	return nil
}

// ModemStatus returns the modem input lines of the port
func (s *Session) ModemStatus() (serial.ModemStatus, error) {
	if !s.IsOpen() {
		return serial.ModemStatus{}, ErrNotOpen
	}
	return s.provider.ModemStatus(s.settings.Port)
}

// SetRTS drives the RTS output line. The state is kept in the serial
// settings and applied again on the next Open.
func (s *Session) SetRTS(on bool) error {
	return s.setLine("rts", &s.settings.Serial.RTS, on, serial.LineController.SetRTS)
}

// SetDTR drives the DTR output line
func (s *Session) SetDTR(on bool) error {
	return s.setLine("dtr", &s.settings.Serial.DTR, on, serial.LineController.SetDTR)
}

func (s *Session) setLine(name string, state **bool, on bool, set func(serial.LineController, string, bool) error) error {
	lc, ok := s.provider.(serial.LineController)
	if !ok {
		return ErrNoLineControl
	}
	if !s.IsOpen() {
		return ErrNotOpen
	}

	if err := set(lc, s.Port(), on); err != nil {
		s.logger.Warn().Err(err).Str("line", name).Msg("failed to set modem line")
		return err
	}

	s.mu.Lock()
	*state = &on
	s.mu.Unlock()

	s.logger.Debug().Str("line", name).Bool("on", on).Msg("modem line set")
	return nil
}

// Clear empties the display. History is kept.
func (s *Session) Clear() {
	s.mu.Lock()
	s.display.Clear()
	s.mu.Unlock()

	s.changed()
}
