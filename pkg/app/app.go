// Package app runs a terminal session, either in a full screen tcell UI or
// streamed to a plain terminal
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"uart-terminal/pkg/display"
	"uart-terminal/pkg/history"
	"uart-terminal/pkg/menu"
	"uart-terminal/pkg/rx"
	"uart-terminal/pkg/serial"
	"uart-terminal/pkg/session"
	"uart-terminal/pkg/tx"
)

type viewMode int

const (
	modeNormal viewMode = iota
	modeHelp
	modeSearch
)

// Notifier wakes the UI when the session display changes. Pass its Notify
// method to session.WithNotify.
type Notifier chan struct{}

// NewNotifier creates a notifier
func NewNotifier() Notifier {
	return make(Notifier, 1)
}

// Notify signals a change without blocking
func (n Notifier) Notify() {
	select {
	case n <- struct{}{}:
	default:
	}
}

// Option configures an Application
type Option func(*Application)

// WithScreen sets the screen to draw on instead of the terminal
func WithScreen(screen tcell.Screen) Option {
	return func(app *Application) { app.screen = screen }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(app *Application) { app.logger = logger }
}

// WithNotifier sets the notifier the session signals display changes on
func WithNotifier(n Notifier) Option {
	return func(app *Application) { app.notifier = n }
}

// WithHistoryFormat sets the format of saved history files
func WithHistoryFormat(format history.FileFormat) Option {
	return func(app *Application) { app.historyFormat = format }
}

// WithTick sets how often the status bar and modem lines refresh
func WithTick(d time.Duration) Option {
	return func(app *Application) { app.tick = d }
}

// Application is the full screen UI of a session
type Application struct {
	session       *session.Session
	screen        tcell.Screen
	logger        zerolog.Logger
	notifier      Notifier
	historyFormat history.FileFormat
	tick          time.Duration
	menu          *menu.Menu
	rxItems       []int // menu items locked while connected

	// mu guards the view state
	mu      sync.Mutex
	mode    viewMode
	filter  display.Filter
	scroll  int
	query   string
	input   string
	message string
	modem   *serial.ModemStatus

	quit     chan struct{}
	quitOnce sync.Once
}

// NewApplication creates the UI for an open session
func NewApplication(sess *session.Session, opts ...Option) *Application {
	app := &Application{
		session:       sess,
		logger:        zerolog.Nop(),
		historyFormat: history.FormatTimestamped,
		tick:          500 * time.Millisecond,
		filter:        display.FilterAll,
		quit:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(app)
	}
	app.menu = app.buildMenu()

	return app
}

// Run draws the session and handles input until Stop is called, Ctrl+Q is
// pressed or ctx is done. The session is left open.
func (app *Application) Run(ctx context.Context) error {
	if app.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to create screen: %w", err)
		}
		app.screen = screen
	}

	if err := app.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer app.screen.Fini()

	app.screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorReset).
		Foreground(tcell.ColorReset))
	app.resize()

	events := make(chan tcell.Event, 32)
	stop := make(chan struct{})
	go app.screen.ChannelEvents(events, stop)
	defer close(stop)

	ticker := time.NewTicker(app.tick)
	defer ticker.Stop()

	app.logger.Debug().Msg("ui started")
	app.pollModem()

	for {
		app.draw()

		select {
		case <-ctx.Done():
			return nil
		case <-app.quit:
			app.logger.Debug().Msg("ui stopped")
			return nil
		case <-app.notifier:
		case err := <-app.session.Errors():
			app.showError(err)
		case <-ticker.C:
			app.pollModem()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			app.handleEvent(ev)
		}
	}
}

// Stop makes Run return
func (app *Application) Stop() {
	app.quitOnce.Do(func() { close(app.quit) })
}

func (app *Application) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		app.resize()
		app.screen.Sync()
	case *tcell.EventKey:
		app.handleKey(ev)
	}
}

// resize matches the display buffer geometry to the screen
func (app *Application) resize() {
	width, height := app.screen.Size()
	buf := app.session.Display()
	buf.SetWrapWidth(width)
	buf.SetHeight(height - 1)
}

func (app *Application) handleKey(ev *tcell.EventKey) {
	if app.menu.IsVisible() {
		app.menu.HandleKey(ev)
		return
	}

	app.mu.Lock()
	mode := app.mode
	app.mu.Unlock()

	switch mode {
	case modeHelp:
		app.setMode(modeNormal)
		return
	case modeSearch:
		app.handleSearchKey(ev)
		return
	}

	if app.handleShortcut(ev) {
		return
	}

	event, ok := keyToEvent(ev)
	if !ok {
		return
	}

	if err := app.session.Send(event); err != nil {
		app.logger.Debug().Err(err).Str("key", event.Key.String()).Msg("send failed")
		app.setMessage(err.Error())
		return
	}

	app.mu.Lock()
	app.scroll = 0
	app.mu.Unlock()
}

// handleShortcut runs the UI action bound to ev, if any
func (app *Application) handleShortcut(ev *tcell.EventKey) bool {
	var err error

	switch ev.Key() {
	case tcell.KeyCtrlQ:
		app.Stop()
	case tcell.KeyF1:
		app.setMode(modeHelp)
	case tcell.KeyF2:
		app.mu.Lock()
		app.filter = app.filter.Next()
		app.scroll = 0
		app.message = "filter: " + app.filter.String()
		app.mu.Unlock()
	case tcell.KeyF3:
		on := !app.session.LocalEcho()
		app.session.SetLocalEcho(on)
		app.setMessage("local echo " + onOff(on))
	case tcell.KeyF4:
		app.mu.Lock()
		app.mode = modeSearch
		app.input = app.query
		app.mu.Unlock()
	case tcell.KeyF5:
		app.session.Clear()
		app.mu.Lock()
		app.scroll = 0
		app.mu.Unlock()
	case tcell.KeyF6:
		var name string
		if name, err = app.SaveHistory(""); err == nil {
			app.setMessage("history saved to " + name)
		}
	case tcell.KeyF7:
		err = app.session.SendBreak()
	case tcell.KeyF8:
		app.togglePause()
	case tcell.KeyF10:
		app.showMenu()
	case tcell.KeyPgUp:
		app.scrollBy(app.pageSize())
	case tcell.KeyPgDn:
		app.scrollBy(-app.pageSize())
	case tcell.KeyHome:
		app.scrollBy(app.session.Display().Len())
	case tcell.KeyEnd:
		app.mu.Lock()
		app.scroll = 0
		app.mu.Unlock()
	default:
		return false
	}

	if err != nil {
		app.showError(err)
	}
	return true
}

func (app *Application) handleSearchKey(ev *tcell.EventKey) {
	app.mu.Lock()
	defer app.mu.Unlock()

	switch ev.Key() {
	case tcell.KeyEnter:
		app.query = app.input
		app.scroll = 0
		app.mode = modeNormal
	case tcell.KeyEscape:
		app.query = ""
		app.input = ""
		app.mode = modeNormal
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if r := []rune(app.input); len(r) > 0 {
			app.input = string(r[:len(r)-1])
		}
	case tcell.KeyRune:
		app.input += string(ev.Rune())
	}
}

func (app *Application) togglePause() {
	if app.session.IsPaused() {
		app.session.Resume()
		app.setMessage("resumed")
		return
	}
	app.session.Pause()
	app.setMessage("paused")
}

func (app *Application) pageSize() int {
	_, height := app.screen.Size()
	if height > 2 {
		return height - 2
	}
	return 1
}

// scrollBy moves the view back by n lines. The draw pass clamps it.
func (app *Application) scrollBy(n int) {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.scroll += n
	if app.scroll < 0 {
		app.scroll = 0
	}
}

func (app *Application) pollModem() {
	status, err := app.session.ModemStatus()

	app.mu.Lock()
	defer app.mu.Unlock()

	if err != nil {
		app.modem = nil
		return
	}
	app.modem = &status
}

func (app *Application) setMode(mode viewMode) {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.mode = mode
}

func (app *Application) setMessage(msg string) {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.message = msg
}

func (app *Application) showError(err error) {
	app.logger.Warn().Err(err).Msg("session error")
	app.setMessage(err.Error())
}

// SaveHistory writes the session traffic to filename, or to a timestamped
// file in the working directory when filename is empty. It returns the name
// written.
func (app *Application) SaveHistory(filename string) (string, error) {
	if filename == "" {
		ext := ".log"
		if app.historyFormat == history.FormatJSON {
			ext = ".json"
		}
		filename = fmt.Sprintf("history_%s%s", time.Now().Format("20060102_150405"), ext)
	}

	if err := app.session.History().SaveToFile(filename, app.historyFormat); err != nil {
		return "", err
	}

	app.logger.Info().Str("file", filename).Str("format", app.historyFormat.String()).Msg("history saved")
	return filename, nil
}

// Filter returns the active origin filter
func (app *Application) Filter() display.Filter {
	app.mu.Lock()
	defer app.mu.Unlock()

	return app.filter
}

// Query returns the active search query
func (app *Application) Query() string {
	app.mu.Lock()
	defer app.mu.Unlock()

	return app.query
}

// Message returns the status bar message
func (app *Application) Message() string {
	app.mu.Lock()
	defer app.mu.Unlock()

	return app.message
}

func (app *Application) buildMenu() *menu.Menu {
	m := menu.New("Settings")
	sess := app.session

	m.AddValue("Local echo", 'e',
		func() string { return onOff(sess.LocalEcho()) },
		func() error {
			sess.SetLocalEcho(!sess.LocalEcho())
			return nil
		})
	m.AddValue("Enter sends", 'n',
		func() string { return string(sess.Settings().TX.Enter) },
		func() error {
			s := sess.Settings().TX
			s.Enter = cycle(s.Enter, tx.EnterLF, tx.EnterCR, tx.EnterCRLF, tx.EnterBreak)
			return sess.SetTXSettings(s)
		})
	m.AddValue("Backspace sends", 'b',
		func() string { return string(sess.Settings().TX.Backspace) },
		func() error {
			s := sess.Settings().TX
			s.Backspace = cycle(s.Backspace, tx.BackspaceBS, tx.BackspaceDEL)
			return sess.SetTXSettings(s)
		})
	m.AddValue("Delete sends", 'd',
		func() string { return string(sess.Settings().TX.Delete) },
		func() error {
			s := sess.Settings().TX
			s.Delete = cycle(s.Delete, tx.DeleteBS, tx.DeleteDEL, tx.DeleteVTSequence)
			return sess.SetTXSettings(s)
		})
	m.AddValue("RTS", 'R',
		func() string { return optionalOnOff(sess.Settings().Serial.RTS) },
		func() error { return sess.SetRTS(!isOn(sess.Settings().Serial.RTS)) })
	m.AddValue("DTR", 'D',
		func() string { return optionalOnOff(sess.Settings().Serial.DTR) },
		func() error { return sess.SetDTR(!isOn(sess.Settings().Serial.DTR)) })
	m.AddSeparator()
	app.rxItems = nil
	rxValue := func(label string, shortcut rune, value func() string, action func() error) {
		app.rxItems = append(app.rxItems, len(m.Items()))
		m.AddValue(label, shortcut, value, action)
	}
	rxValue("Data type", 't',
		func() string { return string(sess.Settings().RX.DataType) },
		func() error {
			s := sess.Settings().RX
			s.DataType = cycle(s.DataType, rx.DataASCII, rx.DataNumber)
			return sess.SetRXSettings(s)
		})
	rxValue("ANSI escapes", 'a',
		func() string { return onOff(sess.Settings().RX.AnsiEscapeCodes) },
		func() error {
			s := sess.Settings().RX
			s.AnsiEscapeCodes = !s.AnsiEscapeCodes
			return sess.SetRXSettings(s)
		})
	rxValue("Newline", 'l',
		func() string { return string(sess.Settings().RX.NewLine) },
		func() error {
			s := sess.Settings().RX
			s.NewLine = cycle(s.NewLine, rx.NewLineNone, rx.NewLineNewline, rx.NewLineCRLF)
			return sess.SetRXSettings(s)
		})
	rxValue("Carriage return", 'r',
		func() string { return string(sess.Settings().RX.CarriageReturn) },
		func() error {
			s := sess.Settings().RX
			s.CarriageReturn = cycle(s.CarriageReturn,
				rx.CarriageReturnNone, rx.CarriageReturnStartOfLine, rx.CarriageReturnStartAndDown)
			return sess.SetRXSettings(s)
		})
	rxValue("Non-visible bytes", 'v',
		func() string { return string(sess.Settings().RX.NonVisible) },
		func() error {
			s := sess.Settings().RX
			s.NonVisible = cycle(s.NonVisible,
				rx.NonVisibleSwallow, rx.NonVisibleControlGlyphs, rx.NonVisibleHexGlyphs)
			return sess.SetRXSettings(s)
		})
	m.AddSeparator()
	m.AddItem("Send break", 'k', sess.SendBreak)
	m.AddItem("Clear screen", 'x', func() error {
		sess.Clear()
		return nil
	})
	m.AddItem("Clear history", 'h', func() error {
		sess.History().Clear()
		return nil
	})

	m.SetOnError(app.showError)
	return m
}

// showMenu opens the settings menu. Receive settings are read-only while
// the port is open.
func (app *Application) showMenu() {
	open := app.session.IsOpen()
	for _, i := range app.rxItems {
		app.menu.EnableItem(i, !open)
	}
	app.menu.Show()
}

// cycle returns the value after current in values, wrapping around
func cycle[T comparable](current T, values ...T) T {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}

// isOn treats an unset line as asserted, the driver default after open
func isOn(b *bool) bool {
	return b == nil || *b
}

func optionalOnOff(b *bool) string {
	if b == nil {
		return "default"
	}
	return onOff(*b)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// modemLines lists the asserted modem input lines
func modemLines(m *serial.ModemStatus) string {
	if m == nil {
		return ""
	}

	var lines []string
	for _, l := range []struct {
		name string
		on   bool
	}{
		{"CTS", m.CTS},
		{"DSR", m.DSR},
		{"RI", m.RI},
		{"DCD", m.DCD},
	} {
		if l.on {
			lines = append(lines, l.name)
		}
	}

	if len(lines) == 0 {
		return "lines:-"
	}
	return "lines:" + strings.Join(lines, ",")
}
