package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"uart-terminal/pkg/rx"
	"uart-terminal/pkg/serial"
	"uart-terminal/pkg/tx"
)

// enumValue is a pflag.Value restricted to a fixed set of names,
// matched without regard to case
type enumValue[T ~string] struct {
	target  *T
	allowed []T
}

func newEnumValue[T ~string](target *T, allowed ...T) *enumValue[T] {
	return &enumValue[T]{target: target, allowed: allowed}
}

func (e *enumValue[T]) String() string {
	if e.target == nil {
		return ""
	}
	return string(*e.target)
}

func (e *enumValue[T]) Set(s string) error {
	for _, a := range e.allowed {
		if strings.EqualFold(string(a), s) {
			*e.target = a
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", e.names())
}

func (e *enumValue[T]) Type() string {
	return "string"
}

func (e *enumValue[T]) names() string {
	names := make([]string, len(e.allowed))
	for i, a := range e.allowed {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

// optionalBool is a pflag.Value for a *bool that stays nil until set
type optionalBool struct {
	target **bool
}

func (o optionalBool) String() string {
	if o.target == nil || *o.target == nil {
		return "unset"
	}
	if **o.target {
		return "on"
	}
	return "off"
}

func (o optionalBool) Set(s string) error {
	var v bool
	switch strings.ToLower(s) {
	case "on", "true", "1", "high":
		v = true
	case "off", "false", "0", "low":
		v = false
	default:
		return fmt.Errorf("must be on or off")
	}
	*o.target = &v
	return nil
}

func (o optionalBool) Type() string {
	return "on|off"
}

// charsetValue validates charset names as they are parsed
type charsetValue struct {
	target *string
}

func (c charsetValue) String() string {
	if c.target == nil || *c.target == "" {
		return "utf-8"
	}
	return *c.target
}

func (c charsetValue) Set(s string) error {
	check := tx.Settings{
		Enter:     tx.EnterLF,
		Backspace: tx.BackspaceBS,
		Delete:    tx.DeleteBS,
		Charset:   s,
	}
	if err := check.Validate(); err != nil {
		return fmt.Errorf("%w (supported: utf-8, %s)", err, strings.Join(tx.Charsets(), ", "))
	}
	*c.target = s
	return nil
}

func (c charsetValue) Type() string {
	return "string"
}

// BindSerialFlags registers the port line flags on fs, writing into s
func BindSerialFlags(fs *pflag.FlagSet, s *serial.PortSettings) {
	fs.IntVarP(&s.BaudRate, "baud", "b", s.BaudRate, "baud rate")
	fs.IntVarP(&s.DataBits, "data", "d", s.DataBits, "data bits (5, 6, 7, or 8)")
	fs.IntVarP(&s.StopBits, "stop", "s", s.StopBits, "stop bits (1 or 2)")
	fs.Var(newEnumValue(&s.Parity, serial.ParityNone, serial.ParityOdd, serial.ParityEven),
		"parity", "parity (none, odd, even)")
	fs.Var(newEnumValue(&s.FlowControl, serial.FlowNone, serial.FlowSoftware, serial.FlowHardware),
		"flow", "flow control (none, software, hardware)")
	fs.IntVarP(&s.TimeoutMs, "timeout", "t", s.TimeoutMs, "read timeout in milliseconds")
	fs.Var(optionalBool{&s.RTS}, "rts", "drive the RTS line on or off after opening")
	fs.Var(optionalBool{&s.DTR}, "dtr", "drive the DTR line on or off after opening")
}

// BindTXFlags registers the transmit encoding flags on fs, writing into s
func BindTXFlags(fs *pflag.FlagSet, s *tx.Settings) {
	fs.Var(newEnumValue(&s.Enter, tx.EnterLF, tx.EnterCR, tx.EnterCRLF, tx.EnterBreak),
		"enter", "bytes sent for Enter (lf, cr, crlf, break)")
	fs.Var(newEnumValue(&s.Backspace, tx.BackspaceBS, tx.BackspaceDEL),
		"backspace", "byte sent for Backspace (backspace, delete)")
	fs.Var(newEnumValue(&s.Delete, tx.DeleteBS, tx.DeleteDEL, tx.DeleteVTSequence),
		"delete", "bytes sent for Delete (backspace, delete, vt_sequence)")
	fs.BoolVar(&s.CtrlKeys, "ctrl-keys", s.CtrlKeys, "send Ctrl+key combinations as control codes")
	fs.BoolVar(&s.AltKeys, "alt-keys", s.AltKeys, "send Alt+key combinations with an ESC prefix")
	fs.Var(charsetValue{&s.Charset}, "charset", "character set for transmitted text")
}

// BindRXFlags registers the receive rendering flags on fs, writing into s
func BindRXFlags(fs *pflag.FlagSet, s *rx.Settings) {
	fs.Var(newEnumValue(&s.DataType, rx.DataASCII, rx.DataNumber),
		"data-type", "render received bytes as text or hex numbers (ascii, number)")
	fs.BoolVar(&s.AnsiEscapeCodes, "ansi", s.AnsiEscapeCodes, "interpret ANSI escape sequences")
	fs.IntVar(&s.MaxEscapeCodeLength, "max-escape", s.MaxEscapeCodeLength, "longest escape sequence accepted")
	fs.Var(newEnumValue(&s.NewLine, rx.NewLineNone, rx.NewLineNewline, rx.NewLineCRLF),
		"newline", "cursor movement for a received LF (none, newline, crlf)")
	fs.BoolVar(&s.SwallowNewLine, "swallow-newline", s.SwallowNewLine, "hide received LF bytes")
	fs.Var(newEnumValue(&s.CarriageReturn, rx.CarriageReturnNone, rx.CarriageReturnStartOfLine, rx.CarriageReturnStartAndDown),
		"carriage-return", "cursor movement for a received CR (none, start_of_line, start_and_down)")
	fs.BoolVar(&s.SwallowCarriageReturn, "swallow-cr", s.SwallowCarriageReturn, "hide received CR bytes")
	fs.Var(newEnumValue(&s.NonVisible, rx.NonVisibleSwallow, rx.NonVisibleControlGlyphs, rx.NonVisibleHexGlyphs),
		"non-visible", "display of non-printable bytes (swallow, control_glyphs, hex_glyphs)")
}

// BindSessionFlags registers the session flags on fs, writing into s
func BindSessionFlags(fs *pflag.FlagSet, s *SessionSettings) {
	fs.BoolVarP(&s.LocalEcho, "echo", "e", s.LocalEcho, "show transmitted bytes locally")
	fs.DurationVar(&s.PollInterval, "poll", s.PollInterval, "interval between reads")
	fs.IntVar(&s.ReadSize, "read-size", s.ReadSize, "maximum bytes per read")
	fs.IntVar(&s.MaxReadFailures, "max-read-failures", s.MaxReadFailures, "consecutive read failures before disconnecting")
	fs.DurationVar(&s.BreakDuration, "break-duration", s.BreakDuration, "length of a transmitted break")
	fs.IntVar(&s.MaxLines, "scrollback", s.MaxLines, "lines kept in the scrollback")
	fs.IntVar(&s.HistorySize, "history-size", s.HistorySize, "bytes of traffic kept for export")
	fs.IntVar(&s.Retries, "retries", s.Retries, "retries when the port is busy or missing")
}

// BindFlags registers every settings flag on fs, writing into s
func BindFlags(fs *pflag.FlagSet, s *Settings) {
	BindSerialFlags(fs, &s.Serial)
	BindTXFlags(fs, &s.TX)
	BindRXFlags(fs, &s.RX)
	BindSessionFlags(fs, &s.Session)
}
