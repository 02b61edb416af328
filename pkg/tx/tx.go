// Package tx converts keyboard and paste input into bytes for the serial line
package tx

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// EnterMode selects the bytes sent for the Enter key
type EnterMode string

const (
	EnterLF    EnterMode = "lf"
	EnterCR    EnterMode = "cr"
	EnterCRLF  EnterMode = "crlf"
	EnterBreak EnterMode = "break"
)

// BackspaceMode selects the byte sent for the Backspace key
type BackspaceMode string

const (
	BackspaceBS  BackspaceMode = "backspace"
	BackspaceDEL BackspaceMode = "delete"
)

// DeleteMode selects the bytes sent for the Delete key
type DeleteMode string

const (
	DeleteBS         DeleteMode = "backspace"
	DeleteDEL        DeleteMode = "delete"
	DeleteVTSequence DeleteMode = "vt_sequence"
)

// Settings controls how input events are encoded
type Settings struct {
	Enter     EnterMode     `json:"enter_key"`
	Backspace BackspaceMode `json:"backspace_key"`
	Delete    DeleteMode    `json:"delete_key"`
	CtrlKeys  bool          `json:"ctrl_keys"`
	AltKeys   bool          `json:"alt_keys"`
	// Charset names the code page printable runes are encoded with.
	// Empty means UTF-8.
	Charset string `json:"charset,omitempty"`
}

// DefaultSettings returns the default TX settings
func DefaultSettings() Settings {
	return Settings{
		Enter:     EnterLF,
		Backspace: BackspaceBS,
		Delete:    DeleteVTSequence,
		CtrlKeys:  true,
		AltKeys:   true,
	}
}

// Validate checks if the TX settings are valid
func (s Settings) Validate() error {
	switch s.Enter {
	case EnterLF, EnterCR, EnterCRLF, EnterBreak:
	default:
		return fmt.Errorf("invalid enter key mode: %q", s.Enter)
	}

	switch s.Backspace {
	case BackspaceBS, BackspaceDEL:
	default:
		return fmt.Errorf("invalid backspace key mode: %q", s.Backspace)
	}

	switch s.Delete {
	case DeleteBS, DeleteDEL, DeleteVTSequence:
	default:
		return fmt.Errorf("invalid delete key mode: %q", s.Delete)
	}

	if _, err := lookupCharset(s.Charset); err != nil {
		return err
	}

	return nil
}

// Key identifies the kind of input event
type Key int

const (
	KeyNone Key = iota
	KeyRune
	KeyEnter
	KeyBackspace
	KeyDelete
)

// String returns the string representation of Key
func (k Key) String() string {
	switch k {
	case KeyNone:
		return "none"
	case KeyRune:
		return "rune"
	case KeyEnter:
		return "enter"
	case KeyBackspace:
		return "backspace"
	case KeyDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a logical input event
type Event struct {
	Key  Key
	Rune rune
	Ctrl bool
	Alt  bool
}

// Rune returns a plain character event
func Rune(r rune) Event {
	return Event{Key: KeyRune, Rune: r}
}

// Ctrl returns a Ctrl chord event
func Ctrl(r rune) Event {
	return Event{Key: KeyRune, Rune: r, Ctrl: true}
}

// Alt returns an Alt chord event
func Alt(r rune) Event {
	return Event{Key: KeyRune, Rune: r, Alt: true}
}

// Output is the result of encoding one event. Break is set when the event
// asks for a break condition on the line instead of bytes.
type Output struct {
	Bytes []byte
	Break bool
}

// Empty reports whether the output carries nothing to send
func (o Output) Empty() bool {
	return len(o.Bytes) == 0 && !o.Break
}

// Encode converts an input event into wire bytes. It never fails: events it
// does not understand produce an empty Output.
func Encode(ev Event, s Settings) Output {
	switch ev.Key {
	case KeyEnter:
		switch s.Enter {
		case EnterCR:
			return Output{Bytes: []byte{0x0D}}
		case EnterCRLF:
			return Output{Bytes: []byte{0x0D, 0x0A}}
		case EnterBreak:
			return Output{Break: true}
		default:
			return Output{Bytes: []byte{0x0A}}
		}
	case KeyBackspace:
		if s.Backspace == BackspaceDEL {
			return Output{Bytes: []byte{0x7F}}
		}
		return Output{Bytes: []byte{0x08}}
	case KeyDelete:
		switch s.Delete {
		case DeleteBS:
			return Output{Bytes: []byte{0x08}}
		case DeleteDEL:
			return Output{Bytes: []byte{0x7F}}
		default:
			return Output{Bytes: []byte{0x1B, '[', '3', '~'}}
		}
	case KeyRune:
		return Output{Bytes: encodeRune(ev, s)}
	}

	return Output{}
}

// EncodeAll encodes a sequence of events, merging adjacent byte outputs.
// Break markers stay separate so their position in the stream is kept.
func EncodeAll(events []Event, s Settings) []Output {
	var outputs []Output
	var pending []byte

	for _, ev := range events {
		out := Encode(ev, s)
		if out.Break {
			if len(pending) > 0 {
				outputs = append(outputs, Output{Bytes: pending})
				pending = nil
			}
			outputs = append(outputs, out)
			continue
		}
		pending = append(pending, out.Bytes...)
	}

	if len(pending) > 0 {
		outputs = append(outputs, Output{Bytes: pending})
	}

	return outputs
}

// EventsFromText turns pasted text into events. Line breaks of any style
// become Enter events so they follow the configured Enter mode.
func EventsFromText(text string) []Event {
	events := make([]Event, 0, utf8.RuneCountInString(text))
	prevCR := false

	for _, r := range text {
		switch r {
		case '\r':
			events = append(events, Event{Key: KeyEnter})
			prevCR = true
			continue
		case '\n':
			if !prevCR {
				events = append(events, Event{Key: KeyEnter})
			}
		default:
			events = append(events, Rune(r))
		}
		prevCR = false
	}

	return events
}

// encodeRune handles printable characters and Ctrl/Alt chords
func encodeRune(ev Event, s Settings) []byte {
	var body []byte

	if ev.Ctrl && s.CtrlKeys {
		if b, ok := controlCode(ev.Rune); ok {
			body = []byte{b}
		}
	}

	if body == nil {
		body = runeBytes(ev.Rune, s.Charset)
		if len(body) == 0 {
			return nil
		}
	}

	if ev.Alt && s.AltKeys {
		return append([]byte{0x1B}, body...)
	}

	return body
}

// controlCode maps a Ctrl chord to its C0 control byte
func controlCode(r rune) (byte, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return byte(r-'a') + 0x01, true
	case r >= 'A' && r <= 'Z':
		return byte(r - 0x40), true
	case r == ' ' || r == '@':
		return 0x00, true
	case r == '[':
		return 0x1B, true
	case r == '\\':
		return 0x1C, true
	case r == ']':
		return 0x1D, true
	case r == '^':
		return 0x1E, true
	case r == '_':
		return 0x1F, true
	case r == '?':
		return 0x7F, true
	}
	return 0, false
}

// runeBytes encodes a rune in the configured charset. Runes the charset
// cannot represent are sent as '?'.
func runeBytes(r rune, charset string) []byte {
	if r < 0 || r == utf8.RuneError {
		return nil
	}

	cm, err := lookupCharset(charset)
	if err != nil || cm == nil {
		return []byte(string(r))
	}

	if b, ok := cm.EncodeRune(r); ok {
		return []byte{b}
	}
	return []byte{'?'}
}

var charsets = map[string]*charmap.Charmap{
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"cp437":        charmap.CodePage437,
	"cp850":        charmap.CodePage850,
	"windows-1252": charmap.Windows1252,
	"koi8-r":       charmap.KOI8R,
}

// Charsets returns the accepted charset names besides UTF-8
func Charsets() []string {
	return []string{"latin1", "iso-8859-1", "iso-8859-15", "cp437", "cp850", "windows-1252", "koi8-r"}
}

// lookupCharset returns nil for UTF-8
func lookupCharset(name string) (*charmap.Charmap, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return nil, nil
	}

	cm, ok := charsets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported charset: %q", name)
	}
	return cm, nil
}
