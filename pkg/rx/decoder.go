package rx

import (
	"fmt"
)

// decoderState represents the current state of the decoder
type decoderState int

const (
	stateNormal decoderState = iota
	stateEscape
)

// Decoder turns a received byte stream into display instructions. It keeps
// partial escape sequences between calls, so a stream may be split into
// chunks anywhere. A Decoder is not safe for concurrent use; one connection
// should feed it from a single goroutine.
type Decoder struct {
	settings Settings
	state    decoderState
	esc      []byte
}

// NewDecoder creates a decoder bound to the given settings. A
// MaxEscapeCodeLength below 1 is raised to 1.
func NewDecoder(settings Settings) *Decoder {
	if settings.MaxEscapeCodeLength < 1 {
		settings.MaxEscapeCodeLength = 1
	}
	if settings.MaxEscapeCodeLength > MaxEscapeCodeLimit {
		settings.MaxEscapeCodeLength = MaxEscapeCodeLimit
	}

	return &Decoder{
		settings: settings,
		state:    stateNormal,
		esc:      make([]byte, 0, settings.MaxEscapeCodeLength+1),
	}
}

// Settings returns the settings the decoder was created with
func (d *Decoder) Settings() Settings {
	return d.settings
}

// Pending returns the number of buffered escape sequence bytes
func (d *Decoder) Pending() int {
	return len(d.esc)
}

// Reset drops any partial escape sequence
func (d *Decoder) Reset() {
	d.state = stateNormal
	d.esc = d.esc[:0]
}

// Feed decodes a chunk and returns the resulting instructions
func (d *Decoder) Feed(chunk []byte) []Instruction {
	out := make([]Instruction, 0, len(chunk))
	for _, b := range chunk {
		out = d.feedByte(b, out)
	}
	return out
}

// feedByte applies the per-byte decision order
func (d *Decoder) feedByte(b byte, out []Instruction) []Instruction {
	if d.settings.DataType == DataNumber {
		return append(out, glyph(fmt.Sprintf("%02X", b), ClassNumber))
	}

	if d.state == stateEscape && d.settings.AnsiEscapeCodes {
		return d.accumulate(b, out)
	}

	if b == 0x1B && d.settings.AnsiEscapeCodes {
		d.state = stateEscape
		d.esc = append(d.esc[:0], b)
		return out
	}

	return d.plain(b, out)
}

// accumulate adds a byte to the pending escape sequence
func (d *Decoder) accumulate(b byte, out []Instruction) []Instruction {
	d.esc = append(d.esc, b)

	status, instrs := parseEscape(d.esc)
	switch status {
	case escapeComplete:
		d.Reset()
		return append(out, instrs...)
	case escapeInvalid:
		// The new byte cannot belong to the sequence: show what was
		// buffered before it and decode the byte on its own.
		out = d.abandon(d.esc[:len(d.esc)-1], out)
		return d.feedByte(b, out)
	}

	if len(d.esc) > d.settings.MaxEscapeCodeLength {
		return d.abandon(d.esc, out)
	}

	return out
}

// abandon leaves escape mode and renders raw as if escape parsing were off
func (d *Decoder) abandon(raw []byte, out []Instruction) []Instruction {
	pending := make([]byte, len(raw))
	copy(pending, raw)
	d.Reset()

	for _, b := range pending {
		out = d.plain(b, out)
	}
	return out
}

// plain handles a byte outside of any escape sequence
func (d *Decoder) plain(b byte, out []Instruction) []Instruction {
	switch {
	case b == 0x0A:
		if !d.settings.SwallowNewLine {
			out = d.nonVisible(b, out)
		}
		switch d.settings.NewLine {
		case NewLineNewline:
			out = append(out, Instruction{Op: OpDown})
		case NewLineCRLF:
			out = append(out, Instruction{Op: OpStartAndDown})
		}
		return out
	case b == 0x0D:
		if !d.settings.SwallowCarriageReturn {
			out = d.nonVisible(b, out)
		}
		switch d.settings.CarriageReturn {
		case CarriageReturnStartOfLine:
			out = append(out, Instruction{Op: OpStartOfLine})
		case CarriageReturnStartAndDown:
			out = append(out, Instruction{Op: OpStartAndDown})
		}
		return out
	case b >= 0x20 && b <= 0x7E:
		return append(out, glyph(string(rune(b)), ClassLiteral))
	}

	return d.nonVisible(b, out)
}

// nonVisible applies the non-visible display policy
func (d *Decoder) nonVisible(b byte, out []Instruction) []Instruction {
	switch d.settings.NonVisible {
	case NonVisibleSwallow:
		return out
	case NonVisibleHexGlyphs:
		return append(out, glyph(fmt.Sprintf("%02X", b), ClassHex))
	}

	if name, ok := ControlName(b); ok {
		return append(out, glyph(name, ClassControl))
	}
	return append(out, glyph(fmt.Sprintf("%02X", b), ClassHex))
}

func glyph(text string, class GlyphClass) Instruction {
	return Instruction{Op: OpGlyph, Glyph: Glyph{Text: text, Class: class}}
}

var controlNames = [...]string{
	"NUL", "SOH", "STX", "ETX", "EOT", "ENQ", "ACK", "BEL",
	"BS", "HT", "LF", "VT", "FF", "CR", "SO", "SI",
	"DLE", "DC1", "DC2", "DC3", "DC4", "NAK", "SYN", "ETB",
	"CAN", "EM", "SUB", "ESC", "FS", "GS", "RS", "US",
}

// ControlName returns the mnemonic of an ASCII control byte
func ControlName(b byte) (string, bool) {
	if int(b) < len(controlNames) {
		return controlNames[b], true
	}
	if b == 0x7F {
		return "DEL", true
	}
	return "", false
}
