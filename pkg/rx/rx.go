// Package rx decodes the received byte stream into display instructions
package rx

import (
	"fmt"
)

// DataType selects how received bytes are interpreted
type DataType string

const (
	DataASCII  DataType = "ascii"
	DataNumber DataType = "number"
)

// NewLineMode selects the cursor movement for a received LF
type NewLineMode string

const (
	NewLineNone    NewLineMode = "none"
	NewLineNewline NewLineMode = "newline"
	NewLineCRLF    NewLineMode = "crlf"
)

// CarriageReturnMode selects the cursor movement for a received CR
type CarriageReturnMode string

const (
	CarriageReturnNone         CarriageReturnMode = "none"
	CarriageReturnStartOfLine  CarriageReturnMode = "start_of_line"
	CarriageReturnStartAndDown CarriageReturnMode = "start_and_down"
)

// NonVisibleMode selects how bytes without a printable form are shown
type NonVisibleMode string

const (
	NonVisibleSwallow       NonVisibleMode = "swallow"
	NonVisibleControlGlyphs NonVisibleMode = "control_glyphs"
	NonVisibleHexGlyphs     NonVisibleMode = "hex_glyphs"
)

// MaxEscapeCodeLimit is the largest accepted MaxEscapeCodeLength
const MaxEscapeCodeLimit = 100

// Settings controls how received bytes are rendered. A decoder keeps the
// settings it was created with for its whole life.
type Settings struct {
	DataType              DataType           `json:"data_type"`
	AnsiEscapeCodes       bool               `json:"ansi_escape_codes"`
	MaxEscapeCodeLength   int                `json:"max_escape_code_length"`
	NewLine               NewLineMode        `json:"new_line_behavior"`
	SwallowNewLine        bool               `json:"swallow_new_line"`
	CarriageReturn        CarriageReturnMode `json:"carriage_return_behavior"`
	SwallowCarriageReturn bool               `json:"swallow_carriage_return"`
	NonVisible            NonVisibleMode     `json:"non_visible_display"`
}

// DefaultSettings returns the default RX settings
func DefaultSettings() Settings {
	return Settings{
		DataType:              DataASCII,
		AnsiEscapeCodes:       true,
		MaxEscapeCodeLength:   10,
		NewLine:               NewLineCRLF,
		SwallowNewLine:        true,
		CarriageReturn:        CarriageReturnNone,
		SwallowCarriageReturn: true,
		NonVisible:            NonVisibleControlGlyphs,
	}
}

// EchoSettings returns the fixed settings used to show transmitted bytes
func EchoSettings() Settings {
	return Settings{
		DataType:              DataASCII,
		AnsiEscapeCodes:       false,
		MaxEscapeCodeLength:   1,
		NewLine:               NewLineCRLF,
		SwallowNewLine:        true,
		CarriageReturn:        CarriageReturnNone,
		SwallowCarriageReturn: true,
		NonVisible:            NonVisibleControlGlyphs,
	}
}

// Validate checks if the RX settings are valid
func (s Settings) Validate() error {
	switch s.DataType {
	case DataASCII, DataNumber:
	default:
		return fmt.Errorf("invalid data type: %q", s.DataType)
	}

	if s.MaxEscapeCodeLength < 1 || s.MaxEscapeCodeLength > MaxEscapeCodeLimit {
		return fmt.Errorf("max escape code length must be between 1 and %d, got: %d",
			MaxEscapeCodeLimit, s.MaxEscapeCodeLength)
	}

	switch s.NewLine {
	case NewLineNone, NewLineNewline, NewLineCRLF:
	default:
		return fmt.Errorf("invalid new line behavior: %q", s.NewLine)
	}

	switch s.CarriageReturn {
	case CarriageReturnNone, CarriageReturnStartOfLine, CarriageReturnStartAndDown:
	default:
		return fmt.Errorf("invalid carriage return behavior: %q", s.CarriageReturn)
	}

	switch s.NonVisible {
	case NonVisibleSwallow, NonVisibleControlGlyphs, NonVisibleHexGlyphs:
	default:
		return fmt.Errorf("invalid non-visible display: %q", s.NonVisible)
	}

	return nil
}

// Op identifies the kind of display instruction
type Op int

const (
	OpGlyph Op = iota
	OpStartOfLine
	OpDown
	OpStartAndDown
	OpCursor
	OpErase
	OpStyle
	OpReset
)

// String returns the string representation of Op
func (o Op) String() string {
	switch o {
	case OpGlyph:
		return "glyph"
	case OpStartOfLine:
		return "start_of_line"
	case OpDown:
		return "down"
	case OpStartAndDown:
		return "start_and_down"
	case OpCursor:
		return "cursor"
	case OpErase:
		return "erase"
	case OpStyle:
		return "style"
	case OpReset:
		return "reset"
	default:
		return "unknown"
	}
}

// GlyphClass tells a renderer where a glyph came from
type GlyphClass int

const (
	ClassLiteral GlyphClass = iota
	ClassControl
	ClassHex
	ClassNumber
)

// String returns the string representation of GlyphClass
func (c GlyphClass) String() string {
	switch c {
	case ClassLiteral:
		return "literal"
	case ClassControl:
		return "control"
	case ClassHex:
		return "hex"
	case ClassNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Glyph is one visible cell worth of output
type Glyph struct {
	Text  string
	Class GlyphClass
}

// Direction is the kind of cursor movement requested by an escape sequence
type Direction int

const (
	MoveUp Direction = iota
	MoveDown
	MoveForward
	MoveBack
	MoveColumn
	MoveAbsolute
)

// CursorMove describes cursor movement. Count is used by relative moves,
// Row and Col are zero based and used by absolute moves.
type CursorMove struct {
	Direction Direction
	Count     int
	Row       int
	Col       int
}

// EraseTarget selects what an erase instruction clears
type EraseTarget int

const (
	EraseDisplay EraseTarget = iota
	EraseLine
)

// Erase describes an erase instruction. Mode follows the ED/EL parameter:
// 0 cursor to end, 1 start to cursor, 2 everything.
type Erase struct {
	Target EraseTarget
	Mode   int
}

// Color is one of the 16 ANSI colors or ColorDefault
type Color int

const (
	ColorDefault       Color = -1
	ColorBlack         Color = 0
	ColorRed           Color = 1
	ColorGreen         Color = 2
	ColorYellow        Color = 3
	ColorBlue          Color = 4
	ColorMagenta       Color = 5
	ColorCyan          Color = 6
	ColorWhite         Color = 7
	ColorBrightBlack   Color = 8
	ColorBrightRed     Color = 9
	ColorBrightGreen   Color = 10
	ColorBrightYellow  Color = 11
	ColorBrightBlue    Color = 12
	ColorBrightMagenta Color = 13
	ColorBrightCyan    Color = 14
	ColorBrightWhite   Color = 15
)

// String returns the string representation of Color
func (c Color) String() string {
	if c == ColorDefault {
		return "default"
	}

	colors := []string{
		"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white",
		"bright_black", "bright_red", "bright_green", "bright_yellow",
		"bright_blue", "bright_magenta", "bright_cyan", "bright_white",
	}

	if int(c) >= 0 && int(c) < len(colors) {
		return colors[c]
	}
	return "unknown"
}

// StyleChange is a single SGR attribute update. Nil fields are unchanged.
type StyleChange struct {
	Reset      bool
	Bold       *bool
	Italic     *bool
	Underline  *bool
	Blink      *bool
	Reverse    *bool
	Foreground *Color
	Background *Color
}

// Instruction is a single display instruction. Only the field matching Op
// is meaningful.
type Instruction struct {
	Op     Op
	Glyph  Glyph
	Cursor CursorMove
	Erase  Erase
	Style  StyleChange
}

// String returns a compact description, mostly for tests and debug logs
func (in Instruction) String() string {
	switch in.Op {
	case OpGlyph:
		return fmt.Sprintf("glyph(%s:%q)", in.Glyph.Class, in.Glyph.Text)
	case OpCursor:
		return fmt.Sprintf("cursor(%d,%d,%d,%d)", in.Cursor.Direction, in.Cursor.Count, in.Cursor.Row, in.Cursor.Col)
	case OpErase:
		return fmt.Sprintf("erase(%d,%d)", in.Erase.Target, in.Erase.Mode)
	case OpStyle:
		return fmt.Sprintf("style(%s)", in.Style)
	default:
		return in.Op.String()
	}
}
