package display

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"uart-terminal/pkg/rx"
)

// StreamWriter renders instructions straight to an ANSI terminal instead of
// a Buffer. It is used when there is no full screen UI.
type StreamWriter struct {
	mu      sync.Mutex
	w       io.Writer
	filter  Filter
	txColor rx.Color
}

// NewStreamWriter creates a stream writer. Transmitted glyphs are drawn in
// txColor unless it is rx.ColorDefault.
func NewStreamWriter(w io.Writer, filter Filter, txColor rx.Color) *StreamWriter {
	return &StreamWriter{w: w, filter: filter, txColor: txColor}
}

// Write renders instructions of one origin
func (s *StreamWriter) Write(origin Origin, instrs []rx.Instruction) error {
	if !s.filter.Match(origin) || len(instrs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	tinted := origin == OriginTX && s.txColor != rx.ColorDefault
	if tinted {
		buf.WriteString(sgrForeground(s.txColor))
	}

	for _, in := range instrs {
		writeInstruction(&buf, in)
	}

	if tinted {
		buf.WriteString("\x1b[39m")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func writeInstruction(buf *bytes.Buffer, in rx.Instruction) {
	switch in.Op {
	case rx.OpGlyph:
		switch in.Glyph.Class {
		case rx.ClassLiteral:
			buf.WriteString(in.Glyph.Text)
		case rx.ClassNumber:
			buf.WriteString(in.Glyph.Text)
			buf.WriteByte(' ')
		default:
			buf.WriteString("\x1b[7m")
			buf.WriteString(in.Glyph.Text)
			buf.WriteString("\x1b[27m")
		}
	case rx.OpStartOfLine:
		buf.WriteByte('\r')
	case rx.OpDown:
		buf.WriteByte('\n')
	case rx.OpStartAndDown:
		buf.WriteString("\r\n")
	case rx.OpCursor:
		writeCursor(buf, in.Cursor)
	case rx.OpErase:
		final := byte('J')
		if in.Erase.Target == rx.EraseLine {
			final = 'K'
		}
		fmt.Fprintf(buf, "\x1b[%d%c", in.Erase.Mode, final)
	case rx.OpStyle:
		writeStyle(buf, in.Style)
	case rx.OpReset:
		buf.WriteString("\x1b[0m\x1b[2J\x1b[H")
	}
}

func writeCursor(buf *bytes.Buffer, m rx.CursorMove) {
	switch m.Direction {
	case rx.MoveUp:
		fmt.Fprintf(buf, "\x1b[%dA", m.Count)
	case rx.MoveDown:
		fmt.Fprintf(buf, "\x1b[%dB", m.Count)
	case rx.MoveForward:
		fmt.Fprintf(buf, "\x1b[%dC", m.Count)
	case rx.MoveBack:
		fmt.Fprintf(buf, "\x1b[%dD", m.Count)
	case rx.MoveColumn:
		fmt.Fprintf(buf, "\x1b[%dG", m.Col+1)
	case rx.MoveAbsolute:
		fmt.Fprintf(buf, "\x1b[%d;%dH", m.Row+1, m.Col+1)
	}
}

func writeStyle(buf *bytes.Buffer, c rx.StyleChange) {
	if c.Reset {
		buf.WriteString("\x1b[0m")
	}

	flag := func(v *bool, on, off int) {
		if v == nil {
			return
		}
		if *v {
			fmt.Fprintf(buf, "\x1b[%dm", on)
		} else {
			fmt.Fprintf(buf, "\x1b[%dm", off)
		}
	}
	flag(c.Bold, 1, 22)
	flag(c.Italic, 3, 23)
	flag(c.Underline, 4, 24)
	flag(c.Blink, 5, 25)
	flag(c.Reverse, 7, 27)

	if c.Foreground != nil {
		buf.WriteString(sgrForeground(*c.Foreground))
	}
	if c.Background != nil {
		buf.WriteString(sgrBackground(*c.Background))
	}
}

func sgrForeground(c rx.Color) string {
	switch {
	case c == rx.ColorDefault:
		return "\x1b[39m"
	case c >= 8:
		return fmt.Sprintf("\x1b[%dm", 90+int(c)-8)
	default:
		return fmt.Sprintf("\x1b[%dm", 30+int(c))
	}
}

func sgrBackground(c rx.Color) string {
	switch {
	case c == rx.ColorDefault:
		return "\x1b[49m"
	case c >= 8:
		return fmt.Sprintf("\x1b[%dm", 100+int(c)-8)
	default:
		return fmt.Sprintf("\x1b[%dm", 40+int(c))
	}
}
