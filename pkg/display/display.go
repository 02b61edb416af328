// Package display provides the scrollback buffer that decoded instructions
// are applied to
package display

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"uart-terminal/pkg/rx"
)

// DefaultMaxLines is the scrollback limit used when none is given
const DefaultMaxLines = 1000

// DefaultMaxColumns bounds the cursor column when wrapping is off
const DefaultMaxColumns = 1024

// DefaultHeight is the page height absolute cursor positions refer to
const DefaultHeight = 24

// Origin tells whether a cell was received or transmitted
type Origin int

const (
	OriginRX Origin = iota
	OriginTX
)

// String returns the string representation of Origin
func (o Origin) String() string {
	switch o {
	case OriginRX:
		return "RX"
	case OriginTX:
		return "TX"
	default:
		return "unknown"
	}
}

// Filter selects which origins a snapshot includes
type Filter int

const (
	FilterAll Filter = iota
	FilterTX
	FilterRX
)

// String returns the string representation of Filter
func (f Filter) String() string {
	switch f {
	case FilterAll:
		return "all"
	case FilterTX:
		return "tx"
	case FilterRX:
		return "rx"
	default:
		return "unknown"
	}
}

// Next returns the filter that follows f in the all, tx, rx cycle
func (f Filter) Next() Filter {
	return (f + 1) % 3
}

// Match reports whether a cell of the given origin passes the filter
func (f Filter) Match(o Origin) bool {
	switch f {
	case FilterTX:
		return o == OriginTX
	case FilterRX:
		return o == OriginRX
	default:
		return true
	}
}

// ParseFilter converts a filter name to a Filter
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return FilterAll, nil
	case "tx":
		return FilterTX, nil
	case "rx":
		return FilterRX, nil
	default:
		return FilterAll, fmt.Errorf("invalid filter: %q", s)
	}
}

// Style holds the rendition attributes of a cell
type Style struct {
	Foreground rx.Color
	Background rx.Color
	Bold       bool
	Italic     bool
	Underline  bool
	Blink      bool
	Reverse    bool
}

// DefaultStyle returns the default cell style
func DefaultStyle() Style {
	return Style{
		Foreground: rx.ColorDefault,
		Background: rx.ColorDefault,
	}
}

// Apply returns the style with an SGR change applied
func (s Style) Apply(c rx.StyleChange) Style {
	if c.Reset {
		s = DefaultStyle()
	}
	if c.Bold != nil {
		s.Bold = *c.Bold
	}
	if c.Italic != nil {
		s.Italic = *c.Italic
	}
	if c.Underline != nil {
		s.Underline = *c.Underline
	}
	if c.Blink != nil {
		s.Blink = *c.Blink
	}
	if c.Reverse != nil {
		s.Reverse = *c.Reverse
	}
	if c.Foreground != nil {
		s.Foreground = *c.Foreground
	}
	if c.Background != nil {
		s.Background = *c.Background
	}
	return s
}

// Cell is one glyph in the buffer
type Cell struct {
	Text   string
	Class  rx.GlyphClass
	Style  Style
	Origin Origin
	Seq    uint64
	Width  int
}

// blank is the filler written when the cursor moves past the end of a line
func blank(origin Origin, seq uint64) Cell {
	return Cell{Text: " ", Style: DefaultStyle(), Origin: origin, Seq: seq, Width: 1}
}

// Line is a snapshot of one buffer line
type Line struct {
	Index int
	Cells []Cell
}

// Text returns the glyph text of the line
func (l Line) Text() string {
	var sb strings.Builder
	for _, c := range l.Cells {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// Width returns the number of terminal columns the line occupies
func (l Line) Width() int {
	w := 0
	for _, c := range l.Cells {
		w += c.Width
	}
	return w
}

// Options configures a Buffer
type Options struct {
	MaxLines int
	// WrapWidth wraps lines after this many cells. Zero disables wrapping.
	WrapWidth int
	// MaxColumns caps the cursor column when WrapWidth is zero
	MaxColumns int
	Height     int
}

// Buffer is an ordered list of lines with a cursor. All methods are safe
// for concurrent use; readers get copies.
type Buffer struct {
	mu       sync.RWMutex
	lines    [][]Cell
	row      int
	col      int
	styles   map[Origin]Style
	maxLines int
	wrap     int
	maxCols  int
	height   int
	trimmed  int
}

// NewBuffer creates an empty buffer
func NewBuffer(opts Options) *Buffer {
	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultMaxLines
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.MaxColumns <= 0 {
		opts.MaxColumns = DefaultMaxColumns
	}

	return &Buffer{
		lines:    [][]Cell{{}},
		styles:   map[Origin]Style{OriginRX: DefaultStyle(), OriginTX: DefaultStyle()},
		maxLines: opts.MaxLines,
		wrap:     opts.WrapWidth,
		maxCols:  opts.MaxColumns,
		height:   opts.Height,
	}
}

// Apply applies instructions produced for the given origin. seq orders the
// cells across origins.
func (b *Buffer) Apply(origin Origin, seq uint64, instrs []rx.Instruction) {
	if len(instrs) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, in := range instrs {
		b.apply(origin, seq, in)
	}
	b.trim()
}

func (b *Buffer) apply(origin Origin, seq uint64, in rx.Instruction) {
	switch in.Op {
	case rx.OpGlyph:
		b.put(Cell{
			Text:   in.Glyph.Text,
			Class:  in.Glyph.Class,
			Style:  b.styles[origin],
			Origin: origin,
			Seq:    seq,
			Width:  runewidth.StringWidth(in.Glyph.Text),
		})
	case rx.OpStartOfLine:
		b.col = 0
	case rx.OpDown:
		b.moveRow(b.row + 1)
	case rx.OpStartAndDown:
		b.col = 0
		b.moveRow(b.row + 1)
	case rx.OpCursor:
		b.moveCursor(in.Cursor)
	case rx.OpErase:
		b.erase(origin, seq, in.Erase)
	case rx.OpStyle:
		b.styles[origin] = b.styles[origin].Apply(in.Style)
	case rx.OpReset:
		b.styles[origin] = DefaultStyle()
		b.erase(origin, seq, rx.Erase{Target: rx.EraseDisplay, Mode: 2})
		b.row = b.pageTop()
		b.col = 0
	}
}

// put writes a cell at the cursor and advances one column
func (b *Buffer) put(c Cell) {
	if b.col >= b.columns() {
		b.col = 0
		b.moveRow(b.row + 1)
	}

	line := b.lines[b.row]
	for len(line) < b.col {
		line = append(line, blank(c.Origin, c.Seq))
	}
	if b.col < len(line) {
		line[b.col] = c
	} else {
		line = append(line, c)
	}
	b.lines[b.row] = line
	b.col++
}

// moveRow moves the cursor to row, growing the buffer as needed
func (b *Buffer) moveRow(row int) {
	if row < 0 {
		row = 0
	}
	for len(b.lines) <= row {
		b.lines = append(b.lines, []Cell{})
	}
	b.row = row
}

// columns is the width lines wrap at
func (b *Buffer) columns() int {
	if b.wrap > 0 {
		return b.wrap
	}
	return b.maxCols
}

// pageBottom is the last row a cursor move may reach
func (b *Buffer) pageBottom() int {
	return b.pageTop() + b.height - 1
}

// pageTop is the first line of the visible page
func (b *Buffer) pageTop() int {
	top := len(b.lines) - b.height
	if top < 0 {
		return 0
	}
	return top
}

func (b *Buffer) moveCursor(m rx.CursorMove) {
	switch m.Direction {
	case rx.MoveUp:
		row := b.row - m.Count
		if top := b.pageTop(); row < top {
			row = top
		}
		b.moveRow(row)
	case rx.MoveDown:
		b.moveRow(min(b.row+m.Count, max(b.pageBottom(), b.row)))
	case rx.MoveForward:
		b.col += m.Count
	case rx.MoveBack:
		b.col -= m.Count
		if b.col < 0 {
			b.col = 0
		}
	case rx.MoveColumn:
		b.col = m.Col
	case rx.MoveAbsolute:
		b.moveRow(min(b.pageTop()+m.Row, max(b.pageBottom(), b.row)))
		b.col = m.Col
	}

	b.col = min(max(b.col, 0), b.columns()-1)
}

func (b *Buffer) erase(origin Origin, seq uint64, e rx.Erase) {
	line := b.lines[b.row]

	switch e.Target {
	case rx.EraseLine:
		b.lines[b.row] = eraseCells(line, b.col, e.Mode, origin, seq)
	case rx.EraseDisplay:
		top := b.pageTop()
		switch e.Mode {
		case 0:
			b.lines[b.row] = eraseCells(line, b.col, 0, origin, seq)
			b.lines = b.lines[:b.row+1]
		case 1:
			for r := top; r < b.row; r++ {
				b.lines[r] = []Cell{}
			}
			b.lines[b.row] = eraseCells(line, b.col, 1, origin, seq)
		default:
			for r := top; r < len(b.lines); r++ {
				b.lines[r] = []Cell{}
			}
		}
	}
}

// eraseCells applies an EL mode to one line
func eraseCells(line []Cell, col, mode int, origin Origin, seq uint64) []Cell {
	switch mode {
	case 0:
		if col < len(line) {
			return line[:col]
		}
		return line
	case 1:
		for i := 0; i <= col && i < len(line); i++ {
			line[i] = blank(origin, seq)
		}
		return line
	default:
		return []Cell{}
	}
}

// trim drops the oldest lines beyond the limit
func (b *Buffer) trim() {
	excess := len(b.lines) - b.maxLines
	if excess <= 0 {
		return
	}

	b.lines = append([][]Cell(nil), b.lines[excess:]...)
	b.row -= excess
	if b.row < 0 {
		b.row = 0
	}
	b.trimmed += excess
}

// Lines returns a copy of the lines that pass the filter. With a TX or RX
// filter, cells of the other origin are dropped and lines left without
// cells are omitted.
func (b *Buffer) Lines(f Filter) []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.snapshot(f)
}

func (b *Buffer) snapshot(f Filter) []Line {
	out := make([]Line, 0, len(b.lines))
	for i, cells := range b.lines {
		if f == FilterAll {
			cp := make([]Cell, len(cells))
			copy(cp, cells)
			out = append(out, Line{Index: b.trimmed + i, Cells: cp})
			continue
		}

		var kept []Cell
		for _, c := range cells {
			if f.Match(c.Origin) {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			out = append(out, Line{Index: b.trimmed + i, Cells: kept})
		}
	}
	return out
}

// Search returns the filtered lines whose text contains query, ignoring case
func (b *Buffer) Search(query string, f Filter) []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lines := b.snapshot(f)
	if query == "" {
		return lines
	}

	needle := strings.ToLower(query)
	var matches []Line
	for _, l := range lines {
		if strings.Contains(strings.ToLower(l.Text()), needle) {
			matches = append(matches, l)
		}
	}
	return matches
}

// Cursor returns the cursor line index and column
func (b *Buffer) Cursor() (line, col int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.trimmed + b.row, b.col
}

// Len returns the number of lines held
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.lines)
}

// Trimmed returns how many lines were dropped from the top so far
func (b *Buffer) Trimmed() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.trimmed
}

// SetWrapWidth changes the wrap width for cells written from now on
func (b *Buffer) SetWrapWidth(width int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width < 0 {
		width = 0
	}
	b.wrap = width
}

// SetHeight changes the page height used by absolute cursor moves
func (b *Buffer) SetHeight(height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if height > 0 {
		b.height = height
	}
}

// Clear empties the buffer and resets the cursor and styles
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = [][]Cell{{}}
	b.row = 0
	b.col = 0
	b.trimmed = 0
	b.styles = map[Origin]Style{OriginRX: DefaultStyle(), OriginTX: DefaultStyle()}
}
