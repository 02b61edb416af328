package display

import (
	"bytes"
	"sync"
	"testing"

	"uart-terminal/pkg/rx"
)

func feed(b *Buffer, origin Origin, seq uint64, d *rx.Decoder, data string) {
	b.Apply(origin, seq, d.Feed([]byte(data)))
}

func lineTexts(lines []Line) []string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text()
	}
	return texts
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuffer_AppendLines(t *testing.T) {
	b := NewBuffer(Options{})
	d := rx.NewDecoder(rx.DefaultSettings())

	feed(b, OriginRX, 1, d, "Hi\nok")

	got := lineTexts(b.Lines(FilterAll))
	want := []string{"Hi", "ok"}
	if !equalStrings(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}

	line, col := b.Cursor()
	if line != 1 || col != 2 {
		t.Errorf("Cursor() = (%d, %d), want (1, 2)", line, col)
	}
}

func TestBuffer_CarriageReturnOverwrites(t *testing.T) {
	s := rx.DefaultSettings()
	s.CarriageReturn = rx.CarriageReturnStartOfLine
	b := NewBuffer(Options{})
	d := rx.NewDecoder(s)

	feed(b, OriginRX, 1, d, "abc\rX")

	if got := b.Lines(FilterAll)[0].Text(); got != "Xbc" {
		t.Errorf("line = %q, want %q", got, "Xbc")
	}
}

func TestBuffer_CursorForwardPads(t *testing.T) {
	b := NewBuffer(Options{})
	d := rx.NewDecoder(rx.DefaultSettings())

	feed(b, OriginRX, 1, d, "a\x1b[2Cb")

	if got := b.Lines(FilterAll)[0].Text(); got != "a  b" {
		t.Errorf("line = %q, want %q", got, "a  b")
	}
}

func TestBuffer_EraseLine(t *testing.T) {
	b := NewBuffer(Options{})
	d := rx.NewDecoder(rx.DefaultSettings())

	feed(b, OriginRX, 1, d, "hello\x1b[3D\x1b[K!")

	if got := b.Lines(FilterAll)[0].Text(); got != "he!" {
		t.Errorf("line = %q, want %q", got, "he!")
	}
}

func TestBuffer_EraseDisplay(t *testing.T) {
	b := NewBuffer(Options{})
	d := rx.NewDecoder(rx.DefaultSettings())

	feed(b, OriginRX, 1, d, "one\ntwo\x1b[2J")

	for _, l := range b.Lines(FilterAll) {
		if l.Text() != "" {
			t.Errorf("line %d = %q after erase, want empty", l.Index, l.Text())
		}
	}
}

func TestBuffer_OriginFilter(t *testing.T) {
	b := NewBuffer(Options{})
	rxDec := rx.NewDecoder(rx.DefaultSettings())
	echo := rx.NewDecoder(rx.EchoSettings())

	feed(b, OriginRX, 1, rxDec, "> ")
	feed(b, OriginTX, 2, echo, "ls\n")
	feed(b, OriginRX, 3, rxDec, "file\n")

	tests := []struct {
		filter Filter
		want   []string
	}{
		{FilterAll, []string{"> ls", "file", ""}},
		{FilterTX, []string{"ls"}},
		{FilterRX, []string{"> ", "file"}},
	}

	for _, tt := range tests {
		got := lineTexts(b.Lines(tt.filter))
		if !equalStrings(got, tt.want) {
			t.Errorf("Lines(%s) = %q, want %q", tt.filter, got, tt.want)
		}
	}

	for _, c := range b.Lines(FilterTX)[0].Cells {
		if c.Origin != OriginTX || c.Seq != 2 {
			t.Errorf("TX cell = %+v, want origin TX seq 2", c)
		}
	}
}

func TestBuffer_MaxLines(t *testing.T) {
	b := NewBuffer(Options{MaxLines: 3})
	d := rx.NewDecoder(rx.DefaultSettings())

	feed(b, OriginRX, 1, d, "1\n2\n3\n4\n5")

	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}

	lines := b.Lines(FilterAll)
	got := lineTexts(lines)
	if !equalStrings(got, []string{"3", "4", "5"}) {
		t.Errorf("Lines() = %q, want [3 4 5]", got)
	}
	if lines[0].Index != 2 {
		t.Errorf("first Index = %d, want 2", lines[0].Index)
	}
	if b.Trimmed() != 2 {
		t.Errorf("Trimmed() = %d, want 2", b.Trimmed())
	}

	line, col := b.Cursor()
	if line != 4 || col != 1 {
		t.Errorf("Cursor() = (%d, %d), want (4, 1)", line, col)
	}
}

func TestBuffer_Wrap(t *testing.T) {
	b := NewBuffer(Options{WrapWidth: 4})
	d := rx.NewDecoder(rx.DefaultSettings())

	feed(b, OriginRX, 1, d, "abcdefghij")

	got := lineTexts(b.Lines(FilterAll))
	if !equalStrings(got, []string{"abcd", "efgh", "ij"}) {
		t.Errorf("Lines() = %q, want [abcd efgh ij]", got)
	}
}

func TestBuffer_CursorBounds(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		input    string
		maxCells int
		maxLines int
	}{
		{"forward without wrap", Options{}, "\x1b[65535Cx\n", DefaultMaxColumns, 21},
		{"column without wrap", Options{MaxColumns: 80}, "\x1b[60000Gx\n", 80, 21},
		{"position with wrap", Options{WrapWidth: 40}, "\x1b[1;60000Hx\n", 40, 40},
		{"down", Options{Height: 10}, "\x1b[65535Bx", 20, 10},
		{"absolute row", Options{Height: 10}, "\x1b[65535;1Hx", 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer(tt.opts)
			d := rx.NewDecoder(rx.DefaultSettings())

			for i := 0; i < 20; i++ {
				feed(b, OriginRX, uint64(i), d, tt.input)
			}

			lines := b.Lines(FilterAll)
			if len(lines) > tt.maxLines {
				t.Errorf("Len() = %d, want <= %d", len(lines), tt.maxLines)
			}
			for _, l := range lines {
				if len(l.Cells) > tt.maxCells {
					t.Errorf("line %d holds %d cells, want <= %d", l.Index, len(l.Cells), tt.maxCells)
				}
			}
		})
	}
}

func TestBuffer_CursorDownWithinPage(t *testing.T) {
	b := NewBuffer(Options{Height: 5})
	d := rx.NewDecoder(rx.DefaultSettings())

	feed(b, OriginRX, 1, d, "a\x1b[2Bb")

	got := lineTexts(b.Lines(FilterAll))
	if !equalStrings(got, []string{"a", "", " b"}) {
		t.Errorf("Lines() = %q, want [a  \" b\"]", got)
	}
}

func TestBuffer_Search(t *testing.T) {
	b := NewBuffer(Options{})
	d := rx.NewDecoder(rx.DefaultSettings())

	feed(b, OriginRX, 1, d, "Boot OK\nerror: disk\nERROR: net\nready")

	matches := b.Search("error", FilterAll)
	got := lineTexts(matches)
	if !equalStrings(got, []string{"error: disk", "ERROR: net"}) {
		t.Errorf("Search() = %q", got)
	}

	if n := len(b.Search("", FilterAll)); n != 4 {
		t.Errorf("Search(\"\") returned %d lines, want 4", n)
	}

	if n := len(b.Search("error", FilterTX)); n != 0 {
		t.Errorf("Search() with TX filter returned %d lines, want 0", n)
	}
}

func TestBuffer_StylePerOrigin(t *testing.T) {
	b := NewBuffer(Options{})
	d := rx.NewDecoder(rx.DefaultSettings())
	echo := rx.NewDecoder(rx.EchoSettings())

	feed(b, OriginRX, 1, d, "\x1b[1;31mR")
	feed(b, OriginTX, 2, echo, "T")
	feed(b, OriginRX, 3, d, "\x1b[0mN")

	cells := b.Lines(FilterAll)[0].Cells
	if len(cells) != 3 {
		t.Fatalf("got %d cells, want 3", len(cells))
	}

	if cells[0].Style.Foreground != rx.ColorRed || !cells[0].Style.Bold {
		t.Errorf("RX styled cell = %+v, want bold red", cells[0].Style)
	}
	if cells[1].Style != DefaultStyle() {
		t.Errorf("TX cell style = %+v, want default", cells[1].Style)
	}
	if cells[2].Style != DefaultStyle() {
		t.Errorf("cell after reset = %+v, want default", cells[2].Style)
	}
}

func TestBuffer_ControlGlyphWidth(t *testing.T) {
	b := NewBuffer(Options{})
	d := rx.NewDecoder(rx.DefaultSettings())

	feed(b, OriginRX, 1, d, "a\x07")

	line := b.Lines(FilterAll)[0]
	if line.Width() != 4 {
		t.Errorf("Width() = %d, want 4", line.Width())
	}
	if line.Cells[1].Class != rx.ClassControl {
		t.Errorf("cell class = %s, want control", line.Cells[1].Class)
	}
}

func TestBuffer_Clear(t *testing.T) {
	b := NewBuffer(Options{})
	d := rx.NewDecoder(rx.DefaultSettings())

	feed(b, OriginRX, 1, d, "x\ny")
	b.Clear()

	if b.Len() != 1 {
		t.Errorf("Len() after Clear = %d, want 1", b.Len())
	}
	if line, col := b.Cursor(); line != 0 || col != 0 {
		t.Errorf("Cursor() after Clear = (%d, %d), want (0, 0)", line, col)
	}
}

func TestBuffer_ConcurrentReaders(t *testing.T) {
	b := NewBuffer(Options{MaxLines: 50})
	d := rx.NewDecoder(rx.DefaultSettings())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			feed(b, OriginRX, uint64(i), d, "line\n")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = b.Lines(FilterAll)
			_ = b.Search("line", FilterRX)
		}
	}()
	wg.Wait()

	if b.Len() > 50 {
		t.Errorf("Len() = %d, want <= 50", b.Len())
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    Filter
		wantErr bool
	}{
		{"", FilterAll, false},
		{"all", FilterAll, false},
		{"TX", FilterTX, false},
		{"rx", FilterRX, false},
		{"both", FilterAll, true},
	}

	for _, tt := range tests {
		got, err := ParseFilter(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFilter(%q) = %v, %v, want %v, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}

	if FilterRX.Next() != FilterAll || FilterAll.Next() != FilterTX {
		t.Error("Filter.Next() does not cycle all -> tx -> rx -> all")
	}
}

func TestStreamWriter(t *testing.T) {
	var out bytes.Buffer
	w := NewStreamWriter(&out, FilterAll, rx.ColorDefault)
	d := rx.NewDecoder(rx.DefaultSettings())

	if err := w.Write(OriginRX, d.Feed([]byte("Hi\n\x07"))); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := "Hi\r\n\x1b[7mBEL\x1b[27m"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestStreamWriter_FilterAndTint(t *testing.T) {
	var out bytes.Buffer
	w := NewStreamWriter(&out, FilterTX, rx.ColorYellow)
	echo := rx.NewDecoder(rx.EchoSettings())

	if err := w.Write(OriginRX, echo.Feed([]byte("skip"))); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("RX output written with TX filter: %q", out.String())
	}

	if err := w.Write(OriginTX, echo.Feed([]byte("ls"))); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	want := "\x1b[33mls\x1b[39m"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
