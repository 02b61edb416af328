package rx

import (
	"reflect"
	"testing"
)

func lit(s string) Instruction  { return glyph(s, ClassLiteral) }
func ctl(s string) Instruction  { return glyph(s, ClassControl) }
func hexg(s string) Instruction { return glyph(s, ClassHex) }

var startAndDown = Instruction{Op: OpStartAndDown}

func assertInstructions(t *testing.T, name string, got, want []Instruction) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d instructions %v, want %d %v", name, len(got), got, len(want), want)
	}
	for i := range got {
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Errorf("%s: instruction %d = %v, want %v", name, i, got[i], want[i])
		}
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr bool
	}{
		{name: "defaults", modify: func(s *Settings) {}, wantErr: false},
		{name: "echo settings", modify: func(s *Settings) { *s = EchoSettings() }, wantErr: false},
		{name: "number data", modify: func(s *Settings) { s.DataType = DataNumber }, wantErr: false},
		{name: "bad data type", modify: func(s *Settings) { s.DataType = "binary" }, wantErr: true},
		{name: "zero escape length", modify: func(s *Settings) { s.MaxEscapeCodeLength = 0 }, wantErr: true},
		{name: "escape length 100", modify: func(s *Settings) { s.MaxEscapeCodeLength = 100 }, wantErr: false},
		{name: "escape length 101", modify: func(s *Settings) { s.MaxEscapeCodeLength = 101 }, wantErr: true},
		{name: "bad new line", modify: func(s *Settings) { s.NewLine = "lf" }, wantErr: true},
		{name: "bad carriage return", modify: func(s *Settings) { s.CarriageReturn = "crlf" }, wantErr: true},
		{name: "bad non-visible", modify: func(s *Settings) { s.NonVisible = "dots" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Settings.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewDecoder_ClampsEscapeLength(t *testing.T) {
	s := DefaultSettings()
	s.MaxEscapeCodeLength = 0
	if got := NewDecoder(s).Settings().MaxEscapeCodeLength; got != 1 {
		t.Errorf("MaxEscapeCodeLength = %d, want 1", got)
	}
}

func TestFeed_NewLine(t *testing.T) {
	tests := []struct {
		name    string
		mode    NewLineMode
		swallow bool
		want    []Instruction
	}{
		{"crlf swallowed", NewLineCRLF, true, []Instruction{startAndDown}},
		{"crlf shown", NewLineCRLF, false, []Instruction{ctl("LF"), startAndDown}},
		{"newline swallowed", NewLineNewline, true, []Instruction{{Op: OpDown}}},
		{"none swallowed", NewLineNone, true, []Instruction{}},
		{"none shown", NewLineNone, false, []Instruction{ctl("LF")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.NewLine = tt.mode
			s.SwallowNewLine = tt.swallow
			assertInstructions(t, tt.name, NewDecoder(s).Feed([]byte{0x0A}), tt.want)
		})
	}
}

func TestFeed_CarriageReturn(t *testing.T) {
	tests := []struct {
		name    string
		mode    CarriageReturnMode
		swallow bool
		nv      NonVisibleMode
		want    []Instruction
	}{
		{"none swallowed", CarriageReturnNone, true, NonVisibleControlGlyphs, []Instruction{}},
		{"start of line", CarriageReturnStartOfLine, true, NonVisibleControlGlyphs, []Instruction{{Op: OpStartOfLine}}},
		{"start and down", CarriageReturnStartAndDown, true, NonVisibleControlGlyphs, []Instruction{startAndDown}},
		{"shown as hex", CarriageReturnStartOfLine, false, NonVisibleHexGlyphs, []Instruction{hexg("0D"), {Op: OpStartOfLine}}},
		{"not swallowed but policy swallows", CarriageReturnNone, false, NonVisibleSwallow, []Instruction{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.CarriageReturn = tt.mode
			s.SwallowCarriageReturn = tt.swallow
			s.NonVisible = tt.nv
			assertInstructions(t, tt.name, NewDecoder(s).Feed([]byte{0x0D}), tt.want)
		})
	}
}

func TestFeed_NonVisible(t *testing.T) {
	tests := []struct {
		name string
		mode NonVisibleMode
		in   byte
		want []Instruction
	}{
		{"bell as control", NonVisibleControlGlyphs, 0x07, []Instruction{ctl("BEL")}},
		{"bell as hex", NonVisibleHexGlyphs, 0x07, []Instruction{hexg("07")}},
		{"bell swallowed", NonVisibleSwallow, 0x07, []Instruction{}},
		{"del as control", NonVisibleControlGlyphs, 0x7F, []Instruction{ctl("DEL")}},
		{"high byte as control policy", NonVisibleControlGlyphs, 0x80, []Instruction{hexg("80")}},
		{"high byte as hex", NonVisibleHexGlyphs, 0xFF, []Instruction{hexg("FF")}},
		{"nul as control", NonVisibleControlGlyphs, 0x00, []Instruction{ctl("NUL")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.NonVisible = tt.mode
			assertInstructions(t, tt.name, NewDecoder(s).Feed([]byte{tt.in}), tt.want)
		})
	}
}

func TestFeed_VisibleASCII(t *testing.T) {
	got := NewDecoder(DefaultSettings()).Feed([]byte("Hi ~"))
	assertInstructions(t, "Hi ~", got, []Instruction{lit("H"), lit("i"), lit(" "), lit("~")})
}

func TestFeed_NumberMode(t *testing.T) {
	s := DefaultSettings()
	s.DataType = DataNumber

	got := NewDecoder(s).Feed([]byte{'A', 0x0A, 0x1B, '['})
	want := []Instruction{
		glyph("41", ClassNumber),
		glyph("0A", ClassNumber),
		glyph("1B", ClassNumber),
		glyph("5B", ClassNumber),
	}
	assertInstructions(t, "number mode", got, want)
}

func TestFeed_DeleteSequenceByteByByte(t *testing.T) {
	d := NewDecoder(DefaultSettings())

	for i, b := range []byte{0x1B, '[', '3', '~'} {
		if got := d.Feed([]byte{b}); len(got) != 0 {
			t.Errorf("byte %d produced %v, want nothing", i, got)
		}
	}

	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after complete sequence, want 0", d.Pending())
	}

	assertInstructions(t, "after sequence", d.Feed([]byte("a")), []Instruction{lit("a")})
}

func TestFeed_EscapeOverflow(t *testing.T) {
	s := DefaultSettings()
	s.MaxEscapeCodeLength = 4
	d := NewDecoder(s)

	got := d.Feed([]byte{0x1B, '[', '1', '2', '3'})
	want := []Instruction{ctl("ESC"), lit("["), lit("1"), lit("2"), lit("3")}
	assertInstructions(t, "overflow", got, want)

	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after overflow, want 0", d.Pending())
	}

	assertInstructions(t, "after overflow", d.Feed([]byte("4")), []Instruction{lit("4")})
}

func TestFeed_EscapeOverflowHexPolicy(t *testing.T) {
	s := DefaultSettings()
	s.MaxEscapeCodeLength = 2
	s.NonVisible = NonVisibleHexGlyphs

	got := NewDecoder(s).Feed([]byte{0x1B, '[', '9'})
	assertInstructions(t, "overflow hex", got, []Instruction{hexg("1B"), lit("["), lit("9")})
}

func TestFeed_CompleteAtLimitIsNotOverflow(t *testing.T) {
	s := DefaultSettings()
	s.MaxEscapeCodeLength = 1

	got := NewDecoder(s).Feed([]byte{0x1B, 'c'})
	assertInstructions(t, "ESC c", got, []Instruction{{Op: OpReset}})
}

func TestFeed_MalformedEscape(t *testing.T) {
	got := NewDecoder(DefaultSettings()).Feed([]byte{0x1B, '[', '1', 0x0A, 'x'})
	want := []Instruction{ctl("ESC"), lit("["), lit("1"), startAndDown, lit("x")}
	assertInstructions(t, "malformed", got, want)
}

func TestFeed_DoubleEscape(t *testing.T) {
	got := NewDecoder(DefaultSettings()).Feed([]byte{0x1B, 0x1B, '[', 'A'})
	want := []Instruction{ctl("ESC"), {Op: OpCursor, Cursor: CursorMove{Direction: MoveUp, Count: 1}}}
	assertInstructions(t, "double escape", got, want)
}

func TestFeed_AnsiDisabled(t *testing.T) {
	s := DefaultSettings()
	s.AnsiEscapeCodes = false

	got := NewDecoder(s).Feed([]byte("\x1b[2J"))
	want := []Instruction{ctl("ESC"), lit("["), lit("2"), lit("J")}
	assertInstructions(t, "ansi off", got, want)
}

func TestFeed_CSI(t *testing.T) {
	red := ColorRed
	brightBlue := ColorBrightBlue
	def := ColorDefault
	on := true

	tests := []struct {
		name string
		in   string
		want []Instruction
	}{
		{"cursor up", "\x1b[3A", []Instruction{{Op: OpCursor, Cursor: CursorMove{Direction: MoveUp, Count: 3}}}},
		{"cursor down default", "\x1b[B", []Instruction{{Op: OpCursor, Cursor: CursorMove{Direction: MoveDown, Count: 1}}}},
		{"cursor forward zero", "\x1b[0C", []Instruction{{Op: OpCursor, Cursor: CursorMove{Direction: MoveForward, Count: 1}}}},
		{"cursor back", "\x1b[2D", []Instruction{{Op: OpCursor, Cursor: CursorMove{Direction: MoveBack, Count: 2}}}},
		{"next line", "\x1b[2E", []Instruction{
			{Op: OpCursor, Cursor: CursorMove{Direction: MoveDown, Count: 2}},
			{Op: OpStartOfLine},
		}},
		{"column", "\x1b[5G", []Instruction{{Op: OpCursor, Cursor: CursorMove{Direction: MoveColumn, Col: 4}}}},
		{"position", "\x1b[2;5H", []Instruction{{Op: OpCursor, Cursor: CursorMove{Direction: MoveAbsolute, Row: 1, Col: 4}}}},
		{"home", "\x1b[H", []Instruction{{Op: OpCursor, Cursor: CursorMove{Direction: MoveAbsolute}}}},
		{"erase display", "\x1b[2J", []Instruction{{Op: OpErase, Erase: Erase{Target: EraseDisplay, Mode: 2}}}},
		{"erase line", "\x1b[K", []Instruction{{Op: OpErase, Erase: Erase{Target: EraseLine}}}},
		{"sgr reset", "\x1b[m", []Instruction{{Op: OpStyle, Style: StyleChange{Reset: true}}}},
		{"sgr bold red", "\x1b[1;31m", []Instruction{
			{Op: OpStyle, Style: StyleChange{Bold: &on}},
			{Op: OpStyle, Style: StyleChange{Foreground: &red}},
		}},
		{"sgr bright bg", "\x1b[104m", []Instruction{{Op: OpStyle, Style: StyleChange{Background: &brightBlue}}}},
		{"sgr default fg", "\x1b[39m", []Instruction{{Op: OpStyle, Style: StyleChange{Foreground: &def}}}},
		{"sgr 256 palette", "\x1b[38;5;1m", []Instruction{{Op: OpStyle, Style: StyleChange{Foreground: &red}}}},
		{"sgr truecolor reduced", "\x1b[48;2;200;0;0m", []Instruction{{Op: OpStyle, Style: StyleChange{Background: &red}}}},
		{"sgr truecolor out of range", "\x1b[38;2;300;0;0m", []Instruction{}},
		{"private mode consumed", "\x1b[?25l", []Instruction{}},
		{"unknown final consumed", "\x1b[5n", []Instruction{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.MaxEscapeCodeLength = 20
			assertInstructions(t, tt.name, NewDecoder(s).Feed([]byte(tt.in)), tt.want)
		})
	}
}

func TestExtendedColor(t *testing.T) {
	tests := []struct {
		name     string
		args     []int
		want     Color
		wantNil  bool
		wantUsed int
	}{
		{"basic index", []int{5, 9}, ColorBrightRed, false, 2},
		{"cube red", []int{5, 196}, ColorBrightRed, false, 2},
		{"cube blue", []int{5, 21}, ColorBlue, false, 2},
		{"cube white", []int{5, 231}, ColorBrightWhite, false, 2},
		{"dark gray ramp", []int{5, 232}, ColorBlack, false, 2},
		{"mid gray ramp", []int{5, 244}, ColorBrightBlack, false, 2},
		{"light gray ramp", []int{5, 254}, ColorWhite, false, 2},
		{"index out of range", []int{5, 256}, 0, true, 2},
		{"index missing", []int{5}, 0, true, 1},
		{"truecolor white", []int{2, 255, 255, 255}, ColorBrightWhite, false, 4},
		{"truecolor green", []int{2, 0, 200, 0}, ColorGreen, false, 4},
		{"truecolor near black", []int{2, 1, 2, 3}, ColorBlack, false, 4},
		{"truecolor out of range", []int{2, 0, 256, 0}, 0, true, 4},
		{"truecolor short", []int{2, 1, 2}, 0, true, 3},
		{"unknown kind", []int{7}, 0, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, used := extendedColor(tt.args)
			if used != tt.wantUsed {
				t.Errorf("extendedColor(%v) used = %d, want %d", tt.args, used, tt.wantUsed)
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("extendedColor(%v) = %v, want nil", tt.args, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("extendedColor(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestFeed_OtherSequences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Instruction
	}{
		{"next line", "\x1bE", []Instruction{startAndDown}},
		{"index", "\x1bD", []Instruction{{Op: OpDown}}},
		{"reverse index", "\x1bM", []Instruction{{Op: OpCursor, Cursor: CursorMove{Direction: MoveUp, Count: 1}}}},
		{"charset select", "\x1b(Bx", []Instruction{lit("x")}},
		{"keypad mode", "\x1b=", []Instruction{}},
		{"title bel", "\x1b]0;tty\x07", []Instruction{}},
		{"title st", "\x1b]0;tty\x1b\\ok", []Instruction{lit("o"), lit("k")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.MaxEscapeCodeLength = 20
			assertInstructions(t, tt.name, NewDecoder(s).Feed([]byte(tt.in)), tt.want)
		})
	}
}

func TestFeed_SplitInvariance(t *testing.T) {
	inputs := [][]byte{
		[]byte("hello\r\nworld\n"),
		[]byte("\x1b[1;31mred\x1b[0m plain"),
		[]byte("\x1b[3~\x1b[12345678901234567890"),
		[]byte{0x1B, 0x1B, '[', 'A', 0x07, 0x80, 0xFF, 0x0D, 0x0A},
		[]byte("\x1b]0;title\x07after\x1b(B\x1bc"),
		[]byte{0x1B, '[', '1', 0x0A, 0x1B},
	}

	settings := []Settings{DefaultSettings()}
	hex := DefaultSettings()
	hex.NonVisible = NonVisibleHexGlyphs
	hex.SwallowNewLine = false
	hex.MaxEscapeCodeLength = 3
	number := DefaultSettings()
	number.DataType = DataNumber
	settings = append(settings, hex, number, EchoSettings())

	for si, s := range settings {
		for ii, in := range inputs {
			whole := NewDecoder(s).Feed(in)

			for split := 0; split <= len(in); split++ {
				d := NewDecoder(s)
				got := append(d.Feed(in[:split]), d.Feed(in[split:])...)
				if !reflect.DeepEqual(got, whole) {
					t.Errorf("settings %d input %d split %d: got %v, want %v", si, ii, split, got, whole)
				}
			}

			d := NewDecoder(s)
			var byByte []Instruction
			for _, b := range in {
				byByte = append(byByte, d.Feed([]byte{b})...)
			}
			if len(byByte) != len(whole) || (len(whole) > 0 && !reflect.DeepEqual(byByte, whole)) {
				t.Errorf("settings %d input %d byte by byte: got %v, want %v", si, ii, byByte, whole)
			}
		}
	}
}

func TestFeed_OverflowEmitsEachByteOnce(t *testing.T) {
	for limit := 1; limit <= 8; limit++ {
		s := DefaultSettings()
		s.MaxEscapeCodeLength = limit
		s.NonVisible = NonVisibleHexGlyphs

		in := []byte("\x1b[11111111111111111111")
		got := NewDecoder(s).Feed(in)

		count := 0
		for _, instr := range got {
			if instr.Op == OpGlyph {
				count++
			}
		}

		if count != len(in) {
			t.Errorf("limit %d: rendered %d glyphs, want %d", limit, count, len(in))
		}
	}
}

func TestControlName(t *testing.T) {
	tests := []struct {
		in   byte
		want string
		ok   bool
	}{
		{0x00, "NUL", true},
		{0x1B, "ESC", true},
		{0x1F, "US", true},
		{0x7F, "DEL", true},
		{'A', "", false},
		{0x80, "", false},
	}

	for _, tt := range tests {
		got, ok := ControlName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ControlName(%02X) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
