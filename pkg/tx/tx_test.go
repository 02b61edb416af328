package tx

import (
	"bytes"
	"testing"
)

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr bool
	}{
		{name: "defaults", modify: func(s *Settings) {}, wantErr: false},
		{name: "break enter", modify: func(s *Settings) { s.Enter = EnterBreak }, wantErr: false},
		{name: "bad enter", modify: func(s *Settings) { s.Enter = "lfcr" }, wantErr: true},
		{name: "bad backspace", modify: func(s *Settings) { s.Backspace = "vt_sequence" }, wantErr: true},
		{name: "bad delete", modify: func(s *Settings) { s.Delete = "" }, wantErr: true},
		{name: "latin1 charset", modify: func(s *Settings) { s.Charset = "latin1" }, wantErr: false},
		{name: "upper case charset", modify: func(s *Settings) { s.Charset = "CP437" }, wantErr: false},
		{name: "unknown charset", modify: func(s *Settings) { s.Charset = "ebcdic" }, wantErr: true},
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

func TestEncode_Enter(t *testing.T) {
	tests := []struct {
		mode      EnterMode
		want      []byte
		wantBreak bool
	}{
		{EnterLF, []byte{0x0A}, false},
		{EnterCR, []byte{0x0D}, false},
		{EnterCRLF, []byte{0x0D, 0x0A}, false},
		{EnterBreak, nil, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			s := DefaultSettings()
			s.Enter = tt.mode
			out := Encode(Event{Key: KeyEnter}, s)
			if !bytes.Equal(out.Bytes, tt.want) {
				t.Errorf("Encode(Enter) bytes = % X, want % X", out.Bytes, tt.want)
			}
			if out.Break != tt.wantBreak {
				t.Errorf("Encode(Enter) break = %v, want %v", out.Break, tt.wantBreak)
			}
		})
	}
}

func TestEncode_BackspaceAndDelete(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		bs   BackspaceMode
		del  DeleteMode
		want []byte
	}{
		{"backspace as BS", Event{Key: KeyBackspace}, BackspaceBS, DeleteVTSequence, []byte{0x08}},
		{"backspace as DEL", Event{Key: KeyBackspace}, BackspaceDEL, DeleteVTSequence, []byte{0x7F}},
		{"delete as BS", Event{Key: KeyDelete}, BackspaceBS, DeleteBS, []byte{0x08}},
		{"delete as DEL", Event{Key: KeyDelete}, BackspaceBS, DeleteDEL, []byte{0x7F}},
		{"delete as VT sequence", Event{Key: KeyDelete}, BackspaceBS, DeleteVTSequence, []byte{0x1B, 0x5B, 0x33, 0x7E}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.Backspace = tt.bs
			s.Delete = tt.del
			got := Encode(tt.ev, s).Bytes
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEncode_CtrlLetters(t *testing.T) {
	s := DefaultSettings()
	seen := make(map[byte]rune)

	for r := 'A'; r <= 'Z'; r++ {
		want := byte(r - 0x40)
		for _, ch := range []rune{r, r + ('a' - 'A')} {
			got := Encode(Ctrl(ch), s).Bytes
			if len(got) != 1 || got[0] != want {
				t.Errorf("Encode(Ctrl+%c) = % X, want %02X", ch, got, want)
			}
		}
		if prev, ok := seen[want]; ok {
			t.Errorf("Ctrl+%c and Ctrl+%c both map to %02X", prev, r, want)
		}
		seen[want] = r
	}

	if len(seen) != 26 {
		t.Errorf("Ctrl letters produced %d distinct bytes, want 26", len(seen))
	}
}

func TestEncode_CtrlDisabled(t *testing.T) {
	s := DefaultSettings()
	s.CtrlKeys = false

	got := Encode(Ctrl('c'), s).Bytes
	if !bytes.Equal(got, []byte{'c'}) {
		t.Errorf("Encode(Ctrl+c) with ctrl keys off = % X, want 63", got)
	}
}

func TestEncode_CtrlNonLetter(t *testing.T) {
	s := DefaultSettings()

	tests := []struct {
		r    rune
		want []byte
	}{
		{' ', []byte{0x00}},
		{'[', []byte{0x1B}},
		{']', []byte{0x1D}},
		{'1', []byte{'1'}},
	}

	for _, tt := range tests {
		got := Encode(Ctrl(tt.r), s).Bytes
		if !bytes.Equal(got, tt.want) {
			t.Errorf("Encode(Ctrl+%q) = % X, want % X", tt.r, got, tt.want)
		}
	}
}

func TestEncode_Alt(t *testing.T) {
	tests := []struct {
		name    string
		ev      Event
		altKeys bool
		want    []byte
	}{
		{"alt x", Alt('x'), true, []byte{0x1B, 'x'}},
		{"alt disabled", Alt('x'), false, []byte{'x'}},
		{"alt utf-8", Alt('é'), true, []byte{0x1B, 0xC3, 0xA9}},
		{"ctrl alt c", Event{Key: KeyRune, Rune: 'c', Ctrl: true, Alt: true}, true, []byte{0x1B, 0x03}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.AltKeys = tt.altKeys
			got := Encode(tt.ev, s).Bytes
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEncode_Charset(t *testing.T) {
	tests := []struct {
		charset string
		r       rune
		want    []byte
	}{
		{"", 'é', []byte{0xC3, 0xA9}},
		{"latin1", 'é', []byte{0xE9}},
		{"cp437", 'é', []byte{0x82}},
		{"latin1", '€', []byte{'?'}},
		{"windows-1252", '€', []byte{0x80}},
	}

	for _, tt := range tests {
		s := DefaultSettings()
		s.Charset = tt.charset
		got := Encode(Rune(tt.r), s).Bytes
		if !bytes.Equal(got, tt.want) {
			t.Errorf("Encode(%q) in %q = % X, want % X", tt.r, tt.charset, got, tt.want)
		}
	}
}

func TestEncode_UnknownEvent(t *testing.T) {
	out := Encode(Event{}, DefaultSettings())
	if !out.Empty() {
		t.Errorf("Encode(zero event) = %+v, want empty output", out)
	}

	out = Encode(Event{Key: Key(42)}, DefaultSettings())
	if !out.Empty() {
		t.Errorf("Encode(unknown key) = %+v, want empty output", out)
	}
}

func TestEncodeAll_HiEnterCtrlC(t *testing.T) {
	s := DefaultSettings()
	s.Enter = EnterCRLF
	s.CtrlKeys = true

	events := append(EventsFromText("Hi"), Event{Key: KeyEnter}, Ctrl('C'))
	outputs := EncodeAll(events, s)

	if len(outputs) != 1 {
		t.Fatalf("EncodeAll() returned %d outputs, want 1", len(outputs))
	}

	want := []byte{0x48, 0x69, 0x0D, 0x0A, 0x03}
	if !bytes.Equal(outputs[0].Bytes, want) {
		t.Errorf("EncodeAll() = % X, want % X", outputs[0].Bytes, want)
	}
}

func TestEncodeAll_KeepsBreakPosition(t *testing.T) {
	s := DefaultSettings()
	s.Enter = EnterBreak

	outputs := EncodeAll(EventsFromText("a\nb"), s)
	if len(outputs) != 3 {
		t.Fatalf("EncodeAll() returned %d outputs, want 3", len(outputs))
	}

	if !bytes.Equal(outputs[0].Bytes, []byte{'a'}) || !outputs[1].Break || !bytes.Equal(outputs[2].Bytes, []byte{'b'}) {
		t.Errorf("EncodeAll() = %+v, want [a] [break] [b]", outputs)
	}
}

func TestEventsFromText(t *testing.T) {
	tests := []struct {
		text       string
		wantEnters int
		wantLen    int
	}{
		{"abc", 0, 3},
		{"a\nb", 1, 3},
		{"a\r\nb", 1, 3},
		{"a\rb", 1, 3},
		{"\n\n", 2, 2},
		{"\r\n\r\n", 2, 2},
	}

	for _, tt := range tests {
		events := EventsFromText(tt.text)
		enters := 0
		for _, ev := range events {
			if ev.Key == KeyEnter {
				enters++
			}
		}
		if len(events) != tt.wantLen || enters != tt.wantEnters {
			t.Errorf("EventsFromText(%q) = %d events, %d enters, want %d, %d",
				tt.text, len(events), enters, tt.wantLen, tt.wantEnters)
		}
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		input   string
		want    []byte
		wantErr bool
	}{
		{"48 69", []byte{0x48, 0x69}, false},
		{"0d0A", []byte{0x0D, 0x0A}, false},
		{"  ff\t00\n", []byte{0xFF, 0x00}, false},
		{"123", nil, true},
		{"zz", nil, true},
		{"", nil, true},
	}

	for _, tt := range tests {
		got, err := ParseHex(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHex(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("ParseHex(%q) = % X, want % X", tt.input, got, tt.want)
		}
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex([]byte{0x48, 0x69, 0x0A}); got != "48 69 0A" {
		t.Errorf("FormatHex() = %q, want %q", got, "48 69 0A")
	}
	if got := FormatHex(nil); got != "" {
		t.Errorf("FormatHex(nil) = %q, want empty", got)
	}
}
