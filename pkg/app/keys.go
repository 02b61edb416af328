package app

import (
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"uart-terminal/pkg/tx"
)

// keyToEvent converts a tcell key event into a transmit event. It reports
// false for keys that have no wire representation.
func keyToEvent(ev *tcell.EventKey) (tx.Event, bool) {
	mods := ev.Modifiers()
	alt := mods&tcell.ModAlt != 0

	switch ev.Key() {
	case tcell.KeyRune:
		return tx.Event{
			Key:  tx.KeyRune,
			Rune: ev.Rune(),
			Ctrl: mods&tcell.ModCtrl != 0,
			Alt:  alt,
		}, true
	case tcell.KeyEnter:
		if mods&tcell.ModCtrl == 0 {
			return tx.Event{Key: tx.KeyEnter}, true
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if mods&tcell.ModCtrl == 0 {
			return tx.Event{Key: tx.KeyBackspace}, true
		}
	case tcell.KeyDelete:
		return tx.Event{Key: tx.KeyDelete}, true
	case tcell.KeyTab:
		if mods&tcell.ModCtrl == 0 {
			return tx.Event{Key: tx.KeyRune, Rune: '\t', Alt: alt}, true
		}
	case tcell.KeyEscape:
		return tx.Event{Key: tx.KeyRune, Rune: 0x1B, Alt: alt}, true
	}

	// The remaining C0 keys are Ctrl chords.
	k := ev.Key()
	switch {
	case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ:
		return tx.Event{Key: tx.KeyRune, Rune: rune('a' + k - tcell.KeyCtrlA), Ctrl: true, Alt: alt}, true
	case k == tcell.KeyCtrlSpace:
		return tx.Event{Key: tx.KeyRune, Rune: ' ', Ctrl: true, Alt: alt}, true
	case k == tcell.KeyCtrlBackslash:
		return tx.Event{Key: tx.KeyRune, Rune: '\\', Ctrl: true, Alt: alt}, true
	case k == tcell.KeyCtrlRightSq:
		return tx.Event{Key: tx.KeyRune, Rune: ']', Ctrl: true, Alt: alt}, true
	case k == tcell.KeyCtrlCarat:
		return tx.Event{Key: tx.KeyRune, Rune: '^', Ctrl: true, Alt: alt}, true
	case k == tcell.KeyCtrlUnderscore:
		return tx.Event{Key: tx.KeyRune, Rune: '_', Ctrl: true, Alt: alt}, true
	}

	return tx.Event{}, false
}

// quitByte ends a headless session (Ctrl+])
const quitByte = 0x1D

// keyDecoder turns raw bytes from a terminal in raw mode into transmit
// events. It holds back incomplete UTF-8 sequences between reads.
type keyDecoder struct {
	pending []byte
}

// Feed decodes a chunk of input. quit is true when the quit key was seen;
// input after it is dropped.
func (d *keyDecoder) Feed(chunk []byte) (events []tx.Event, quit bool) {
	data := append(d.pending, chunk...)
	d.pending = nil

	for len(data) > 0 {
		b := data[0]

		switch {
		case b == quitByte:
			return events, true
		case b == '\r' || b == '\n':
			events = append(events, tx.Event{Key: tx.KeyEnter})
			if b == '\r' && len(data) > 1 && data[1] == '\n' {
				data = data[1:]
			}
		case b == 0x7F || b == 0x08:
			events = append(events, tx.Event{Key: tx.KeyBackspace})
		case b == '\t':
			events = append(events, tx.Rune('\t'))
		case b == 0x1B:
			ev, n := escapeEvent(data)
			events = append(events, ev)
			data = data[n:]
			continue
		case b >= 0x01 && b <= 0x1A:
			events = append(events, tx.Ctrl(rune('a'+b-1)))
		case b < 0x20:
			events = append(events, tx.Rune(rune(b)))
		case b < utf8.RuneSelf:
			events = append(events, tx.Rune(rune(b)))
		default:
			if !utf8.FullRune(data) {
				d.pending = append(d.pending, data...)
				return events, false
			}
			r, n := utf8.DecodeRune(data)
			events = append(events, tx.Rune(r))
			data = data[n:]
			continue
		}

		data = data[1:]
	}

	return events, false
}

// escapeEvent decodes input starting with ESC and returns the event and the
// number of bytes it used. The Delete key sequence becomes KeyDelete, ESC
// before a plain character becomes an Alt chord, and anything else passes
// ESC through on its own.
func escapeEvent(data []byte) (tx.Event, int) {
	if len(data) >= 4 && data[1] == '[' && data[2] == '3' && data[3] == '~' {
		return tx.Event{Key: tx.KeyDelete}, 4
	}

	if len(data) >= 2 && data[1] != '[' && data[1] != 'O' && data[1] >= 0x20 && data[1] < 0x7F {
		return tx.Alt(rune(data[1])), 2
	}

	return tx.Rune(0x1B), 1
}
