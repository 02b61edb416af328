package rx

import (
	"fmt"
	"strings"
)

// escapeStatus is the result of examining a buffered escape sequence
type escapeStatus int

const (
	escapeIncomplete escapeStatus = iota
	escapeComplete
	escapeInvalid
)

// parseEscape examines a buffer that starts with ESC. Only the last byte is
// new; everything before it was accepted by an earlier call.
func parseEscape(buf []byte) (escapeStatus, []Instruction) {
	if len(buf) < 2 {
		return escapeIncomplete, nil
	}

	lead := buf[1]
	switch {
	case lead == '[':
		return parseCSI(buf[2:])
	case lead == ']':
		return parseOSC(buf[2:])
	case lead >= 0x20 && lead <= 0x2F:
		return parseIntermediate(buf[2:])
	case lead >= 0x30 && lead <= 0x7E:
		return escapeComplete, executeEscape(lead)
	}

	return escapeInvalid, nil
}

// parseCSI walks parameter bytes, then intermediate bytes, then a final byte
func parseCSI(body []byte) (escapeStatus, []Instruction) {
	inIntermediate := false

	for i, c := range body {
		switch {
		case c >= 0x30 && c <= 0x3F:
			if inIntermediate {
				return escapeInvalid, nil
			}
		case c >= 0x20 && c <= 0x2F:
			inIntermediate = true
		case c >= 0x40 && c <= 0x7E:
			if i != len(body)-1 {
				return escapeInvalid, nil
			}
			return escapeComplete, executeCSI(body[:i], c)
		default:
			return escapeInvalid, nil
		}
	}

	return escapeIncomplete, nil
}

// parseOSC accepts printable text terminated by BEL or ESC \
func parseOSC(body []byte) (escapeStatus, []Instruction) {
	for i, c := range body {
		last := i == len(body)-1
		switch {
		case c == 0x07:
			return escapeComplete, nil
		case c == 0x1B:
			if !last && body[i+1] != '\\' {
				return escapeInvalid, nil
			}
		case c == '\\' && i > 0 && body[i-1] == 0x1B:
			return escapeComplete, nil
		case c >= 0x20 && c <= 0x7E:
		default:
			return escapeInvalid, nil
		}
	}

	return escapeIncomplete, nil
}

// parseIntermediate handles sequences such as ESC ( B
func parseIntermediate(body []byte) (escapeStatus, []Instruction) {
	for _, c := range body {
		switch {
		case c >= 0x20 && c <= 0x2F:
		case c >= 0x30 && c <= 0x7E:
			return escapeComplete, nil
		default:
			return escapeInvalid, nil
		}
	}

	return escapeIncomplete, nil
}

// executeEscape maps two byte sequences to instructions
func executeEscape(final byte) []Instruction {
	switch final {
	case 'E': // NEL
		return []Instruction{{Op: OpStartAndDown}}
	case 'D': // IND
		return []Instruction{{Op: OpDown}}
	case 'M': // RI
		return []Instruction{{Op: OpCursor, Cursor: CursorMove{Direction: MoveUp, Count: 1}}}
	case 'c': // RIS
		return []Instruction{{Op: OpReset}}
	}
	return nil
}

// executeCSI executes a complete CSI sequence. Private sequences and
// sequences with intermediates are consumed without effect.
func executeCSI(paramBytes []byte, final byte) []Instruction {
	if len(paramBytes) > 0 && paramBytes[0] >= 0x3C && paramBytes[0] <= 0x3F {
		return nil
	}
	for _, c := range paramBytes {
		if c >= 0x20 && c <= 0x2F {
			return nil
		}
	}

	params := parseParams(paramBytes)

	switch final {
	case 'A': // CUU
		return cursor(CursorMove{Direction: MoveUp, Count: countParam(params)})
	case 'B': // CUD
		return cursor(CursorMove{Direction: MoveDown, Count: countParam(params)})
	case 'C': // CUF
		return cursor(CursorMove{Direction: MoveForward, Count: countParam(params)})
	case 'D': // CUB
		return cursor(CursorMove{Direction: MoveBack, Count: countParam(params)})
	case 'E': // CNL
		return []Instruction{
			{Op: OpCursor, Cursor: CursorMove{Direction: MoveDown, Count: countParam(params)}},
			{Op: OpStartOfLine},
		}
	case 'F': // CPL
		return []Instruction{
			{Op: OpCursor, Cursor: CursorMove{Direction: MoveUp, Count: countParam(params)}},
			{Op: OpStartOfLine},
		}
	case 'G': // CHA
		return cursor(CursorMove{Direction: MoveColumn, Col: positionParam(params, 0)})
	case 'H', 'f': // CUP
		return cursor(CursorMove{
			Direction: MoveAbsolute,
			Row:       positionParam(params, 0),
			Col:       positionParam(params, 1),
		})
	case 'J': // ED
		return []Instruction{{Op: OpErase, Erase: Erase{Target: EraseDisplay, Mode: getParam(params, 0, 0)}}}
	case 'K': // EL
		return []Instruction{{Op: OpErase, Erase: Erase{Target: EraseLine, Mode: getParam(params, 0, 0)}}}
	case 'm': // SGR
		return handleSGR(params)
	}

	return nil
}

func cursor(move CursorMove) []Instruction {
	return []Instruction{{Op: OpCursor, Cursor: move}}
}

// parseParams parses the parameter bytes into integers. Empty fields are 0.
func parseParams(buf []byte) []int {
	params := make([]int, 0, 4)
	if len(buf) == 0 {
		return params
	}

	current := 0
	hasDigit := false

	for _, ch := range buf {
		if ch >= '0' && ch <= '9' {
			if current < 1<<16 {
				current = current*10 + int(ch-'0')
			}
			hasDigit = true
		} else if ch == ';' {
			params = append(params, current)
			current = 0
			hasDigit = false
		}
	}

	if hasDigit || buf[len(buf)-1] == ';' {
		params = append(params, current)
	}

	return params
}

// getParam gets parameter at index with default value
func getParam(params []int, index, defaultValue int) int {
	if index < len(params) {
		return params[index]
	}
	return defaultValue
}

// countParam reads a movement count where 0 means 1
func countParam(params []int) int {
	n := getParam(params, 0, 1)
	if n < 1 {
		return 1
	}
	return n
}

// positionParam converts a one based position to zero based
func positionParam(params []int, index int) int {
	n := getParam(params, index, 1)
	if n < 1 {
		return 0
	}
	return n - 1
}

// handleSGR handles Select Graphic Rendition sequences
func handleSGR(params []int) []Instruction {
	if len(params) == 0 {
		return []Instruction{{Op: OpStyle, Style: StyleChange{Reset: true}}}
	}

	var out []Instruction
	for i := 0; i < len(params); i++ {
		param := params[i]

		if param == 38 || param == 48 {
			color, used := extendedColor(params[i+1:])
			i += used
			if color == nil {
				continue
			}
			change := StyleChange{Foreground: color}
			if param == 48 {
				change = StyleChange{Background: color}
			}
			out = append(out, Instruction{Op: OpStyle, Style: change})
			continue
		}

		if change, ok := sgrParam(param); ok {
			out = append(out, Instruction{Op: OpStyle, Style: change})
		}
	}

	return out
}

// extendedColor reads the arguments of 38/48. 256 color palette entries and
// 24 bit colors are mapped to the nearest of the 16 basic colors.
func extendedColor(args []int) (*Color, int) {
	if len(args) == 0 {
		return nil, 0
	}

	switch args[0] {
	case 5:
		if len(args) < 2 {
			return nil, len(args)
		}
		c, ok := paletteColor(args[1])
		if !ok {
			return nil, 2
		}
		return &c, 2
	case 2:
		if len(args) < 4 {
			return nil, len(args)
		}
		r, g, b := args[1], args[2], args[3]
		if !inByte(r) || !inByte(g) || !inByte(b) {
			return nil, 4
		}
		c := nearestColor(r, g, b)
		return &c, 4
	}

	return nil, 1
}

// basicRGB holds the xterm default values of the 16 basic colors
var basicRGB = [16][3]int{
	{0, 0, 0}, {205, 0, 0}, {0, 205, 0}, {205, 205, 0},
	{0, 0, 238}, {205, 0, 205}, {0, 205, 205}, {229, 229, 229},
	{127, 127, 127}, {255, 0, 0}, {0, 255, 0}, {255, 255, 0},
	{92, 92, 255}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
}

// cubeLevels are the component values of the 6x6x6 color cube
var cubeLevels = [6]int{0, 95, 135, 175, 215, 255}

// paletteColor maps a 256 color palette index to a basic color
func paletteColor(index int) (Color, bool) {
	switch {
	case index < 0 || index > 255:
		return ColorDefault, false
	case index < 16:
		return Color(index), true
	case index < 232:
		i := index - 16
		return nearestColor(cubeLevels[i/36], cubeLevels[i/6%6], cubeLevels[i%6]), true
	default:
		gray := 8 + (index-232)*10
		return nearestColor(gray, gray, gray), true
	}
}

// nearestColor returns the basic color closest to r, g, b
func nearestColor(r, g, b int) Color {
	best, bestDist := ColorBlack, -1
	for i, rgb := range basicRGB {
		dr, dg, db := r-rgb[0], g-rgb[1], b-rgb[2]
		if d := dr*dr + dg*dg + db*db; bestDist < 0 || d < bestDist {
			best, bestDist = Color(i), d
		}
	}
	return best
}

func inByte(v int) bool {
	return v >= 0 && v <= 255
}

// sgrParam converts a single SGR parameter
func sgrParam(param int) (StyleChange, bool) {
	on, off := true, false

	switch param {
	case 0:
		return StyleChange{Reset: true}, true
	case 1:
		return StyleChange{Bold: &on}, true
	case 3:
		return StyleChange{Italic: &on}, true
	case 4:
		return StyleChange{Underline: &on}, true
	case 5:
		return StyleChange{Blink: &on}, true
	case 7:
		return StyleChange{Reverse: &on}, true
	case 22:
		return StyleChange{Bold: &off}, true
	case 23:
		return StyleChange{Italic: &off}, true
	case 24:
		return StyleChange{Underline: &off}, true
	case 25:
		return StyleChange{Blink: &off}, true
	case 27:
		return StyleChange{Reverse: &off}, true
	case 39:
		c := ColorDefault
		return StyleChange{Foreground: &c}, true
	case 49:
		c := ColorDefault
		return StyleChange{Background: &c}, true
	}

	var c Color
	switch {
	case param >= 30 && param <= 37:
		c = Color(param - 30)
		return StyleChange{Foreground: &c}, true
	case param >= 40 && param <= 47:
		c = Color(param - 40)
		return StyleChange{Background: &c}, true
	case param >= 90 && param <= 97:
		c = Color(param - 90 + 8)
		return StyleChange{Foreground: &c}, true
	case param >= 100 && param <= 107:
		c = Color(param - 100 + 8)
		return StyleChange{Background: &c}, true
	}

	return StyleChange{}, false
}

// String describes the change without pointer addresses
func (s StyleChange) String() string {
	var parts []string
	if s.Reset {
		parts = append(parts, "reset")
	}
	flag := func(name string, v *bool) {
		if v != nil {
			parts = append(parts, fmt.Sprintf("%s=%t", name, *v))
		}
	}
	flag("bold", s.Bold)
	flag("italic", s.Italic)
	flag("underline", s.Underline)
	flag("blink", s.Blink)
	flag("reverse", s.Reverse)
	if s.Foreground != nil {
		parts = append(parts, "fg="+s.Foreground.String())
	}
	if s.Background != nil {
		parts = append(parts, "bg="+s.Background.String())
	}
	return strings.Join(parts, ",")
}
