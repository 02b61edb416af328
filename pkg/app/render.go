package app

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"uart-terminal/pkg/display"
	"uart-terminal/pkg/menu"
	"uart-terminal/pkg/rx"
)

const helpText = `Serial Terminal Help

Ctrl+Q   Exit
F1       Show this help
F2       Cycle filter (all, tx, rx)
F3       Toggle local echo
F4       Search scrollback
F5       Clear screen
F6       Save history
F7       Send break
F8       Pause/Resume data flow
F10      Settings menu
PgUp/Dn  Scroll
Home/End Oldest/newest line

Press any key to continue...`

var statusStyle = tcell.StyleDefault.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)

// convertColor converts a display color to a tcell color
func convertColor(color rx.Color) tcell.Color {
	if color == rx.ColorDefault || color < 0 || color > rx.ColorBrightWhite {
		return tcell.ColorReset
	}
	return tcell.PaletteColor(int(color))
}

// cellStyle returns the tcell style for a display cell. Glyphs that stand
// for non-printable bytes are drawn reversed.
func cellStyle(c display.Cell) tcell.Style {
	style := tcell.StyleDefault.
		Foreground(convertColor(c.Style.Foreground)).
		Background(convertColor(c.Style.Background)).
		Bold(c.Style.Bold).
		Italic(c.Style.Italic).
		Underline(c.Style.Underline).
		Blink(c.Style.Blink).
		Reverse(c.Style.Reverse)

	switch c.Class {
	case rx.ClassControl, rx.ClassHex:
		style = style.Reverse(!c.Style.Reverse)
	}
	return style
}

// draw renders the whole screen
func (app *Application) draw() {
	app.mu.Lock()
	defer app.mu.Unlock()

	screen := app.screen
	screen.Clear()

	width, height := screen.Size()
	if height < 2 {
		screen.Show()
		return
	}
	viewHeight := height - 1

	lines := app.visibleLines()
	start := len(lines) - viewHeight - app.scroll
	if start < 0 {
		start = 0
		app.scroll = len(lines) - viewHeight
		if app.scroll < 0 {
			app.scroll = 0
		}
	}

	for y := 0; y < viewHeight && start+y < len(lines); y++ {
		drawLine(screen, y, width, lines[start+y])
	}

	if app.scroll == 0 && app.query == "" && app.session.Display().Len() > 0 {
		app.showCursor(lines, start, viewHeight)
	} else {
		screen.HideCursor()
	}

	switch app.mode {
	case modeSearch:
		app.drawPrompt(height-1, width, "Search: "+app.input)
	default:
		app.drawStatus(height-1, width)
	}

	if app.mode == modeHelp {
		drawHelp(screen, width, height)
	}
	app.menu.Draw(screen)

	screen.Show()
}

// visibleLines returns the lines selected by the filter and search query.
// Callers hold mu.
func (app *Application) visibleLines() []display.Line {
	buf := app.session.Display()
	if app.query != "" {
		return buf.Search(app.query, app.filter)
	}
	return buf.Lines(app.filter)
}

// showCursor places the terminal cursor on the buffer cursor when that line
// is on screen. Callers hold mu.
func (app *Application) showCursor(lines []display.Line, start, viewHeight int) {
	cursorLine, cursorCol := app.session.Display().Cursor()
	for y := 0; y < viewHeight && start+y < len(lines); y++ {
		line := lines[start+y]
		if line.Index != cursorLine {
			continue
		}

		x := 0
		for i, c := range line.Cells {
			if i >= cursorCol {
				break
			}
			x += cellWidth(c)
		}
		if cursorCol > len(line.Cells) {
			x += cursorCol - len(line.Cells)
		}
		app.screen.ShowCursor(x, y)
		return
	}
	app.screen.HideCursor()
}

func cellWidth(c display.Cell) int {
	w := c.Width
	if c.Class == rx.ClassNumber {
		w++
	}
	if w < 1 {
		w = 1
	}
	return w
}

// drawLine draws the cells of one line, clipped at width
func drawLine(screen tcell.Screen, y, width int, line display.Line) {
	x := 0
	for _, c := range line.Cells {
		if x >= width {
			return
		}

		style := cellStyle(c)
		for _, r := range c.Text {
			screen.SetContent(x, y, r, nil, style)
			x += runewidth.RuneWidth(r)
		}
		if c.Class == rx.ClassNumber {
			screen.SetContent(x, y, ' ', nil, tcell.StyleDefault)
			x++
		}
	}
}

// drawStatus draws the status bar. Callers hold mu.
func (app *Application) drawStatus(y, width int) {
	for x := 0; x < width; x++ {
		app.screen.SetContent(x, y, ' ', nil, statusStyle)
	}

	left := app.statusLine()
	menu.DrawText(app.screen, 0, y, truncate(left, width), statusStyle)

	if app.message != "" {
		msg := truncate(app.message, width/2)
		x := width - runewidth.StringWidth(msg) - 1
		if x > runewidth.StringWidth(left) {
			menu.DrawText(app.screen, x, y, msg, statusStyle.Bold(true))
		}
	}
}

// statusLine returns the left part of the status bar. Callers hold mu.
func (app *Application) statusLine() string {
	settings := app.session.Settings()
	stats := app.session.Stats()

	state := app.session.State().String()
	if app.session.IsPaused() {
		state = "paused"
	}

	echo := "off"
	if app.session.LocalEcho() {
		echo = "on"
	}

	parts := []string{
		fmt.Sprintf(" %s %s", settings.Port, settings.Serial),
		state,
		"filter:" + app.filter.String(),
		"echo:" + echo,
		fmt.Sprintf("TX:%d RX:%d", stats.BytesSent, stats.BytesRecv),
	}
	if app.query != "" {
		parts = append(parts, fmt.Sprintf("search:%q", app.query))
	}
	if app.scroll > 0 {
		parts = append(parts, fmt.Sprintf("-%d", app.scroll))
	}
	if lines := modemLines(app.modem); lines != "" {
		parts = append(parts, lines)
	}

	return strings.Join(parts, " | ")
}

// drawPrompt draws an input prompt on the status row. Callers hold mu.
func (app *Application) drawPrompt(y, width int, text string) {
	style := tcell.StyleDefault.Reverse(true)
	for x := 0; x < width; x++ {
		app.screen.SetContent(x, y, ' ', nil, style)
	}
	x := menu.DrawText(app.screen, 0, y, truncate(text, width-1), style)
	app.screen.ShowCursor(x, y)
}

func drawHelp(screen tcell.Screen, width, height int) {
	lines := strings.Split(helpText, "\n")

	boxWidth := 0
	for _, l := range lines {
		if w := runewidth.StringWidth(l); w > boxWidth {
			boxWidth = w
		}
	}
	boxWidth += 4
	boxHeight := len(lines) + 2

	x := (width - boxWidth) / 2
	y := (height - boxHeight) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	style := tcell.StyleDefault.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
	menu.DrawBox(screen, x, y, boxWidth, boxHeight, style)
	for i, l := range lines {
		if y+1+i >= height {
			break
		}
		menu.DrawText(screen, x+2, y+1+i, l, style)
	}
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
