// Package menu draws a keyboard driven popup menu on a tcell screen
package menu

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// Item is a single menu entry
type Item struct {
	Label    string
	Shortcut rune
	// Value returns the current setting shown next to the label. Items
	// with a Value stay open after activation so the value can be cycled.
	Value     func() string
	Action    func() error
	Enabled   bool
	Separator bool
}

// Menu is a popup list of items. It keeps no reference to a screen; the
// owner calls Draw on every frame while the menu is visible.
type Menu struct {
	title    string
	items    []Item
	selected int
	visible  bool

	onClose func()
	onError func(error)
}

// New creates an empty hidden menu
func New(title string) *Menu {
	return &Menu{title: title}
}

// AddItem adds an action item
func (m *Menu) AddItem(label string, shortcut rune, action func() error) {
	m.items = append(m.items, Item{
		Label:    label,
		Shortcut: shortcut,
		Action:   action,
		Enabled:  true,
	})
}

// AddValue adds an item that shows a value and changes it on activation
func (m *Menu) AddValue(label string, shortcut rune, value func() string, action func() error) {
	m.items = append(m.items, Item{
		Label:    label,
		Shortcut: shortcut,
		Value:    value,
		Action:   action,
		Enabled:  true,
	})
}

// AddSeparator adds a separator line
func (m *Menu) AddSeparator() {
	m.items = append(m.items, Item{Separator: true})
}

// Items returns the menu items
func (m *Menu) Items() []Item {
	return m.items
}

// Show makes the menu visible with the first usable item selected
func (m *Menu) Show() {
	m.visible = true
	m.selected = -1
	m.moveSelection(1)
}

// Hide hides the menu
func (m *Menu) Hide() {
	if !m.visible {
		return
	}
	m.visible = false
	if m.onClose != nil {
		m.onClose()
	}
}

// IsVisible returns whether the menu is visible
func (m *Menu) IsVisible() bool {
	return m.visible
}

// Selected returns the index of the selected item
func (m *Menu) Selected() int {
	return m.selected
}

// SetOnClose sets the callback for when the menu closes
func (m *Menu) SetOnClose(callback func()) {
	m.onClose = callback
}

// SetOnError sets the callback receiving action errors
func (m *Menu) SetOnError(callback func(error)) {
	m.onError = callback
}

// EnableItem enables or disables a menu item
func (m *Menu) EnableItem(index int, enabled bool) {
	if index >= 0 && index < len(m.items) {
		m.items[index].Enabled = enabled
	}
}

// HandleKey processes keyboard input. It reports whether the key was used.
func (m *Menu) HandleKey(ev *tcell.EventKey) bool {
	if !m.visible {
		return false
	}

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyF10:
		m.Hide()
		return true
	case tcell.KeyUp:
		m.moveSelection(-1)
		return true
	case tcell.KeyDown, tcell.KeyTab:
		m.moveSelection(1)
		return true
	case tcell.KeyEnter:
		m.activate(m.selected)
		return true
	case tcell.KeyRune:
		for i, item := range m.items {
			if item.Enabled && item.Shortcut != 0 && item.Shortcut == ev.Rune() {
				m.selected = i
				m.activate(i)
				return true
			}
		}
	}

	// The menu is modal while shown.
	return true
}

// moveSelection moves the selection up or down, skipping separators and
// disabled items
func (m *Menu) moveSelection(direction int) {
	count := len(m.items)
	if count == 0 {
		return
	}

	next := m.selected
	for i := 0; i < count; i++ {
		next += direction
		if next < 0 {
			next = count - 1
		} else if next >= count {
			next = 0
		}

		if !m.items[next].Separator && m.items[next].Enabled {
			m.selected = next
			return
		}
	}
}

func (m *Menu) activate(index int) {
	if index < 0 || index >= len(m.items) {
		return
	}

	item := m.items[index]
	if !item.Enabled || item.Separator || item.Action == nil {
		return
	}

	if err := item.Action(); err != nil && m.onError != nil {
		m.onError(err)
	}

	if item.Value == nil {
		m.Hide()
	}
}

// Size returns the width and height of the menu box
func (m *Menu) Size() (width, height int) {
	width = runewidth.StringWidth(m.title) + 4
	for _, item := range m.items {
		if item.Separator {
			continue
		}
		w := runewidth.StringWidth(item.Label) + 10
		if item.Value != nil {
			w += runewidth.StringWidth(item.Value()) + 2
		}
		if w > width {
			width = w
		}
	}

	height = len(m.items) + 2
	if m.title != "" {
		height += 2
	}
	return width, height
}

// Draw renders the menu centered on screen
func (m *Menu) Draw(screen tcell.Screen) {
	if !m.visible {
		return
	}

	style := tcell.StyleDefault.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
	selectedStyle := tcell.StyleDefault.Background(tcell.ColorWhite).Foreground(tcell.ColorBlack)
	disabledStyle := style.Foreground(tcell.ColorGray)

	screenWidth, screenHeight := screen.Size()
	width, height := m.Size()
	x := (screenWidth - width) / 2
	y := (screenHeight - height) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	DrawBox(screen, x, y, width, height, style)

	row := y + 1
	if m.title != "" {
		DrawText(screen, x+(width-runewidth.StringWidth(m.title))/2, row, m.title, style.Bold(true))
		row++
		for cx := x + 1; cx < x+width-1; cx++ {
			screen.SetContent(cx, row, '─', nil, style)
		}
		row++
	}

	for i, item := range m.items {
		if item.Separator {
			for cx := x + 1; cx < x+width-1; cx++ {
				screen.SetContent(cx, row, '─', nil, style)
			}
			row++
			continue
		}

		itemStyle := style
		if !item.Enabled {
			itemStyle = disabledStyle
		} else if i == m.selected {
			itemStyle = selectedStyle
		}

		for cx := x + 1; cx < x+width-1; cx++ {
			screen.SetContent(cx, row, ' ', nil, itemStyle)
		}
		if item.Shortcut != 0 {
			DrawText(screen, x+2, row, string(item.Shortcut), itemStyle.Underline(true))
		}
		DrawText(screen, x+4, row, item.Label, itemStyle)
		if item.Value != nil {
			value := item.Value()
			DrawText(screen, x+width-runewidth.StringWidth(value)-2, row, value, itemStyle)
		}
		row++
	}
}

// DrawBox draws a bordered box filled with style
func DrawBox(screen tcell.Screen, x, y, width, height int, style tcell.Style) {
	if width < 2 || height < 2 {
		return
	}

	screen.SetContent(x, y, '┌', nil, style)
	screen.SetContent(x+width-1, y, '┐', nil, style)
	for cx := x + 1; cx < x+width-1; cx++ {
		screen.SetContent(cx, y, '─', nil, style)
	}

	for cy := y + 1; cy < y+height-1; cy++ {
		screen.SetContent(x, cy, '│', nil, style)
		screen.SetContent(x+width-1, cy, '│', nil, style)
		for cx := x + 1; cx < x+width-1; cx++ {
			screen.SetContent(cx, cy, ' ', nil, style)
		}
	}

	screen.SetContent(x, y+height-1, '└', nil, style)
	screen.SetContent(x+width-1, y+height-1, '┘', nil, style)
	for cx := x + 1; cx < x+width-1; cx++ {
		screen.SetContent(cx, y+height-1, '─', nil, style)
	}
}

// DrawText draws text starting at x and returns the column after it
func DrawText(screen tcell.Screen, x, y int, text string, style tcell.Style) int {
	for _, ch := range text {
		screen.SetContent(x, y, ch, nil, style)
		w := runewidth.RuneWidth(ch)
		if w < 1 {
			w = 1
		}
		x += w
	}
	return x
}
