package ui

import (
	"github.com/gdamore/tcell/v2"
)

// TcellSelector presents a full-screen pick list using tcell.
type TcellSelector struct {
	newScreen func() (tcell.Screen, error)
}

// NewTcellSelector creates a selector backed by the real terminal.
func NewTcellSelector() *TcellSelector {
	return &TcellSelector{newScreen: tcell.NewScreen}
}

// Select shows the items and blocks until the user picks one or declines.
// Enter accepts; Escape, q or Ctrl-C decline; arrows and j/k move.
func (s *TcellSelector) Select(items []string, label string) (string, bool) {
	if len(items) == 0 {
		return "", false
	}

	screen, err := s.newScreen()
	if err != nil {
		return "", false
	}
	if err := screen.Init(); err != nil {
		return "", false
	}
	defer screen.Fini()

	selected := 0
	for {
		drawList(screen, items, label, selected)

		switch ev := screen.PollEvent().(type) {
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				return "", false
			case tcell.KeyUp:
				if selected > 0 {
					selected--
				}
			case tcell.KeyDown:
				if selected < len(items)-1 {
					selected++
				}
			case tcell.KeyEnter:
				return items[selected], true
			case tcell.KeyRune:
				switch ev.Rune() {
				case 'k':
					if selected > 0 {
						selected--
					}
				case 'j':
					if selected < len(items)-1 {
						selected++
					}
				case 'q':
					return "", false
				}
			}
		}
	}
}

func drawList(screen tcell.Screen, items []string, label string, selected int) {
	screen.Clear()

	putString(screen, 0, 0, label, tcell.StyleDefault.Bold(true))

	_, height := screen.Size()
	rows := height - 1
	if rows < 1 {
		screen.Show()
		return
	}

	// Scroll the visible window so the selection never moves off screen.
	offset := 0
	if selected >= rows {
		offset = selected - rows + 1
	}

	for i := 0; i < rows && offset+i < len(items); i++ {
		item := items[offset+i]
		style := tcell.StyleDefault
		prefix := "  "
		if offset+i == selected {
			style = style.Reverse(true)
			prefix = "> "
		}
		putString(screen, 0, i+1, prefix+item, style)
	}

	screen.Show()
}

func putString(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
