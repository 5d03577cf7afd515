package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Play      key.Binding
	StepBack  key.Binding
	StepFwd   key.Binding
	ScrubBack key.Binding
	ScrubFwd  key.Binding
	Start     key.Binding
	End       key.Binding
	Speed     key.Binding
	Mode      key.Binding
	Intent    key.Binding
	Episodes  key.Binding
	Seed      key.Binding
	Reload    key.Binding
	Focus     key.Binding
	Unfocus   key.Binding
	Color     key.Binding
	Hide      key.Binding
	Brighter  key.Binding
	Dimmer    key.Binding
	Undo      key.Binding
	Redo      key.Binding
	Reset     key.Binding
	Field     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Play:      key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
	StepBack:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev frame")),
	StepFwd:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next frame")),
	ScrubBack: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "scrub back")),
	ScrubFwd:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "scrub fwd")),
	Start:     key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "start")),
	End:       key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "end")),
	Speed:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "speed")),
	Mode:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "live/replay")),
	Intent:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open at latest/start")),
	Episodes:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "episodes")),
	Seed:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "seed demo")),
	Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Focus:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus next")),
	Unfocus:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear focus")),
	Color:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "recolor")),
	Hide:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "hide")),
	Brighter:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "intensity")),
	Dimmer:    key.NewBinding(key.WithKeys("-")),
	Undo:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo")),
	Redo:      key.NewBinding(key.WithKeys("U", "ctrl+r"), key.WithHelp("U", "redo")),
	Reset:     key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset overrides")),
	Field:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "field")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.StepBack, k.StepFwd, k.Speed, k.Mode, k.Episodes, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.StepBack, k.StepFwd, k.ScrubBack, k.ScrubFwd, k.Start, k.End, k.Speed},
		{k.Mode, k.Intent, k.Episodes, k.Seed, k.Reload, k.Field},
		{k.Focus, k.Unfocus, k.Color, k.Hide, k.Brighter, k.Undo, k.Redo, k.Reset},
		{k.Help, k.Quit},
	}
}

// pickerKeys apply while the episode list is open.
type pickerKeys struct {
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	Delete key.Binding
	Close  key.Binding
}

var picker = pickerKeys{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Open:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Delete: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "archive")),
	Close:  key.NewBinding(key.WithKeys("esc", "e", "q"), key.WithHelp("esc", "close")),
}

func (k pickerKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Delete, k.Close}
}

func (k pickerKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
