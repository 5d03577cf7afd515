package replay

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// RenderFunc produces the pager content. It is called again whenever a
// watched file changes.
type RenderFunc func() (string, error)

// Page shows content in an interactive pager.
func Page(title, content string) error {
	prog := tea.NewProgram(
		&pagerModel{title: title, content: content},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := prog.Run()
	return err
}

// PageLive shows render's output and re-renders whenever path changes.
func PageLive(title, path string, render RenderFunc) error {
	content, err := render()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch file: %w", err)
	}

	prog := tea.NewProgram(
		&pagerModel{
			title:   title + " (LIVE)",
			content: content,
			render:  render,
			watcher: watcher,
		},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = prog.Run()
	return err
}

type fileChangedMsg struct{}

type pagerModel struct {
	viewport viewport.Model
	title    string
	content  string
	wrapped  string
	ready    bool
	render   RenderFunc
	watcher  *fsnotify.Watcher
	failed   error

	searching   bool
	searchInput textinput.Model
	query       string
	matches     []int
	matchIdx    int
}

func (m *pagerModel) live() bool { return m.watcher != nil }

func (m *pagerModel) Init() tea.Cmd {
	if m.live() {
		return m.waitForChange()
	}
	return nil
}

func (m *pagerModel) waitForChange() tea.Cmd {
	w := m.watcher
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				// Writers use tmp+rename, which shows up as Create on the target.
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					time.Sleep(100 * time.Millisecond)
					return fileChangedMsg{}
				}
			case _, ok := <-w.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.updateSearch(msg)
	}

	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case fileChangedMsg:
		m.reload()
		cmds = append(cmds, m.waitForChange())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.query == "" {
				return m, tea.Quit
			}
			m.clearSearch()
		case "g":
			m.viewport.GotoTop()
		case "G", "f":
			m.viewport.GotoBottom()
		case "/":
			m.searching = true
			m.searchInput = textinput.New()
			m.searchInput.Placeholder = "Search..."
			m.searchInput.CharLimit = 100
			m.searchInput.Width = 40
			m.searchInput.SetValue(m.query)
			m.searchInput.Focus()
			return m, textinput.Blink
		case "n":
			m.stepMatch(1)
		case "N":
			m.stepMatch(-1)
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.YPosition = 1
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.setContent(m.content)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *pagerModel) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.searching = false
			m.query = m.searchInput.Value()
			m.search()
			if len(m.matches) > 0 {
				m.jumpTo(0)
			}
			return m, nil
		case "esc", "ctrl+c":
			m.searching = false
			m.clearSearch()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// reload re-renders content while keeping the scroll offset.
func (m *pagerModel) reload() {
	if m.render == nil {
		return
	}
	content, err := m.render()
	if err != nil {
		m.failed = err
		return
	}
	m.failed = nil
	offset := m.viewport.YOffset
	m.setContent(content)
	m.viewport.SetYOffset(offset)
}

func (m *pagerModel) setContent(content string) {
	m.content = content
	if !m.ready {
		return
	}
	m.wrapped = wrapContent(content, m.viewport.Width)
	m.viewport.SetContent(m.wrapped)
	if m.query != "" {
		m.search()
	}
}

func (m *pagerModel) clearSearch() {
	m.query = ""
	m.matches = nil
	m.matchIdx = 0
}

func (m *pagerModel) search() {
	m.matches = nil
	m.matchIdx = 0
	if m.query == "" {
		return
	}
	q := strings.ToLower(m.query)
	for i, line := range strings.Split(m.wrapped, "\n") {
		if strings.Contains(strings.ToLower(line), q) {
			m.matches = append(m.matches, i)
		}
	}
}

func (m *pagerModel) stepMatch(delta int) {
	if len(m.matches) == 0 {
		return
	}
	m.matchIdx = (m.matchIdx + delta + len(m.matches)) % len(m.matches)
	m.jumpTo(m.matchIdx)
}

// jumpTo centers match i on screen.
func (m *pagerModel) jumpTo(i int) {
	if i < 0 || i >= len(m.matches) {
		return
	}
	m.viewport.SetYOffset(m.matches[i] - m.viewport.Height/2)
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := pagerTitleStyle.Render(m.title)
	header := title + pagerInfoStyle.Render(strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title))))

	if m.searching {
		prompt := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("/")
		return header + "\n" + m.viewport.View() + "\n" + prompt + m.searchInput.View()
	}

	var help string
	switch {
	case m.failed != nil:
		help = " " + errorStyle.Render("reload failed: "+m.failed.Error()) + " "
	case m.query != "" && len(m.matches) == 0:
		help = " " + errorStyle.Render("Pattern not found") + " │ /: search "
	case len(m.matches) > 0:
		help = fmt.Sprintf(" %s │ n/N: next/prev │ esc: clear ",
			warnStyle.Render(fmt.Sprintf("[%d/%d]", m.matchIdx+1, len(m.matches))))
	case m.live():
		help = " " + successStyle.Bold(true).Render("● LIVE") + " │ q: quit │ /: search │ f: follow "
	default:
		help = " q: quit │ /: search │ n/N: next/prev │ g/G: top/bottom "
	}
	info := fmt.Sprintf(" %3.0f%% ", m.viewport.ScrollPercent()*100)
	fill := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))
	footer := pagerInfoStyle.Render(help) + pagerInfoStyle.Render(fill) + pagerInfoStyle.Render(info)

	return header + "\n" + m.viewport.View() + "\n" + footer
}

// wrapContent wraps each line to width. Timeline rows ("seq │ time │ text")
// wrap only their last column so continuation lines stay aligned.
func wrapContent(content string, width int) string {
	if width <= 0 {
		return content
	}

	var out []string
	for _, line := range strings.Split(content, "\n") {
		if lipgloss.Width(line) <= width {
			out = append(out, line)
			continue
		}

		if pipe := strings.LastIndex(line, "│"); pipe > 0 {
			start := pipe + len("│")
			for start < len(line) && line[start] == ' ' {
				start++
			}
			prefixWidth := lipgloss.Width(line[:start])
			parts := strings.Split(wordwrap.String(line[start:], max(20, width-prefixWidth)), "\n")
			out = append(out, line[:start]+parts[0])
			indent := strings.Repeat(" ", prefixWidth)
			for _, p := range parts[1:] {
				out = append(out, indent+p)
			}
			continue
		}

		out = append(out, strings.Split(wordwrap.String(line, width), "\n")...)
	}
	return strings.Join(out, "\n")
}
