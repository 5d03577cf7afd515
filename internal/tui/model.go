// Package tui is the interactive episode viewer: a bubbletea program that
// drives the playback clock, resolves what to show, animates the scene and
// rasterizes it into the terminal.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/vinayprograms/loopscope/internal/config"
	"github.com/vinayprograms/loopscope/internal/episode"
	"github.com/vinayprograms/loopscope/internal/livefeed"
	"github.com/vinayprograms/loopscope/internal/logging"
	"github.com/vinayprograms/loopscope/internal/playback"
	"github.com/vinayprograms/loopscope/internal/prefs"
	"github.com/vinayprograms/loopscope/internal/replay"
	"github.com/vinayprograms/loopscope/internal/replaystore"
	"github.com/vinayprograms/loopscope/internal/scene"
	"github.com/vinayprograms/loopscope/internal/uistate"
	"github.com/vinayprograms/loopscope/internal/view"
	"github.com/vinayprograms/loopscope/internal/visual"
)

const intensityStep = 0.1

// Archiver removes an episode from a store that supports it.
type Archiver interface {
	Delete(ctx context.Context, id string) error
}

// Options configures the viewer.
type Options struct {
	Store episode.Store
	// Archiver enables archiving from the episode list. Optional.
	Archiver  Archiver
	EpisodeID string
	// Mode overrides the stored preference when set.
	Mode   view.Mode
	Intent view.Intent
	// Follow reloads the open episode whenever its file changes. Optional.
	Follow *Follower
	// Live delivers live payloads. Optional.
	Live   <-chan livefeed.Update
	Prefs  *prefs.Store
	Config *config.Config
	Logger *logging.Logger
}

// applied identifies the inputs behind the state last handed to the scene.
type applied struct {
	source  view.Source
	episode string
	index   int
	load    int
	live    int
	rev     int
}

// Model is the viewer state.
type Model struct {
	ctx      context.Context
	store    episode.Store
	archiver Archiver
	follow   *Follower
	liveCh   <-chan livefeed.Update
	prefs    *prefs.Store
	logger   *logging.Logger
	interval time.Duration
	render   config.RenderConfig

	clock   *playback.Clock
	session *episode.Session
	orch    *view.Orchestrator
	scene   *scene.Scene
	history *uistate.History
	canvas  *Canvas

	settings prefs.View
	mode     view.Mode
	pending  episode.Request

	live    []byte
	liveSeq int
	loadSeq int
	rev     int
	applied applied
	out     view.Output
	ids     []string

	tickSeq  int
	lastTick time.Time

	picking  bool
	episodes []replay.Summary
	cursor   int
	seedNext int

	editing bool
	input   textinput.Model
	spinner spinner.Model
	bar     progress.Model
	help    help.Model

	status   string
	width    int
	height   int
	quitting bool
}

// New builds the viewer. Stored preferences and overrides are read from
// opts.Prefs when given.
func New(ctx context.Context, opts Options) *Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	pv := prefs.DefaultView()
	pv.Speed = cfg.Playback.DefaultSpeed
	pv = prefs.LoadJSON(ctx, opts.Prefs, prefs.KeyView, pv)
	data, err := opts.Prefs.Get(ctx, prefs.KeyOverrides)
	if err != nil {
		logger.Warn("failed to read overrides", map[string]any{"error": err.Error()})
	}

	clock := playback.New()
	if err := clock.SetSpeed(pv.Speed); err != nil {
		pv.Speed = clock.Speed()
	}

	orch := view.New(logger.WithComponent("view"))
	orch.SetIntent(opts.Intent)

	ti := textinput.New()
	ti.Placeholder = "#rrggbb"
	ti.CharLimit = 7
	ti.Width = 10

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle

	m := &Model{
		ctx:      ctx,
		store:    opts.Store,
		archiver: opts.Archiver,
		follow:   opts.Follow,
		liveCh:   opts.Live,
		prefs:    opts.Prefs,
		logger:   logger,
		interval: cfg.FrameInterval(),
		render:   cfg.Render,
		clock:    clock,
		session: episode.NewSession(
			episode.WithTimeout(cfg.BackendTimeout()),
			episode.WithLogger(logger.WithComponent("episode")),
		),
		orch: orch,
		scene: scene.New(
			scene.WithLambda(cfg.Render.Lambda),
			scene.WithMaxParticles(cfg.Render.MaxParticles),
			scene.WithLogger(logger.WithComponent("scene")),
		),
		history:  uistate.LoadHistory(data, uistate.DefaultDepth),
		settings: pv,
		mode:     view.ModeLive,
		input:    ti,
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:     help.New(),
		tickSeq:  1,
		applied:  applied{index: -1},
	}
	m.help.ShowAll = pv.ShowHelp

	id := opts.EpisodeID
	switch {
	case opts.Mode != "":
		m.mode = opts.Mode
	case id != "":
		m.mode = view.ModeReplay
	case pv.Mode == string(view.ModeReplay):
		m.mode = view.ModeReplay
	}
	if id == "" && m.mode == view.ModeReplay {
		id = pv.LastEpisode
	}
	if id != "" && m.store != nil {
		m.pending = m.session.Begin(id)
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tick(), m.spinner.Tick}
	if m.pending.ID != "" {
		cmds = append(cmds, m.fetch(m.pending, false))
	}
	if m.liveCh != nil {
		cmds = append(cmds, waitLive(m.liveCh))
	}
	if m.follow != nil {
		cmds = append(cmds, m.follow.wait())
	}
	return tea.Batch(cmds...)
}

func (m *Model) tick() tea.Cmd {
	seq := m.tickSeq
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg{seq: seq, at: t}
	})
}

func (m *Model) fetch(req episode.Request, follow bool) tea.Cmd {
	ctx, store, session := m.ctx, m.store, m.session
	return func() tea.Msg {
		return loadedMsg{res: session.Fetch(ctx, store, req), follow: follow}
	}
}

func (m *Model) open(id string) tea.Cmd {
	if m.store == nil {
		m.status = "no episode store configured"
		return nil
	}
	m.mode = view.ModeReplay
	switching := id != m.session.EpisodeID()
	req := m.session.Begin(id)
	if switching {
		// Drop the previous episode's frames while the next one loads.
		m.clock.Load(m.session.Frames(), 0)
	}
	m.resolve()
	return m.fetch(req, false)
}

func (m *Model) list() tea.Cmd {
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		eps, err := store.ListEpisodes(ctx)
		return listedMsg{episodes: eps, err: err}
	}
}

func (m *Model) seed() tea.Cmd {
	presets := replaystore.DemoPresets()
	preset := presets[m.seedNext%len(presets)]
	m.seedNext++
	ctx, store := m.ctx, m.store
	m.status = "seeding " + preset + "..."
	return func() tea.Msg {
		s, err := store.SeedDemo(ctx, preset)
		return seededMsg{preset: preset, seeded: s, err: err}
	}
}

func (m *Model) archive(id string) tea.Cmd {
	ctx, a := m.ctx, m.archiver
	return func() tea.Msg {
		return archivedMsg{id: id, err: a.Delete(ctx, id)}
	}
}

func waitLive(ch <-chan livefeed.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return liveClosedMsg{}
		}
		return liveMsg{update: u}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = max(10, msg.Width-40)
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if msg.seq != m.tickSeq {
			return m, nil
		}
		m.frame(msg.at)
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.loaded(msg)
		return m, nil

	case listedMsg:
		if msg.err != nil {
			m.status = "list failed: " + msg.err.Error()
			m.picking = false
			return m, nil
		}
		m.episodes = msg.episodes
		m.cursor = min(m.cursor, max(0, len(m.episodes)-1))
		return m, nil

	case seededMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("seed %s failed: %v", msg.preset, msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("seeded %q (%d frames)", msg.seeded.Title, msg.seeded.FrameCount)
		return m, m.open(msg.seeded.ID)

	case archivedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("archive %s failed: %v", msg.id, msg.err)
			return m, nil
		}
		m.status = "archived " + msg.id
		if msg.id == m.session.EpisodeID() {
			m.session.Begin("")
			m.clock.Load(m.session.Frames(), 0)
		}
		return m, m.list()

	case liveMsg:
		m.live = msg.update.Visual
		m.liveSeq++
		if len(msg.update.Warnings) > 0 {
			m.status = "live: " + strings.Join(msg.update.Warnings, ", ")
		}
		if m.liveCh == nil {
			return m, nil
		}
		return m, waitLive(m.liveCh)

	case liveClosedMsg:
		m.liveCh = nil
		m.status = "live feed closed"
		return m, nil

	case fileChangedMsg:
		if m.follow == nil {
			return m, nil
		}
		if m.session.EpisodeID() == "" || m.store == nil {
			return m, m.follow.wait()
		}
		return m, tea.Batch(m.fetch(m.session.Reload(), true), m.follow.wait())

	case tea.KeyMsg:
		switch {
		case m.editing:
			return m.updateEdit(msg)
		case m.picking:
			return m.updatePicker(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

// frame advances the clock, resolves the view and steps the animation.
func (m *Model) frame(now time.Time) {
	dt := 0.0
	if !m.lastTick.IsZero() {
		dt = now.Sub(m.lastTick).Seconds()
	}
	m.lastTick = now

	before := m.clock.State()
	m.clock.Tick(now)
	if after := m.clock.State(); after != before {
		m.logger.PlaybackTransition(string(before), string(after), m.clock.CurrentTime())
	}

	m.resolve()
	if err := m.scene.Tick(dt); err != nil {
		m.status = err.Error()
	}
}

// currentFrame fills the replay frame fields of in from the clock.
func (m *Model) currentFrame(in *view.Input) {
	in.Frame = nil
	in.FrameIndex = m.clock.CurrentIndex()
	if f, ok := m.clock.CurrentFrame(); ok {
		in.Frame = &f
	}
}

// resolve picks the state to show and hands it to the scene when any of
// its inputs changed.
func (m *Model) resolve() {
	in := view.Input{
		Mode:       m.mode,
		EpisodeID:  m.session.EpisodeID(),
		Loading:    m.session.Loading(),
		EpisodeErr: m.session.Err(),
		Live:       m.live,
		Transport:  m.clock,
	}
	m.currentFrame(&in)
	out := m.orch.Resolve(in)
	if out.Action != "" {
		m.logger.Info("episode opened", map[string]any{"episode": in.EpisodeID, "action": out.Action})
		// The transport moved; show the frame it landed on.
		m.currentFrame(&in)
		out = m.orch.Resolve(in)
	}
	m.out = out

	key := applied{
		source:  out.Source,
		episode: in.EpisodeID,
		index:   in.FrameIndex,
		load:    m.loadSeq,
		live:    m.liveSeq,
		rev:     m.rev,
	}
	if key != m.applied {
		st := m.history.Present().Apply(out.State)
		if !m.settings.ShowField {
			st.Field = nil
		}
		m.scene.Apply(st)
		m.ids = entityIDs(st)
		m.applied = key
	}
	if out.FocusID != m.scene.Focus() {
		m.scene.SetFocus(out.FocusID)
	}
}

func entityIDs(st visual.State) []string {
	ids := make([]string, 0, len(st.Nodes)+len(st.Loops)+len(st.Levers)+len(st.Flows))
	for _, n := range st.Nodes {
		ids = append(ids, n.ID)
	}
	for _, l := range st.Loops {
		ids = append(ids, l.ID)
	}
	for _, l := range st.Levers {
		ids = append(ids, l.ID)
	}
	for _, f := range st.Flows {
		ids = append(ids, f.ID)
	}
	return ids
}

func (m *Model) loaded(msg loadedMsg) {
	if !m.session.Resolve(msg.res) {
		return
	}
	m.loadSeq++
	ep := m.session.Episode()
	if err := m.session.Err(); err != nil || ep == nil {
		m.clock.Load(m.session.Frames(), 0)
		if err != nil {
			m.status = "load failed: " + err.Error()
		}
		m.resolve()
		return
	}

	m.clock.Load(m.session.Frames(), ep.Duration)
	if msg.follow {
		m.clock.SeekEnd()
	}
	m.status = fmt.Sprintf("loaded %s (%d frames)", episodeName(ep.Title, ep.ID), m.session.Frames().Len())
	m.settings.LastEpisode = ep.ID
	m.saveView()
	m.resolve()
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		m.saveView()
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.settings.ShowHelp = !m.settings.ShowHelp
		m.help.ShowAll = m.settings.ShowHelp
		m.saveView()
	case key.Matches(msg, keys.Mode):
		if m.mode == view.ModeLive {
			m.mode = view.ModeReplay
		} else {
			m.mode = view.ModeLive
		}
		m.settings.Mode = string(m.mode)
		m.saveView()
	case key.Matches(msg, keys.Intent):
		if m.orch.Intent() == view.IntentLatest {
			m.orch.SetIntent(view.IntentFromStart)
		} else {
			m.orch.SetIntent(view.IntentLatest)
		}
		m.status = "episodes open at " + m.orch.Intent().String()
	case key.Matches(msg, keys.Episodes):
		if m.store == nil {
			m.status = "no episode store configured"
			return m, nil
		}
		m.picking = true
		return m, m.list()
	case key.Matches(msg, keys.Seed):
		if m.store == nil {
			m.status = "no episode store configured"
			return m, nil
		}
		return m, m.seed()
	case key.Matches(msg, keys.Reload):
		if m.session.EpisodeID() == "" || m.store == nil {
			return m, nil
		}
		return m, m.fetch(m.session.Reload(), false)
	case key.Matches(msg, keys.Field):
		m.settings.ShowField = !m.settings.ShowField
		m.rev++
		m.saveView()
	case key.Matches(msg, keys.Focus):
		m.cycleFocus()
	case key.Matches(msg, keys.Unfocus):
		m.orch.ClearUserFocus()
	case key.Matches(msg, keys.Color):
		if m.requireFocus() {
			m.editing = true
			m.input.SetValue(m.history.Present()[m.out.FocusID].Color)
			m.input.CursorEnd()
			return m, m.input.Focus()
		}
	case key.Matches(msg, keys.Hide):
		if m.requireFocus() {
			id := m.out.FocusID
			m.history.Edit(id, func(o uistate.Override) uistate.Override {
				o.Hidden = true
				return o
			})
			m.orch.ClearUserFocus()
			m.overridesChanged("hid " + id)
		}
	case key.Matches(msg, keys.Brighter):
		m.nudgeIntensity(intensityStep)
	case key.Matches(msg, keys.Dimmer):
		m.nudgeIntensity(-intensityStep)
	case key.Matches(msg, keys.Undo):
		if m.history.Undo() {
			m.overridesChanged("undo")
		}
	case key.Matches(msg, keys.Redo):
		if m.history.Redo() {
			m.overridesChanged("redo")
		}
	case key.Matches(msg, keys.Reset):
		m.history.Reset()
		m.overridesChanged("overrides reset")
	default:
		m.updateTransport(msg)
	}
	return m, nil
}

func (m *Model) updateTransport(msg tea.KeyMsg) {
	if m.mode != view.ModeReplay || m.clock.Disabled() {
		for _, b := range []key.Binding{keys.Play, keys.StepBack, keys.StepFwd, keys.ScrubBack, keys.ScrubFwd, keys.Start, keys.End} {
			if key.Matches(msg, b) {
				m.status = "nothing to play; open an episode (e)"
				return
			}
		}
	}
	scrub := max(0.5, m.clock.Duration()/40)
	switch {
	case key.Matches(msg, keys.Play):
		m.clock.Toggle()
	case key.Matches(msg, keys.StepBack):
		m.clock.Step(-1)
	case key.Matches(msg, keys.StepFwd):
		m.clock.Step(1)
	case key.Matches(msg, keys.ScrubBack):
		m.clock.Scrub(m.clock.CurrentTime() - scrub)
	case key.Matches(msg, keys.ScrubFwd):
		m.clock.Scrub(m.clock.CurrentTime() + scrub)
	case key.Matches(msg, keys.Start):
		m.clock.SeekStart()
	case key.Matches(msg, keys.End):
		m.clock.SeekEnd()
	case key.Matches(msg, keys.Speed):
		m.settings.Speed = m.clock.CycleSpeed()
		m.saveView()
	}
}

// cycleFocus pins focus to the entity after the current one.
func (m *Model) cycleFocus() {
	if len(m.ids) == 0 {
		return
	}
	next := m.ids[0]
	for i, id := range m.ids {
		if id == m.out.FocusID {
			next = m.ids[(i+1)%len(m.ids)]
			break
		}
	}
	m.orch.SetUserFocus(next)
	m.out.FocusID = next
}

func (m *Model) requireFocus() bool {
	if m.out.FocusID == "" {
		m.status = "focus an entity first (tab)"
		return false
	}
	return true
}

// nudgeIntensity changes the focused node or loop intensity by delta.
func (m *Model) nudgeIntensity(delta float64) {
	if !m.requireFocus() {
		return
	}
	id := m.out.FocusID
	base, ok := intensityOf(m.out.State, id)
	if !ok {
		m.status = id + " has no intensity"
		return
	}
	if cur := m.history.Present()[id].Intensity; cur != nil {
		base = *cur
	}
	v := visual.Clamp01(base + delta)
	m.history.Edit(id, func(o uistate.Override) uistate.Override {
		o.Intensity = &v
		return o
	})
	m.overridesChanged(fmt.Sprintf("%s intensity %.1f", id, v))
}

func intensityOf(st visual.State, id string) (float64, bool) {
	for _, n := range st.Nodes {
		if n.ID == id {
			return n.Intensity, true
		}
	}
	for _, l := range st.Loops {
		if l.ID == id {
			return l.Intensity, true
		}
	}
	return 0, false
}

func (m *Model) overridesChanged(status string) {
	m.rev++
	m.status = status
	data, err := json.Marshal(m.history)
	if err == nil {
		err = m.prefs.Put(m.ctx, prefs.KeyOverrides, data)
	}
	if err != nil {
		m.logger.Warn("failed to save overrides", map[string]any{"error": err.Error()})
	}
}

func (m *Model) saveView() {
	if err := prefs.SaveJSON(m.ctx, m.prefs, prefs.KeyView, m.settings); err != nil {
		m.logger.Warn("failed to save view preferences", map[string]any{"error": err.Error()})
	}
}

func (m *Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.editing = false
		m.input.Blur()
		v := strings.TrimSpace(m.input.Value())
		if _, err := colorful.Hex(v); err != nil {
			m.status = fmt.Sprintf("invalid color %q", v)
			return m, nil
		}
		id := m.out.FocusID
		m.history.Edit(id, func(o uistate.Override) uistate.Override {
			o.Color = v
			return o
		})
		m.overridesChanged(id + " color " + v)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, picker.Close):
		m.picking = false
	case key.Matches(msg, keys.Seed):
		m.picking = false
		return m, m.seed()
	case key.Matches(msg, picker.Up):
		m.cursor = max(0, m.cursor-1)
	case key.Matches(msg, picker.Down):
		m.cursor = min(max(0, len(m.episodes)-1), m.cursor+1)
	case key.Matches(msg, picker.Open):
		if m.cursor >= len(m.episodes) {
			return m, nil
		}
		m.picking = false
		return m, m.open(m.episodes[m.cursor].ID)
	case key.Matches(msg, picker.Delete):
		if m.archiver == nil {
			m.status = "this store does not support archiving"
			return m, nil
		}
		if m.cursor < len(m.episodes) {
			return m, m.archive(m.episodes[m.cursor].ID)
		}
	}
	return m, nil
}

func episodeName(title, id string) string {
	if title != "" {
		return title
	}
	return id
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	if m.picking {
		b.WriteString(m.pickerView())
		b.WriteString("\n")
		b.WriteString(m.help.View(picker))
		return b.String()
	}

	footer := m.footer()
	w, h := m.canvasSize(lipgloss.Height(footer))
	if m.canvas == nil || m.canvas.width != w || m.canvas.height != h {
		m.canvas = NewCanvas(w, h)
	}
	snap := m.scene.Snapshot()
	m.canvas.Draw(snap, w >= 60)
	body := m.canvas.Render()
	if snap.Fallback {
		body = lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center,
			errorStyle.Render("invalid visual state: "+snap.Diagnostic))
	}
	b.WriteString(canvasBorder.Render(body))
	b.WriteString("\n")
	b.WriteString(footer)
	return b.String()
}

func (m *Model) canvasSize(footerLines int) (int, int) {
	w := m.width - 2
	h := m.height - footerLines - 4
	if m.render.Width > 0 {
		w = min(w, m.render.Width)
	}
	if m.render.Height > 0 {
		h = min(h, m.render.Height)
	}
	return max(w, 10), max(h, 3)
}

func (m *Model) header() string {
	badge := modeLiveStyle.Render("LIVE")
	if m.out.Mode == view.ModeReplay {
		badge = modeReplayStyle.Render("REPLAY")
	}
	parts := []string{titleStyle.Render("loopscope"), badge}

	if id := m.session.EpisodeID(); id != "" {
		name := id
		if ep := m.session.Episode(); ep != nil {
			name = episodeName(ep.Title, ep.ID)
		}
		parts = append(parts, valueStyle.Render(truncate.StringWithTail(name, 40, "…")))
	}
	if m.session.Loading() {
		parts = append(parts, m.spinner.View()+dimStyle.Render(" loading"))
	}
	if m.status != "" {
		parts = append(parts, dimStyle.Render(m.status))
	}
	return strings.Join(parts, " ")
}

func (m *Model) transportLine() string {
	state := "■"
	switch m.clock.State() {
	case playback.StatePlaying:
		state = "▶"
	case playback.StatePaused:
		state = "⏸"
	}
	pct := 0.0
	if d := m.clock.Duration(); d > 0 {
		pct = m.clock.CurrentTime() / d
	}
	return fmt.Sprintf("%s %s %s %s %s",
		state,
		m.bar.ViewAs(pct),
		valueStyle.Render(fmt.Sprintf("%.2fs/%.2fs", m.clock.CurrentTime(), m.clock.Duration())),
		labelStyle.Render(fmt.Sprintf("frame %d/%d", m.clock.CurrentIndex()+1, m.clock.Store().Len())),
		labelStyle.Render(fmt.Sprintf("%gx", m.clock.Speed())),
	)
}

func (m *Model) footer() string {
	var lines []string
	if m.out.Mode == view.ModeReplay && !m.clock.Disabled() {
		lines = append(lines, m.transportLine())
		if f, ok := m.clock.CurrentFrame(); ok && f.InputText != "" {
			lines = append(lines, textStyle.Render(wordwrap.String(f.InputText, max(20, m.width-4))))
		}
	}
	if m.out.Warning != "" {
		lines = append(lines, warnStyle.Render("! "+m.out.Warning))
	}

	focus := labelStyle.Render("focus: ") + dimStyle.Render("none")
	if id := m.out.FocusID; id != "" {
		owner := "data"
		if m.orch.UserFocus() != "" {
			owner = "pinned"
		}
		focus = labelStyle.Render("focus: ") + selectedStyle.Render(id) + dimStyle.Render(" ("+owner+")")
		if ov, ok := m.history.Present()[id]; ok && ov.Color != "" {
			focus += dimStyle.Render(" color " + ov.Color)
		}
	}
	if n := len(m.history.Present()); n > 0 {
		focus += dimStyle.Render(fmt.Sprintf("  %d override(s)", n))
	}
	lines = append(lines, focus)

	if m.editing {
		lines = append(lines, labelStyle.Render("color: ")+m.input.View())
	}
	lines = append(lines, m.help.View(keys))
	return strings.Join(lines, "\n")
}

func (m *Model) pickerView() string {
	if len(m.episodes) == 0 {
		return dimStyle.Render("no episodes; press d to seed a demo")
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("%d episode(s)", len(m.episodes))))
	b.WriteString("\n\n")
	for i, ep := range m.episodes {
		line := fmt.Sprintf("%-36s %-30s %4d frames %7.2fs",
			ep.ID,
			truncate.StringWithTail(episodeName(ep.Title, "-"), 30, "…"),
			ep.FrameCount, ep.Duration)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}
