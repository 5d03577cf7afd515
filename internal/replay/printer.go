package replay

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"
)

// Printer writes a styled timeline of an episode's frames.
type Printer struct {
	output      io.Writer
	verbosity   int // 0=normal, 1=verbose (-v), 2=very verbose (-vv)
	maxTextSize int // 0 = unlimited
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithMaxTextSize limits how much of each frame's input text is printed.
func WithMaxTextSize(size int) PrinterOption {
	return func(p *Printer) {
		p.maxTextSize = size
	}
}

// NewPrinter creates a Printer.
// verbosity: 0=normal, 1=verbose (-v), 2=very verbose (-vv)
func NewPrinter(output io.Writer, verbosity int, opts ...PrinterOption) *Printer {
	p := &Printer{
		output:      output,
		verbosity:   verbosity,
		maxTextSize: 200,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PrintFile loads an episode file and prints it.
func (p *Printer) PrintFile(path string) error {
	ep, err := LoadFile(path)
	if err != nil {
		return err
	}
	return p.Print(ep)
}

// Render returns the printed timeline as a string.
func (p *Printer) Render(ep *Episode) (string, error) {
	var buf strings.Builder
	out := p.output
	p.output = &buf
	defer func() { p.output = out }()

	if err := p.Print(ep); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Print outputs the header, frame timeline and statistics of ep.
func (p *Printer) Print(ep *Episode) error {
	if ep == nil {
		return ErrNotFound
	}
	p.printHeader(ep)
	p.printTimeline(ep)
	p.printSummary(ep)
	return nil
}

func (p *Printer) printHeader(ep *Episode) {
	fmt.Fprintln(p.output)
	fmt.Fprintf(p.output, "%s %s\n", titleStyle.Render("EPISODE"), valueStyle.Render(ep.ID))
	fmt.Fprintln(p.output, divider)
	if ep.Title != "" {
		fmt.Fprintf(p.output, "%s %s\n", labelStyle.Render("Title:   "), valueStyle.Render(ep.Title))
	}
	fmt.Fprintf(p.output, "%s %s\n", labelStyle.Render("Created: "), valueStyle.Render(formatTime(ep.CreatedAt)))
	fmt.Fprintf(p.output, "%s %s\n", labelStyle.Render("Updated: "), valueStyle.Render(formatTime(ep.UpdatedAt)))
	fmt.Fprintf(p.output, "%s %s\n", labelStyle.Render("Duration:"), valueStyle.Render(formatSeconds(ep.Duration)))
	if ep.Version != "" && ep.Version != SchemaVersion {
		fmt.Fprintf(p.output, "%s %s\n", labelStyle.Render("Version: "), warnStyle.Render(ep.Version))
	}
	fmt.Fprintln(p.output)
}

func (p *Printer) printTimeline(ep *Episode) {
	fmt.Fprintf(p.output, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d frames)", len(ep.Frames))))
	fmt.Fprintln(p.output, divider)

	for i, f := range ep.Frames {
		p.printFrame(i, f)
	}
}

func (p *Printer) printFrame(idx int, f Frame) {
	seq := seqStyle.Render(fmt.Sprintf("%d", idx))
	ts := timeStyle.Render(formatSeconds(f.T))

	text := f.InputText
	if text == "" {
		text = dimStyle.Render("(no input)")
	} else {
		text = inputStyle.Render(truncateText(text, p.maxTextSize))
	}
	fmt.Fprintf(p.output, "%s │ %s │ %s\n", seq, ts, text)

	vs, err := f.VisualState()
	if err != nil {
		fmt.Fprintf(p.output, "      │          │   %s\n", errorStyle.Render("invalid visual: "+err.Error()))
	} else if p.verbosity >= 1 {
		fmt.Fprintf(p.output, "      │          │   %s\n", dimStyle.Render(fmt.Sprintf(
			"%d nodes, %d loops, %d levers, %d flows", len(vs.Nodes), len(vs.Loops), len(vs.Levers), len(vs.Flows))))
		if vs.Focus != "" {
			fmt.Fprintf(p.output, "      │          │   %s %s\n", labelStyle.Render("focus:"), valueStyle.Render(vs.Focus))
		}
	}

	if len(f.SystemSignals) > 0 {
		fmt.Fprintf(p.output, "      │          │   %s\n", signalStyle.Render(formatSignals(f.SystemSignals)))
	}
	if len(f.Meta.Tags) > 0 {
		fmt.Fprintf(p.output, "      │          │   %s\n", tagStyle.Render("#"+strings.Join(f.Meta.Tags, " #")))
	}
	if p.verbosity >= 1 && f.Meta.Note != "" {
		fmt.Fprintf(p.output, "      │          │   %s %s\n", labelStyle.Render("note:"), valueStyle.Render(f.Meta.Note))
	}
	if p.verbosity >= 2 {
		p.printRaw("human_state", f.HumanState)
		p.printRaw("system_state", f.SystemState)
	}
}

func (p *Printer) printRaw(label string, raw []byte) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	fmt.Fprintf(p.output, "      │          │   %s %s\n", labelStyle.Render(label+":"), dimStyle.Render(truncateText(string(raw), p.maxTextSize)))
}

func (p *Printer) printSummary(ep *Episode) {
	fmt.Fprintln(p.output)
	fmt.Fprintln(p.output, divider)

	stats := ComputeStats(ep)
	switch {
	case stats.FrameCount == 0:
		fmt.Fprintln(p.output, warnStyle.Render("EMPTY"))
	case stats.InvalidVisuals > 0:
		fmt.Fprintf(p.output, "%s %s\n", errorStyle.Render("INVALID FRAMES:"), valueStyle.Render(fmt.Sprintf("%d", stats.InvalidVisuals)))
	default:
		fmt.Fprintln(p.output, successStyle.Render("OK"))
	}

	PrintStats(p.output, stats)
}

func formatSignals(signals map[string]float64) string {
	keys := slices.Sorted(maps.Keys(signals))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, signals[k]))
	}
	return strings.Join(parts, " ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// formatSeconds formats a playback offset in seconds.
func formatSeconds(s float64) string {
	if s < 60 {
		return fmt.Sprintf("%.2fs", s)
	}
	mins := int(s) / 60
	secs := s - float64(mins*60)
	return fmt.Sprintf("%dm%04.1fs", mins, secs)
}

// truncateText truncates a string for display.
func truncateText(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
