package replay

import (
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"github.com/charmbracelet/lipgloss"
)

// SignalStats summarizes one system signal across an episode.
type SignalStats struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
	Last  float64
}

// Stats holds aggregate statistics for an episode.
type Stats struct {
	FrameCount     int
	Duration       float64
	InvalidVisuals int

	// Largest gap between consecutive frames, in seconds.
	MaxGap float64

	Signals map[string]*SignalStats
	Tags    map[string]int
}

// ComputeStats calculates aggregate statistics from an episode's frames.
// Frames are expected in time order.
func ComputeStats(ep *Episode) *Stats {
	stats := &Stats{
		FrameCount: len(ep.Frames),
		Duration:   ep.Duration,
		Signals:    make(map[string]*SignalStats),
		Tags:       make(map[string]int),
	}

	sums := make(map[string]float64)
	for i, f := range ep.Frames {
		if i > 0 {
			if gap := finiteTime(f.T) - finiteTime(ep.Frames[i-1].T); gap > stats.MaxGap {
				stats.MaxGap = gap
			}
		}

		if _, err := f.VisualState(); err != nil {
			stats.InvalidVisuals++
		}

		for name, v := range f.SystemSignals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			s, ok := stats.Signals[name]
			if !ok {
				s = &SignalStats{Min: v, Max: v}
				stats.Signals[name] = s
			}
			s.Count++
			s.Min = min(s.Min, v)
			s.Max = max(s.Max, v)
			s.Last = v
			sums[name] += v
		}

		for _, tag := range f.Meta.Tags {
			stats.Tags[tag]++
		}
	}

	for name, s := range stats.Signals {
		s.Mean = sums[name] / float64(s.Count)
	}
	return stats
}

// PrintStats outputs the statistics to the writer.
func PrintStats(w io.Writer, stats *Stats) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("═══════════════════════════════════════════════════════════════════"))
	fmt.Fprintln(w, headerStyle.Render("                         EPISODE STATISTICS                         "))
	fmt.Fprintln(w, headerStyle.Render("═══════════════════════════════════════════════════════════════════"))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Frames:  "), valueStyle.Render(fmt.Sprintf("%d", stats.FrameCount)))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Duration:"), valueStyle.Render(formatSeconds(stats.Duration)))
	if stats.FrameCount > 1 {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Max gap: "), valueStyle.Render(formatSeconds(stats.MaxGap)))
	}
	if stats.InvalidVisuals > 0 {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Invalid: "), errorStyle.Render(fmt.Sprintf("%d frames", stats.InvalidVisuals)))
	}
	fmt.Fprintln(w)

	if len(stats.Signals) > 0 {
		fmt.Fprintln(w, headerStyle.Render("System Signals:"))
		for _, name := range slices.Sorted(maps.Keys(stats.Signals)) {
			s := stats.Signals[name]
			fmt.Fprintf(w, "  %s %s\n",
				labelStyle.Render(name+":"),
				valueStyle.Render(fmt.Sprintf("min %.2f  max %.2f  mean %.2f  last %.2f", s.Min, s.Max, s.Mean, s.Last)))
		}
		fmt.Fprintln(w)
	}

	if len(stats.Tags) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Tags:"))
		for _, tag := range slices.Sorted(maps.Keys(stats.Tags)) {
			fmt.Fprintf(w, "  %s %s\n", tagStyle.Render("#"+tag), valueStyle.Render(fmt.Sprintf("%d", stats.Tags[tag])))
		}
		fmt.Fprintln(w)
	}
}
