package replay

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// MultiPrinter prints several episodes in creation order.
type MultiPrinter struct {
	output    io.Writer
	verbosity int
	statsOnly bool
}

// NewMulti creates a new MultiPrinter.
func NewMulti(output io.Writer, verbosity int) *MultiPrinter {
	return &MultiPrinter{
		output:    output,
		verbosity: verbosity,
	}
}

// StatsOnly prints each episode's statistics instead of its timeline.
func (m *MultiPrinter) StatsOnly(on bool) *MultiPrinter {
	m.statsOnly = on
	return m
}

type episodeInfo struct {
	Episode *Episode
	Source  string
	Name    string
}

// PrintFiles loads every path and prints the episodes.
func (m *MultiPrinter) PrintFiles(paths []string) error {
	eps := make([]*Episode, 0, len(paths))
	for _, path := range paths {
		ep, err := LoadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		eps = append(eps, ep)
	}
	return m.PrintEpisodes(eps, paths)
}

// PrintEpisodes prints eps. sources[i] names where eps[i] came from: a file
// path or a store id.
func (m *MultiPrinter) PrintEpisodes(eps []*Episode, sources []string) error {
	episodes := make([]episodeInfo, len(eps))
	for i, ep := range eps {
		src := ep.ID
		if i < len(sources) {
			src = sources[i]
		}
		episodes[i] = episodeInfo{Episode: ep, Source: src, Name: episodeName(ep, src)}
	}
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Episode.CreatedAt.Before(episodes[j].Episode.CreatedAt)
	})

	p := NewPrinter(m.output, m.verbosity)
	for i, info := range episodes {
		if len(episodes) > 1 {
			m.printEpisodeHeader(info, i+1, len(episodes))
		}
		if m.statsOnly {
			PrintStats(m.output, ComputeStats(info.Episode))
		} else if err := p.Print(info.Episode); err != nil {
			return fmt.Errorf("failed to print %s: %w", info.Source, err)
		}
		if i < len(episodes)-1 {
			fmt.Fprintln(m.output)
		}
	}
	return nil
}

func episodeName(ep *Episode, path string) string {
	if ep.Title != "" {
		return ep.Title
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var (
	episodeHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("6"))

	episodeDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6"))
)

func (m *MultiPrinter) printEpisodeHeader(info episodeInfo, num, total int) {
	shortID := info.Episode.ID
	if len(shortID) > 12 {
		shortID = shortID[:12]
	}

	header := fmt.Sprintf(" [%d/%d] %s │ %s │ %s ",
		num, total,
		info.Name,
		shortID,
		formatTime(info.Episode.CreatedAt))

	fmt.Fprintln(m.output)
	fmt.Fprintln(m.output, episodeDividerStyle.Render(strings.Repeat("━", 70)))
	fmt.Fprintln(m.output, episodeHeaderStyle.Render(header))
	fmt.Fprintln(m.output, episodeDividerStyle.Render(strings.Repeat("━", 70)))
}
