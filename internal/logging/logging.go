// Package logging provides leveled, component-scoped logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel maps a config string to a Level. Unknown values map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes one line per entry.
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
}

// New creates a Logger writing to stderr at INFO.
func New() *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		output:   os.Stderr,
		minLevel: LevelInfo,
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	l := New()
	l.output = io.Discard
	return l
}

// WithComponent returns a logger tagged with the given component name.
// It shares the parent's output and lock.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]any) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]any) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats fields as key=value pairs in key order.
func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

// log writes: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]any) {
	if l == nil || levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// EpisodeLoaded logs a completed episode load.
func (l *Logger) EpisodeLoaded(id string, frames int, duration float64, elapsed time.Duration) {
	l.Info("episode_loaded", map[string]any{
		"episode_id": id,
		"frames":     frames,
		"duration":   fmt.Sprintf("%.2f", duration),
		"elapsed":    elapsed.String(),
	})
}

// EpisodeFailed logs a failed episode load.
func (l *Logger) EpisodeFailed(id string, err error) {
	l.Warn("episode_failed", map[string]any{
		"episode_id": id,
		"error":      err.Error(),
	})
}

// SchemaRejected logs a visual payload that failed structural validation.
func (l *Logger) SchemaRejected(source string, err error) {
	l.Warn("schema_rejected", map[string]any{
		"source": source,
		"error":  err.Error(),
	})
}

// PlaybackTransition logs a transport state change.
func (l *Logger) PlaybackTransition(from, to string, t float64) {
	l.Debug("playback_transition", map[string]any{
		"from": from,
		"to":   to,
		"t":    fmt.Sprintf("%.3f", t),
	})
}

// BackendRetry logs a retried backend call.
func (l *Logger) BackendRetry(op string, attempt int, err error) {
	l.Warn("backend_retry", map[string]any{
		"op":      op,
		"attempt": attempt,
		"error":   err.Error(),
	})
}

// FrameRecovered logs a panic recovered inside a render tick.
func (l *Logger) FrameRecovered(component string, recovered any) {
	l.Error("frame_recovered", map[string]any{
		"component": component,
		"panic":     fmt.Sprint(recovered),
	})
}
