package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Record types for the line-oriented episode format.
const (
	RecordTypeHeader = "header"
	RecordTypeFrame  = "frame"
)

// Record is one line of an episode written as JSONL.
type Record struct {
	RecordType string    `json:"record"`
	ID         string    `json:"episode_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
	Duration   float64   `json:"duration,omitempty"`
	Version    string    `json:"version,omitempty"`
	Frame      *Frame    `json:"frame,omitempty"`
}

// DetectFormat returns "jsonl" when the first line of the file is a record,
// otherwise "json".
func DetectFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var head struct {
				RecordType string `json:"record"`
			}
			if json.Unmarshal(line, &head) == nil && head.RecordType != "" {
				return "jsonl", nil
			}
			return "json", nil
		}
		if err != nil {
			if err == io.EOF {
				return "json", nil
			}
			return "", err
		}
	}
}

// LoadFile reads an episode from disk in either format and normalizes it.
func LoadFile(path string) (*Episode, error) {
	format, err := DetectFormat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to detect format: %w", err)
	}

	if format == "jsonl" {
		return loadJSONL(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read episode file: %w", err)
	}
	return DecodeEpisode(data)
}

// DecodeEpisode parses a JSON episode document and normalizes it.
func DecodeEpisode(data []byte) (*Episode, error) {
	var ep Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if ep.Frames == nil {
		ep.Frames = []Frame{}
	}
	return Normalize(&ep), nil
}

func loadJSONL(path string) (*Episode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read episode file: %w", err)
	}
	defer f.Close()

	ep := &Episode{Frames: []Frame{}}
	reader := bufio.NewReader(f)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading JSONL: %w", err)
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if parseErr := parseRecord(trimmed, ep); parseErr != nil {
				return nil, parseErr
			}
		}

		if err == io.EOF {
			break
		}
	}

	return Normalize(ep), nil
}

func parseRecord(line []byte, ep *Episode) error {
	var record Record
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("%w: failed to parse JSONL line: %v", ErrCorrupt, err)
	}

	switch record.RecordType {
	case RecordTypeHeader:
		ep.ID = record.ID
		ep.Title = record.Title
		ep.CreatedAt = record.CreatedAt
		ep.UpdatedAt = record.UpdatedAt
		ep.Duration = record.Duration
		ep.Version = record.Version
	case RecordTypeFrame:
		if record.Frame != nil {
			ep.Frames = append(ep.Frames, *record.Frame)
		}
	}
	return nil
}
