// Package prefs is a best-effort key-value store for client-side state such
// as view preferences and the override history. Values are opaque JSON
// objects; anything missing or unreadable comes back as the caller's default.
package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Fixed keys.
const (
	KeyView      = "view.prefs"
	KeyOverrides = "overrides.stack"
)

const schema = `CREATE TABLE IF NOT EXISTS prefs (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// View holds the persisted view preferences.
type View struct {
	Speed       float64 `json:"speed"`
	Mode        string  `json:"mode"`
	ShowHelp    bool    `json:"show_help"`
	ShowField   bool    `json:"show_field"`
	LastEpisode string  `json:"last_episode,omitempty"`
}

// DefaultView is used when nothing valid is stored.
func DefaultView() View {
	return View{Speed: 1, Mode: "live", ShowField: true}
}

// Store is a SQLite-backed key-value table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("prefs path is required")
	}

	dsn := path
	if path != ":memory:" {
		clean := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(clean), 0755); err != nil {
			return nil, fmt.Errorf("create prefs dir: %w", err)
		}
		dsn = clean + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create prefs table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the raw value for key. A missing key returns nil, nil.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Put upserts the raw value for key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM prefs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// LoadJSON decodes key into a copy of def. Missing, unreadable or corrupt
// values return def unchanged.
func LoadJSON[T any](ctx context.Context, s *Store, key string, def T) T {
	data, err := s.Get(ctx, key)
	if err != nil || len(data) == 0 {
		return def
	}
	out := def
	if err := json.Unmarshal(data, &out); err != nil {
		return def
	}
	return out
}

// SaveJSON encodes v under key.
func SaveJSON(ctx context.Context, s *Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}
