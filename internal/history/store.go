package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"zbridge/internal/config"
	"zbridge/internal/workdir"
)

// Kind classifies a workfile event.
type Kind string

const (
	KindOpen Kind = "open"
	KindSave Kind = "save"
)

// Event is one workfile open or save.
type Event struct {
	ID        int64           `json:"id" yaml:"id"`
	Kind      Kind            `json:"kind" yaml:"kind"`
	Context   workdir.Context `json:"context" yaml:"context"`
	Path      string          `json:"path" yaml:"path"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

// Store persists workfile events in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the history database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record appends an event.
func (s *Store) Record(ctx context.Context, kind Kind, c workdir.Context, path string) (*Event, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history event requires a path")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO workfile_events (kind, project_name, asset_name, task_name, path, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		string(kind), c.Project, c.Asset, c.Task, path, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Event{ID: id, Kind: kind, Context: c, Path: path, CreatedAt: now}, nil
}

// Last returns the most recent workfile of a context, if any.
func (s *Store) Last(ctx context.Context, c workdir.Context) (string, bool, error) {
	var path string
	err := s.db.QueryRowContext(ctx,
		`SELECT path FROM workfile_events
         WHERE project_name = ? AND asset_name = ? AND task_name = ?
         ORDER BY id DESC LIMIT 1`,
		c.Project, c.Asset, c.Task,
	).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query last workfile: %w", err)
	}
	return path, true, nil
}

// List returns the most recent events first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Event, error) {
	query := `SELECT id, kind, project_name, asset_name, task_name, path, created_at
              FROM workfile_events ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev      Event
			kind    string
			created string
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.Context.Project, &ev.Context.Asset, &ev.Context.Task, &ev.Path, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = Kind(kind)
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			ev.CreatedAt = ts
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Clear removes every event and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM workfile_events")
	if err != nil {
		return 0, fmt.Errorf("clear events: %w", err)
	}
	return res.RowsAffected()
}
