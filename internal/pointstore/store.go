// Package pointstore keeps points, config files and components in SQLite. It backs the development server and
// mirrors the behaviour the import workflow expects from the production store.
package pointstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound indicates a missing row.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates rejected input; nothing was written.
	ErrValidation = errors.New("validation failed")
)

const schema = `
CREATE TABLE IF NOT EXISTS config_files (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	file_name      TEXT NOT NULL,
	content        TEXT NOT NULL,
	points_synced  INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS points (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	measurement            TEXT NOT NULL,
	original_point_name    TEXT NOT NULL DEFAULT '',
	normalized_point_name  TEXT NOT NULL DEFAULT '',
	point_comment          TEXT NOT NULL DEFAULT '',
	data_type              TEXT NOT NULL DEFAULT '',
	config_file_id         INTEGER REFERENCES config_files(id),
	is_locked              INTEGER NOT NULL DEFAULT 0,
	import_batch           TEXT NOT NULL DEFAULT '',
	import_status          TEXT NOT NULL DEFAULT '',
	updated_at             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_points_measurement ON points(measurement);
CREATE TABLE IF NOT EXISTS point_history (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	point_id               INTEGER NOT NULL REFERENCES points(id),
	version                INTEGER NOT NULL,
	measurement            TEXT NOT NULL,
	original_point_name    TEXT NOT NULL,
	normalized_point_name  TEXT NOT NULL,
	point_comment          TEXT NOT NULL,
	data_type              TEXT NOT NULL,
	config_file_id         INTEGER,
	is_locked              INTEGER NOT NULL,
	import_batch           TEXT NOT NULL,
	change_reason          TEXT NOT NULL,
	created_at             TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS components (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	content      TEXT NOT NULL,
	level1_type  TEXT NOT NULL,
	level2_type  TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	UNIQUE (level1_type, name)
);
`

// Config configures the store.
type Config struct {
	// DSN is passed to database/sql, e.g. "points.db" or "file::memory:?cache=shared".
	DSN string
}

// Store is a SQLite-backed point store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to the database, applies the schema and returns the store plus a close function.
func Open(ctx context.Context, cfg Config) (*Store, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("pointstore: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pointstore: open: %w", err)
	}
	// One writer keeps SQLite transactions from failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("pointstore: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("pointstore: enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("pointstore: apply schema: %w", err)
	}

	closeFn := func() { _ = db.Close() }
	return &Store{db: db, now: time.Now}, closeFn, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// ConfigFile is a stored configuration file.
type ConfigFile struct {
	ID           int64
	FileName     string
	Content      string
	PointsSynced bool
}

// AddConfigFile stores a configuration file and returns its id.
func (s *Store) AddConfigFile(ctx context.Context, fileName, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO config_files (file_name, content, created_at) VALUES (?, ?, ?)`,
		fileName, content, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("pointstore: insert config file: %w", err)
	}
	return res.LastInsertId()
}

// GetConfigFile returns a configuration file by id.
func (s *Store) GetConfigFile(ctx context.Context, id int64) (ConfigFile, error) {
	var (
		f      ConfigFile
		synced int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, content, points_synced FROM config_files WHERE id = ?`, id).
		Scan(&f.ID, &f.FileName, &f.Content, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return ConfigFile{}, fmt.Errorf("config file %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return ConfigFile{}, fmt.Errorf("pointstore: get config file: %w", err)
	}
	f.PointsSynced = synced != 0
	return f, nil
}
