package pointstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Point is a stored measurement point.
type Point struct {
	ID                  int64
	Measurement         string
	OriginalPointName   string
	NormalizedPointName string
	PointComment        string
	DataType            string
	// ConfigFileID is nil for points not linked to any config file.
	ConfigFileID *int64
	Locked       bool
	ImportBatch  string
	ImportStatus string
}

// HistoryEntry is a snapshot of a point taken before a merge changed it.
type HistoryEntry struct {
	PointID      int64
	Version      int
	Measurement  string
	ConfigFileID *int64
	ImportBatch  string
	ChangeReason string
}

const pointColumns = `id, measurement, original_point_name, normalized_point_name, point_comment, data_type,
	config_file_id, is_locked, import_batch, import_status`

type scanner interface {
	Scan(dest ...any) error
}

func scanPoint(row scanner) (Point, error) {
	var (
		p      Point
		config sql.NullInt64
		locked int
	)
	if err := row.Scan(&p.ID, &p.Measurement, &p.OriginalPointName, &p.NormalizedPointName, &p.PointComment,
		&p.DataType, &config, &locked, &p.ImportBatch, &p.ImportStatus); err != nil {
		return Point{}, err
	}
	if config.Valid {
		id := config.Int64
		p.ConfigFileID = &id
	}
	p.Locked = locked != 0
	return p, nil
}

func nullable(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// AddPoint inserts a point as-is and returns its id.
func (s *Store) AddPoint(ctx context.Context, p Point) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO points (measurement, original_point_name, normalized_point_name,
		point_comment, data_type, config_file_id, is_locked, import_batch, import_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Measurement, p.OriginalPointName, p.NormalizedPointName, p.PointComment, p.DataType,
		nullable(p.ConfigFileID), boolInt(p.Locked), p.ImportBatch, p.ImportStatus, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("pointstore: insert point: %w", err)
	}
	return res.LastInsertId()
}

// GetPoint returns a point by id.
func (s *Store) GetPoint(ctx context.Context, id int64) (Point, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pointColumns+` FROM points WHERE id = ?`, id)
	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Point{}, fmt.Errorf("point %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Point{}, fmt.Errorf("pointstore: get point: %w", err)
	}
	return p, nil
}

// ListPoints returns every point, ordered by id.
func (s *Store) ListPoints(ctx context.Context) ([]Point, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pointColumns+` FROM points ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pointstore: list points: %w", err)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("pointstore: scan point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Lookup returns, for each name that exists, the point that decides its status. Points linked to a config file
// win over unlinked ones; ties go to the higher config id and then the lower point id.
func (s *Store) Lookup(ctx context.Context, names []string) (map[string]Point, error) {
	out := make(map[string]Point, len(names))
	if len(names) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	query := `SELECT ` + pointColumns + ` FROM points WHERE measurement IN (` + placeholders + `)
		ORDER BY config_file_id DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pointstore: lookup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("pointstore: scan point: %w", err)
		}
		if _, seen := out[p.Measurement]; !seen {
			out[p.Measurement] = p
		}
	}
	return out, rows.Err()
}

// History returns the snapshots of a point, oldest first.
func (s *Store) History(ctx context.Context, pointID int64) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT point_id, version, measurement, config_file_id, import_batch,
		change_reason FROM point_history WHERE point_id = ? ORDER BY version`, pointID)
	if err != nil {
		return nil, fmt.Errorf("pointstore: history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			h      HistoryEntry
			config sql.NullInt64
		)
		if err := rows.Scan(&h.PointID, &h.Version, &h.Measurement, &config, &h.ImportBatch, &h.ChangeReason); err != nil {
			return nil, fmt.Errorf("pointstore: scan history: %w", err)
		}
		if config.Valid {
			id := config.Int64
			h.ConfigFileID = &id
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
