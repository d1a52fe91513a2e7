package pointstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// NewPoint is a point to create during an import.
type NewPoint struct {
	Measurement         string
	OriginalPointName   string
	NormalizedPointName string
	PointComment        string
	DataType            string
}

// MergePoint updates an existing point. Empty fields keep the stored value.
type MergePoint struct {
	ID                  int64
	Measurement         string
	OriginalPointName   string
	NormalizedPointName string
	PointComment        string
	DataType            string
}

// ImportResult counts the rows an import wrote.
type ImportResult struct {
	Created int
	Merged  int
}

// Import creates and merges points for a config file in one transaction. Created points are linked and locked.
// Merged points are snapshotted into point_history, relinked to the config file and locked. Any invalid item
// aborts the whole import with ErrValidation.
func (s *Store) Import(ctx context.Context, configID int64, batch string, creates []NewPoint, merges []MergePoint) (ImportResult, error) {
	if configID == 0 {
		return ImportResult{}, fmt.Errorf("%w: missing config_file_id", ErrValidation)
	}
	for i, p := range creates {
		if missing := missingFields(map[string]string{
			"measurement":           p.Measurement,
			"original_point_name":   p.OriginalPointName,
			"normalized_point_name": p.NormalizedPointName,
		}); missing != "" {
			return ImportResult{}, fmt.Errorf("%w: create #%d is missing %s", ErrValidation, i, missing)
		}
	}
	for i, p := range merges {
		if p.ID == 0 || p.Measurement == "" {
			return ImportResult{}, fmt.Errorf("%w: merge #%d requires id and measurement", ErrValidation, i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, fmt.Errorf("pointstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := requireConfigFile(ctx, tx, configID); err != nil {
		return ImportResult{}, err
	}

	now := s.timestamp()
	var res ImportResult

	insert, err := tx.PrepareContext(ctx, `INSERT INTO points (measurement, original_point_name, normalized_point_name,
		point_comment, data_type, config_file_id, is_locked, import_batch, import_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, 'created', ?)`)
	if err != nil {
		return ImportResult{}, fmt.Errorf("pointstore: prepare insert: %w", err)
	}
	defer insert.Close()

	for _, p := range creates {
		if _, err := insert.ExecContext(ctx, p.Measurement, p.OriginalPointName, p.NormalizedPointName,
			p.PointComment, p.DataType, configID, batch, now); err != nil {
			return ImportResult{}, fmt.Errorf("pointstore: insert point %q: %w", p.Measurement, err)
		}
		res.Created++
	}

	for _, m := range merges {
		if err := mergePoint(ctx, tx, configID, batch, now, m); err != nil {
			return ImportResult{}, err
		}
		res.Merged++
	}

	if _, err := tx.ExecContext(ctx, `UPDATE config_files SET points_synced = 1 WHERE id = ?`, configID); err != nil {
		return ImportResult{}, fmt.Errorf("pointstore: mark config synced: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ImportResult{}, fmt.Errorf("pointstore: commit: %w", err)
	}
	return res, nil
}

func mergePoint(ctx context.Context, tx *sql.Tx, configID int64, batch, now string, m MergePoint) error {
	row := tx.QueryRowContext(ctx, `SELECT `+pointColumns+` FROM points WHERE id = ?`, m.ID)
	existing, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: point %d does not exist", ErrValidation, m.ID)
	}
	if err != nil {
		return fmt.Errorf("pointstore: load point %d: %w", m.ID, err)
	}

	var version int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM point_history WHERE point_id = ?`, m.ID).Scan(&version); err != nil {
		return fmt.Errorf("pointstore: count history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO point_history (point_id, version, measurement, original_point_name,
		normalized_point_name, point_comment, data_type, config_file_id, is_locked, import_batch, change_reason,
		created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		existing.ID, version+1, existing.Measurement, existing.OriginalPointName, existing.NormalizedPointName,
		existing.PointComment, existing.DataType, nullable(existing.ConfigFileID), boolInt(existing.Locked),
		existing.ImportBatch, "updated by wizard import batch "+batch, now); err != nil {
		return fmt.Errorf("pointstore: write history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE points SET original_point_name = ?, normalized_point_name = ?,
		point_comment = ?, data_type = ?, config_file_id = ?, is_locked = 1, import_batch = ?,
		import_status = 'updated', updated_at = ? WHERE id = ?`,
		keep(m.OriginalPointName, existing.OriginalPointName),
		keep(m.NormalizedPointName, existing.NormalizedPointName),
		keep(m.PointComment, existing.PointComment),
		keep(m.DataType, existing.DataType),
		configID, batch, now, m.ID); err != nil {
		return fmt.Errorf("pointstore: update point %d: %w", m.ID, err)
	}
	return nil
}

func requireConfigFile(ctx context.Context, tx *sql.Tx, configID int64) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM config_files WHERE id = ?`, configID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: config file %d does not exist", ErrValidation, configID)
	}
	if err != nil {
		return fmt.Errorf("pointstore: check config file: %w", err)
	}
	return nil
}

func keep(next, current string) string {
	if next == "" {
		return current
	}
	return next
}

func missingFields(fields map[string]string) string {
	var missing []string
	for _, name := range []string{"measurement", "original_point_name", "normalized_point_name"} {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	return strings.Join(missing, ", ")
}
