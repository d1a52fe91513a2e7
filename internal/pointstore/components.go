package pointstore

import (
	"context"
	"fmt"
)

// Component is a snippet saved for reuse.
type Component struct {
	Name       string
	Content    string
	Level1Type string
	Level2Type string
}

// SaveComponents stores each component independently and returns the saved components plus one message per
// skipped component. Blank fields, names repeated within the batch and names already stored are skipped.
func (s *Store) SaveComponents(ctx context.Context, components []Component) ([]Component, []string, error) {
	var (
		saved []Component
		errs  []string
	)
	inBatch := make(map[string]bool, len(components))
	for i, c := range components {
		if c.Name == "" || c.Content == "" || c.Level1Type == "" || c.Level2Type == "" {
			errs = append(errs, fmt.Sprintf("component #%d is missing name, content or category", i))
			continue
		}
		key := c.Level1Type + "/" + c.Name
		if inBatch[key] {
			errs = append(errs, fmt.Sprintf("component %q is repeated in this batch; skipped", c.Name))
			continue
		}
		inBatch[key] = true

		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM components WHERE level1_type = ? AND name = ?`,
			c.Level1Type, c.Name).Scan(&exists)
		if err != nil {
			return saved, errs, fmt.Errorf("pointstore: check component: %w", err)
		}
		if exists > 0 {
			errs = append(errs, fmt.Sprintf("component %q already exists; skipped", c.Name))
			continue
		}

		if _, err := s.db.ExecContext(ctx, `INSERT INTO components (name, content, level1_type, level2_type, created_at)
			VALUES (?, ?, ?, ?, ?)`, c.Name, c.Content, c.Level1Type, c.Level2Type, s.timestamp()); err != nil {
			return saved, errs, fmt.Errorf("pointstore: insert component: %w", err)
		}
		saved = append(saved, c)
	}
	return saved, errs, nil
}

// ListComponents returns saved components ordered by category and name.
func (s *Store) ListComponents(ctx context.Context) ([]Component, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, content, level1_type, level2_type FROM components
		ORDER BY level1_type, name`)
	if err != nil {
		return nil, fmt.Errorf("pointstore: list components: %w", err)
	}
	defer rows.Close()

	var out []Component
	for rows.Next() {
		var c Component
		if err := rows.Scan(&c.Name, &c.Content, &c.Level1Type, &c.Level2Type); err != nil {
			return nil, fmt.Errorf("pointstore: scan component: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
