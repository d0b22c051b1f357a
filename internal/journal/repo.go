package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/rulekeeper/internal/models"
	"github.com/starford/rulekeeper/internal/rulestore"
)

// DefaultLimit caps History when no limit is given.
const DefaultLimit = 50

// timeLayout is fixed width so that lexical order in SQL is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Verify *DB satisfies rulestore.Journal at compile time.
var _ rulestore.Journal = (*DB)(nil)

// Record appends one change.
func (db *DB) Record(ctx context.Context, c models.Change) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO changes (id, at, op, path, rule, previous, category, context, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.At.UTC().Format(timeLayout), c.Op, c.Path, c.Rule, c.Previous, c.Category, c.Context, c.Checksum)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// History returns the newest changes first. An empty path returns changes
// for every document.
func (db *DB) History(ctx context.Context, path string, limit int) ([]models.Change, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `SELECT id, at, op, path, rule, previous, category, context, checksum FROM changes`
	args := []any{}
	if path != "" {
		query += ` WHERE path = ?`
		args = append(args, path)
	}
	query += ` ORDER BY at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: history: %w", err)
	}
	defer rows.Close()

	var out []models.Change
	for rows.Next() {
		var (
			c  models.Change
			at string
		)
		if err := rows.Scan(&c.ID, &at, &c.Op, &c.Path, &c.Rule, &c.Previous, &c.Category, &c.Context, &c.Checksum); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		c.At, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("journal: parse time %q: %w", at, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
