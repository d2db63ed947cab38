package database

import (
	"fmt"
	"time"

	"github.com/demxyuanli/selfa-indicators/internal/indicator"
)

// SaveIndicator inserts or replaces a persisted indicator definition.
// The position keeps the registry's insertion order stable across
// restarts.
func (db *DB) SaveIndicator(def indicator.Definition, position int) error {
	query := `INSERT INTO indicators (id, name, formula, color, line_width, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			formula = excluded.formula,
			color = excluded.color,
			line_width = excluded.line_width,
			position = excluded.position,
			updated_at = excluded.updated_at`

	now := time.Now()
	_, err := db.conn.Exec(query, def.ID, def.Name, def.Formula, def.Color, def.LineWidth, position, now, now)
	if err != nil {
		return fmt.Errorf("failed to save indicator %s: %w", def.ID, err)
	}
	return nil
}

// ListIndicators returns all persisted definitions ordered by position.
func (db *DB) ListIndicators() ([]indicator.Definition, error) {
	query := `SELECT id, name, formula, color, line_width FROM indicators ORDER BY position ASC`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list indicators: %w", err)
	}
	defer rows.Close()

	var defs []indicator.Definition
	for rows.Next() {
		var def indicator.Definition
		if err := rows.Scan(&def.ID, &def.Name, &def.Formula, &def.Color, &def.LineWidth); err != nil {
			return nil, fmt.Errorf("failed to scan indicator row: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// DeleteIndicator removes a persisted definition.
func (db *DB) DeleteIndicator(id string) error {
	_, err := db.conn.Exec(`DELETE FROM indicators WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete indicator %s: %w", id, err)
	}
	return nil
}
