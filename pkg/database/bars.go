package database

import (
	"fmt"

	"github.com/demxyuanli/selfa-indicators/internal/indicator"
)

// SaveBars replaces the cached bar history for a (symbol, interval)
// pair. The replace is transactional so readers never observe a
// half-written history.
func (db *DB) SaveBars(symbol, interval string, bars []indicator.Bar) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM bars WHERE symbol = ? AND interval = ?`, symbol, interval); err != nil {
		return fmt.Errorf("failed to clear bars for %s/%s: %w", symbol, interval, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO bars (symbol, interval, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare bar insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(symbol, interval, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("failed to insert bar at %s: %w", b.Date, err)
		}
	}

	return tx.Commit()
}

// LoadBars returns the cached bar history for a (symbol, interval)
// pair, ascending by date.
func (db *DB) LoadBars(symbol, interval string) ([]indicator.Bar, error) {
	query := `SELECT date, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND interval = ? ORDER BY date ASC`

	rows, err := db.conn.Query(query, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s/%s: %w", symbol, interval, err)
	}
	defer rows.Close()

	var bars []indicator.Bar
	for rows.Next() {
		var b indicator.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar row: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
