package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/passport/internal/models"
)

const checksumKey = "checksum"

// Sync replaces the indexed visits with visits in one transaction. It is a
// no-op when sum equals the checksum recorded by the previous sync; the
// returned bool reports whether the table was rewritten.
func (db *DB) Sync(sum string, visits []models.Visit) (bool, error) {
	current, err := db.Checksum()
	if err != nil {
		return false, err
	}
	if sum != "" && current == sum {
		return false, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM visits`); err != nil {
		return false, fmt.Errorf("index: clear visits: %w", err)
	}
	if err := ftsClear(tx); err != nil {
		return false, err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO visits (row_num, country, iso3, city, restaurant_name, rating, visit_date, notes, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("index: prepare visit insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range visits {
		if _, err := stmt.Exec(v.Row, v.Country, v.ISO3, v.City, v.RestaurantName,
			v.Rating, v.VisitDate.String(), v.Notes, v.Latitude, v.Longitude); err != nil {
			return false, fmt.Errorf("index: insert visit %d: %w", v.Row, err)
		}
		if err := ftsInsert(tx, v); err != nil {
			return false, err
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, checksumKey, sum); err != nil {
		return false, fmt.Errorf("index: store checksum: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("index: commit: %w", err)
	}
	return true, nil
}

// Checksum returns the checksum recorded by the last Sync, or "" if the
// index has never been synced.
func (db *DB) Checksum() (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, checksumKey).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}
