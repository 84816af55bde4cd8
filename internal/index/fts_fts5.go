//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/passport/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS visits_fts USING fts5(
			row_num UNINDEXED,
			restaurant_name,
			city,
			country,
			notes,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM visits_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

func ftsInsert(tx *sql.Tx, v models.Visit) error {
	_, err := tx.Exec(`INSERT INTO visits_fts (row_num, restaurant_name, city, country, notes) VALUES (?, ?, ?, ?, ?)`,
		v.Row, v.RestaurantName, v.City, v.Country, v.Notes)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching visits with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT v.row_num, v.restaurant_name, v.city, v.country, v.iso3,
		       snippet(visits_fts, -1, '<b>', '</b>', '...', 32)
		FROM visits_fts f
		JOIN visits v ON v.row_num = f.row_num
		WHERE visits_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Row, &r.RestaurantName, &r.City, &r.Country, &r.ISO3, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
