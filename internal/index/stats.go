package index

import (
	"fmt"

	"github.com/starford/passport/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Row            int    `json:"row"`
	RestaurantName string `json:"restaurant_name"`
	City           string `json:"city"`
	Country        string `json:"country"`
	ISO3           string `json:"iso3"`
	Snippet        string `json:"snippet"`
}

// CountryStat aggregates the visits of one country.
type CountryStat struct {
	ISO3          string      `json:"iso3"`
	Country       string      `json:"country"`
	Visits        int         `json:"visits"`
	AverageRating float64     `json:"average_rating"`
	BestRating    float64     `json:"best_rating"`
	LatestVisit   models.Date `json:"latest_visit"`
}

// CountryStats returns per-country aggregates, most visited first.
func (db *DB) CountryStats() ([]CountryStat, error) {
	rows, err := db.conn.Query(`
		SELECT iso3, MAX(country), COUNT(*), AVG(rating), MAX(rating), MAX(visit_date)
		FROM visits
		GROUP BY iso3
		ORDER BY COUNT(*) DESC, iso3 ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("index: country stats: %w", err)
	}
	defer rows.Close()

	out := []CountryStat{}
	for rows.Next() {
		var (
			s      CountryStat
			latest string
		)
		if err := rows.Scan(&s.ISO3, &s.Country, &s.Visits, &s.AverageRating, &s.BestRating, &latest); err != nil {
			return nil, err
		}
		if latest != "" {
			if s.LatestVisit, err = models.ParseDate(latest); err != nil {
				return nil, fmt.Errorf("index: country stats: %w", err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of indexed visits.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM visits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}
