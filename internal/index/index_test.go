package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/passport/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func visits() []models.Visit {
	return []models.Visit{
		{Row: 1, Country: "Ghana", ISO3: "GHA", City: "Accra", RestaurantName: "Kobi Restaurant", Rating: 4, VisitDate: models.NewDate(2023, time.May, 1), Notes: "jollof and waakye"},
		{Row: 2, Country: "Nigeria", ISO3: "NGA", City: "Lagos", RestaurantName: "Suya Spot", Rating: 4.5, VisitDate: models.NewDate(2023, time.July, 14), Notes: "suya, pepper soup"},
		{Row: 3, Country: "Ghana", ISO3: "GHA", City: "Kumasi", RestaurantName: "Buka", Rating: 5, VisitDate: models.NewDate(2024, time.January, 2), Notes: "fufu 100% worth it"},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM visits`).Scan(&count); err != nil {
		t.Fatalf("visits table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM meta`).Scan(&count); err != nil {
		t.Fatalf("meta table missing: %v", err)
	}
}

func TestSyncAndChecksum(t *testing.T) {
	db := testDB(t)

	cs, err := db.Checksum()
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if cs != "" {
		t.Errorf("fresh index checksum = %q, want empty", cs)
	}

	changed, err := db.Sync("abc123", visits())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !changed {
		t.Error("first sync reported no change")
	}
	cs, _ = db.Checksum()
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
	n, _ := db.Count()
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestSyncSkipsSameChecksum(t *testing.T) {
	db := testDB(t)
	_, _ = db.Sync("same", visits())

	changed, err := db.Sync("same", visits()[:1])
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if changed {
		t.Error("sync with unchanged checksum rewrote the table")
	}
	n, _ := db.Count()
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestSyncReplacesRows(t *testing.T) {
	db := testDB(t)
	_, _ = db.Sync("1", visits())
	_, _ = db.Sync("2", visits()[1:2])

	n, _ := db.Count()
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	results, _ := db.Search("Kobi", 10)
	if len(results) != 0 {
		t.Errorf("stale visit still searchable: %+v", results)
	}
}

func TestCountryStats(t *testing.T) {
	db := testDB(t)
	_, _ = db.Sync("1", visits())

	stats, err := db.CountryStats()
	if err != nil {
		t.Fatalf("CountryStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 countries, got %d", len(stats))
	}
	gh := stats[0]
	if gh.ISO3 != "GHA" || gh.Visits != 2 || gh.AverageRating != 4.5 || gh.BestRating != 5 {
		t.Errorf("GHA stats = %+v", gh)
	}
	if gh.LatestVisit.String() != "2024-01-02" {
		t.Errorf("GHA latest = %s", gh.LatestVisit)
	}
	if stats[1].ISO3 != "NGA" {
		t.Errorf("second country = %q, want NGA", stats[1].ISO3)
	}
}

func TestCountryStats_Empty(t *testing.T) {
	db := testDB(t)
	stats, err := db.CountryStats()
	if err != nil {
		t.Fatalf("CountryStats: %v", err)
	}
	if stats == nil || len(stats) != 0 {
		t.Errorf("stats = %#v, want empty slice", stats)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_, _ = db.Sync("1", visits())

	results, err := db.Search("pepper", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Row != 2 || results[0].ISO3 != "NGA" {
		t.Errorf("search results = %+v, want 1 hit for row 2", results)
	}

	results, _ = db.Search("Ghana", 10)
	if len(results) != 2 {
		t.Errorf("country search hits = %d, want 2", len(results))
	}
}
