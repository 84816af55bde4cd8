// Package testutil provides shared test helpers for setting up data
// directories and databases.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/passport/internal/index"
	"github.com/starford/passport/internal/storage"
)

// DataFile is the file name the helpers write the visit log to.
const DataFile = "visits.csv"

// GhanaCSV is a canonical log holding a single Ghana visit.
const GhanaCSV = "country,iso3,city,restaurant_name,rating,visit_date,notes,latitude,longitude\n" +
	"Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,jollof and waakye,5.6037,-0.187\n"

// SampleCSV is a canonical log with visits in three countries.
const SampleCSV = "country,iso3,city,restaurant_name,rating,visit_date,notes,latitude,longitude\n" +
	"Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,jollof and waakye,5.6037,-0.187\n" +
	"Nigeria,NGA,Lagos,Suya Spot,4.5,2023-07-14,\"suya, pepper soup\",6.5244,3.3792\n" +
	"Ethiopia,ETH,Addis Ababa,Yod Abyssinia,5,2024-01-20,injera with doro wat,9.03,38.74\n"

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDataDir creates a temporary data directory with a storage.Provider.
func TestDataDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, files
}

// WriteLog writes content to DataFile in a fresh data directory.
func WriteLog(t *testing.T, content string) (string, storage.Provider) {
	t.Helper()
	dir, files := TestDataDir(t)
	if err := files.Write(DataFile, []byte(content)); err != nil {
		t.Fatal(err)
	}
	return dir, files
}
