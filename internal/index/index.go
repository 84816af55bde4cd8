package index

import "github.com/starford/passport/internal/models"

// VisitIndex defines the interface for visit indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type VisitIndex interface {
	Sync(sum string, visits []models.Visit) (bool, error)
	Checksum() (string, error)
	Search(query string, limit int) ([]SearchResult, error)
	CountryStats() ([]CountryStat, error)
	Close() error
}

// Verify *DB satisfies VisitIndex at compile time.
var _ VisitIndex = (*DB)(nil)
