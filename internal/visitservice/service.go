// Package visitservice is the hosting layer: it holds the current snapshot
// of the visit log and coordinates the store, the index, the history and
// event publication.
package visitservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/starford/passport/internal/apperr"
	"github.com/starford/passport/internal/geo"
	"github.com/starford/passport/internal/history"
	"github.com/starford/passport/internal/index"
	"github.com/starford/passport/internal/mapview"
	"github.com/starford/passport/internal/models"
	"github.com/starford/passport/internal/sse"
	"github.com/starford/passport/internal/visitlog"
)

// Publisher receives change notifications. *sse.Broker implements it.
type Publisher interface {
	PublishVisitEvent(kind string, ref sse.VisitRef)
	PublishReload()
}

// ListResult is a filtered view of the log.
type ListResult struct {
	Visits   []models.Visit `json:"visits"`
	Total    int            `json:"total"`
	Checksum string         `json:"checksum"`
}

// CountryView is a registry country annotated with its visits.
type CountryView struct {
	geo.Country
	Visited bool `json:"visited"`
	Visits  int  `json:"visits"`
}

// CountriesResult lists every registry country and the represented set.
type CountriesResult struct {
	Countries   []CountryView `json:"countries"`
	Represented []string      `json:"represented"`
}

// Stats is the KPI strip plus the per-country breakdown.
type Stats struct {
	visitlog.Summary
	Countries []index.CountryStat  `json:"countries"`
	Rejected  []visitlog.RowError `json:"rejected,omitempty"`
}

// MapView is everything the dashboard map draws.
type MapView struct {
	Points    *geojson.FeatureCollection `json:"points"`
	Countries *geojson.FeatureCollection `json:"countries"`
	Viewport  mapview.Viewport           `json:"viewport"`
}

// Service coordinates store, index, history and events.
type Service struct {
	store  *visitlog.Store
	db     index.VisitIndex
	hist   *history.Recorder
	bounds *mapview.Boundaries
	events Publisher
	logger *slog.Logger

	reloadMu sync.Mutex
	mu       sync.RWMutex
	snap     *visitlog.Snapshot
}

// Option configures a Service.
type Option func(*Service)

// WithHistory records every mutation in r.
func WithHistory(r *history.Recorder) Option {
	return func(s *Service) { s.hist = r }
}

// WithBoundaries enables the choropleth and click-to-country lookup.
func WithBoundaries(b *mapview.Boundaries) Option {
	return func(s *Service) { s.bounds = b }
}

// WithPublisher sends change events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service. Call Reload before serving requests.
func New(store *visitlog.Store, db index.VisitIndex, opts ...Option) *Service {
	s := &Service{store: store, db: db, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ready reports whether a snapshot has been loaded.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap != nil
}

// Snapshot returns the current snapshot. Callers must not modify it.
func (s *Service) Snapshot() *visitlog.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return &visitlog.Snapshot{Visits: []models.Visit{}}
	}
	return s.snap
}

// Checksum returns the checksum of the current snapshot.
func (s *Service) Checksum() string { return s.Snapshot().Checksum }

// Reload re-reads the log and swaps the snapshot. It is a no-op when the
// file is unchanged since the last load, which is how writes made by this
// process are told apart from external edits. On failure the previous
// snapshot stays in place.
func (s *Service) Reload(ctx context.Context) (bool, error) {
	changed, err := s.refresh(ctx)
	if err != nil {
		return false, err
	}
	if changed {
		snap := s.Snapshot()
		s.logger.Info("visits reloaded",
			slog.Int("visits", len(snap.Visits)),
			slog.Int("rejected", len(snap.Rejected)))
		if s.events != nil {
			s.events.PublishReload()
		}
	}
	return changed, nil
}

func (s *Service) refresh(ctx context.Context) (bool, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	unchanged := s.snap != nil && s.snap.Checksum == snap.Checksum
	s.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	// The snapshot is swapped only once the index matches it, so a failed
	// sync is retried by the next reload.
	if _, err := s.db.Sync(snap.Checksum, snap.Visits); err != nil {
		return false, fmt.Errorf("sync index: %w", err)
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return true, nil
}

// List returns the visits matching q. Country codes may be ISO2 or ISO3.
func (s *Service) List(_ context.Context, q visitlog.Query) (*ListResult, error) {
	q, err := s.normalize(q)
	if err != nil {
		return nil, err
	}
	snap := s.Snapshot()
	visits := visitlog.Filter(snap.Visits, q)
	return &ListResult{Visits: visits, Total: len(visits), Checksum: snap.Checksum}, nil
}

func (s *Service) normalize(q visitlog.Query) (visitlog.Query, error) {
	q, err := q.Normalize(s.store.Registry())
	if err != nil {
		return q, &apperr.ValidationError{Field: "country", Reason: err.Error()}
	}
	return q, nil
}

// Get returns the visit at the 1-based data row.
func (s *Service) Get(_ context.Context, row int) (models.Visit, error) {
	for _, v := range s.Snapshot().Visits {
		if v.Row == row {
			return v, nil
		}
	}
	return models.Visit{}, fmt.Errorf("visit %d: %w", row, apperr.ErrNotFound)
}

// Append stores a new visit.
func (s *Service) Append(ctx context.Context, v models.Visit) (models.Visit, error) {
	stored, err := s.store.Append(ctx, v)
	if err != nil {
		return models.Visit{}, err
	}
	s.afterMutation(ctx, "created", stored, fmt.Sprintf("add visit: %s (%s)", stored.RestaurantName, stored.ISO3))
	return stored, nil
}

// Update replaces the visit at row. ifMatch is the checksum the caller last
// saw; empty skips the check.
func (s *Service) Update(ctx context.Context, row int, v models.Visit, ifMatch string) (models.Visit, error) {
	stored, err := s.store.Update(ctx, row, v, ifMatch)
	if err != nil {
		return models.Visit{}, err
	}
	s.afterMutation(ctx, "updated", stored, fmt.Sprintf("update visit %d: %s (%s)", row, stored.RestaurantName, stored.ISO3))
	return stored, nil
}

// Delete removes the visit at row.
func (s *Service) Delete(ctx context.Context, row int, ifMatch string) error {
	old, err := s.store.Delete(ctx, row, ifMatch)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("delete visit %d", row)
	if old.RestaurantName != "" {
		msg += fmt.Sprintf(": %s (%s)", old.RestaurantName, old.ISO3)
	}
	s.afterMutation(ctx, "deleted", old, msg)
	return nil
}

// afterMutation brings the snapshot up to date, records history and
// publishes the change. The file is already committed, so failures here are
// logged rather than returned.
func (s *Service) afterMutation(ctx context.Context, kind string, v models.Visit, msg string) {
	if _, err := s.refresh(ctx); err != nil {
		s.logger.Warn("reload after mutation failed", slog.String("error", err.Error()))
	}
	if s.hist != nil {
		if _, err := s.hist.Record(msg); err != nil {
			s.logger.Warn("history record failed", slog.String("error", err.Error()))
		}
	}
	s.logger.Info("visit "+kind, slog.Int("row", v.Row), slog.String("iso3", v.ISO3))
	if s.events != nil {
		s.events.PublishVisitEvent(kind, sse.VisitRef{Row: v.Row, ISO3: v.ISO3, RestaurantName: v.RestaurantName})
	}
}

// Countries returns the registry annotated with visit counts.
func (s *Service) Countries(_ context.Context) *CountriesResult {
	visits := s.Snapshot().Visits
	counts := visitlog.CountByCountry(visits)
	all := s.store.Registry().All()

	out := &CountriesResult{
		Countries:   make([]CountryView, len(all)),
		Represented: visitlog.CountriesRepresented(visits).Sorted(),
	}
	for i, c := range all {
		out.Countries[i] = CountryView{Country: c, Visited: counts[c.ISO3] > 0, Visits: counts[c.ISO3]}
	}
	return out
}

// Stats returns the KPIs of the whole log and the per-country breakdown.
func (s *Service) Stats(_ context.Context) (*Stats, error) {
	snap := s.Snapshot()
	countries, err := s.db.CountryStats()
	if err != nil {
		return nil, err
	}
	return &Stats{
		Summary:   visitlog.Summarize(snap.Visits),
		Countries: countries,
		Rejected:  snap.Rejected,
	}, nil
}

// Export writes the visits matching q as canonical CSV.
func (s *Service) Export(ctx context.Context, w io.Writer, q visitlog.Query) error {
	res, err := s.List(ctx, q)
	if err != nil {
		return err
	}
	if err := visitlog.Export(w, res.Visits); err != nil {
		return &apperr.IOError{Op: "export", Path: visitlog.ExportFilename, Err: err}
	}
	return nil
}

// Search runs a text search over the index.
func (s *Service) Search(_ context.Context, q string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(q, limit)
}

// History returns up to n commits of the data file. It is empty when
// history is disabled.
func (s *Service) History(_ context.Context, n int) ([]history.Commit, error) {
	if s.hist == nil {
		return []history.Commit{}, nil
	}
	return s.hist.Log(n)
}

// Map returns the points, the choropleth and the viewport for visits
// matching q.
func (s *Service) Map(ctx context.Context, q visitlog.Query) (*MapView, error) {
	res, err := s.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &MapView{
		Points:    mapview.Points(res.Visits),
		Countries: s.bounds.Choropleth(visitlog.CountByCountry(res.Visits)),
		Viewport:  s.bounds.Viewport(),
	}, nil
}

// Locate returns the African country containing the point.
func (s *Service) Locate(_ context.Context, lat, lon float64) (mapview.Region, error) {
	r, ok := s.bounds.Locate(lat, lon)
	if !ok {
		return mapview.Region{}, fmt.Errorf("no country at %.4f,%.4f: %w", lat, lon, apperr.ErrNotFound)
	}
	return r, nil
}
