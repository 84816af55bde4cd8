package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/passport/internal/history"
	"github.com/starford/passport/internal/index"
	"github.com/starford/passport/internal/mapview"
	"github.com/starford/passport/internal/storage"
	"github.com/starford/passport/internal/visitlog"
	"github.com/starford/passport/internal/visitservice"
)

// Core is the set of components every command works on.
type Core struct {
	Store   *visitlog.Store
	DB      *index.DB
	Service *visitservice.Service
	DataDir string
}

// Open wires storage, index, history and map boundaries into a service and
// loads the visit log. A missing or malformed data file is an error.
// publisher may be nil.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger, publisher visitservice.Publisher) (*Core, error) {
	dir := cfg.Data.Dir()
	if cfg.Data.CreateIfMissing {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	files, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	store := visitlog.NewStore(files, cfg.Data.File(),
		visitlog.WithLogger(logger),
		visitlog.WithStrict(cfg.Data.Strict),
		visitlog.WithCreateIfMissing(cfg.Data.CreateIfMissing),
	)

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	opts := []visitservice.Option{visitservice.WithLogger(logger)}
	if publisher != nil {
		opts = append(opts, visitservice.WithPublisher(publisher))
	}

	if cfg.History.Enabled {
		rec, err := history.Open(files.Root(), cfg.Data.File(), history.Author{
			Name:  cfg.History.AuthorName,
			Email: cfg.History.AuthorEmail,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init history: %w", err)
		}
		opts = append(opts, visitservice.WithHistory(rec))
	}

	if cfg.Geo.BoundariesPath != "" {
		bounds, err := mapview.LoadBoundaries(cfg.Geo.BoundariesPath, store.Registry())
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("load boundaries: %w", err)
		}
		logger.Info("Boundaries loaded", slog.Int("countries", bounds.Len()))
		opts = append(opts, visitservice.WithBoundaries(bounds))
	}

	svc := visitservice.New(store, db, opts...)
	if _, err := svc.Reload(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load visits: %w", err)
	}

	return &Core{Store: store, DB: db, Service: svc, DataDir: files.Root()}, nil
}

// Close releases the index.
func (c *Core) Close() error {
	return c.DB.Close()
}
