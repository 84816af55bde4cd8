package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/passport/internal"
	"github.com/starford/passport/internal/apperr"
	"github.com/starford/passport/internal/visitlog"
)

const exportFixture = "country,iso3,city,restaurant_name,rating,visit_date,notes,latitude,longitude\n" +
	"Ethiopia,ETH,Addis Ababa,Abyssinia,5,2024-03-01,injera,9.03,38.74\n" +
	"Ghana,GHA,Accra,Accra Kitchen,4,2024-04-12,jollof,5.6037,-0.187\n"

func openTestCore(t *testing.T) *internal.Core {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "visits.csv"), []byte(exportFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg := internal.NewDefaultConfig()
	cfg.Data.Path = filepath.Join(dir, "visits.csv")
	cfg.SQLite.Path = filepath.Join(dir, "passport.db")

	core, err := internal.Open(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err != nil {
		t.Fatalf("open core: %v", err)
	}
	t.Cleanup(func() { _ = core.DB.Close() })
	return core
}

func TestExportTo_WritesFile(t *testing.T) {
	core := openTestCore(t)
	out := filepath.Join(t.TempDir(), "export.csv")

	if err := exportTo(context.Background(), core, visitlog.Query{}, out); err != nil {
		t.Fatalf("exportTo: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "Abyssinia") || !strings.Contains(string(data), "Accra Kitchen") {
		t.Errorf("export missing rows:\n%s", data)
	}
}

func TestExportTo_UnwritablePathIsIOError(t *testing.T) {
	core := openTestCore(t)
	out := filepath.Join(t.TempDir(), "missing", "export.csv")

	err := exportTo(context.Background(), core, visitlog.Query{}, out)
	var ioErr *apperr.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if ioErr.Path != out {
		t.Errorf("Path = %q, want %q", ioErr.Path, out)
	}
}
