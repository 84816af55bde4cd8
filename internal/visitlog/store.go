// Package visitlog is the tasting log store: it loads the visit CSV,
// validates records at the boundary, answers filtered queries and persists
// mutations atomically.
package visitlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/starford/passport/internal/apperr"
	"github.com/starford/passport/internal/checksum"
	"github.com/starford/passport/internal/geo"
	"github.com/starford/passport/internal/models"
	"github.com/starford/passport/internal/storage"
)

// RowError describes a data row that was skipped on load.
type RowError struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Column, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Snapshot is the result of one Load: the typed records in file order, the
// rows that were rejected and the checksum of the bytes they came from.
type Snapshot struct {
	Visits   []models.Visit `json:"visits"`
	Rejected []RowError     `json:"rejected,omitempty"`
	Checksum string         `json:"checksum"`
}

// Store reads and writes a single visit CSV through a storage provider.
// Mutations are serialised; readers never observe a partial write because
// the provider replaces the file atomically.
type Store struct {
	mu     sync.Mutex
	files  storage.Provider
	name   string
	reg    *geo.Registry
	logger *slog.Logger

	strict bool
	create bool
}

// Option configures a Store.
type Option func(*Store)

// WithRegistry sets the country registry used for validation.
func WithRegistry(reg *geo.Registry) Option {
	return func(s *Store) { s.reg = reg }
}

// WithLogger sets the logger used to report rejected rows.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithStrict makes the first malformed row fail the whole load.
func WithStrict(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithCreateIfMissing makes Load create an empty log (header only) instead
// of failing when the file does not exist.
func WithCreateIfMissing(create bool) Option {
	return func(s *Store) { s.create = create }
}

// NewStore returns a store for the file name relative to the provider root.
func NewStore(files storage.Provider, name string, opts ...Option) *Store {
	s := &Store{
		files:  files,
		name:   name,
		reg:    geo.Default(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name returns the data file path relative to the provider root.
func (s *Store) Name() string { return s.name }

// Path returns the absolute path of the data file.
func (s *Store) Path() (string, error) { return s.files.Abs(s.name) }

// Registry returns the registry records are validated against.
func (s *Store) Registry() *geo.Registry { return s.reg }

// Load reads the whole file and returns its typed records.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.files.Read(s.name)
	if errors.Is(err, os.ErrNotExist) && s.create {
		data = headerBytes()
		if err = s.files.Write(s.name, data); err != nil {
			return nil, &apperr.IOError{Op: "create", Path: s.name, Err: err}
		}
		s.logger.Info("visitlog: created empty log", slog.String("path", s.name))
	}
	if err != nil {
		reason := "unreadable"
		if errors.Is(err, os.ErrNotExist) {
			reason = "file not found"
		}
		return nil, &apperr.DataFormatError{Path: s.name, Reason: reason, Err: err}
	}
	return s.decode(data)
}

func (s *Store) decode(data []byte) (*Snapshot, error) {
	t, err := s.table(data)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Visits: []models.Visit{}, Checksum: checksum.Sum(data)}
	if t.empty() {
		return snap, nil
	}

	for i, rec := range t.rows {
		row := i + 1
		v, err := t.header.decodeRow(rec)
		if err == nil {
			err = Validate(v, s.reg)
		}
		if err != nil {
			re := RowError{Row: row, Reason: err.Error()}
			if ve, ok := apperr.AsValidation(err); ok {
				re.Column, re.Reason = ve.Field, ve.Reason
			}
			if s.strict {
				return nil, &apperr.DataFormatError{Path: s.name, Row: row, Column: re.Column, Reason: re.Reason, Err: err}
			}
			s.logger.Warn("visitlog: skipped row",
				slog.String("path", s.name),
				slog.Int("row", row),
				slog.String("column", re.Column),
				slog.String("reason", re.Reason))
			snap.Rejected = append(snap.Rejected, re)
			continue
		}
		v.Row = row
		snap.Visits = append(snap.Visits, v)
	}
	return snap, nil
}

// table parses data and checks the header. A zero-length file is an empty
// table.
func (s *Store) table(data []byte) (*table, error) {
	t, err := readTable(data)
	if err != nil {
		return nil, &apperr.DataFormatError{Path: s.name, Reason: "malformed csv", Err: err}
	}
	if !t.empty() && len(t.missing) > 0 {
		return nil, &apperr.DataFormatError{
			Path:   s.name,
			Column: strings.Join(t.missing, ","),
			Reason: "missing required columns",
		}
	}
	return t, nil
}

// Append validates v and adds it as the last row of the file. The existing
// bytes are kept verbatim. A missing or empty file gets the canonical header
// first.
func (s *Store) Append(ctx context.Context, v models.Visit) (models.Visit, error) {
	v = Normalize(v)
	v.Row = 0
	if err := Validate(v, s.reg); err != nil {
		return models.Visit{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Visit{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.files.Read(s.name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return models.Visit{}, &apperr.IOError{Op: "append", Path: s.name, Err: err}
	}
	t, err := s.table(data)
	if err != nil {
		return models.Visit{}, err
	}

	var out []byte
	if t.empty() {
		out, err = encodeRecords([][]string{models.Columns, canonicalRow(v)}, false)
		v.Row = 1
	} else {
		var tail []byte
		tail, err = encodeRecords([][]string{t.header.encodeRow(v, nil)}, t.crlf)
		out = make([]byte, 0, len(data)+len(tail)+2)
		out = append(out, data...)
		if !bytes.HasSuffix(data, []byte("\n")) {
			out = append(out, newline(t.crlf)...)
		}
		out = append(out, tail...)
		v.Row = len(t.rows) + 1
	}
	if err != nil {
		return models.Visit{}, fmt.Errorf("visitlog: encode: %w", err)
	}
	if err := s.files.Write(s.name, out); err != nil {
		return models.Visit{}, &apperr.IOError{Op: "append", Path: s.name, Err: err}
	}
	return v, nil
}

// Update replaces the record at the 1-based data row. A non-empty ifMatch
// must equal the current file checksum.
func (s *Store) Update(ctx context.Context, row int, v models.Visit, ifMatch string) (models.Visit, error) {
	v = Normalize(v)
	if err := Validate(v, s.reg); err != nil {
		return models.Visit{}, err
	}
	err := s.rewrite(ctx, "update", ifMatch, func(t *table) error {
		if row < 1 || row > len(t.rows) {
			return fmt.Errorf("row %d: %w", row, apperr.ErrNotFound)
		}
		t.rows[row-1] = t.header.encodeRow(v, t.rows[row-1])
		return nil
	})
	if err != nil {
		return models.Visit{}, err
	}
	v.Row = row
	return v, nil
}

// Delete removes the record at the 1-based data row and returns it as it
// was in the file. A non-empty ifMatch must equal the current file checksum.
func (s *Store) Delete(ctx context.Context, row int, ifMatch string) (models.Visit, error) {
	var removed models.Visit
	err := s.rewrite(ctx, "delete", ifMatch, func(t *table) error {
		if row < 1 || row > len(t.rows) {
			return fmt.Errorf("row %d: %w", row, apperr.ErrNotFound)
		}
		removed = t.header.looseRow(t.rows[row-1])
		t.rows = append(t.rows[:row-1], t.rows[row:]...)
		return nil
	})
	if err != nil {
		return models.Visit{}, err
	}
	removed.Row = row
	return removed, nil
}

// rewrite applies edit to the raw table and writes the whole file back.
// Rows other than the edited one are carried over as they were read.
func (s *Store) rewrite(ctx context.Context, op, ifMatch string, edit func(*table) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.files.Read(s.name)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", s.name, apperr.ErrNotFound)
	}
	if err != nil {
		return &apperr.IOError{Op: op, Path: s.name, Err: err}
	}
	if ifMatch != "" && ifMatch != checksum.Sum(data) {
		return apperr.ErrConflict
	}
	t, err := s.table(data)
	if err != nil {
		return err
	}
	if t.empty() {
		return fmt.Errorf("%s is empty: %w", s.name, apperr.ErrNotFound)
	}
	if err := edit(t); err != nil {
		return err
	}
	out, err := t.encode()
	if err != nil {
		return fmt.Errorf("visitlog: encode: %w", err)
	}
	if err := s.files.Write(s.name, out); err != nil {
		return &apperr.IOError{Op: op, Path: s.name, Err: err}
	}
	return nil
}

func headerBytes() []byte {
	b, _ := encodeRecords([][]string{models.Columns}, false)
	return b
}

func newline(crlf bool) string {
	if crlf {
		return "\r\n"
	}
	return "\n"
}
