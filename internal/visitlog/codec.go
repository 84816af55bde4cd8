package visitlog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/starford/passport/internal/apperr"
	"github.com/starford/passport/internal/models"
)

const utf8BOM = "\ufeff"

// header maps column names to their position in a file's header row.
type header struct {
	names []string
	pos   map[string]int
}

func parseHeader(rec []string) (*header, []string) {
	h := &header{names: rec, pos: make(map[string]int, len(rec))}
	for i, name := range rec {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := h.pos[key]; !dup {
			h.pos[key] = i
		}
	}
	var missing []string
	for _, col := range models.Columns {
		if _, ok := h.pos[col]; !ok {
			missing = append(missing, col)
		}
	}
	return h, missing
}

func (h *header) cell(rec []string, col string) string {
	i := h.pos[col]
	if i >= len(rec) {
		return ""
	}
	return rec[i]
}

// decodeRow converts one raw CSV record into a typed visit. The result is
// normalised but not yet validated against the registry.
func (h *header) decodeRow(rec []string) (models.Visit, error) {
	if len(rec) < len(h.names) {
		return models.Visit{}, &apperr.ValidationError{
			Field:  "row",
			Reason: fmt.Sprintf("expected %d fields, got %d", len(h.names), len(rec)),
		}
	}
	v := models.Visit{
		Country:        h.cell(rec, models.ColCountry),
		ISO3:           h.cell(rec, models.ColISO3),
		City:           h.cell(rec, models.ColCity),
		RestaurantName: h.cell(rec, models.ColRestaurantName),
		Notes:          h.cell(rec, models.ColNotes),
	}

	var err error
	if v.Rating, err = parseNumber(h.cell(rec, models.ColRating), models.ColRating); err != nil {
		return v, err
	}
	if v.Latitude, err = parseNumber(h.cell(rec, models.ColLatitude), models.ColLatitude); err != nil {
		return v, err
	}
	if v.Longitude, err = parseNumber(h.cell(rec, models.ColLongitude), models.ColLongitude); err != nil {
		return v, err
	}
	if v.VisitDate, err = models.ParseDate(h.cell(rec, models.ColVisitDate)); err != nil {
		return v, &apperr.ValidationError{Field: models.ColVisitDate, Reason: err.Error()}
	}
	return Normalize(v), nil
}

// looseRow decodes rec like decodeRow but never fails: malformed rows still
// yield their text columns.
func (h *header) looseRow(rec []string) models.Visit {
	if v, err := h.decodeRow(rec); err == nil {
		return v
	}
	return Normalize(models.Visit{
		Country:        h.cell(rec, models.ColCountry),
		ISO3:           h.cell(rec, models.ColISO3),
		City:           h.cell(rec, models.ColCity),
		RestaurantName: h.cell(rec, models.ColRestaurantName),
		Notes:          h.cell(rec, models.ColNotes),
	})
}

// encodeRow lays v out in the file's column order. Columns the store does
// not own keep the value from prev (nil for a new row).
func (h *header) encodeRow(v models.Visit, prev []string) []string {
	own := fields(v)
	out := make([]string, len(h.names))
	for i, name := range h.names {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if val, ok := own[key]; ok && h.pos[key] == i {
			out[i] = val
		} else if i < len(prev) {
			out[i] = prev[i]
		}
	}
	return out
}

func fields(v models.Visit) map[string]string {
	return map[string]string{
		models.ColCountry:        v.Country,
		models.ColISO3:           v.ISO3,
		models.ColCity:           v.City,
		models.ColRestaurantName: v.RestaurantName,
		models.ColRating:         formatNumber(v.Rating),
		models.ColVisitDate:      v.VisitDate.String(),
		models.ColNotes:          v.Notes,
		models.ColLatitude:       formatNumber(v.Latitude),
		models.ColLongitude:      formatNumber(v.Longitude),
	}
}

// canonicalRow is v in canonical column order.
func canonicalRow(v models.Visit) []string {
	f := fields(v)
	out := make([]string, len(models.Columns))
	for i, col := range models.Columns {
		out[i] = f[col]
	}
	return out
}

func parseNumber(s, field string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &apperr.ValidationError{Field: field, Reason: "is required"}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &apperr.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a number", s)}
	}
	return f, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// table is a raw view of a CSV file: header plus data records, untouched.
type table struct {
	header  *header
	missing []string
	rows    [][]string
	crlf    bool
}

func readTable(data []byte) (*table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	first, err := r.Read()
	if err == io.EOF {
		return &table{}, nil
	}
	if err != nil {
		return nil, err
	}
	h, missing := parseHeader(first)
	// The header's own terminator decides the line ending; quoted fields
	// further down may carry either.
	end := int(r.InputOffset())
	crlf := end >= 2 && bytes.Equal(data[end-2:end], []byte("\r\n"))
	t := &table{header: h, missing: missing, crlf: crlf}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t *table) empty() bool { return t.header == nil }

func (t *table) encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = t.crlf
	if err := w.Write(t.header.names); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeRecords(recs [][]string, crlf bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = crlf
	if err := w.WriteAll(recs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
