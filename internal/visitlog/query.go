package visitlog

import (
	"sort"
	"strings"

	"github.com/starford/passport/internal/geo"
	"github.com/starford/passport/internal/models"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether f lies in the interval.
func (r Range) Contains(f float64) bool { return f >= r.Min && f <= r.Max }

// DateRange is an inclusive date interval. A zero bound is open.
type DateRange struct {
	From models.Date `json:"from"`
	To   models.Date `json:"to"`
}

// Contains reports whether d lies in the interval.
func (r DateRange) Contains(d models.Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// Query selects visits. Every constraint is optional; a nil or empty one
// does not restrict the result.
type Query struct {
	Countries []string   `json:"countries,omitempty"`
	Rating    *Range     `json:"rating,omitempty"`
	Dates     *DateRange `json:"dates,omitempty"`
}

// IsZero reports whether q has no constraints.
func (q Query) IsZero() bool {
	return len(q.Countries) == 0 && q.Rating == nil && q.Dates == nil
}

// Normalize resolves country codes (ISO2 or ISO3, any case) to ISO3.
func (q Query) Normalize(reg *geo.Registry) (Query, error) {
	if len(q.Countries) == 0 {
		return q, nil
	}
	if reg == nil {
		reg = geo.Default()
	}
	codes, err := reg.Resolve(q.Countries)
	if err != nil {
		return q, err
	}
	q.Countries = codes
	return q, nil
}

// Match reports whether v satisfies every constraint of q.
func (q Query) Match(v models.Visit) bool {
	if len(q.Countries) > 0 {
		found := false
		for _, c := range q.Countries {
			if strings.EqualFold(c, v.ISO3) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Rating != nil && !q.Rating.Contains(v.Rating) {
		return false
	}
	if q.Dates != nil && !q.Dates.Contains(v.VisitDate) {
		return false
	}
	return true
}

// Filter returns the visits matching q in their original order. The input
// slice is not modified.
func Filter(visits []models.Visit, q Query) []models.Visit {
	out := make([]models.Visit, 0, len(visits))
	for _, v := range visits {
		if q.Match(v) {
			out = append(out, v)
		}
	}
	return out
}

// CodeSet is a set of ISO3 codes.
type CodeSet map[string]struct{}

// Has reports whether code is in the set.
func (s CodeSet) Has(code string) bool {
	_, ok := s[strings.ToUpper(code)]
	return ok
}

// Sorted returns the codes in ascending order.
func (s CodeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CountriesRepresented returns the distinct ISO3 codes present in visits.
func CountriesRepresented(visits []models.Visit) CodeSet {
	set := make(CodeSet)
	for _, v := range visits {
		set[v.ISO3] = struct{}{}
	}
	return set
}

// CountByCountry returns the number of visits per ISO3 code.
func CountByCountry(visits []models.Visit) map[string]int {
	counts := make(map[string]int)
	for _, v := range visits {
		counts[v.ISO3]++
	}
	return counts
}
