package visitlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/passport/internal/geo"
	"github.com/starford/passport/internal/models"
)

func sampleVisits() []models.Visit {
	return []models.Visit{
		{Row: 1, Country: "Ghana", ISO3: "GHA", RestaurantName: "Kobi Restaurant", Rating: 4, VisitDate: models.NewDate(2023, time.May, 1)},
		{Row: 2, Country: "Nigeria", ISO3: "NGA", RestaurantName: "Suya Spot", Rating: 3, VisitDate: models.NewDate(2023, time.July, 14)},
		{Row: 3, Country: "Ghana", ISO3: "GHA", RestaurantName: "Buka", Rating: 5, VisitDate: models.NewDate(2024, time.January, 2)},
		{Row: 4, Country: "Senegal", ISO3: "SEN", RestaurantName: "Chez Loutcha", Rating: 4.5, VisitDate: models.NewDate(2024, time.January, 2)},
	}
}

func rows(vs []models.Visit) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = v.Row
	}
	return out
}

func TestFilter_NoConstraintsIsIdentity(t *testing.T) {
	in := sampleVisits()
	assert.Equal(t, in, Filter(in, Query{}))
	assert.True(t, Query{}.IsZero())
	assert.True(t, Query{Countries: []string{}}.IsZero())
}

func TestFilter_ByCountry(t *testing.T) {
	q, err := Query{Countries: []string{"GH"}}.Normalize(geo.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{"GHA"}, q.Countries)

	got := Filter(sampleVisits(), q)
	assert.Equal(t, []int{1, 3}, rows(got))
	for _, v := range got {
		assert.Equal(t, "GHA", v.ISO3)
	}
}

func TestFilter_UnknownCountry(t *testing.T) {
	_, err := Query{Countries: []string{"ZZ"}}.Normalize(nil)
	assert.Error(t, err)
}

func TestFilter_RatingRangeInclusive(t *testing.T) {
	got := Filter(sampleVisits(), Query{Rating: &Range{Min: 4, Max: 4.5}})
	assert.Equal(t, []int{1, 4}, rows(got))
}

func TestFilter_DateRange(t *testing.T) {
	visits := sampleVisits()

	from := Query{Dates: &DateRange{From: models.NewDate(2024, time.January, 2)}}
	assert.Equal(t, []int{3, 4}, rows(Filter(visits, from)))

	to := Query{Dates: &DateRange{To: models.NewDate(2023, time.July, 14)}}
	assert.Equal(t, []int{1, 2}, rows(Filter(visits, to)))
}

func TestFilter_AllConstraintsAreANDed(t *testing.T) {
	q := Query{
		Countries: []string{"GHA", "SEN"},
		Rating:    &Range{Min: 4.5, Max: 5},
		Dates:     &DateRange{From: models.NewDate(2024, time.January, 1)},
	}
	assert.Equal(t, []int{3, 4}, rows(Filter(sampleVisits(), q)))

	q.Countries = []string{"SEN"}
	assert.Equal(t, []int{4}, rows(Filter(sampleVisits(), q)))
}

func TestCountriesRepresented(t *testing.T) {
	set := CountriesRepresented(sampleVisits())
	assert.Equal(t, []string{"GHA", "NGA", "SEN"}, set.Sorted())
	assert.True(t, set.Has("gha"))
	assert.False(t, set.Has("KEN"))

	assert.Empty(t, CountriesRepresented(nil))
}

func TestCountByCountry(t *testing.T) {
	assert.Equal(t, map[string]int{"GHA": 2, "NGA": 1, "SEN": 1}, CountByCountry(sampleVisits()))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleVisits())
	assert.Equal(t, 4, s.Visits)
	assert.Equal(t, 3, s.CountriesCovered)
	assert.InDelta(t, 4.125, s.AverageRating, 1e-9)
	assert.Equal(t, "2024-01-02", s.LatestVisit.String())
	assert.Equal(t, "Chez Loutcha", s.LatestRestaurant)

	empty := Summarize(nil)
	assert.Zero(t, empty.Visits)
	assert.True(t, empty.LatestVisit.IsZero())
}

func TestValidate_NilRegistryUsesDefault(t *testing.T) {
	v := models.Visit{
		Country: "Kenya", ISO3: "KEN", RestaurantName: "Carnivore",
		Rating: 0, VisitDate: models.NewDate(2022, time.March, 3),
	}
	assert.NoError(t, Validate(v, nil))
}
