package visitlog

import "github.com/starford/passport/internal/models"

// Summary holds the headline figures of a set of visits.
type Summary struct {
	Visits           int         `json:"visits"`
	CountriesCovered int         `json:"countries_covered"`
	AverageRating    float64     `json:"average_rating"`
	LatestVisit      models.Date `json:"latest_visit"`
	LatestRestaurant string      `json:"latest_restaurant,omitempty"`
}

// Summarize computes the KPIs of visits. Ties on the latest date go to the
// row that comes last in the file.
func Summarize(visits []models.Visit) Summary {
	s := Summary{Visits: len(visits)}
	if len(visits) == 0 {
		return s
	}
	var total float64
	for _, v := range visits {
		total += v.Rating
		if s.LatestVisit.IsZero() || !v.VisitDate.Before(s.LatestVisit) {
			s.LatestVisit = v.VisitDate
			s.LatestRestaurant = v.RestaurantName
		}
	}
	s.AverageRating = total / float64(len(visits))
	s.CountriesCovered = len(CountriesRepresented(visits))
	return s
}
