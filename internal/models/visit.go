// Package models defines the domain types for Passport.
package models

// Rating bounds, inclusive.
const (
	MinRating = 0.0
	MaxRating = 5.0
)

// Column names of the persisted visit table, in file order.
const (
	ColCountry        = "country"
	ColISO3           = "iso3"
	ColCity           = "city"
	ColRestaurantName = "restaurant_name"
	ColRating         = "rating"
	ColVisitDate      = "visit_date"
	ColNotes          = "notes"
	ColLatitude       = "latitude"
	ColLongitude      = "longitude"
)

// Columns is the canonical header of the visit CSV.
var Columns = []string{
	ColCountry,
	ColISO3,
	ColCity,
	ColRestaurantName,
	ColRating,
	ColVisitDate,
	ColNotes,
	ColLatitude,
	ColLongitude,
}

// Visit is one logged restaurant tasting.
type Visit struct {
	// Row is the 1-based data row of the record in the file. It is derived on
	// load and never persisted.
	Row int `json:"row,omitempty" jsonschema:"readOnly=true"`

	Country        string  `json:"country" jsonschema:"minLength=1"`
	ISO3           string  `json:"iso3" jsonschema:"minLength=3,maxLength=3"`
	City           string  `json:"city"`
	RestaurantName string  `json:"restaurant_name" jsonschema:"minLength=1"`
	Rating         float64 `json:"rating" jsonschema:"minimum=0,maximum=5"`
	VisitDate      Date    `json:"visit_date"`
	Notes          string  `json:"notes,omitempty"`
	Latitude       float64 `json:"latitude" jsonschema:"minimum=-90,maximum=90"`
	Longitude      float64 `json:"longitude" jsonschema:"minimum=-180,maximum=180"`
}

// SameRecord reports whether two visits carry the same persisted fields,
// ignoring the derived row number.
func (v Visit) SameRecord(o Visit) bool {
	v.Row, o.Row = 0, 0
	return v.Country == o.Country &&
		v.ISO3 == o.ISO3 &&
		v.City == o.City &&
		v.RestaurantName == o.RestaurantName &&
		v.Rating == o.Rating &&
		v.VisitDate.Equal(o.VisitDate) &&
		v.Notes == o.Notes &&
		v.Latitude == o.Latitude &&
		v.Longitude == o.Longitude
}
