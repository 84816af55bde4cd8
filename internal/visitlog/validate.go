package visitlog

import (
	"errors"
	"math"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/passport/internal/apperr"
	"github.com/starford/passport/internal/geo"
	"github.com/starford/passport/internal/models"
)

// Normalize trims every text field and upper-cases the country code.
func Normalize(v models.Visit) models.Visit {
	v.Country = strings.TrimSpace(v.Country)
	v.ISO3 = strings.ToUpper(strings.TrimSpace(v.ISO3))
	v.City = strings.TrimSpace(v.City)
	v.RestaurantName = strings.TrimSpace(v.RestaurantName)
	v.Notes = strings.TrimSpace(v.Notes)
	return v
}

// Validate checks v against the record invariants. The returned error is an
// *apperr.ValidationError naming the first offending column in file order.
// A nil registry means geo.Default().
func Validate(v models.Visit, reg *geo.Registry) error {
	if reg == nil {
		reg = geo.Default()
	}
	err := validation.ValidateStruct(&v,
		validation.Field(&v.Country, validation.Required),
		validation.Field(&v.ISO3,
			validation.Required,
			validation.Length(3, 3),
			validation.By(knownCountry(reg)),
		),
		validation.Field(&v.RestaurantName, validation.Required),
		validation.Field(&v.Rating,
			validation.By(finite),
			validation.Min(models.MinRating),
			validation.Max(models.MaxRating),
		),
		validation.Field(&v.VisitDate, validation.By(dateSet)),
		validation.Field(&v.Latitude,
			validation.By(finite),
			validation.Min(-90.0),
			validation.Max(90.0),
		),
		validation.Field(&v.Longitude,
			validation.By(finite),
			validation.Min(-180.0),
			validation.Max(180.0),
		),
	)
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	for _, col := range models.Columns {
		if fe, ok := errs[col]; ok {
			return &apperr.ValidationError{Field: col, Reason: fe.Error()}
		}
	}
	return err
}

func knownCountry(reg *geo.Registry) validation.RuleFunc {
	return func(value interface{}) error {
		code, _ := value.(string)
		if code == "" || reg.Known(code) {
			return nil
		}
		return errors.New("is not an African country code")
	}
}

func finite(value interface{}) error {
	f, _ := value.(float64)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("must be a finite number")
	}
	return nil
}

func dateSet(value interface{}) error {
	d, _ := value.(models.Date)
	if d.IsZero() {
		return errors.New("cannot be blank")
	}
	return nil
}
