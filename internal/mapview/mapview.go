// Package mapview renders visits and country boundaries as GeoJSON for the
// dashboard map. Everything here is a pure function of its inputs.
package mapview

import (
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/starford/passport/internal/geo"
	"github.com/starford/passport/internal/models"
)

// Style is the Leaflet path style of a country polygon.
type Style struct {
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	Weight      int     `json:"weight"`
	FillOpacity float64 `json:"fill_opacity"`
}

var (
	VisitedStyle   = Style{Fill: "#4CAF50", Stroke: "#2E7D32", Weight: 2, FillOpacity: 0.7}
	UnvisitedStyle = Style{Fill: "#f2f2f2", Stroke: "#555", Weight: 1, FillOpacity: 0.6}
	HighlightStyle = Style{Fill: "#ffd24d", Stroke: "#333", Weight: 2, FillOpacity: 0.7}
)

// africa is used as the viewport when no boundaries are loaded.
var africa = orb.Bound{Min: orb.Point{-25.4, -34.9}, Max: orb.Point{63.5, 37.6}}

// viewportPadding is added on every side of the map bounds, in degrees.
const viewportPadding = 5.0

// Region identifies the country a point falls in.
type Region struct {
	Name string `json:"name"`
	ISO3 string `json:"iso3"`
}

// Viewport is the map area the dashboard is locked to.
type Viewport struct {
	South  float64    `json:"south"`
	West   float64    `json:"west"`
	North  float64    `json:"north"`
	East   float64    `json:"east"`
	Center [2]float64 `json:"center"` // lat, lon
}

var (
	nameKeys      = []string{"NAME", "ADMIN", "name"}
	isoKeys       = []string{"ISO_A3", "ADM0_A3", "iso_a3"}
	continentKeys = []string{"CONTINENT", "continent", "REGION_UN", "region_un"}
)

// Boundaries holds African country polygons keyed by ISO3.
type Boundaries struct {
	features []*geojson.Feature
	bound    orb.Bound
}

// LoadBoundaries reads a GeoJSON FeatureCollection (for example Natural
// Earth admin-0 countries) from path.
func LoadBoundaries(path string, reg *geo.Registry) (*Boundaries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapview: read boundaries: %w", err)
	}
	return ParseBoundaries(data, reg)
}

// ParseBoundaries keeps the polygon features that belong to a registry
// country and standardises their properties to name and iso3.
func ParseBoundaries(data []byte, reg *geo.Registry) (*Boundaries, error) {
	if reg == nil {
		reg = geo.Default()
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("mapview: parse boundaries: %w", err)
	}

	b := &Boundaries{}
	first := true
	for _, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		if c := firstString(f.Properties, continentKeys); c != "" && !strings.EqualFold(strings.TrimSpace(c), "africa") {
			continue
		}
		country, ok := countryOf(f.Properties, reg)
		if !ok {
			continue
		}
		name := strings.TrimSpace(firstString(f.Properties, nameKeys))
		if name == "" {
			name = country.Name
		}

		out := geojson.NewFeature(f.Geometry)
		out.Properties["name"] = name
		out.Properties["iso3"] = country.ISO3
		b.features = append(b.features, out)

		if first {
			b.bound = f.Geometry.Bound()
			first = false
		} else {
			b.bound = b.bound.Union(f.Geometry.Bound())
		}
	}
	if len(b.features) == 0 {
		return nil, fmt.Errorf("mapview: no African country polygons found")
	}
	return b, nil
}

// countryOf returns the registry country named by the first ISO key whose
// value the registry knows. Natural Earth marks some countries "-99" in
// ISO_A3 and carries the code in ADM0_A3.
func countryOf(props geojson.Properties, reg *geo.Registry) (geo.Country, bool) {
	for _, k := range isoKeys {
		code := strings.ToUpper(strings.TrimSpace(props.MustString(k, "")))
		if c, ok := reg.Lookup(code); ok && c.ISO3 == code {
			return c, true
		}
	}
	return geo.Country{}, false
}

func firstString(props geojson.Properties, keys []string) string {
	for _, k := range keys {
		if s := props.MustString(k, ""); s != "" {
			return s
		}
	}
	return ""
}

// Len returns the number of country features. A nil receiver has none.
func (b *Boundaries) Len() int {
	if b == nil {
		return 0
	}
	return len(b.features)
}

// Choropleth returns the boundaries annotated with visit counts and the
// style to draw them with. A nil receiver yields an empty collection.
func (b *Boundaries) Choropleth(counts map[string]int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if b == nil {
		return fc
	}
	for _, f := range b.features {
		iso := f.Properties.MustString("iso3", "")
		n := counts[iso]
		style := UnvisitedStyle
		if n > 0 {
			style = VisitedStyle
		}

		out := geojson.NewFeature(f.Geometry)
		out.Properties["name"] = f.Properties["name"]
		out.Properties["iso3"] = iso
		out.Properties["visited"] = n > 0
		out.Properties["visits"] = n
		out.Properties["fill"] = style.Fill
		out.Properties["stroke"] = style.Stroke
		out.Properties["weight"] = style.Weight
		out.Properties["fill_opacity"] = style.FillOpacity
		fc.Append(out)
	}
	return fc
}

// Locate returns the country whose polygon contains the point.
func (b *Boundaries) Locate(lat, lon float64) (Region, bool) {
	if b == nil {
		return Region{}, false
	}
	pt := orb.Point{lon, lat}
	for _, f := range b.features {
		if !f.Geometry.Bound().Contains(pt) {
			continue
		}
		var hit bool
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			hit = planar.PolygonContains(g, pt)
		case orb.MultiPolygon:
			hit = planar.MultiPolygonContains(g, pt)
		}
		if hit {
			return Region{
				Name: f.Properties.MustString("name", ""),
				ISO3: f.Properties.MustString("iso3", ""),
			}, true
		}
	}
	return Region{}, false
}

// Viewport returns the padded bounds of the loaded boundaries, or of Africa
// when none are loaded.
func (b *Boundaries) Viewport() Viewport {
	bound := africa
	if b.Len() > 0 {
		bound = b.bound
	}
	bound = bound.Pad(viewportPadding)
	c := bound.Center()
	return Viewport{
		South:  bound.Bottom(),
		West:   bound.Left(),
		North:  bound.Top(),
		East:   bound.Right(),
		Center: [2]float64{c.Lat(), c.Lon()},
	}
}

// Points renders visits as a FeatureCollection of points.
func Points(visits []models.Visit) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, v := range visits {
		f := geojson.NewFeature(orb.Point{v.Longitude, v.Latitude})
		f.Properties["row"] = v.Row
		f.Properties["restaurant_name"] = v.RestaurantName
		f.Properties["city"] = v.City
		f.Properties["country"] = v.Country
		f.Properties["iso3"] = v.ISO3
		f.Properties["rating"] = v.Rating
		f.Properties["visit_date"] = v.VisitDate.String()
		fc.Append(f)
	}
	return fc
}
