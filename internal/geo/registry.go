// Package geo holds the registry of African countries that visits may be
// logged against.
package geo

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var countriesYAML []byte

// Country is one entry of the registry.
type Country struct {
	Name   string `yaml:"name" json:"name"`
	ISO2   string `yaml:"iso2" json:"iso2"`
	ISO3   string `yaml:"iso3" json:"iso3"`
	Region string `yaml:"region" json:"region"`
}

// Registry indexes countries by ISO2 and ISO3 code.
type Registry struct {
	all    []Country
	byCode map[string]Country
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the embedded African registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Parse(countriesYAML)
		if err != nil {
			panic(fmt.Sprintf("geo: embedded registry: %v", err))
		}
		defaultReg = r
	})
	return defaultReg
}

// Parse builds a registry from YAML of the form {countries: [...]}.
func Parse(data []byte) (*Registry, error) {
	var doc struct {
		Countries []Country `yaml:"countries"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("geo: parse registry: %w", err)
	}
	r := &Registry{byCode: make(map[string]Country, 2*len(doc.Countries))}
	for _, c := range doc.Countries {
		c.ISO2 = strings.ToUpper(strings.TrimSpace(c.ISO2))
		c.ISO3 = strings.ToUpper(strings.TrimSpace(c.ISO3))
		if len(c.ISO2) != 2 || len(c.ISO3) != 3 || c.Name == "" {
			return nil, fmt.Errorf("geo: bad registry entry %+v", c)
		}
		if _, dup := r.byCode[c.ISO3]; dup {
			return nil, fmt.Errorf("geo: duplicate code %s", c.ISO3)
		}
		r.byCode[c.ISO2] = c
		r.byCode[c.ISO3] = c
		r.all = append(r.all, c)
	}
	sort.Slice(r.all, func(i, j int) bool { return r.all[i].Name < r.all[j].Name })
	return r, nil
}

// Lookup finds a country by ISO2 or ISO3 code, case-insensitively.
func (r *Registry) Lookup(code string) (Country, bool) {
	c, ok := r.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// Known reports whether iso3 is a registered ISO3 code. ISO2 codes do not match.
func (r *Registry) Known(iso3 string) bool {
	iso3 = strings.ToUpper(strings.TrimSpace(iso3))
	c, ok := r.byCode[iso3]
	return ok && c.ISO3 == iso3
}

// Resolve maps ISO2/ISO3 codes to ISO3, dropping blanks and duplicates.
func (r *Registry) Resolve(codes []string) ([]string, error) {
	seen := make(map[string]struct{}, len(codes))
	var out []string
	for _, code := range codes {
		if strings.TrimSpace(code) == "" {
			continue
		}
		c, ok := r.Lookup(code)
		if !ok {
			return nil, fmt.Errorf("unknown country code %q", code)
		}
		if _, dup := seen[c.ISO3]; dup {
			continue
		}
		seen[c.ISO3] = struct{}{}
		out = append(out, c.ISO3)
	}
	return out, nil
}

// All returns every country sorted by name.
func (r *Registry) All() []Country {
	out := make([]Country, len(r.all))
	copy(out, r.all)
	return out
}

// Len returns the number of countries.
func (r *Registry) Len() int { return len(r.all) }
