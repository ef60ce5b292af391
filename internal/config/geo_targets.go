package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// PriorityCountries are listed first in the country selector, in this order.
var PriorityCountries = []string{
	"United Kingdom",
	"United States",
	"France",
	"Germany",
	"Italy",
	"Spain",
	"Netherlands",
}

// Country is one selectable geographic target.
type Country struct {
	Name        string `json:"name"`
	CriteriaID  string `json:"criteria_id"`
	CountryCode string `json:"country_code,omitempty"`
}

// GeoTargets is the country name to criteria id table. It is read-only once
// loaded.
type GeoTargets struct {
	countries []Country
	byName    map[string]Country
}

func LoadGeoTargets(path string) (*GeoTargets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Field: "reference.geo_targets_file", Err: err}
	}
	defer f.Close()

	targets, err := ParseGeoTargets(f)
	if err != nil {
		return nil, &ConfigurationError{Field: path, Err: err}
	}
	return targets, nil
}

// ParseGeoTargets reads a Google Ads geo target CSV. Only the "Name" and
// "Criteria ID" columns are required; when a "Target Type" column is
// present only Country rows are kept. UTF-8 and UTF-16 byte order marks are
// accepted.
func ParseGeoTargets(r io.Reader) (*GeoTargets, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read geo target header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	nameIdx, okName := col["name"]
	idIdx, okID := col["criteria id"]
	if !okName || !okID {
		return nil, errors.New(`geo target file needs "Name" and "Criteria ID" columns`)
	}
	typeIdx, hasType := col["target type"]
	codeIdx, hasCode := col["country code"]

	byName := make(map[string]Country)
	var names []string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if nameIdx >= len(rec) || idIdx >= len(rec) {
			return nil, fmt.Errorf("line %d: too few columns", line)
		}
		if hasType && typeIdx < len(rec) && !strings.EqualFold(strings.TrimSpace(rec[typeIdx]), "country") {
			continue
		}

		c := Country{Name: strings.TrimSpace(rec[nameIdx]), CriteriaID: strings.TrimSpace(rec[idIdx])}
		if c.Name == "" {
			continue
		}
		if _, err := strconv.ParseInt(c.CriteriaID, 10, 64); err != nil {
			return nil, fmt.Errorf("line %d: criteria id %q for %s is not numeric", line, c.CriteriaID, c.Name)
		}
		if hasCode && codeIdx < len(rec) {
			c.CountryCode = strings.TrimSpace(rec[codeIdx])
		}

		key := strings.ToLower(c.Name)
		if _, dup := byName[key]; !dup {
			names = append(names, c.Name)
		}
		byName[key] = c
	}

	if len(byName) == 0 {
		return nil, errors.New("geo target file has no countries")
	}

	return &GeoTargets{countries: order(names, byName), byName: byName}, nil
}

// order puts priority countries first, then the rest alphabetically.
func order(names []string, byName map[string]Country) []Country {
	out := make([]Country, 0, len(names))
	priority := make(map[string]bool, len(PriorityCountries))
	for _, name := range PriorityCountries {
		key := strings.ToLower(name)
		priority[key] = true
		if c, ok := byName[key]; ok {
			out = append(out, c)
		}
	}

	rest := make([]string, 0, len(names))
	for _, name := range names {
		if !priority[strings.ToLower(name)] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, byName[strings.ToLower(name)])
	}
	return out
}

// Countries returns the selector order.
func (g *GeoTargets) Countries() []Country {
	return append([]Country(nil), g.countries...)
}

func (g *GeoTargets) Names() []string {
	out := make([]string, len(g.countries))
	for i, c := range g.countries {
		out[i] = c.Name
	}
	return out
}

// Lookup resolves a country name, ignoring case and surrounding spaces.
func (g *GeoTargets) Lookup(name string) (Country, bool) {
	c, ok := g.byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}
