package models

import "strings"

// PrecisionHints narrow down ambiguous place names in batch mode.
type PrecisionHints struct {
	Postcode string
	State    string
	County   string
	Village  string
}

// GeoQuery is the input of bounds resolution.
type GeoQuery struct {
	City    string
	Country string
	Hints   *PrecisionHints
}

// SearchCity returns the city part of the geocoding query: the city followed
// by postcode, village, county and state, each only when present. The village
// is skipped when it repeats the city name.
func (q GeoQuery) SearchCity() string {
	parts := []string{strings.TrimSpace(q.City)}
	if q.Hints == nil {
		return parts[0]
	}
	h := q.Hints
	add := func(v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	add(h.Postcode)
	if !strings.EqualFold(strings.TrimSpace(h.Village), strings.TrimSpace(q.City)) {
		add(h.Village)
	}
	add(h.County)
	add(h.State)
	return strings.Join(parts, ", ")
}

// Text is the full free-text query sent to the geocoder.
func (q GeoQuery) Text() string {
	return q.SearchCity() + ", " + strings.TrimSpace(q.Country)
}
