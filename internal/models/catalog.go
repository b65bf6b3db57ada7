package models

import "time"

const StatusPublished = "published"

// CityKey identifies a catalog entry.
type CityKey struct {
	Name    string
	Country string
}

// CatalogEntry is one city in the catalog document.
type CatalogEntry struct {
	Name        string                       `json:"name"`
	Country     string                       `json:"country"`
	AdminInfo   AdminInfo                    `json:"admin_info"`
	Maps        map[string]map[string]string `json:"maps"`
	LastUpdated string                       `json:"last_updated"`
	Status      string                       `json:"status"`
}

// Key returns the entry identity.
func (e CatalogEntry) Key() CityKey {
	return CityKey{Name: e.Name, Country: e.Country}
}

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Timestamp formats t the way the catalog stores it: UTC with a Z suffix.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a catalog timestamp. Any RFC 3339 value is accepted.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
