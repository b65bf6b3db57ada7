// Package batch loads a city list and drives the generator over it.
package batch

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"citypaper/internal/apperrors"
	"citypaper/internal/models"
)

const entrySchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "name":       {"type": ["string", "null"]},
      "country":    {"type": ["string", "null"]},
      "postcode":   {"type": ["string", "null"]},
      "state":      {"type": ["string", "null"]},
      "region":     {"type": ["string", "null"]},
      "county":     {"type": ["string", "null"]},
      "department": {"type": ["string", "null"]},
      "village":    {"type": ["string", "null"]}
    }
  }
}`

// Entry is one city of a batch file. Region is an alias for State and
// Department for County.
type Entry struct {
	Name       string `json:"name"`
	Country    string `json:"country"`
	Postcode   string `json:"postcode,omitempty"`
	State      string `json:"state,omitempty"`
	Region     string `json:"region,omitempty"`
	County     string `json:"county,omitempty"`
	Department string `json:"department,omitempty"`
	Village    string `json:"village,omitempty"`
}

// Valid reports whether the entry has both a name and a country.
func (e Entry) Valid() bool {
	return strings.TrimSpace(e.Name) != "" && strings.TrimSpace(e.Country) != ""
}

// Hints returns the precision hints of the entry, or nil when it has none.
func (e Entry) Hints() *models.PrecisionHints {
	h := models.PrecisionHints{
		Postcode: strings.TrimSpace(e.Postcode),
		State:    firstNonEmpty(e.State, e.Region),
		County:   firstNonEmpty(e.County, e.Department),
		Village:  strings.TrimSpace(e.Village),
	}
	if h == (models.PrecisionHints{}) {
		return nil
	}
	return &h
}

// Query converts the entry to a geocoding query.
func (e Entry) Query() models.GeoQuery {
	return models.GeoQuery{
		City:    strings.TrimSpace(e.Name),
		Country: strings.TrimSpace(e.Country),
		Hints:   e.Hints(),
	}
}

// LoadFile reads and validates a batch file.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidBatch, "reading batch file", err)
	}
	return Parse(data)
}

// Parse validates data against the batch schema and decodes it.
func Parse(data []byte) ([]Entry, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(entrySchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidBatch, "batch file is not valid JSON", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidBatch, "batch validation failed: %s", strings.Join(errs, "; "))
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidBatch, "decoding batch file", err)
	}
	return entries, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
