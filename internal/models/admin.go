package models

import "strings"

// AdminKind tags which source an AdminInfo can be trusted from.
type AdminKind int

const (
	// AdminHeuristic means only the comma-split display name is available.
	AdminHeuristic AdminKind = iota
	// AdminStructured means the provider returned address components.
	AdminStructured
)

func (k AdminKind) String() string {
	if k == AdminStructured {
		return "structured"
	}
	return "heuristic"
}

// StructuredAdmin holds normalized address components. Any field may be empty.
type StructuredAdmin struct {
	Country  string `json:"country,omitempty"`
	Region   string `json:"region,omitempty"`
	State    string `json:"state,omitempty"`
	County   string `json:"county,omitempty"`
	City     string `json:"city,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// IsZero reports whether no component is set.
func (s StructuredAdmin) IsZero() bool {
	return s == StructuredAdmin{}
}

// Ordered returns the non-empty components from country down to city.
func (s StructuredAdmin) Ordered() []string {
	var out []string
	for _, v := range []string{s.Country, s.Region, s.State, s.County, s.Postcode, s.City} {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// AdminInfo is the administrative metadata of a resolved place.
type AdminInfo struct {
	DisplayName string          `json:"display_name"`
	Parts       []string        `json:"parts"`
	Structured  StructuredAdmin `json:"structured"`
}

// Kind returns AdminStructured when structured components exist. Callers
// must not mix the heuristic parts into a structured decision.
func (a AdminInfo) Kind() AdminKind {
	if a.Structured.IsZero() {
		return AdminHeuristic
	}
	return AdminStructured
}

// SplitDisplayName splits a provider display name into trimmed,
// most-specific-first tokens.
func SplitDisplayName(displayName string) []string {
	if strings.TrimSpace(displayName) == "" {
		return []string{}
	}
	raw := strings.Split(displayName, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		parts = append(parts, strings.TrimSpace(p))
	}
	return parts
}
