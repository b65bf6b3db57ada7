package location

import "strings"

// Place is one entry of a Nominatim search response.
type Place struct {
	PlaceID     int64    `json:"place_id"`
	OsmType     string   `json:"osm_type"`
	OsmID       int64    `json:"osm_id"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	Class       string   `json:"class"`
	Type        string   `json:"type"`
	AddressType string   `json:"addresstype"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"`
	Address     *Address `json:"address,omitempty"`
}

// Address is the addressdetails breakdown of a place.
type Address struct {
	Municipality string `json:"municipality"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	County       string `json:"county"`
	State        string `json:"state"`
	Region       string `json:"region"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
}

// Locality returns the most specific settlement name: city, town, village
// or municipality.
func (a Address) Locality() string {
	for _, v := range []string{a.City, a.Town, a.Village, a.Municipality} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
