// Package geo holds the small amount of spherical math the poster framing needs.
package geo

import (
	"fmt"
	"math"
	"strconv"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0088

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// BBox is a bounding box in degrees.
type BBox struct {
	South float64
	North float64
	West  float64
	East  float64
}

// ParseBBox parses a Nominatim "boundingbox" value, which is
// [south, north, west, east] encoded as strings.
func ParseBBox(raw []string) (BBox, error) {
	if len(raw) != 4 {
		return BBox{}, fmt.Errorf("bounding box has %d values, want 4", len(raw))
	}
	var v [4]float64
	for i, s := range raw {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bounding box value %q: %w", s, err)
		}
		v[i] = f
	}
	return BBox{South: v[0], North: v[1], West: v[2], East: v[3]}, nil
}

// Center is the midpoint of the box.
func (b BBox) Center() Point {
	return Point{Lat: (b.South + b.North) / 2, Lon: (b.West + b.East) / 2}
}

// NorthEast is the box corner used to measure its radius.
func (b BBox) NorthEast() Point {
	return Point{Lat: b.North, Lon: b.East}
}

// RadiusKm is the distance from the center of the box to its north-east corner.
func (b BBox) RadiusKm() float64 {
	return DistanceKm(b.Center(), b.NorthEast())
}

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
