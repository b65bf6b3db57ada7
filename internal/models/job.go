package models

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// ImageExtensions are the renderer outputs treated as posters.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".svg", ".pdf"}

// IsImage reports whether name has one of ImageExtensions, ignoring case.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// BoundsResult frames a city on a poster.
type BoundsResult struct {
	CenterLat   float64
	CenterLon   float64
	RawRadiusKm float64
	// RadiusKm is RawRadiusKm scaled by the padding factor.
	RadiusKm float64
	Admin    AdminInfo
}

// RenderJob is one invocation of the renderer.
type RenderJob struct {
	Format         OutputFormat
	Theme          string
	Lat            float64
	Lon            float64
	RadiusKm       float64
	City           string
	Country        string
	DisplayCity    string
	DisplayCountry string
}

// ThemeLabel is the theme name used in file names and logs.
func (j RenderJob) ThemeLabel() string {
	if j.Theme == "" {
		return "Default"
	}
	return j.Theme
}

// DistanceMeters is the renderer's --distance argument. The renderer treats it
// as the full view diameter, so the radius is doubled.
func (j RenderJob) DistanceMeters() int {
	return int(math.Round(j.RadiusKm * 2 * 1000))
}

// Args returns the renderer command-line arguments for the job.
func (j RenderJob) Args() []string {
	args := []string{
		"--latitude", strconv.FormatFloat(j.Lat, 'f', -1, 64),
		"--longitude", strconv.FormatFloat(j.Lon, 'f', -1, 64),
		"--distance", strconv.Itoa(j.DistanceMeters()),
		"--width", strconv.FormatFloat(j.Format.Width, 'f', -1, 64),
		"--height", strconv.FormatFloat(j.Format.Height, 'f', -1, 64),
		"--city", j.City,
		"--country", j.Country,
		"--display-city", j.DisplayCity,
		"--display-country", j.DisplayCountry,
	}
	if j.Theme != "" {
		args = append(args, "--theme", j.Theme)
	}
	return args
}

// Artifact is a collected image file.
type Artifact struct {
	Path   string
	Name   string
	Format string
	Theme  string
	Size   int64
}
