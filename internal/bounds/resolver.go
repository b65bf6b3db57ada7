// Package bounds turns a city query into a poster center, radius and
// administrative metadata.
package bounds

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"citypaper/internal/apperrors"
	"citypaper/internal/logger"
	"citypaper/internal/models"
	"citypaper/pkg/geo"
	"citypaper/pkg/location"
)

const DefaultPaddingFactor = 1.05

var postcodeRe = regexp.MustCompile(`\b\d{5}\b`)

// Geocoder is the subset of the Nominatim client the resolver needs.
type Geocoder interface {
	Search(ctx context.Context, query string) (*location.Place, error)
	SearchWithAddress(ctx context.Context, query string) (*location.Place, error)
}

type Resolver struct {
	geocoder Geocoder
	padding  float64
	log      *zap.Logger
}

func NewResolver(geocoder Geocoder, padding float64, log *zap.Logger) *Resolver {
	if padding <= 0 {
		padding = DefaultPaddingFactor
	}
	return &Resolver{geocoder: geocoder, padding: padding, log: logger.OrNop(log)}
}

// Resolve geocodes q and frames it. The structured address lookup is best
// effort: when it fails the result carries only the heuristic admin info.
func (r *Resolver) Resolve(ctx context.Context, q models.GeoQuery) (models.BoundsResult, error) {
	text := q.Text()
	log := r.log.With(zap.String("query", text))
	log.Info("geocoding")

	place, err := r.geocoder.Search(ctx, text)
	if err != nil {
		if errors.Is(err, location.ErrNoResults) {
			return models.BoundsResult{}, apperrors.Wrap(apperrors.ErrCodeGeocodeNotFound, "no data found for "+text, err)
		}
		return models.BoundsResult{}, apperrors.Wrap(apperrors.ErrCodeGeocodeProvider, "geocoding "+text, err)
	}

	box, err := geo.ParseBBox(place.BoundingBox)
	if err != nil {
		return models.BoundsResult{}, apperrors.Wrap(apperrors.ErrCodeGeocodeProvider, "invalid bounding box for "+text, err)
	}
	center := box.Center()
	raw := box.RadiusKm()

	result := models.BoundsResult{
		CenterLat:   center.Lat,
		CenterLon:   center.Lon,
		RawRadiusKm: raw,
		RadiusKm:    raw * r.padding,
		Admin: models.AdminInfo{
			DisplayName: place.DisplayName,
			Parts:       models.SplitDisplayName(place.DisplayName),
		},
	}
	log.Info("bounds resolved",
		zap.Float64("lat", result.CenterLat),
		zap.Float64("lon", result.CenterLon),
		zap.Float64("radius_km", raw),
		zap.Float64("padded_radius_km", result.RadiusKm),
	)

	structured, err := r.structured(ctx, q)
	if err != nil {
		log.Warn("could not fetch structured address details", zap.Error(err))
		return result, nil
	}
	result.Admin.Structured = structured
	log.Debug("structured admin info", zap.Any("structured", structured))
	return result, nil
}

func (r *Resolver) structured(ctx context.Context, q models.GeoQuery) (models.StructuredAdmin, error) {
	place, err := r.geocoder.SearchWithAddress(ctx, q.Text())
	if err != nil {
		return models.StructuredAdmin{}, err
	}
	if place.Address == nil {
		return models.StructuredAdmin{}, nil
	}
	addr := place.Address

	postcode := strings.TrimSpace(addr.Postcode)
	if postcode == "" {
		if m := postcodeRe.FindString(q.SearchCity()); m != "" {
			postcode = m
			r.log.Info("extracted postcode from input", zap.String("postcode", postcode))
		}
	}

	return models.StructuredAdmin{
		Country:  strings.TrimSpace(addr.Country),
		Region:   strings.TrimSpace(addr.Region),
		State:    strings.TrimSpace(addr.State),
		County:   strings.TrimSpace(addr.County),
		City:     addr.Locality(),
		Postcode: postcode,
	}, nil
}
