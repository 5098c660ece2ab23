package domain

import (
	"context"
	"log/slog"
)

// Place is the result of a reverse geocoding lookup.
type Place struct {
	Name             string
	FormattedAddress string
	Relevance        float64 // 0.0-1.0 provider confidence score
}

// Geocoder resolves coordinates to a human-readable place.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, pos Position) (Place, error)
}

// EnrichPlaceName fills PlaceName from the geocoder. Lookup failures are logged and
// leave the incident unchanged; a nil geocoder disables enrichment.
func EnrichPlaceName(ctx context.Context, inc Incident, geocoder Geocoder, logger *slog.Logger) Incident {
	if geocoder == nil || inc.PlaceName != "" {
		return inc
	}

	place, err := geocoder.ReverseGeocode(ctx, inc.Position())
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"incident_id", inc.ID,
			"lat", inc.Lat,
			"lng", inc.Lng,
			"error", err,
		)
		return inc
	}

	switch {
	case place.Name != "":
		inc.PlaceName = place.Name
	case place.FormattedAddress != "":
		inc.PlaceName = place.FormattedAddress
	}
	return inc
}
