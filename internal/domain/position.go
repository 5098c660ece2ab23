package domain

import (
	"errors"
	"fmt"
)

// ErrGeolocationUnavailable is the sample error for a report that carries a
// failure message instead of a fix.
var ErrGeolocationUnavailable = errors.New("geolocation unavailable")

// PositionReport is the wire form of a geolocation reading, shared by the HTTP
// and NATS position feeds.
type PositionReport struct {
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	Accuracy float64  `json:"accuracy,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Sample converts the report. A report with Error set becomes a failed sample; a
// report without a usable fix is rejected.
func (p PositionReport) Sample() (Sample, error) {
	if p.Error != "" {
		return Sample{Err: fmt.Errorf("%w: %s", ErrGeolocationUnavailable, p.Error)}, nil
	}
	if p.Lat == nil || p.Lng == nil {
		return Sample{}, errors.New("position report needs lat and lng or an error")
	}
	pos := Position{Lat: *p.Lat, Lng: *p.Lng}
	if !pos.Valid() {
		return Sample{}, fmt.Errorf("position report out of range: %.6f,%.6f", pos.Lat, pos.Lng)
	}
	if p.Accuracy < 0 || !isFinite(p.Accuracy) {
		return Sample{}, fmt.Errorf("position report accuracy invalid: %v", p.Accuracy)
	}
	return Sample{Position: pos, AccuracyMeters: p.Accuracy}, nil
}
