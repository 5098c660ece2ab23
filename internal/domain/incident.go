package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ActiveWindow is how long after OccurredAt an incident stays on the map.
const ActiveWindow = 60 * time.Minute

// Provenance records where an incident record originated.
type Provenance string

const (
	// ProvenanceLocal marks incidents created by this client.
	ProvenanceLocal Provenance = "local"
	// ProvenanceRemote marks incidents received from the server feed (poll or stream).
	ProvenanceRemote Provenance = "remote"
)

// Severity is the danger level shown on the proximity banner.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity returns the severity matching s (case-insensitive) and whether it is known.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(lower(s)) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	default:
		return "", false
	}
}

// Category identifies an incident kind. The empty Category means "unrecognized".
type Category string

// Placement describes how the location of a created incident was chosen.
type Placement string

const (
	// PlacementHere uses the observer's current position.
	PlacementHere Placement = "here"
	// PlacementNearby uses a picked point, clamped to a maximum distance from the observer.
	PlacementNearby Placement = "nearby"
)

// Incident is the canonical incident record.
type Incident struct {
	ID            string    `json:"id"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Category      Category  `json:"category,omitempty"`
	CategoryLabel string    `json:"category_label"`
	CategoryColor string    `json:"category_color,omitempty"`
	Description   string    `json:"description"`
	Severity      Severity  `json:"severity"`
	RadiusMeters  float64   `json:"radius_m"`
	OccurredAt    time.Time `json:"occurred_at"`

	// PlaceName is filled by optional reverse geocoding.
	PlaceName string `json:"place_name,omitempty"`

	Provenance Provenance `json:"-"`
}

// Position returns the incident's location.
func (i Incident) Position() Position {
	return Position{Lat: i.Lat, Lng: i.Lng}
}

// ActiveAt reports whether the incident is inside the active window at now.
func (i Incident) ActiveAt(now time.Time, window time.Duration) bool {
	return now.Sub(i.OccurredAt) <= window
}

// Raw returns the incident as a loosely typed payload, the inverse of Normalize.
func (i Incident) Raw() (RawIncident, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return nil, fmt.Errorf("marshal incident: %w", err)
	}
	return ParseRawIncident(data)
}

// RawIncident is an inbound payload before normalization. Field names and types vary
// between the poll endpoint, the stream, and local drafts.
type RawIncident map[string]any

// ParseRawIncident decodes a JSON object into a RawIncident. Numbers are kept
// as json.Number so large numeric ids survive intact.
func ParseRawIncident(data []byte) (RawIncident, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw RawIncident
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse raw incident: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse raw incident: unexpected data after object")
	}
	if raw == nil {
		return nil, fmt.Errorf("parse raw incident: payload is null")
	}
	return raw, nil
}

// Envelope is the stream message format. Only Data is consumed; Type is carried
// for logging and is not validated.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEnvelope decodes a stream message.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	return env, nil
}

// CreateRequest is the body sent to the creation transport.
type CreateRequest struct {
	Category     Category  `json:"category"`
	Description  string    `json:"description"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	RadiusMeters float64   `json:"radius_m"`
	OccurredAt   time.Time `json:"occurred_at"`
	Placement    Placement `json:"placement"`
}

// Sample is one reading from the geolocation capability. Err is set when the
// capability reported a failure instead of a fix.
type Sample struct {
	Position       Position
	AccuracyMeters float64
	Err            error
}
