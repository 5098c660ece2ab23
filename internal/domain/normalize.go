package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultRadiusMeters applies when a payload carries no usable radius.
	DefaultRadiusMeters = 300.0

	// GenericCategoryLabel is shown for incidents whose category is not recognized.
	GenericCategoryLabel = "Occurrence"
)

// Normalizer converts raw payloads into canonical incidents.
type Normalizer struct {
	categories    CategoryTable
	defaultRadius float64
}

// NewNormalizer creates a Normalizer. A nil table selects DefaultCategories and a
// non-positive radius selects DefaultRadiusMeters.
func NewNormalizer(categories CategoryTable, defaultRadius float64) *Normalizer {
	if categories == nil {
		categories = DefaultCategories()
	}
	if defaultRadius <= 0 {
		defaultRadius = DefaultRadiusMeters
	}
	return &Normalizer{categories: categories, defaultRadius: defaultRadius}
}

// Categories returns the table used for category resolution.
func (n *Normalizer) Categories() CategoryTable {
	return n.categories
}

// DefaultRadius returns the radius applied to payloads without one.
func (n *Normalizer) DefaultRadius() float64 {
	return n.defaultRadius
}

// Normalize resolves a raw payload into an Incident. It returns false when the
// payload cannot describe an incident: non-finite or missing coordinates, or a
// timestamp that is present but unparsable.
func (n *Normalizer) Normalize(raw RawIncident) (Incident, bool) {
	lat, okLat := number(raw["lat"])
	lng, okLng := number(raw["lng"])
	if !okLat || !okLng || !(Position{Lat: lat, Lng: lng}).Valid() {
		return Incident{}, false
	}

	occurredAt, stamped, ok := n.occurredAt(raw)
	if !ok {
		return Incident{}, false
	}

	inc := Incident{
		Lat:         lat,
		Lng:         lng,
		Description: text(raw["description"]),
		OccurredAt:  occurredAt,
		PlaceName:   text(raw["place_name"]),
	}

	categoryText := text(raw["category"])
	if categoryText == "" {
		categoryText = text(raw["type"])
	}
	if info, found := n.categories.Lookup(Category(lower(categoryText))); found {
		inc.Category = Category(lower(categoryText))
		inc.CategoryLabel = info.Label
		inc.CategoryColor = info.Color
		inc.Severity = info.Severity
	} else {
		inc.CategoryLabel = firstNonEmpty(text(raw["category_label"]), categoryText, GenericCategoryLabel)
	}

	if sev, known := ParseSeverity(text(raw["severity"])); known {
		inc.Severity = sev
	}
	if inc.Severity == "" {
		inc.Severity = SeverityMedium
	}

	inc.RadiusMeters = n.defaultRadius
	if r, ok := number(raw["radius_m"]); ok && r > 0 && isFinite(r) {
		inc.RadiusMeters = r
	}

	inc.ID = identifier(raw["id"])
	if inc.ID == "" {
		inc.ID = DeriveID(inc, stamped)
	}

	return inc, true
}

// NormalizeAll normalizes each payload and drops the ones that fail.
func (n *Normalizer) NormalizeAll(raws []RawIncident) (incidents []Incident, dropped int) {
	incidents = make([]Incident, 0, len(raws))
	for _, raw := range raws {
		inc, ok := n.Normalize(raw)
		if !ok {
			dropped++
			continue
		}
		incidents = append(incidents, inc)
	}
	return incidents, dropped
}

// DeriveID returns a deterministic id for an incident delivered without one, so
// redelivery of the same payload maps to the same record. OccurredAt is part of
// the key only when stamped is true, that is when the payload carried its own
// timestamp; a clock-assigned time differs on every delivery.
func DeriveID(inc Incident, stamped bool) string {
	key := fmt.Sprintf("%s|%s|%.6f|%.6f|%s", inc.Category, inc.CategoryLabel, inc.Lat, inc.Lng, inc.Description)
	if stamped {
		key += "|" + inc.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	sum := sha256.Sum256([]byte(key))
	return "occ-" + hex.EncodeToString(sum[:])[:16]
}

// occurredAt reads the payload timestamp. stamped reports whether the payload
// carried one; ok is false when it carried one that does not parse.
func (n *Normalizer) occurredAt(raw RawIncident) (at time.Time, stamped, ok bool) {
	for _, key := range []string{"occurred_at", "created_at"} {
		v, present := raw[key]
		if !present || v == nil || v == "" {
			continue
		}
		parsed, err := parseTimestamp(v)
		if err != nil {
			return time.Time{}, true, false
		}
		return parsed, true, true
	}
	return now(), false, true
}

// parseTimestamp accepts RFC3339 strings and epoch milliseconds.
func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UTC(), nil
		}
		ms, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: not RFC3339 or epoch milliseconds", t)
		}
		return time.UnixMilli(ms).UTC(), nil
	case float64:
		if !isFinite(t) {
			return time.Time{}, fmt.Errorf("parse timestamp: non-finite value")
		}
		return time.UnixMilli(int64(t)).UTC(), nil
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", t, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	case time.Time:
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("parse timestamp: unsupported type %T", v)
	}
}

// number reads a float from a JSON number or a numeric string.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, isFinite(n)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && isFinite(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && isFinite(f)
	default:
		return 0, false
	}
}

func identifier(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		if !isFinite(id) {
			return ""
		}
		if id == math.Trunc(id) {
			return strconv.FormatFloat(id, 'f', 0, 64)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

func text(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
