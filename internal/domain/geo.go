package domain

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	// EarthRadiusMeters is the sphere radius used by DistanceMeters.
	EarthRadiusMeters = 6371000.0

	// metersPerDegreeLat is the equirectangular scale used by ClampToRadius.
	metersPerDegreeLat = 111320.0
)

// Position is a WGS-84 latitude/longitude pair in degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts the position to an orb point (lon, lat order).
func (p Position) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// Bound returns a bounding box that contains every point within meters of p.
func (p Position) Bound(meters float64) orb.Bound {
	return geo.NewBoundAroundPoint(p.Point(), meters)
}

// Valid reports whether both coordinates are finite and inside WGS-84 ranges.
func (p Position) Valid() bool {
	return isFinite(p.Lat) && isFinite(p.Lng) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b Position) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ClampToRadius moves target toward center until it lies within maxMeters of it.
//
// The offset is measured on an equirectangular plane around center (longitude scaled
// by cos(center.Lat)). This is an approximation for spans of about 2 km, which is all
// the location picker needs; it is not geodesically exact. A target already within
// maxMeters, or equal to center, is returned unchanged.
func ClampToRadius(center, target Position, maxMeters float64) Position {
	metersPerDegreeLng := metersPerDegreeLat * math.Cos(center.Lat*math.Pi/180)

	dx := (target.Lng - center.Lng) * metersPerDegreeLng
	dy := (target.Lat - center.Lat) * metersPerDegreeLat
	d := math.Hypot(dx, dy)

	if !isFinite(d) || d == 0 || d <= maxMeters {
		return target
	}

	k := maxMeters / d
	return Position{
		Lat: center.Lat + dy*k/metersPerDegreeLat,
		Lng: center.Lng + dx*k/metersPerDegreeLng,
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
