package store

import (
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
)

const (
	// DefaultReconcileRadius is the maximum distance between a local incident and
	// its server-confirmed twin.
	DefaultReconcileRadius = 30.0

	// DefaultReconcileWindow is the maximum difference between their occurrence times.
	DefaultReconcileWindow = 2 * time.Minute
)

// Reconciler decides which local incident, if any, an incoming remote incident
// confirms.
type Reconciler struct {
	RadiusMeters float64
	Window       time.Duration
}

// NewReconciler returns a Reconciler, substituting defaults for non-positive values.
func NewReconciler(radiusMeters float64, window time.Duration) Reconciler {
	if radiusMeters <= 0 {
		radiusMeters = DefaultReconcileRadius
	}
	if window <= 0 {
		window = DefaultReconcileWindow
	}
	return Reconciler{RadiusMeters: radiusMeters, Window: window}
}

// Match returns the index in locals of the nearest candidate for incoming. A
// candidate has the same category, lies within RadiusMeters and occurred within
// Window of incoming. The window compares occurrence times, not arrival time, so
// a late delivery still confirms its local twin. Ties keep the first candidate
// encountered.
func (r Reconciler) Match(locals []domain.Incident, incoming domain.Incident) (int, bool) {
	bound := incoming.Position().Bound(r.RadiusMeters)

	best := -1
	bestDist := 0.0
	for i, local := range locals {
		if local.Category != incoming.Category {
			continue
		}
		if absDuration(incoming.OccurredAt.Sub(local.OccurredAt)) > r.Window {
			continue
		}
		if !bound.Contains(local.Position().Point()) {
			continue
		}
		d := domain.DistanceMeters(local.Position(), incoming.Position())
		if d > r.RadiusMeters {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
