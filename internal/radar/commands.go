package radar

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/feed"
	"github.com/couchcryptid/incident-radar-service/internal/proximity"
	"github.com/google/uuid"
)

// Observer is the last geolocation reading.
type Observer struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	AccuracyMeters float64 `json:"accuracy_m"`
	Error          string  `json:"error,omitempty"`
}

// Snapshot is a consistent view of the runtime state.
type Snapshot struct {
	Ready            bool              `json:"ready"`
	Observer         *Observer         `json:"observer"`
	Banner           proximity.State   `json:"banner"`
	Incidents        []domain.Incident `json:"incidents"`
	Alerts           []feed.Alert      `json:"alerts"`
	CooldownSeconds  int               `json:"cooldown_remaining_seconds"`
	Categories       []domain.Category `json:"categories"`
	SoundEnabled     bool              `json:"sound_enabled"`
	CreateInProgress bool              `json:"create_in_progress"`
}

// AlertAction is a user interaction with a feed alert.
type AlertAction string

const (
	AlertPin     AlertAction = "pin"
	AlertFocus   AlertAction = "focus"
	AlertBlur    AlertAction = "blur"
	AlertDismiss AlertAction = "dismiss"
)

// State returns a snapshot taken on the loop.
func (r *Radar) State(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.do(ctx, func() {
		now := r.clock.Now()
		snap = Snapshot{
			Ready:            r.ready.Load(),
			Banner:           r.banner,
			Incidents:        r.visible(),
			Alerts:           r.feed.Items(),
			CooldownSeconds:  int(math.Ceil(r.limiter.Remaining(now).Seconds())),
			Categories:       r.filter.Selected(),
			SoundEnabled:     r.sound.Enabled(),
			CreateInProgress: r.creating,
		}
		if r.observer != nil {
			snap.Observer = &Observer{
				Lat:            r.observer.Position.Lat,
				Lng:            r.observer.Position.Lng,
				AccuracyMeters: r.observer.AccuracyMeters,
			}
			if r.observer.Err != nil {
				snap.Observer.Error = r.observer.Err.Error()
			}
		}
	})
	return snap, err
}

// PushPosition hands a geolocation sample to the loop.
func (r *Radar) PushPosition(ctx context.Context, s domain.Sample) error {
	select {
	case r.positions <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// HandleAlert applies a user action to a feed alert.
func (r *Radar) HandleAlert(ctx context.Context, id string, action AlertAction) error {
	var result error
	err := r.do(ctx, func() {
		var found bool
		switch action {
		case AlertPin:
			found = r.feed.Pin(id)
		case AlertFocus:
			found = r.feed.Focus(id)
		case AlertBlur:
			found = r.feed.Blur(id, r.clock.Now())
		case AlertDismiss:
			found = r.feed.Dismiss(id)
		default:
			result = fmt.Errorf("%w: %q", ErrUnknownAction, action)
			return
		}
		if !found {
			result = fmt.Errorf("%w: %s", ErrAlertNotFound, id)
		}
	})
	if err != nil {
		return err
	}
	return result
}

// SetCategories replaces the category selection.
func (r *Radar) SetCategories(ctx context.Context, categories []domain.Category) error {
	var result error
	err := r.do(ctx, func() {
		table := r.normalizer.Categories()
		for _, c := range categories {
			if _, ok := table.Lookup(domain.Category(strings.ToLower(string(c)))); !ok {
				result = fmt.Errorf("%w: %q", ErrUnknownCategory, c)
				return
			}
		}
		r.filter = domain.NewCategoryFilter(categories)
		r.refreshBanner()
		r.updateProximity()
	})
	if err != nil {
		return err
	}
	return result
}

// SetSound enables or disables sound cues. A failure to enable is also reported
// in the feed.
func (r *Radar) SetSound(ctx context.Context, enabled bool) error {
	var result error
	err := r.do(ctx, func() {
		if !enabled {
			r.sound.Disable()
			return
		}
		if err := r.sound.Enable(); err != nil {
			r.logger.Warn("sound could not be enabled", "error", err)
			r.pushAlert(feed.Alert{
				ID:    uuid.NewString(),
				Title: "Som não pôde ser habilitado",
				TTL:   r.opts.AlertTTL,
			})
			result = err
		}
	})
	if err != nil {
		return err
	}
	return result
}
