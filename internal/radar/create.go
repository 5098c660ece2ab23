package radar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/feed"
	"github.com/couchcryptid/incident-radar-service/internal/sound"
	"github.com/google/uuid"
)

const persistTimeout = 5 * time.Second

// Draft is a user's request to report an incident.
type Draft struct {
	Category    domain.Category
	Description string
	Placement   domain.Placement
	// Target is the picked point for PlacementNearby.
	Target *domain.Position
}

// Create reports a new incident. The request is validated and the cooldown
// checked on the loop, the creation transport is called from the caller's
// goroutine, and the result is committed back on the loop. When the transport
// fails the incident is kept as a local record.
func (r *Radar) Create(ctx context.Context, d Draft) (domain.Incident, error) {
	var (
		req     domain.CreateRequest
		prepErr error
	)
	if err := r.do(ctx, func() { req, prepErr = r.prepareCreate(d) }); err != nil {
		return domain.Incident{}, err
	}
	if prepErr != nil {
		return domain.Incident{}, prepErr
	}

	var (
		raw       domain.RawIncident
		createErr = errors.New("no creation transport configured")
	)
	if r.deps.Creator != nil {
		raw, createErr = r.deps.Creator.Create(ctx, req)
	}

	var inc domain.Incident
	if err := r.do(context.WithoutCancel(ctx), func() { inc = r.commitCreate(req, raw, createErr) }); err != nil {
		return domain.Incident{}, err
	}
	return inc, nil
}

func (r *Radar) prepareCreate(d Draft) (domain.CreateRequest, error) {
	if r.creating {
		r.metrics.Creations.WithLabelValues("rejected").Inc()
		return domain.CreateRequest{}, ErrCreateInProgress
	}

	now := r.clock.Now()
	if decision := r.limiter.TryAcquire(now); !decision.Allowed {
		r.metrics.Creations.WithLabelValues("cooldown").Inc()
		r.pushAlert(feed.Alert{
			ID:          uuid.NewString(),
			Title:       "Aguarde para criar",
			Description: "Você poderá criar outra ocorrência em " + formatWait(decision.Remaining) + ".",
			TTL:         r.opts.AlertTTL,
		})
		return domain.CreateRequest{}, &CooldownError{Remaining: decision.Remaining}
	}

	req, err := r.buildRequest(d, now)
	if err != nil {
		r.metrics.Creations.WithLabelValues("rejected").Inc()
		return domain.CreateRequest{}, err
	}
	r.creating = true
	return req, nil
}

func (r *Radar) buildRequest(d Draft, now time.Time) (domain.CreateRequest, error) {
	category := domain.Category(strings.ToLower(strings.TrimSpace(string(d.Category))))
	if _, ok := r.normalizer.Categories().Lookup(category); !ok {
		return domain.CreateRequest{}, fmt.Errorf("%w: %q", ErrUnknownCategory, d.Category)
	}

	description := strings.TrimSpace(d.Description)
	if utf8.RuneCountInString(description) < r.opts.MinDescription {
		return domain.CreateRequest{}, fmt.Errorf("%w: need at least %d characters", ErrDescriptionLength, r.opts.MinDescription)
	}

	if r.observer == nil || r.observer.Err != nil {
		return domain.CreateRequest{}, ErrNoFix
	}
	if r.observer.AccuracyMeters > r.opts.MaxAccuracyMeters {
		return domain.CreateRequest{}, fmt.Errorf("%w: %.0f m, need %.0f m or better",
			ErrLowAccuracy, r.observer.AccuracyMeters, r.opts.MaxAccuracyMeters)
	}

	placement := d.Placement
	if placement == "" {
		placement = domain.PlacementHere
	}
	pos := r.observer.Position
	switch placement {
	case domain.PlacementHere:
	case domain.PlacementNearby:
		if d.Target == nil || !d.Target.Valid() {
			return domain.CreateRequest{}, ErrNoTarget
		}
		pos = domain.ClampToRadius(r.observer.Position, *d.Target, r.opts.NearbyMaxMeters)
	default:
		return domain.CreateRequest{}, fmt.Errorf("%w: %q", ErrInvalidPlacement, placement)
	}

	return domain.CreateRequest{
		Category:     category,
		Description:  description,
		Lat:          pos.Lat,
		Lng:          pos.Lng,
		RadiusMeters: r.normalizer.DefaultRadius(),
		OccurredAt:   now.UTC(),
		Placement:    placement,
	}, nil
}

func (r *Radar) commitCreate(req domain.CreateRequest, raw domain.RawIncident, createErr error) domain.Incident {
	r.creating = false
	now := r.clock.Now()

	outcome := "confirmed"
	var (
		inc domain.Incident
		ok  bool
	)
	if createErr == nil {
		inc, ok = r.normalizer.Normalize(raw)
		if !ok {
			createErr = errors.New("creation transport returned an unusable record")
		}
	}
	if createErr != nil {
		outcome = "fallback"
		r.logger.Warn("creation transport failed, keeping local record", "error", createErr)
		inc, _ = r.normalizer.Normalize(localRecord(req, now))
	}

	inc.Provenance = domain.ProvenanceLocal
	r.store.AddLocal(inc)
	r.limiter.Mark(now)
	r.persist.Add(1)
	go func() {
		defer r.persist.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.limiter.Persist(ctx, now); err != nil {
			r.logger.Warn("cooldown will not survive a restart", "error", err)
		}
	}()

	r.metrics.Creations.WithLabelValues(outcome).Inc()
	r.logger.Info("incident created",
		"incident_id", inc.ID,
		"category", inc.Category,
		"placement", req.Placement,
		"outcome", outcome,
	)
	r.pushAlert(feed.Alert{
		ID:          "created-" + inc.ID,
		Title:       "Ocorrência criada • " + inc.CategoryLabel,
		Description: inc.Description,
		Color:       inc.CategoryColor,
		TTL:         r.opts.AlertTTL,
		Cue:         sound.KindAlert,
	})
	r.recordStoreSize()
	r.updateProximity()
	return inc
}

// localRecord builds the client-side record kept when the server did not confirm.
func localRecord(req domain.CreateRequest, now time.Time) domain.RawIncident {
	return domain.RawIncident{
		"id":          fmt.Sprintf("local-%d", now.UnixMilli()),
		"lat":         req.Lat,
		"lng":         req.Lng,
		"category":    string(req.Category),
		"description": req.Description,
		"radius_m":    req.RadiusMeters,
		"occurred_at": req.OccurredAt.Format(time.RFC3339Nano),
	}
}

// formatWait renders a wait as "4m 05s".
func formatWait(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if d > 0 && secs == 0 {
		secs = 1
	}
	return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
}
