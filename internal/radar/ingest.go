package radar

import (
	"context"
	"fmt"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/feed"
	"github.com/couchcryptid/incident-radar-service/internal/retry"
	"github.com/couchcryptid/incident-radar-service/internal/sound"
)

const (
	tierLive     = "live"
	tierFallback = "fallback"
)

type pollResult struct {
	incidents []domain.Incident
	dropped   int
	tier      string
	err       error
}

// pollLoop fetches, hands the result to the loop, then waits a full interval.
// Cycles never overlap.
func (r *Radar) pollLoop(ctx context.Context) {
	for {
		res := r.pollOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		select {
		case r.polls <- res:
		case <-ctx.Done():
			return
		}
		if !retry.Sleep(ctx, r.clock, r.opts.PollInterval) {
			return
		}
	}
}

// pollOnce tries the live source, then the fallback tier.
func (r *Radar) pollOnce(ctx context.Context) pollResult {
	start := r.clock.Now()
	defer func() { r.metrics.PollDuration.Observe(r.clock.Since(start).Seconds()) }()

	tier := tierLive
	raws, err := r.deps.Fetcher.FetchActive(ctx)
	if err != nil && ctx.Err() == nil {
		r.logger.Warn("live poll failed", "error", err)
		if r.deps.Fallback == nil {
			return pollResult{err: err}
		}
		tier = tierFallback
		var fallbackErr error
		raws, fallbackErr = r.deps.Fallback.FetchActive(ctx)
		if fallbackErr != nil {
			return pollResult{err: fmt.Errorf("fallback poll: %w (live: %w)", fallbackErr, err)}
		}
	}
	if ctx.Err() != nil {
		return pollResult{err: ctx.Err()}
	}

	incidents, dropped := r.normalizer.NormalizeAll(raws)
	for i := range incidents {
		incidents[i] = r.enrich(ctx, incidents[i])
	}
	return pollResult{incidents: incidents, dropped: dropped, tier: tier}
}

func (r *Radar) streamLoop(ctx context.Context) {
	err := r.deps.Stream.Subscribe(ctx, func(env domain.Envelope) {
		inc, ok := r.decodeEnvelope(env)
		if !ok {
			return
		}
		inc = r.enrich(ctx, inc)
		select {
		case r.incidents <- inc:
		case <-ctx.Done():
		}
	})
	if err != nil && ctx.Err() == nil {
		r.logger.Error("incident stream stopped", "error", err)
	}
}

// decodeEnvelope normalizes a stream message. The envelope type is not checked;
// every message is treated as a new incident.
func (r *Radar) decodeEnvelope(env domain.Envelope) (domain.Incident, bool) {
	raw, err := domain.ParseRawIncident(env.Data)
	if err != nil {
		r.metrics.StreamEvents.WithLabelValues("rejected").Inc()
		r.logger.Debug("ignoring malformed stream message", "type", env.Type, "error", err)
		return domain.Incident{}, false
	}
	inc, ok := r.normalizer.Normalize(raw)
	if !ok {
		r.metrics.StreamEvents.WithLabelValues("rejected").Inc()
		r.logger.Debug("ignoring unusable stream incident", "type", env.Type)
		return domain.Incident{}, false
	}
	return inc, true
}

func (r *Radar) watchLoop(ctx context.Context) {
	err := r.deps.Locator.Watch(ctx, func(s domain.Sample) {
		select {
		case r.positions <- s:
		case <-ctx.Done():
		}
	})
	if err != nil && ctx.Err() == nil {
		r.logger.Error("geolocation watch stopped", "error", err)
	}
}

func (r *Radar) enrich(ctx context.Context, inc domain.Incident) domain.Incident {
	if r.deps.Geocoder == nil {
		return inc
	}
	return domain.EnrichPlaceName(ctx, inc, r.deps.Geocoder, r.logger)
}

func (r *Radar) applyPoll(res pollResult) {
	if res.err != nil {
		r.metrics.Polls.WithLabelValues("failed").Inc()
		r.logger.Error("poll failed, keeping previous incidents", "error", res.err)
		return
	}

	kept := r.store.ReplaceRemote(res.incidents, r.clock.Now())
	r.metrics.Polls.WithLabelValues(res.tier).Inc()
	r.ready.Store(true)
	r.logger.Debug("poll applied",
		"tier", res.tier,
		"received", len(res.incidents),
		"kept", kept,
		"dropped", res.dropped,
	)
	r.recordStoreSize()
	r.updateProximity()
}

func (r *Radar) applyStreamed(inc domain.Incident) {
	ins := r.store.InsertStreamed(inc, r.clock.Now())
	if !ins.Inserted {
		r.metrics.StreamEvents.WithLabelValues("duplicate").Inc()
		return
	}
	r.metrics.StreamEvents.WithLabelValues("inserted").Inc()

	if ins.SupersededID != "" {
		r.metrics.Reconciliations.Inc()
		r.logger.Info("local incident confirmed by server",
			"local_id", ins.SupersededID,
			"remote_id", inc.ID,
		)
	}

	if r.filter.Allows(inc) {
		r.pushAlert(feed.Alert{
			ID:          "new-" + inc.ID,
			Title:       "Nova ocorrência • " + inc.CategoryLabel,
			Description: inc.Description,
			Color:       inc.CategoryColor,
			TTL:         r.opts.AlertTTL,
			Cue:         sound.KindAlert,
		})
	}
	r.recordStoreSize()
	r.updateProximity()
}
