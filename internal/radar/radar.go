// Package radar is the runtime that ties incident intake, the observer's position,
// proximity alerts, the alert feed and incident creation together.
//
// One goroutine owns every piece of mutable state and serializes all inputs: poll
// results, stream messages, position samples, API commands and timers. Producers
// (the poller, the stream subscription, the geolocation watch and the creation
// transport) run in their own goroutines and hand results to the loop over
// channels, so the loop never waits on I/O.
package radar

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/feed"
	"github.com/couchcryptid/incident-radar-service/internal/observability"
	"github.com/couchcryptid/incident-radar-service/internal/proximity"
	"github.com/couchcryptid/incident-radar-service/internal/ratelimit"
	"github.com/couchcryptid/incident-radar-service/internal/sound"
	"github.com/couchcryptid/incident-radar-service/internal/store"
	"github.com/jonboulle/clockwork"
)

// Fetcher returns the full list of active incidents from one source.
type Fetcher interface {
	FetchActive(ctx context.Context) ([]domain.RawIncident, error)
}

// Stream delivers incremental messages until ctx is cancelled. Implementations
// reconnect on their own and return only when ctx is done or they cannot continue.
type Stream interface {
	Subscribe(ctx context.Context, handle func(domain.Envelope)) error
}

// Locator watches the observer's position until ctx is cancelled.
type Locator interface {
	Watch(ctx context.Context, handle func(domain.Sample)) error
}

// Creator submits a new incident and returns the confirmed record.
type Creator interface {
	Create(ctx context.Context, req domain.CreateRequest) (domain.RawIncident, error)
}

// Options tune the runtime. Zero values select defaults.
type Options struct {
	PollInterval      time.Duration
	ProximityInterval time.Duration
	SweepInterval     time.Duration
	CountdownInterval time.Duration

	NearbyMaxMeters   float64
	MaxAccuracyMeters float64
	MinDescription    int
	HysteresisMeters  float64
	AlertTTL          time.Duration
	AlertMaxAge       time.Duration

	// Categories is the initial selection; nil selects every category.
	Categories []domain.Category
}

const (
	DefaultPollInterval      = 15 * time.Second
	DefaultProximityInterval = 1200 * time.Millisecond
	DefaultSweepInterval     = 30 * time.Second
	DefaultCountdownInterval = time.Second
	DefaultNearbyMaxMeters   = 500.0
	DefaultMaxAccuracyMeters = 60.0
	DefaultMinDescription    = 5
)

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ProximityInterval <= 0 {
		o.ProximityInterval = DefaultProximityInterval
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.CountdownInterval <= 0 {
		o.CountdownInterval = DefaultCountdownInterval
	}
	if o.NearbyMaxMeters <= 0 {
		o.NearbyMaxMeters = DefaultNearbyMaxMeters
	}
	if o.MaxAccuracyMeters <= 0 {
		o.MaxAccuracyMeters = DefaultMaxAccuracyMeters
	}
	if o.MinDescription <= 0 {
		o.MinDescription = DefaultMinDescription
	}
	if o.HysteresisMeters <= 0 {
		o.HysteresisMeters = proximity.DefaultHysteresisMeters
	}
	if o.AlertTTL <= 0 {
		o.AlertTTL = feed.DefaultTTL
	}
	if o.AlertMaxAge <= 0 {
		o.AlertMaxAge = feed.DefaultMaxAge
	}
	return o
}

// Deps are the collaborators of a Radar. Fetcher, Normalizer, Store, Limiter and
// Sound are required; the rest are optional and disable their feature when nil.
type Deps struct {
	Fetcher  Fetcher
	Fallback Fetcher
	Stream   Stream
	Locator  Locator
	Creator  Creator
	Geocoder domain.Geocoder

	Normalizer *domain.Normalizer
	Store      *store.Store
	Limiter    *ratelimit.Limiter
	Sound      *sound.Manager

	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Radar is the runtime. Create one with New and start it with Run.
type Radar struct {
	deps Deps
	opts Options

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	// Owned by the loop goroutine.
	normalizer *domain.Normalizer
	store      *store.Store
	engine     *proximity.Engine
	limiter    *ratelimit.Limiter
	feed       *feed.Feed
	sound      *sound.Manager
	filter     domain.CategoryFilter
	observer   *domain.Sample
	banner     proximity.State
	creating   bool
	feedTimer  clockwork.Timer
	feedDue    time.Time

	polls     chan pollResult
	incidents chan domain.Incident
	positions chan domain.Sample
	commands  chan func()

	persist sync.WaitGroup
	running atomic.Bool
	done    chan struct{}
	ready   atomic.Bool
}

// New creates a Radar.
func New(deps Deps, opts Options) *Radar {
	opts = opts.withDefaults()
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Sound == nil {
		deps.Sound = sound.NewManager(nil, deps.Logger)
	}

	r := &Radar{
		deps:       deps,
		opts:       opts,
		clock:      deps.Clock,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		normalizer: deps.Normalizer,
		store:      deps.Store,
		engine:     proximity.NewEngine(opts.HysteresisMeters, deps.Sound),
		limiter:    deps.Limiter,
		sound:      deps.Sound,
		banner:     proximity.SafeState,
		polls:      make(chan pollResult),
		incidents:  make(chan domain.Incident, 64),
		positions:  make(chan domain.Sample, 16),
		commands:   make(chan func()),
		done:       make(chan struct{}),
	}
	r.feed = feed.New(feed.Options{
		TTL:       opts.AlertTTL,
		Player:    deps.Sound,
		OnDismiss: r.onDismiss,
	})

	categories := opts.Categories
	if categories == nil {
		categories = deps.Normalizer.Categories().IDs()
	}
	r.filter = domain.NewCategoryFilter(categories)
	return r
}

// CheckReadiness returns nil once the first poll cycle has been applied.
func (r *Radar) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no incident list has been loaded yet")
	}
	return nil
}

// Run starts the producers and the loop, and blocks until ctx is cancelled and
// every producer has exited.
func (r *Radar) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("radar is already running")
	}
	defer close(r.done)

	r.logger.Info("radar started",
		"poll_interval", r.opts.PollInterval,
		"categories", len(r.filter.Selected()),
	)
	r.metrics.LoopRunning.Set(1)
	defer r.metrics.LoopRunning.Set(0)

	var producers sync.WaitGroup
	producers.Add(1)
	go func() {
		defer producers.Done()
		r.pollLoop(ctx)
	}()
	if r.deps.Stream != nil {
		producers.Add(1)
		go func() {
			defer producers.Done()
			r.streamLoop(ctx)
		}()
	}
	if r.deps.Locator != nil {
		producers.Add(1)
		go func() {
			defer producers.Done()
			r.watchLoop(ctx)
		}()
	}

	r.loop(ctx)

	producers.Wait()
	r.persist.Wait()
	r.logger.Info("radar stopped", "reason", ctx.Err())
	return nil
}

func (r *Radar) loop(ctx context.Context) {
	proximityTicker := r.clock.NewTicker(r.opts.ProximityInterval)
	defer proximityTicker.Stop()
	sweepTicker := r.clock.NewTicker(r.opts.SweepInterval)
	defer sweepTicker.Stop()
	countdownTicker := r.clock.NewTicker(r.opts.CountdownInterval)
	defer countdownTicker.Stop()
	defer r.stopFeedTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-r.polls:
			r.applyPoll(res)
		case inc := <-r.incidents:
			r.applyStreamed(inc)
		case s := <-r.positions:
			r.applySample(s)
		case cmd := <-r.commands:
			cmd()
		case <-proximityTicker.Chan():
			r.refreshBanner()
		case <-sweepTicker.Chan():
			r.sweep()
		case <-countdownTicker.Chan():
			r.metrics.CooldownRemaining.Set(r.limiter.Remaining(r.clock.Now()).Seconds())
		case <-r.feedTimerChan():
			r.feedTimer, r.feedDue = nil, time.Time{}
			r.feed.Tick(r.clock.Now())
		}
		r.armFeedTimer()
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (r *Radar) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case r.commands <- func() { fn(); close(finished) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

func (r *Radar) visible() []domain.Incident {
	return r.filter.Apply(r.store.Active())
}

func (r *Radar) observerPosition() *domain.Position {
	if r.observer == nil || r.observer.Err != nil {
		return nil
	}
	pos := r.observer.Position
	return &pos
}

// refreshBanner recomputes the banner. It runs on its own cadence so GPS jitter
// does not make it flicker.
func (r *Radar) refreshBanner() {
	r.banner = proximity.Banner(r.observerPosition(), r.visible())
}

// updateProximity feeds the engine after the observer or the visible set changed.
func (r *Radar) updateProximity() {
	tr := r.engine.Update(r.observerPosition(), r.visible())
	if n := len(tr.Entered); n > 0 {
		r.metrics.ProximityTransitions.WithLabelValues("entered").Add(float64(n))
		r.logger.Info("entered incident radius", "incident_ids", tr.Entered)
	}
	if tr.Safe {
		r.metrics.ProximityTransitions.WithLabelValues("safe").Inc()
		r.logger.Info("observer is clear of all incidents")
	}
}

func (r *Radar) applySample(s domain.Sample) {
	if s.Err != nil {
		r.logger.Warn("geolocation unavailable", "error", s.Err)
		if r.observer != nil {
			r.observer.Err = s.Err
		} else {
			r.observer = &s
		}
		return
	}
	if !s.Position.Valid() {
		r.logger.Warn("ignoring invalid position sample", "lat", s.Position.Lat, "lng", s.Position.Lng)
		return
	}
	r.observer = &s
	r.updateProximity()
}

func (r *Radar) sweep() {
	now := r.clock.Now()
	if n := r.store.Sweep(now); n > 0 {
		r.metrics.Evictions.Add(float64(n))
		r.logger.Debug("evicted inactive incidents", "count", n)
		r.updateProximity()
	}
	r.feed.Prune(now, r.opts.AlertMaxAge)
	r.recordStoreSize()
}

func (r *Radar) recordStoreSize() {
	local, remote := r.store.Len()
	r.metrics.IncidentsActive.WithLabelValues(string(domain.ProvenanceLocal)).Set(float64(local))
	r.metrics.IncidentsActive.WithLabelValues(string(domain.ProvenanceRemote)).Set(float64(remote))
}

func (r *Radar) pushAlert(alert feed.Alert) {
	r.feed.Push(alert, r.clock.Now())
	r.metrics.FeedAlerts.Inc()
}

func (r *Radar) onDismiss(alert feed.Alert) {
	r.logger.Debug("alert dismissed", "alert_id", alert.ID)
}

// armFeedTimer keeps one timer pointed at the feed's earliest expiry. The timer
// is replaced only when that deadline moves.
func (r *Radar) armFeedTimer() {
	deadline, ok := r.feed.NextDeadline()
	if !ok {
		r.stopFeedTimer()
		return
	}
	if r.feedTimer != nil && deadline.Equal(r.feedDue) {
		return
	}
	r.stopFeedTimer()
	r.feedTimer = r.clock.NewTimer(deadline.Sub(r.clock.Now()))
	r.feedDue = deadline
}

func (r *Radar) stopFeedTimer() {
	if r.feedTimer != nil {
		r.feedTimer.Stop()
		r.feedTimer = nil
	}
	r.feedDue = time.Time{}
}

func (r *Radar) feedTimerChan() <-chan time.Time {
	if r.feedTimer == nil {
		return nil
	}
	return r.feedTimer.Chan()
}
