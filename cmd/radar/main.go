package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	apiadapter "github.com/couchcryptid/incident-radar-service/internal/adapter/api"
	httpadapter "github.com/couchcryptid/incident-radar-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/incident-radar-service/internal/adapter/kafka"
	"github.com/couchcryptid/incident-radar-service/internal/adapter/mapbox"
	natsadapter "github.com/couchcryptid/incident-radar-service/internal/adapter/nats"
	redisadapter "github.com/couchcryptid/incident-radar-service/internal/adapter/redis"
	"github.com/couchcryptid/incident-radar-service/internal/adapter/sqlite"
	"github.com/couchcryptid/incident-radar-service/internal/config"
	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/observability"
	"github.com/couchcryptid/incident-radar-service/internal/radar"
	"github.com/couchcryptid/incident-radar-service/internal/ratelimit"
	"github.com/couchcryptid/incident-radar-service/internal/sound"
	"github.com/couchcryptid/incident-radar-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
)

// closer is a resource released at shutdown.
type closer struct {
	name  string
	close func() error
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	categories, err := config.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		logger.Error("failed to load categories", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].close(); err != nil {
				logger.Error("close error", "resource", closers[i].name, "error", err)
			}
		}
		logger.Info("shutdown complete")
	}()

	kv, err := openKV(ctx, cfg, logger, &closers)
	if err != nil {
		logger.Error("failed to open cooldown store", "backend", cfg.KVBackend, "error", err)
		return 1
	}

	var natsConn *nats.Conn
	if cfg.StreamBackend == config.StreamNATS || cfg.PositionBackend == config.PositionNATS {
		natsConn, err = natsadapter.Connect(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to connect to nats", "url", cfg.NATSURL, "error", err)
			return 1
		}
		closers = append(closers, closer{"nats", func() error { natsConn.Close(); return nil }})
	}

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxLanguage, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	api := apiadapter.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)

	deps := radar.Deps{
		Fetcher:    api,
		Fallback:   apiadapter.NewFileSource(cfg.FallbackFile),
		Stream:     newStream(cfg, api, natsConn, clock, logger, &closers),
		Creator:    newCreator(cfg, api, logger, &closers),
		Geocoder:   geocoder,
		Normalizer: domain.NewNormalizer(categories, cfg.DefaultRadius),
		Store: store.New(store.Config{
			Reconciler: store.NewReconciler(cfg.ReconcileRadius, cfg.ReconcileWindow),
		}),
		Limiter: ratelimit.New(ctx, kv, cfg.CreateCooldown, logger),
		Sound:   sound.NewManager(newSoundBackend(cfg.SoundBackend, logger), logger),
		Clock:   clock,
		Logger:  logger,
		Metrics: metrics,
	}
	if cfg.PositionBackend == config.PositionNATS {
		deps.Locator = natsadapter.NewLocator(natsConn, cfg.NATSPositionSubject, logger)
	}

	opts := radar.Options{
		PollInterval:      cfg.PollInterval,
		NearbyMaxMeters:   cfg.NearbyMaxMeters,
		MaxAccuracyMeters: cfg.MaxAccuracyMeters,
	}
	if cfg.InitialCategories != nil {
		opts.Categories = make([]domain.Category, 0, len(cfg.InitialCategories))
		for _, c := range cfg.InitialCategories {
			opts.Categories = append(opts.Categories, domain.Category(c))
		}
	}

	rdr := radar.New(deps, opts)
	srv := httpadapter.NewServer(cfg.HTTPAddr, rdr, httpadapter.Options{
		RateLimit: cfg.APIRateLimit,
		RateBurst: cfg.APIRateBurst,
	}, metrics, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start radar runtime.
	radarDone := make(chan struct{})
	go func() {
		defer close(radarDone)
		if err := rdr.Run(ctx); err != nil {
			logger.Error("radar error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-radarDone:
	case <-shutdownCtx.Done():
		logger.Warn("radar did not stop before shutdown timeout")
	}
	return 0
}

func openKV(ctx context.Context, cfg *config.Config, logger *slog.Logger, closers *[]closer) (ratelimit.KV, error) {
	switch cfg.KVBackend {
	case config.KVSQLite:
		kv, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, closer{"sqlite", kv.Close})
		logger.Info("cooldown store opened", "backend", "sqlite", "path", cfg.SQLitePath)
		return kv, nil
	case config.KVRedis:
		client, err := redisadapter.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return nil, err
		}
		kv := redisadapter.NewKV(client, "incident-radar:")
		*closers = append(*closers, closer{"redis", kv.Close})
		return kv, nil
	default:
		logger.Warn("cooldown store is in memory; the cooldown resets on restart")
		return ratelimit.NewMemoryKV(), nil
	}
}

func newStream(cfg *config.Config, api *apiadapter.Client, conn *nats.Conn, clock clockwork.Clock, logger *slog.Logger, closers *[]closer) radar.Stream {
	switch cfg.StreamBackend {
	case config.StreamSSE:
		return apiadapter.NewEventStream(api.StreamURL(), clock, logger)
	case config.StreamKafka:
		s := kafkaadapter.NewStream(cfg, clock, logger)
		*closers = append(*closers, closer{"kafka stream", s.Close})
		return s
	case config.StreamNATS:
		return natsadapter.NewStream(conn, cfg.NATSStreamSubject, logger)
	default:
		logger.Info("incident stream disabled; relying on polling")
		return nil
	}
}

func newCreator(cfg *config.Config, api *apiadapter.Client, logger *slog.Logger, closers *[]closer) radar.Creator {
	if cfg.CreateBackend == config.CreateKafka {
		c := kafkaadapter.NewCreator(cfg, logger)
		*closers = append(*closers, closer{"kafka creator", c.Close})
		return c
	}
	return api
}

func newSoundBackend(name string, logger *slog.Logger) sound.Backend {
	switch name {
	case config.SoundBell:
		return sound.BellBackend{W: os.Stderr}
	case config.SoundLog:
		return sound.LogBackend{Logger: logger}
	default:
		return nil
	}
}
