package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Backend choices.
const (
	StreamSSE   = "sse"
	StreamKafka = "kafka"
	StreamNATS  = "nats"
	StreamNone  = "none"

	CreateAPI   = "api"
	CreateKafka = "kafka"

	PositionHTTP = "http"
	PositionNATS = "nats"

	KVSQLite = "sqlite"
	KVRedis  = "redis"
	KVMemory = "memory"

	SoundLog  = "log"
	SoundBell = "bell"
	SoundNone = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Incident server.
	APIBaseURL   string
	APITimeout   time.Duration
	FallbackFile string
	PollInterval time.Duration

	StreamBackend   string
	CreateBackend   string
	PositionBackend string

	KafkaBrokers       []string
	KafkaStreamTopic   string
	KafkaCreateTopic   string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration

	NATSURL             string
	NATSStreamSubject   string
	NATSPositionSubject string

	// Cooldown persistence.
	KVBackend     string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Radar tuning.
	CreateCooldown     time.Duration
	DefaultRadius      float64
	NearbyMaxMeters    float64
	MaxAccuracyMeters  float64
	ReconcileRadius    float64
	ReconcileWindow    time.Duration
	CategoriesFile     string
	InitialCategories  []string
	SoundBackend       string
	APIRateLimit       float64
	APIRateBurst       int

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	MapboxLanguage  string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		APIBaseURL:   sharedcfg.EnvOrDefault("API_BASE_URL", "http://localhost:3000"),
		APITimeout:   p.duration("API_TIMEOUT", 10*time.Second),
		FallbackFile: sharedcfg.EnvOrDefault("FALLBACK_FILE", "data/occurrences.sample.json"),
		PollInterval: p.duration("POLL_INTERVAL", 15*time.Second),

		StreamBackend:   strings.ToLower(sharedcfg.EnvOrDefault("STREAM_BACKEND", StreamSSE)),
		CreateBackend:   strings.ToLower(sharedcfg.EnvOrDefault("CREATE_BACKEND", CreateAPI)),
		PositionBackend: strings.ToLower(sharedcfg.EnvOrDefault("POSITION_BACKEND", PositionHTTP)),

		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaStreamTopic:   sharedcfg.EnvOrDefault("KAFKA_STREAM_TOPIC", "incident-events"),
		KafkaCreateTopic:   sharedcfg.EnvOrDefault("KAFKA_CREATE_TOPIC", "incident-intake"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "incident-radar"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		NATSURL:             sharedcfg.EnvOrDefault("NATS_URL", "nats://localhost:4222"),
		NATSStreamSubject:   sharedcfg.EnvOrDefault("NATS_STREAM_SUBJECT", "incidents.events"),
		NATSPositionSubject: sharedcfg.EnvOrDefault("NATS_POSITION_SUBJECT", "observer.position"),

		KVBackend:     strings.ToLower(sharedcfg.EnvOrDefault("KV_BACKEND", KVSQLite)),
		SQLitePath:    sharedcfg.EnvOrDefault("SQLITE_PATH", "incident-radar.db"),
		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       p.integer("REDIS_DB", 0),

		CreateCooldown:    p.duration("CREATE_COOLDOWN", 5*time.Minute),
		DefaultRadius:     p.float("DEFAULT_RADIUS_M", 300),
		NearbyMaxMeters:   p.float("NEARBY_MAX_M", 500),
		MaxAccuracyMeters: p.float("MAX_ACCURACY_M", 60),
		ReconcileRadius:   p.float("RECONCILE_RADIUS_M", 30),
		ReconcileWindow:   p.duration("RECONCILE_WINDOW", 2*time.Minute),
		CategoriesFile:    os.Getenv("CATEGORIES_FILE"),
		InitialCategories: parseList(os.Getenv("CATEGORIES")),
		SoundBackend:      strings.ToLower(sharedcfg.EnvOrDefault("SOUND_BACKEND", SoundLog)),
		APIRateLimit:      p.float("API_RATE_LIMIT", 5),
		APIRateBurst:      p.integer("API_RATE_BURST", 10),

		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:   p.duration("MAPBOX_TIMEOUT", 5*time.Second),
		MapboxCacheSize: p.integer("MAPBOX_CACHE_SIZE", 1000),
		MapboxLanguage:  sharedcfg.EnvOrDefault("MAPBOX_LANGUAGE", "pt"),
	}
	if p.err != nil {
		return nil, p.err
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	if err := oneOf("STREAM_BACKEND", c.StreamBackend, StreamSSE, StreamKafka, StreamNATS, StreamNone); err != nil {
		return err
	}
	if err := oneOf("CREATE_BACKEND", c.CreateBackend, CreateAPI, CreateKafka); err != nil {
		return err
	}
	if err := oneOf("POSITION_BACKEND", c.PositionBackend, PositionHTTP, PositionNATS); err != nil {
		return err
	}
	if err := oneOf("KV_BACKEND", c.KVBackend, KVSQLite, KVRedis, KVMemory); err != nil {
		return err
	}
	if err := oneOf("SOUND_BACKEND", c.SoundBackend, SoundLog, SoundBell, SoundNone); err != nil {
		return err
	}

	usesKafka := c.StreamBackend == StreamKafka || c.CreateBackend == CreateKafka
	if usesKafka && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.StreamBackend == StreamKafka && c.KafkaStreamTopic == "" {
		return errors.New("KAFKA_STREAM_TOPIC is required")
	}
	if c.CreateBackend == CreateKafka && c.KafkaCreateTopic == "" {
		return errors.New("KAFKA_CREATE_TOPIC is required")
	}
	if c.KVBackend == KVSQLite && c.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required")
	}
	if c.KVBackend == KVRedis && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if c.MapboxCacheSize <= 0 {
		return errors.New("MAPBOX_CACHE_SIZE must be positive")
	}
	if c.APIRateLimit <= 0 || c.APIRateBurst <= 0 {
		return errors.New("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}
	return nil
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: want one of %s", name, value, strings.Join(allowed, ", "))
}

func parseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// parser reads typed variables and keeps the first error.
type parser struct {
	err error
}

func (p *parser) duration(name string, def time.Duration) time.Duration {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(fmt.Errorf("invalid %s %q: must be a positive duration", name, s))
		return def
	}
	return d
}

func (p *parser) float(name string, def float64) float64 {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		p.fail(fmt.Errorf("invalid %s %q: must be a positive number", name, s))
		return def
	}
	return f
}

func (p *parser) integer(name string, def int) int {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		p.fail(fmt.Errorf("invalid %s %q: must be a non-negative integer", name, s))
		return def
	}
	return n
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
