// Package ratelimit enforces the cooldown between two incident creations.
//
// The timestamp of the last creation survives restarts through a KV store under
// StorageKey, encoded as decimal epoch milliseconds.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

const (
	// StorageKey is the KV key holding the last creation timestamp.
	StorageKey = "occ_last_create_ts"

	// DefaultCooldown is the minimum spacing between creations.
	DefaultCooldown = 5 * time.Minute
)

// KV is a string key/value store. Get reports false when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Decision is the outcome of TryAcquire.
type Decision struct {
	Allowed   bool
	Remaining time.Duration
}

// Limiter gates creations. Its in-memory timestamp is authoritative; the KV copy
// only seeds it at startup.
type Limiter struct {
	kv       KV
	cooldown time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// New creates a Limiter and restores the last creation time from kv. A missing,
// unreadable or corrupt value starts with no cooldown.
func New(ctx context.Context, kv KV, cooldown time.Duration, logger *slog.Logger) *Limiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	l := &Limiter{kv: kv, cooldown: cooldown, logger: logger}
	if kv == nil {
		return l
	}

	value, ok, err := kv.Get(ctx, StorageKey)
	switch {
	case err != nil:
		logger.Warn("load last creation time failed", "key", StorageKey, "error", err)
	case ok:
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			logger.Warn("ignoring corrupt last creation time", "key", StorageKey, "value", value)
			break
		}
		l.last = time.UnixMilli(ms)
	}
	return l
}

// Cooldown returns the configured spacing.
func (l *Limiter) Cooldown() time.Duration {
	return l.cooldown
}

// TryAcquire reports whether a creation is allowed at now. It does not record
// anything; call Record once the creation has been committed.
func (l *Limiter) TryAcquire(now time.Time) Decision {
	remaining := l.Remaining(now)
	return Decision{Allowed: remaining == 0, Remaining: remaining}
}

// Remaining returns the wait until the next creation is allowed, or zero.
func (l *Limiter) Remaining(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.last.IsZero() {
		return 0
	}
	remaining := l.cooldown - now.Sub(l.last)
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// Mark records a creation at now in memory only.
func (l *Limiter) Mark(now time.Time) {
	l.mu.Lock()
	l.last = now
	l.mu.Unlock()
}

// Persist writes at to the KV store.
func (l *Limiter) Persist(ctx context.Context, at time.Time) error {
	if l.kv == nil {
		return nil
	}
	if err := l.kv.Set(ctx, StorageKey, strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("persist last creation time: %w", err)
	}
	return nil
}

// Record marks a creation at now and persists it. The in-memory state is updated
// even when persistence fails.
func (l *Limiter) Record(ctx context.Context, now time.Time) error {
	l.Mark(now)
	return l.Persist(ctx, now)
}

// MemoryKV is a process-local KV.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
