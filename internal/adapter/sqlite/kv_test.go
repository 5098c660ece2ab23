package sqlite_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/adapter/sqlite"
	"github.com/couchcryptid/incident-radar-service/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_GetSet(t *testing.T) {
	kv, err := sqlite.Open(filepath.Join(t.TempDir(), "radar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "k", "v1"))
	require.NoError(t, kv.Set(ctx, "k", "v2"))

	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
	assert.NoError(t, kv.Ping(ctx))
}

func TestKV_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.db")
	ctx := context.Background()

	kv, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, ratelimit.StorageKey, "1714143600000"))
	require.NoError(t, kv.Close())

	kv, err = sqlite.Open(path)
	require.NoError(t, err, "migrations are not reapplied")
	t.Cleanup(func() { _ = kv.Close() })

	v, ok, err := kv.Get(ctx, ratelimit.StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1714143600000", v)
}

func TestKV_CooldownAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.db")
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	created := time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC)

	kv, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, ratelimit.New(ctx, kv, 0, logger).Record(ctx, created))
	require.NoError(t, kv.Close())

	kv, err = sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	limiter := ratelimit.New(ctx, kv, 0, logger)
	assert.Equal(t, 4*time.Minute, limiter.Remaining(created.Add(time.Minute)))
}
