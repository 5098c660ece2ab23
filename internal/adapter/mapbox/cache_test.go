package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGeocoder struct {
	calls int
	place domain.Place
	err   error
}

func (m *countingGeocoder) ReverseGeocode(context.Context, domain.Position) (domain.Place, error) {
	m.calls++
	return m.place, m.err
}

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{place: domain.Place{Name: "Sé", FormattedAddress: "Sé, São Paulo"}}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedGeocoder(inner, 10, metrics)

	p1, err := cached.ReverseGeocode(context.Background(), saoPaulo)
	require.NoError(t, err)
	// Within the same ~11 m grid cell.
	p2, err := cached.ReverseGeocode(context.Background(), domain.Position{Lat: saoPaulo.Lat + 0.00002, Lng: saoPaulo.Lng})
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("miss")))
}

func TestCachedGeocoder_DifferentCellsMiss(t *testing.T) {
	inner := &countingGeocoder{place: domain.Place{Name: "Sé"}}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.ReverseGeocode(context.Background(), saoPaulo)
	_, _ = cached.ReverseGeocode(context.Background(), domain.Position{Lat: saoPaulo.Lat + 0.001, Lng: saoPaulo.Lng})

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.ReverseGeocode(context.Background(), saoPaulo)
	inner.err = errors.New("unavailable")
	_, err := cached.ReverseGeocode(context.Background(), saoPaulo)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, cached.cache.len())
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	a, b, d := cell{1, 1}, cell{2, 2}, cell{3, 3}

	c.put(a, domain.Place{Name: "A"})
	c.put(b, domain.Place{Name: "B"})
	c.put(d, domain.Place{Name: "D"})

	_, ok := c.get(a)
	assert.False(t, ok, "a should have been evicted")
	place, ok := c.get(d)
	assert.True(t, ok)
	assert.Equal(t, "D", place.Name)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)
	a, b, d := cell{1, 1}, cell{2, 2}, cell{3, 3}

	c.put(a, domain.Place{Name: "A"})
	c.put(b, domain.Place{Name: "B"})
	c.get(a)
	c.put(d, domain.Place{Name: "D"})

	_, ok := c.get(a)
	assert.True(t, ok, "a was accessed recently, should not be evicted")
	_, ok = c.get(b)
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put(cell{1, 1}, domain.Place{Name: "A1"})
	c.put(cell{1, 1}, domain.Place{Name: "A2"})

	place, ok := c.get(cell{1, 1})
	assert.True(t, ok)
	assert.Equal(t, "A2", place.Name)
	assert.Equal(t, 1, c.len())
}

func TestGridKey(t *testing.T) {
	assert.Equal(t, cell{lat: -235505, lng: -466333}, gridKey(saoPaulo))
}
