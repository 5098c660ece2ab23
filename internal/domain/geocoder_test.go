package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockGeocoder struct {
	place Place
	err   error
	calls int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _ Position) (Place, error) {
	m.calls++
	return m.place, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnrichPlaceName(t *testing.T) {
	base := Incident{ID: "e1", Lat: -14.235, Lng: -51.925}

	t.Run("nil geocoder", func(t *testing.T) {
		got := EnrichPlaceName(context.Background(), base, nil, discardLogger())
		assert.Equal(t, base, got)
	})

	t.Run("sets place name", func(t *testing.T) {
		g := &mockGeocoder{place: Place{Name: "Centro", FormattedAddress: "Centro, Goiás, Brazil"}}
		got := EnrichPlaceName(context.Background(), base, g, discardLogger())
		assert.Equal(t, "Centro", got.PlaceName)
	})

	t.Run("falls back to formatted address", func(t *testing.T) {
		g := &mockGeocoder{place: Place{FormattedAddress: "Goiás, Brazil"}}
		got := EnrichPlaceName(context.Background(), base, g, discardLogger())
		assert.Equal(t, "Goiás, Brazil", got.PlaceName)
	})

	t.Run("error leaves incident unchanged", func(t *testing.T) {
		g := &mockGeocoder{err: errors.New("boom")}
		got := EnrichPlaceName(context.Background(), base, g, discardLogger())
		assert.Equal(t, base, got)
	})

	t.Run("existing place name skips lookup", func(t *testing.T) {
		named := base
		named.PlaceName = "Praça"
		g := &mockGeocoder{place: Place{Name: "Centro"}}
		got := EnrichPlaceName(context.Background(), named, g, discardLogger())
		assert.Equal(t, "Praça", got.PlaceName)
		assert.Zero(t, g.calls)
	})
}
