package store_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC)

func incident(id string, lat, lng float64, category domain.Category, occurredAt time.Time) domain.Incident {
	return domain.Incident{
		ID:           id,
		Lat:          lat,
		Lng:          lng,
		Category:     category,
		Severity:     domain.SeverityMedium,
		RadiusMeters: domain.DefaultRadiusMeters,
		OccurredAt:   occurredAt,
	}
}

func ids(incidents []domain.Incident) []string {
	out := make([]string, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, inc.ID)
	}
	return out
}

func TestStore_InsertStreamed_ReconcilesLocalTwin(t *testing.T) {
	s := store.New(store.Config{})
	s.AddLocal(incident("local-1", -14.235, -51.925, "assalto", testNow))

	got := s.InsertStreamed(incident("srv-9", -14.2351, -51.9251, "assalto", testNow.Add(time.Minute)), testNow.Add(time.Minute))

	assert.Equal(t, store.Insertion{Inserted: true, SupersededID: "local-1"}, got)
	active := s.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "srv-9", active[0].ID)
	assert.Equal(t, domain.ProvenanceRemote, active[0].Provenance)

	want := []store.Supersession{{LocalID: "local-1", RemoteID: "srv-9", At: testNow.Add(time.Minute)}}
	if diff := cmp.Diff(want, s.Supersessions()); diff != "" {
		t.Errorf("supersessions mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_InsertStreamed_LateDeliveryStillReconciles(t *testing.T) {
	s := store.New(store.Config{})
	s.AddLocal(incident("local-1", -14.235, -51.925, "assalto", testNow))

	// Delivered ten minutes after the local record, but reported as occurring
	// thirty seconds after it.
	got := s.InsertStreamed(incident("srv-9", -14.2351, -51.9251, "assalto", testNow.Add(30*time.Second)), testNow.Add(10*time.Minute))

	assert.Equal(t, store.Insertion{Inserted: true, SupersededID: "local-1"}, got)
	assert.Equal(t, []string{"srv-9"}, ids(s.Active()))
}

func TestStore_InsertStreamed_NoMatch(t *testing.T) {
	cases := []struct {
		name     string
		incoming domain.Incident
	}{
		{"different category", incident("srv-1", -14.2351, -51.9251, "briga", testNow)},
		{"too far", incident("srv-2", -14.236, -51.925, "assalto", testNow)},
		{"too late", incident("srv-3", -14.2351, -51.9251, "assalto", testNow.Add(3*time.Minute))},
		{"too early", incident("srv-4", -14.2351, -51.9251, "assalto", testNow.Add(-3*time.Minute))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := store.New(store.Config{})
			s.AddLocal(incident("local-1", -14.235, -51.925, "assalto", testNow))

			got := s.InsertStreamed(tc.incoming, testNow.Add(3*time.Minute))
			assert.Equal(t, store.Insertion{Inserted: true}, got)
			assert.Equal(t, []string{"local-1", tc.incoming.ID}, ids(s.Active()))
			assert.Empty(t, s.Supersessions())
		})
	}
}

func TestStore_InsertStreamed_NearestWins(t *testing.T) {
	s := store.New(store.Config{})
	s.AddLocal(incident("far", -14.2352, -51.925, "tiros", testNow))
	s.AddLocal(incident("near", -14.23505, -51.925, "tiros", testNow))

	got := s.InsertStreamed(incident("srv", -14.235, -51.925, "tiros", testNow), testNow)
	assert.Equal(t, "near", got.SupersededID)
	assert.Equal(t, []string{"far", "srv"}, ids(s.Active()))
}

func TestStore_InsertStreamed_TieKeepsFirst(t *testing.T) {
	s := store.New(store.Config{})
	s.AddLocal(incident("older", -14.2351, -51.925, "tiros", testNow))
	s.AddLocal(incident("newer", -14.2351, -51.925, "tiros", testNow))

	got := s.InsertStreamed(incident("srv", -14.235, -51.925, "tiros", testNow), testNow)
	// Local partition is most-recent-first, so "newer" is encountered first.
	assert.Equal(t, "newer", got.SupersededID)
}

func TestStore_InsertStreamed_Idempotent(t *testing.T) {
	s := store.New(store.Config{})
	inc := incident("srv-1", 1, 2, "blitz", testNow)

	assert.True(t, s.InsertStreamed(inc, testNow).Inserted)
	assert.False(t, s.InsertStreamed(inc, testNow).Inserted)
	assert.Len(t, s.Active(), 1)
}

func TestStore_InsertStreamed_IgnoresInactive(t *testing.T) {
	s := store.New(store.Config{})
	got := s.InsertStreamed(incident("old", 1, 2, "blitz", testNow.Add(-61*time.Minute)), testNow)
	assert.False(t, got.Inserted)
	assert.Empty(t, s.Active())
}

func TestStore_ReplaceRemote(t *testing.T) {
	s := store.New(store.Config{})
	s.InsertStreamed(incident("streamed", 5, 5, "blitz", testNow), testNow)

	kept := s.ReplaceRemote([]domain.Incident{
		incident("a", 1, 1, "blitz", testNow),
		incident("b", 2, 2, "briga", testNow.Add(-90*time.Minute)),
		incident("a", 3, 3, "tiros", testNow),
		incident("c", 4, 4, "", testNow.Add(-10*time.Minute)),
	}, testNow)

	assert.Equal(t, 2, kept)
	active := s.Active()
	assert.Equal(t, []string{"a", "c"}, ids(active))
	assert.Equal(t, 1.0, active[0].Lat, "first duplicate wins")
}

func TestStore_ActiveLocalWinsOnCollision(t *testing.T) {
	s := store.New(store.Config{})
	s.ReplaceRemote([]domain.Incident{incident("x", 1, 1, "blitz", testNow), incident("y", 2, 2, "blitz", testNow)}, testNow)
	local := incident("x", 9, 9, "blitz", testNow)
	s.AddLocal(local)

	active := s.Active()
	assert.Equal(t, []string{"x", "y"}, ids(active))
	assert.Equal(t, domain.ProvenanceLocal, active[0].Provenance)
	assert.Equal(t, 9.0, active[0].Lat)
}

func TestStore_Sweep(t *testing.T) {
	s := store.New(store.Config{})
	s.AddLocal(incident("old-local", 1, 1, "blitz", testNow.Add(-61*time.Minute)))
	s.AddLocal(incident("fresh-local", 1, 1, "blitz", testNow.Add(-59*time.Minute)))
	s.ReplaceRemote([]domain.Incident{
		incident("fresh-remote", 2, 2, "blitz", testNow.Add(-59*time.Minute)),
		incident("aging-remote", 2, 2, "blitz", testNow.Add(-50*time.Minute)),
	}, testNow)

	assert.Equal(t, 1, s.Sweep(testNow))
	assert.Equal(t, []string{"fresh-local", "fresh-remote", "aging-remote"}, ids(s.Active()))

	assert.Equal(t, 2, s.Sweep(testNow.Add(2*time.Minute)))
	assert.Equal(t, []string{"aging-remote"}, ids(s.Active()))

	assert.Zero(t, s.Sweep(testNow.Add(2*time.Minute)))
}

func TestStore_Capacity(t *testing.T) {
	s := store.New(store.Config{Capacity: 3})
	for i := range 5 {
		s.AddLocal(incident(fmt.Sprintf("l%d", i), 1, 1, "blitz", testNow))
		s.InsertStreamed(incident(fmt.Sprintf("r%d", i), 50, 50, "blitz", testNow), testNow)
	}

	assert.Equal(t, []string{"l4", "l3", "l2", "r4", "r3", "r2"}, ids(s.Active()))
	local, remote := s.Len()
	assert.Equal(t, 3, local)
	assert.Equal(t, 3, remote)
}

func TestStore_AuditBounded(t *testing.T) {
	s := store.New(store.Config{AuditSize: 2})
	for i := range 3 {
		s.AddLocal(incident(fmt.Sprintf("l%d", i), 1, 1, "blitz", testNow))
		s.InsertStreamed(incident(fmt.Sprintf("r%d", i), 1, 1, "blitz", testNow), testNow)
	}

	audit := s.Supersessions()
	require.Len(t, audit, 2)
	assert.Equal(t, "l1", audit[0].LocalID)
	assert.Equal(t, "l2", audit[1].LocalID)
}
