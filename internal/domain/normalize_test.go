package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOccurredAt = "2024-04-26T15:10:00Z"

func mustRaw(t *testing.T, payload string) RawIncident {
	t.Helper()
	raw, err := ParseRawIncident([]byte(payload))
	require.NoError(t, err)
	return raw
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(nil, 0)

	t.Run("category is case-insensitive", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":"a1","lat":-14.235,"lng":-51.925,"category":"ASSALTO","occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Equal(t, Category("assalto"), inc.Category)
		assert.Equal(t, "Assalto", inc.CategoryLabel)
		assert.Equal(t, "#ef4444", inc.CategoryColor)
		assert.Equal(t, SeverityHigh, inc.Severity)
		assert.Equal(t, DefaultRadiusMeters, inc.RadiusMeters)
		assert.Equal(t, time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC), inc.OccurredAt)
	})

	t.Run("type field is an alias for category", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":"a2","lat":1,"lng":2,"type":"blitz","occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Equal(t, Category("blitz"), inc.Category)
		assert.Equal(t, SeverityLow, inc.Severity)
	})

	t.Run("explicit severity wins over category default", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":"a3","lat":1,"lng":2,"category":"blitz","severity":"HIGH","occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Equal(t, SeverityHigh, inc.Severity)
	})

	t.Run("unknown category", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":"a4","lat":1,"lng":2,"category":"arrastão","occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Empty(t, inc.Category)
		assert.Equal(t, "arrastão", inc.CategoryLabel)
		assert.Empty(t, inc.CategoryColor)
		assert.Equal(t, SeverityMedium, inc.Severity)
	})

	t.Run("unknown category prefers payload label", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":"a5","lat":1,"lng":2,"category":"x","category_label":"Arrastão","occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Equal(t, "Arrastão", inc.CategoryLabel)
	})

	t.Run("missing category uses generic label", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":"a6","lat":1,"lng":2,"occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Equal(t, GenericCategoryLabel, inc.CategoryLabel)
	})

	t.Run("unknown severity falls back", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":"a7","lat":1,"lng":2,"category":"tiros","severity":"extreme","occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Equal(t, SeverityHigh, inc.Severity)
	})

	t.Run("non-positive radius uses default", func(t *testing.T) {
		for _, r := range []string{`0`, `-5`, `"abc"`, `null`} {
			inc, ok := n.Normalize(mustRaw(t, `{"id":"a8","lat":1,"lng":2,"radius_m":`+r+`,"occurred_at":"`+testOccurredAt+`"}`))
			require.True(t, ok)
			assert.Equal(t, DefaultRadiusMeters, inc.RadiusMeters, "radius %s", r)
		}
	})

	t.Run("explicit radius", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":"a9","lat":1,"lng":2,"radius_m":"150","occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Equal(t, 150.0, inc.RadiusMeters)
	})

	t.Run("string coordinates", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":"b1","lat":"-14.235","lng":"-51.925","occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Equal(t, -14.235, inc.Lat)
		assert.Equal(t, -51.925, inc.Lng)
	})

	t.Run("invalid coordinates reject", func(t *testing.T) {
		for _, payload := range []string{
			`{"id":"b2","lng":2}`,
			`{"id":"b2","lat":"north","lng":2}`,
			`{"id":"b2","lat":95,"lng":2}`,
		} {
			_, ok := n.Normalize(mustRaw(t, payload))
			assert.False(t, ok, payload)
		}
	})

	t.Run("created_at fallback and epoch millis", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":"b3","lat":1,"lng":2,"created_at":1714144200000}`))
		require.True(t, ok)
		assert.Equal(t, time.UnixMilli(1714144200000).UTC(), inc.OccurredAt)
	})

	t.Run("unparsable timestamp rejects", func(t *testing.T) {
		_, ok := n.Normalize(mustRaw(t, `{"id":"b4","lat":1,"lng":2,"occurred_at":"yesterday"}`))
		assert.False(t, ok)
	})

	t.Run("missing timestamp uses clock", func(t *testing.T) {
		now := time.Date(2024, 4, 26, 18, 0, 0, 0, time.UTC)
		SetClock(clockwork.NewFakeClockAt(now))
		defer SetClock(nil)

		inc, ok := n.Normalize(mustRaw(t, `{"id":"b5","lat":1,"lng":2}`))
		require.True(t, ok)
		assert.Equal(t, now, inc.OccurredAt)
	})

	t.Run("numeric id", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":1714144200000,"lat":1,"lng":2,"occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Equal(t, "1714144200000", inc.ID)
	})

	t.Run("missing id is derived deterministically", func(t *testing.T) {
		payload := `{"lat":1,"lng":2,"category":"briga","occurred_at":"` + testOccurredAt + `"}`
		a, ok := n.Normalize(mustRaw(t, payload))
		require.True(t, ok)
		b, ok := n.Normalize(mustRaw(t, payload))
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(a.ID, "occ-"))
		assert.Equal(t, a.ID, b.ID)
	})

	t.Run("derived id ignores the clock when the payload has no timestamp", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 18, 0, 0, 0, time.UTC))
		SetClock(clock)
		defer SetClock(nil)

		payload := `{"category":"assalto","lat":-14.235,"lng":-51.925}`
		first, ok := n.Normalize(mustRaw(t, payload))
		require.True(t, ok)
		clock.Advance(time.Second)
		second, ok := n.Normalize(mustRaw(t, payload))
		require.True(t, ok)

		assert.Equal(t, first.ID, second.ID)
		assert.NotEqual(t, first.OccurredAt, second.OccurredAt)
	})

	t.Run("derived id separates distinct payloads", func(t *testing.T) {
		base, ok := n.Normalize(mustRaw(t, `{"category":"assalto","lat":-14.235,"lng":-51.925,"description":"na praça"}`))
		require.True(t, ok)
		for _, payload := range []string{
			`{"category":"briga","lat":-14.235,"lng":-51.925,"description":"na praça"}`,
			`{"category":"assalto","lat":-14.236,"lng":-51.925,"description":"na praça"}`,
			`{"category":"assalto","lat":-14.235,"lng":-51.925,"description":"no ponto"}`,
			`{"category":"assalto","lat":-14.235,"lng":-51.925,"description":"na praça","occurred_at":"` + testOccurredAt + `"}`,
		} {
			other, ok := n.Normalize(mustRaw(t, payload))
			require.True(t, ok)
			assert.NotEqual(t, base.ID, other.ID, payload)
		}
	})

	t.Run("large numeric id keeps every digit", func(t *testing.T) {
		inc, ok := n.Normalize(mustRaw(t, `{"id":9007199254740993,"lat":1,"lng":2,"occurred_at":"`+testOccurredAt+`"}`))
		require.True(t, ok)
		assert.Equal(t, "9007199254740993", inc.ID)
	})
}

func TestNormalize_Idempotent(t *testing.T) {
	n := NewNormalizer(nil, 0)
	payloads := []string{
		`{"id":"c1","lat":-14.235,"lng":-51.925,"category":"Tiros","description":"disparos na praça","radius_m":120,"occurred_at":"` + testOccurredAt + `"}`,
		`{"lat":-14.2,"lng":-51.9,"type":"unknown-kind","category_label":"Outro","created_at":1714144200123}`,
		`{"id":42,"lat":"-14.1","lng":"-51.8","severity":"low","occurred_at":"` + testOccurredAt + `","place_name":"Centro"}`,
	}
	for _, payload := range payloads {
		first, ok := n.Normalize(mustRaw(t, payload))
		require.True(t, ok)

		raw, err := first.Raw()
		require.NoError(t, err)
		second, ok := n.Normalize(raw)
		require.True(t, ok)

		assert.Equal(t, first, second)
	}
}

func TestNormalizeAll(t *testing.T) {
	n := NewNormalizer(nil, 0)
	raws := []RawIncident{
		mustRaw(t, `{"id":"d1","lat":1,"lng":2,"occurred_at":"`+testOccurredAt+`"}`),
		mustRaw(t, `{"id":"d2","lat":"bad","lng":2}`),
		mustRaw(t, `{"id":"d3","lat":3,"lng":4,"occurred_at":"`+testOccurredAt+`"}`),
	}

	incidents, dropped := n.NormalizeAll(raws)
	assert.Len(t, incidents, 2)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "d1", incidents[0].ID)
	assert.Equal(t, "d3", incidents[1].ID)
}

func TestCategoryFilter(t *testing.T) {
	f := NewCategoryFilter([]Category{"Assalto", "tiros"})

	assert.True(t, f.Allows(Incident{Category: "assalto"}))
	assert.False(t, f.Allows(Incident{Category: "blitz"}))
	assert.True(t, f.Allows(Incident{}))
	assert.Equal(t, []Category{"assalto", "tiros"}, f.Selected())

	got := f.Apply([]Incident{{ID: "1", Category: "blitz"}, {ID: "2", Category: "tiros"}, {ID: "3"}})
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestCategoryTable_Validate(t *testing.T) {
	require.NoError(t, DefaultCategories().Validate())

	bad := CategoryTable{"x": {Label: "", Severity: SeverityLow}}
	assert.Error(t, bad.Validate())

	bad = CategoryTable{"x": {Label: "X", Severity: "extreme"}}
	assert.Error(t, bad.Validate())

	assert.Error(t, CategoryTable{}.Validate())
}

func TestParseRawIncident(t *testing.T) {
	raw, err := ParseRawIncident([]byte(`{"id":9007199254740993,"lat":-14.235}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), raw["id"])
	assert.Equal(t, json.Number("-14.235"), raw["lat"])

	for _, payload := range []string{`null`, `[1,2]`, `{"id":1} {"id":2}`, `{"id":`} {
		_, err := ParseRawIncident([]byte(payload))
		assert.Error(t, err, payload)
	}
}
