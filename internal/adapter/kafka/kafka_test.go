package kafka

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStream() *Stream {
	return &Stream{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestDecode_Envelope(t *testing.T) {
	msg := kafkago.Message{
		Value: []byte(`{"type":"occurrence.created","data":{"id":"srv-1","lat":1,"lng":2}}`),
	}

	env, ok := testStream().decode(msg)
	require.True(t, ok)
	assert.Equal(t, "occurrence.created", env.Type)
	assert.JSONEq(t, `{"id":"srv-1","lat":1,"lng":2}`, string(env.Data))
}

func TestDecode_TypeFromHeader(t *testing.T) {
	msg := kafkago.Message{
		Value:   []byte(`{"data":{"id":"srv-1"}}`),
		Headers: []kafkago.Header{{Key: "event_type", Value: []byte("occurrence.created")}},
	}

	env, ok := testStream().decode(msg)
	require.True(t, ok)
	assert.Equal(t, "occurrence.created", env.Type)
}

func TestDecode_Malformed(t *testing.T) {
	_, ok := testStream().decode(kafkago.Message{Value: []byte("not-json{{{")})
	assert.False(t, ok)
}

func TestSerializeToMessage(t *testing.T) {
	at := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	req := domain.CreateRequest{
		Category:     "assalto",
		Description:  "assalto na praça",
		Lat:          -23.55,
		Lng:          -46.63,
		RadiusMeters: 300,
		OccurredAt:   at,
		Placement:    domain.PlacementNearby,
	}

	msg, err := serializeToMessage("key-1", req)
	require.NoError(t, err)

	assert.Equal(t, []byte("key-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"category":"assalto"`)
	assert.Contains(t, string(msg.Value), `"placement":"nearby"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(EventTypeCreateRequested), msg.Headers[0].Value)
	assert.Equal(t, "placement", msg.Headers[1].Key)
	assert.Equal(t, []byte("nearby"), msg.Headers[1].Value)
	assert.Equal(t, "requested_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(at.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestAcceptedRecordNormalizes(t *testing.T) {
	at := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	id := uuid.NewString()
	raw := acceptedRecord(id, domain.CreateRequest{
		Category:     "blitz",
		Description:  "blitz",
		Lat:          1,
		Lng:          2,
		RadiusMeters: 250,
		OccurredAt:   at,
	})

	inc, ok := domain.NewNormalizer(nil, 0).Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, id, inc.ID)
	assert.Equal(t, "Blitz", inc.CategoryLabel)
	assert.Equal(t, 250.0, inc.RadiusMeters)
	assert.Equal(t, at, inc.OccurredAt)
}
