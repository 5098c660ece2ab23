package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/config"
	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// EventTypeCreateRequested is the event_type header of creation messages.
const EventTypeCreateRequested = "occurrence.create_requested"

// Creator publishes creation requests to the intake topic.
// It implements radar.Creator.
type Creator struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewCreator creates a producer for the configured intake topic.
func NewCreator(cfg *config.Config, logger *slog.Logger) *Creator {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaCreateTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Creator{writer: w, logger: logger}
}

// Create publishes req and returns the accepted record. The record carries the
// message key as its id until the server's own record arrives on the stream and
// supersedes it.
func (c *Creator) Create(ctx context.Context, req domain.CreateRequest) (domain.RawIncident, error) {
	id := uuid.NewString()
	msg, err := serializeToMessage(id, req)
	if err != nil {
		return nil, err
	}
	if err := c.writer.WriteMessages(ctx, msg); err != nil {
		return nil, fmt.Errorf("publish create request: %w", err)
	}
	c.logger.Debug("create request published", "request_id", id, "topic", c.writer.Topic)
	return acceptedRecord(id, req), nil
}

func (c *Creator) Close() error {
	return c.writer.Close()
}

// serializeToMessage marshals a creation request into a Kafka message.
func serializeToMessage(id string, req domain.CreateRequest) (kafkago.Message, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize create request: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(id),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventTypeCreateRequested)},
			{Key: "placement", Value: []byte(req.Placement)},
			{Key: "requested_at", Value: []byte(req.OccurredAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}

func acceptedRecord(id string, req domain.CreateRequest) domain.RawIncident {
	return domain.RawIncident{
		"id":          id,
		"lat":         req.Lat,
		"lng":         req.Lng,
		"category":    string(req.Category),
		"description": req.Description,
		"radius_m":    req.RadiusMeters,
		"occurred_at": req.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}
