// Package kafka carries the incident stream and the creation intake over Kafka.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/config"
	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/retry"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// Stream consumes incident envelopes from the stream topic.
// It implements radar.Stream.
type Stream struct {
	reader *kafkago.Reader
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewStream creates a consumer-group reader for the configured stream topic.
func NewStream(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) *Stream {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaStreamTopic,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: kafkago.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
	})
	return &Stream{reader: r, clock: clock, logger: logger}
}

// Subscribe fetches messages until ctx is cancelled. Every message is committed
// after it was handed over, malformed ones included, so a poison pill never
// blocks the partition. Fetch errors are retried with backoff.
func (s *Stream) Subscribe(ctx context.Context, handle func(domain.Envelope)) error {
	backoff := retry.NewBackoff(s.clock)
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("fetch incident message: reader closed: %w", err)
			}
			s.logger.Warn("fetch incident message failed", "error", err, "retry_in", backoff.Current())
			if !backoff.Wait(ctx) {
				return nil
			}
			continue
		}
		backoff.Reset()

		if env, ok := s.decode(msg); ok {
			handle(env)
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			s.logger.Warn("commit incident message failed",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
		}
	}
}

func (s *Stream) decode(msg kafkago.Message) (domain.Envelope, bool) {
	env, err := domain.ParseEnvelope(msg.Value)
	if err != nil {
		s.logger.Debug("skipping malformed incident message",
			"error", err,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		return domain.Envelope{}, false
	}
	if env.Type == "" {
		env.Type = header(msg, "event_type")
	}
	return env, true
}

func header(msg kafkago.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (s *Stream) Close() error {
	return s.reader.Close()
}
