// Package nats carries the incident stream and observer positions over NATS
// subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/nats-io/nats.go"
)

// Connect dials url and keeps reconnecting for the life of the connection.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("incident-radar"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

// Stream delivers incident envelopes published on a subject.
// It implements radar.Stream.
type Stream struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewStream creates a Stream for subject.
func NewStream(conn *nats.Conn, subject string, logger *slog.Logger) *Stream {
	return &Stream{conn: conn, subject: subject, logger: logger}
}

// Subscribe hands every well-formed envelope to handle until ctx is cancelled.
func (s *Stream) Subscribe(ctx context.Context, handle func(domain.Envelope)) error {
	sub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		env, err := domain.ParseEnvelope(msg.Data)
		if err != nil {
			s.logger.Debug("ignoring malformed incident message", "subject", msg.Subject, "error", err)
			return
		}
		handle(env)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.logger.Info("incident stream subscribed", "subject", s.subject)
	return waitAndUnsubscribe(ctx, sub)
}

// Locator reads observer positions published on a subject.
// It implements radar.Locator.
type Locator struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewLocator creates a Locator for subject.
func NewLocator(conn *nats.Conn, subject string, logger *slog.Logger) *Locator {
	return &Locator{conn: conn, subject: subject, logger: logger}
}

// Watch hands every position report to handle until ctx is cancelled.
func (l *Locator) Watch(ctx context.Context, handle func(domain.Sample)) error {
	sub, err := l.conn.Subscribe(l.subject, func(msg *nats.Msg) {
		s, err := DecodePosition(msg.Data)
		if err != nil {
			l.logger.Debug("ignoring malformed position message", "subject", msg.Subject, "error", err)
			return
		}
		handle(s)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", l.subject, err)
	}
	l.logger.Info("position feed subscribed", "subject", l.subject)
	return waitAndUnsubscribe(ctx, sub)
}

// DecodePosition parses a position message.
func DecodePosition(data []byte) (domain.Sample, error) {
	var report domain.PositionReport
	if err := json.Unmarshal(data, &report); err != nil {
		return domain.Sample{}, fmt.Errorf("decode position: %w", err)
	}
	return report.Sample()
}

func waitAndUnsubscribe(ctx context.Context, sub *nats.Subscription) error {
	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
		return fmt.Errorf("unsubscribe %s: %w", sub.Subject, err)
	}
	return nil
}
