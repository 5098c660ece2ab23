package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/retry"
	"github.com/jonboulle/clockwork"
	"github.com/r3labs/sse/v2"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

const maxEventSize = 1 << 20

var errStreamClosed = errors.New("stream closed by server")

// EventStream implements radar.Stream over server-sent events. Each event's data
// is a JSON envelope {"type": ..., "data": {...}}. Dropped connections are
// retried with exponential backoff until the context is cancelled.
type EventStream struct {
	url        string
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewEventStream creates a stream reading from url.
func NewEventStream(url string, clock clockwork.Clock, logger *slog.Logger) *EventStream {
	return &EventStream{
		url:        url,
		httpClient: &http.Client{},
		clock:      clock,
		logger:     logger,
	}
}

// Subscribe delivers envelopes to handle until ctx is cancelled.
func (s *EventStream) Subscribe(ctx context.Context, handle func(domain.Envelope)) error {
	client := s.newClient()
	wait := retry.NewBackoff(s.clock)
	for {
		received := 0
		err := client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
			env, err := DecodeEvent(msg)
			if err != nil {
				s.logger.Debug("ignoring malformed stream event", "event", string(msg.Event), "error", err)
				return
			}
			received++
			handle(env)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errStreamClosed
		}
		if received > 0 {
			wait.Reset()
		}
		s.logger.Warn("incident stream disconnected, reconnecting",
			"error", err,
			"received", received,
			"retry_in", wait.Current(),
		)
		if !wait.Wait(ctx) {
			return nil
		}
	}
}

// newClient builds an SSE client that makes a single attempt per subscribe
// call; reconnection runs on the injected clock in Subscribe. The client is
// reused across attempts so Last-Event-ID carries over.
func (s *EventStream) newClient() *sse.Client {
	client := sse.NewClient(s.url, sse.ClientMaxBufferSize(maxEventSize))
	client.Connection = s.httpClient
	client.ReconnectStrategy = &backoff.StopBackOff{}
	client.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("connect incident stream: status %d", resp.StatusCode)
		}
		return nil
	}
	client.OnConnect(func(*sse.Client) {
		s.logger.Info("incident stream connected", "url", s.url)
	})
	return client
}

// DecodeEvent turns one server-sent event into an envelope. The SSE event name
// fills in a missing envelope type.
func DecodeEvent(msg *sse.Event) (domain.Envelope, error) {
	if len(msg.Data) == 0 {
		return domain.Envelope{}, errors.New("event has no data")
	}
	env, err := domain.ParseEnvelope(msg.Data)
	if err != nil {
		return domain.Envelope{}, err
	}
	if env.Type == "" {
		env.Type = string(msg.Event)
	}
	return env, nil
}
