// Package api talks to the incident server over HTTP: the active-incident poll,
// incident creation, the server-sent event stream, and the static sample dataset
// used as a fallback tier.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
)

const (
	activePath = "/api/occurrences/active"
	createPath = "/api/occurrences"
	streamPath = "/api/occurrences/stream"

	maxErrorBody = 512
)

// Client implements radar.Fetcher and radar.Creator against the incident server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// StreamURL returns the server-sent event endpoint of the same server.
func (c *Client) StreamURL() string {
	return c.baseURL + streamPath
}

// FetchActive returns the server's list of active incidents.
func (c *Client) FetchActive(ctx context.Context) ([]domain.RawIncident, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+activePath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch active incidents: %w", err)
	}
	raws, err := DecodeList(body)
	if err != nil {
		return nil, fmt.Errorf("fetch active incidents: %w", err)
	}
	return raws, nil
}

// Create posts a new incident and returns the record the server stored.
func (c *Client) Create(ctx context.Context, in domain.CreateRequest) (domain.RawIncident, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode create request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	raw, err := domain.ParseRawIncident(body)
	if err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	return raw, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("server error: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// DecodeList accepts a bare JSON array or an object carrying the array under
// "items" or "occurrences". Elements that are not objects are skipped.
func DecodeList(data []byte) ([]domain.RawIncident, error) {
	var elems []json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("decode incident list: %w", err)
		}
	} else {
		var wrapper struct {
			Items       []json.RawMessage `json:"items"`
			Occurrences []json.RawMessage `json:"occurrences"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("decode incident list: %w", err)
		}
		elems = wrapper.Items
		if elems == nil {
			elems = wrapper.Occurrences
		}
	}

	raws := make([]domain.RawIncident, 0, len(elems))
	for _, elem := range elems {
		raw, err := domain.ParseRawIncident(elem)
		if err != nil {
			continue
		}
		raws = append(raws, raw)
	}
	return raws, nil
}
