// Package mapbox resolves incident coordinates to place names with the Mapbox
// Geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/observability"
)

const (
	defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	placeTypes     = "address,poi,neighborhood,locality,place"
)

// Client implements domain.Geocoder.
type Client struct {
	token      string
	language   string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox reverse geocoding client. language selects the
// language of returned names, e.g. "pt".
func NewClient(token, language string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:    token,
		language: language,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode returns the most relevant place at pos. An empty Place means
// Mapbox had no match.
func (c *Client) ReverseGeocode(ctx context.Context, pos domain.Position) (domain.Place, error) {
	// Mapbox uses lng,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", pos.Lng, pos.Lat)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {placeTypes},
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	u := fmt.Sprintf("%s/%s.json?%s", c.baseURL, coord, params.Encode())

	start := time.Now()
	place, err := c.doRequest(ctx, u)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	case place.FormattedAddress == "" && place.Name == "":
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return place, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Place{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Place{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Place{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Place{}, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Features) == 0 {
		return domain.Place{}, nil
	}

	f := decoded.Features[0]
	return domain.Place{
		Name:             f.Text,
		FormattedAddress: f.PlaceName,
		Relevance:        f.Relevance,
	}, nil
}

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	PlaceName string  `json:"place_name"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}
