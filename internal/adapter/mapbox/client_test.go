package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var saoPaulo = domain.Position{Lat: -23.5505, Lng: -46.6333}

func testClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		token:      testToken,
		language:   "pt",
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/-46.633300,-23.550500.json", r.URL.Path, "lng comes first")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "pt", r.URL.Query().Get("language"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{{
				PlaceName: "Praça da Sé, São Paulo, Brasil",
				Text:      "Praça da Sé",
				Relevance: 0.98,
			}},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	place, err := c.ReverseGeocode(context.Background(), saoPaulo)
	require.NoError(t, err)

	assert.Equal(t, "Praça da Sé", place.Name)
	assert.Equal(t, "Praça da Sé, São Paulo, Brasil", place.FormattedAddress)
	assert.Equal(t, 0.98, place.Relevance)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("success")))
}

func TestClient_ReverseGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		assert.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	place, err := c.ReverseGeocode(context.Background(), saoPaulo)
	require.NoError(t, err)
	assert.Equal(t, domain.Place{}, place)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("empty")))
}

func TestClient_ReverseGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.ReverseGeocode(context.Background(), saoPaulo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("error")))
}

func TestClient_ReverseGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 50*time.Millisecond)
	_, err := c.ReverseGeocode(context.Background(), saoPaulo)
	require.Error(t, err)
}
