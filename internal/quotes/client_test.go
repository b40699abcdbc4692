package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"crypto-ledger-go/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	rc := &Client{
		client:  resty.New().SetBaseURL(server.URL),
		apiKey:  "test_api_key",
		convert: "EUR",
		logger:  zap.NewNop(), // Use a no-op logger for tests
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return rc, server
}

func TestListQuotes(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockResponse := `{
			"data": [
				{"name": "Bitcoin", "symbol": "btc", "quote": {"EUR": {"price": 50000.5}}},
				{"name": "Ethereum", "symbol": "ETH", "quote": {"EUR": {"price": 2000}}},
				{"name": "No price", "symbol": "BAD", "quote": {"USD": {"price": 1}}},
				{"name": "Zero price", "symbol": "ZERO", "quote": {"EUR": {"price": 0}}},
				{"name": "No symbol", "symbol": "", "quote": {"EUR": {"price": 5}}}
			]
		}`

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/cryptocurrency/listings/latest", r.URL.Path)
			assert.Equal(t, "EUR", r.URL.Query().Get("convert"))
			assert.Equal(t, "test_api_key", r.Header.Get("X-CMC_PRO_API_KEY"))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(mockResponse))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		listings, err := rc.ListQuotes(context.Background())

		// Assert: only validated listings survive, symbols upper-cased.
		assert.NoError(t, err)
		assert.Equal(t, []Quote{
			{Symbol: "BTC", Name: "Bitcoin", Price: 50000.5},
			{Symbol: "ETH", Name: "Ethereum", Price: 2000},
		}, listings)
	})

	t.Run("EmptyListings", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data": []}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		listings, err := rc.ListQuotes(context.Background())

		assert.NoError(t, err)
		assert.Empty(t, listings)
	})

	t.Run("APIError", func(t *testing.T) {
		// A 4xx is not retryable and fails immediately.
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status": {"error_message": "API key missing"}}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		listings, err := rc.ListQuotes(context.Background())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list quotes")
		assert.Nil(t, listings)
	})
}

func TestNewClient(t *testing.T) {
	cfg := &config.Quotes{
		BaseURL:        "https://example.test",
		ApiKey:         "key",
		Convert:        "eur",
		RateLimit:      10,
		RateLimitBurst: 5,
		TimeoutSeconds: 10,
	}
	rc := NewClient(cfg, zap.NewNop())
	assert.NotNil(t, rc)
	assert.Equal(t, "key", rc.apiKey)
	assert.Equal(t, "EUR", rc.convert)
}
