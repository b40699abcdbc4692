package quotes

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crypto-ledger-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const listingsPath = "/v1/cryptocurrency/listings/latest"

// Quote is one validated market listing: a symbol and its current unit
// price in the configured reference currency.
type Quote struct {
	Symbol string
	Name   string
	Price  float64
}

// Source defines the interface for a market quote provider.
type Source interface {
	ListQuotes(ctx context.Context) ([]Quote, error)
}

// Client is a rate-limited client for a CoinMarketCap-style listings API.
// It implements Source.
type Client struct {
	client  *resty.Client
	apiKey  string
	convert string
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ Source = (*Client)(nil)

// NewClient creates a new quote source client.
func NewClient(cfg *config.Quotes, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout())

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		apiKey:  cfg.ApiKey,
		convert: strings.ToUpper(cfg.Convert),
		logger:  logger,
		limiter: limiter,
	}
}

// listingsResponse mirrors the wire shape of the listings endpoint. Only
// the fields the ledger needs are decoded.
type listingsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
		Quote  map[string]struct {
			Price float64 `json:"price"`
		} `json:"quote"`
	} `json:"data"`
}

// ListQuotes fetches the current listings and converts them into the fixed
// Quote shape. Listings without a symbol or without a positive price in the
// reference currency are dropped at this boundary.
func (c *Client) ListQuotes(ctx context.Context) ([]Quote, error) {
	var listings listingsResponse

	req := c.client.R().
		SetContext(ctx).
		SetResult(&listings).
		SetQueryParam("convert", c.convert).
		SetHeader("Accept", "application/json")
	if c.apiKey != "" {
		req.SetHeader("X-CMC_PRO_API_KEY", c.apiKey)
	}

	resp, err := c.doRequest(ctx, "GET", listingsPath, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}

	result := resp.Result().(*listingsResponse)
	out := make([]Quote, 0, len(result.Data))
	for _, entry := range result.Data {
		symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if symbol == "" {
			continue
		}
		price := entry.Quote[c.convert].Price
		if price <= 0 {
			c.logger.Debug("Dropping listing without a usable price",
				zap.String("symbol", symbol))
			continue
		}
		out = append(out, Quote{Symbol: symbol, Name: entry.Name, Price: price})
	}

	return out, nil
}

// doRequest handles the actual request execution with rate limiting and
// retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil {
		err = fmt.Errorf("status %s", resp.Status())
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
