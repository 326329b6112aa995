// Package binance provides the Binance USDⓈ-M futures REST client used for
// symbol discovery and the filter-side market-data queries.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"pumpsentry/internal/models"
)

// quoteVolume position in a /fapi/v1/klines row:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, ...]
const klineQuoteVolumeIndex = 7

// ClientConfig holds HTTP behavior options.
type ClientConfig struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetryElapsed time.Duration
}

// Client is a rate-limited Binance futures REST client. Request failures
// are retried with exponential backoff and surface as transient errors;
// they are never fatal to the caller.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	limiter         *rate.Limiter
	maxRetryElapsed time.Duration
}

// NewClient creates a client for the given futures REST base URL.
func NewClient(baseURL string, cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSec == 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.MaxRetryElapsed == 0 {
		cfg.MaxRetryElapsed = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:         rate.NewLimiter(rate.Every(time.Second), cfg.RequestsPerSec),
		maxRetryElapsed: cfg.MaxRetryElapsed,
	}
}

// HTTPStatusError represents a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}

// getJSON performs a rate-limited GET with exponential-backoff retry and
// decodes the JSON response into out. Client errors (4xx) are permanent;
// network errors and 5xx are retried until maxRetryElapsed.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	u.RawQuery = query.Encode()

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(&HTTPStatusError{StatusCode: resp.StatusCode})
		}
		if resp.StatusCode != http.StatusOK {
			return &HTTPStatusError{StatusCode: resp.StatusCode}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = c.maxRetryElapsed

	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return nil
}

// RecentMinuteVolumes returns the quote volume of the last lookbackMinutes
// one-minute klines, oldest first.
func (c *Client) RecentMinuteVolumes(ctx context.Context, symbol string, lookbackMinutes int) ([]float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1m")
	q.Set("limit", strconv.Itoa(lookbackMinutes))

	var klines [][]any
	if err := c.getJSON(ctx, "/fapi/v1/klines", q, &klines); err != nil {
		return nil, err
	}

	volumes := make([]float64, 0, len(klines))
	for _, k := range klines {
		if len(k) <= klineQuoteVolumeIndex {
			return nil, fmt.Errorf("kline row too short for %s: %d fields", symbol, len(k))
		}
		raw, ok := k[klineQuoteVolumeIndex].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected quote volume type for %s", symbol)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse quote volume for %s: %w", symbol, err)
		}
		volumes = append(volumes, v)
	}
	return volumes, nil
}

type bookTickerResponse struct {
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

// BestQuote returns the current best bid and ask prices.
func (c *Client) BestQuote(ctx context.Context, symbol string) (bid, ask float64, err error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var t bookTickerResponse
	if err := c.getJSON(ctx, "/fapi/v1/ticker/bookTicker", q, &t); err != nil {
		return 0, 0, err
	}

	bid, err = strconv.ParseFloat(t.BidPrice, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse bid price for %s: %w", symbol, err)
	}
	ask, err = strconv.ParseFloat(t.AskPrice, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse ask price for %s: %w", symbol, err)
	}
	return bid, ask, nil
}

type depthResponse struct {
	Bids [][]string `json:"bids"`
}

// BidDepth returns the top bid levels, best first.
func (c *Client) BidDepth(ctx context.Context, symbol string, levels int) ([]models.PriceLevel, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(levels))

	var d depthResponse
	if err := c.getJSON(ctx, "/fapi/v1/depth", q, &d); err != nil {
		return nil, err
	}

	out := make([]models.PriceLevel, 0, len(d.Bids))
	for _, lvl := range d.Bids {
		if len(lvl) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(lvl[0], 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			continue
		}
		out = append(out, models.PriceLevel{Price: price, Quantity: qty})
	}
	return out, nil
}

type openInterestResponse struct {
	OpenInterest string `json:"openInterest"`
}

// OpenInterest returns the current outstanding contract quantity.
func (c *Client) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var r openInterestResponse
	if err := c.getJSON(ctx, "/fapi/v1/openInterest", q, &r); err != nil {
		return 0, err
	}

	oi, err := strconv.ParseFloat(r.OpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse open interest for %s: %w", symbol, err)
	}
	return oi, nil
}
