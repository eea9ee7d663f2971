// Package polymarket downloads prediction-market trades from the Polymarket
// data API.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/xarxa-labs/xarxa/internal/observability"
)

const (
	DefaultBaseURL   = "https://data-api.polymarket.com"
	DefaultTimeout   = 10 * time.Second
	DefaultPageLimit = 10000 // API maximum per request
	DefaultPause     = time.Second

	maxBodyBytes = 64 << 20
)

// PageStatus tells "no more trades" apart from "this page failed".
type PageStatus int

const (
	PageItems PageStatus = iota
	PageEmpty
	PageFailed
)

func (s PageStatus) String() string {
	switch s {
	case PageItems:
		return "items"
	case PageEmpty:
		return "empty"
	case PageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PageResult is the outcome of one trades request.
type PageResult struct {
	Status PageStatus
	Offset int
	Trades []Trade
	Err    error
}

// Config configures the client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	PageLimit int
	// Pause is the minimum spacing between requests. Zero disables pacing.
	Pause time.Duration
}

// Client reads trades with offset pagination.
type Client struct {
	baseURL    string
	pageLimit  int
	httpClient *http.Client
	limiter    *rate.Limiter

	requests *observability.Counter
	failures *observability.Counter
	pages    *observability.Counter
	latency  *observability.Histogram
}

// NewClient creates a client. metrics may be nil.
func NewClient(cfg Config, metrics *observability.Registry) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	limit := rate.Inf
	if cfg.Pause > 0 {
		limit = rate.Every(cfg.Pause)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pageLimit:  cfg.PageLimit,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		requests:   metrics.Counter(observability.MetricHTTPRequests),
		failures:   metrics.Counter(observability.MetricHTTPFailures),
		pages:      metrics.Counter(observability.MetricPagesFetched),
		latency:    metrics.Histogram(observability.MetricFetchLatency),
	}
}

// TradesPage fetches up to limit trades of marketID starting at offset.
func (c *Client) TradesPage(ctx context.Context, marketID string, limit, offset int) PageResult {
	res := PageResult{Offset: offset}
	if err := c.limiter.Wait(ctx); err != nil {
		res.Status, res.Err = PageFailed, fmt.Errorf("polymarket: rate limiter: %w", err)
		return res
	}

	q := url.Values{}
	q.Set("marketId", marketID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	endpoint := fmt.Sprintf("%s/trades?%s", c.baseURL, q.Encode())

	trades, err := c.get(ctx, endpoint)
	if err != nil {
		c.failures.Inc()
		res.Status, res.Err = PageFailed, err
		return res
	}
	if len(trades) == 0 {
		res.Status = PageEmpty
		return res
	}
	c.pages.Inc()
	res.Status = PageItems
	res.Trades = trades
	return res
}

// AllTrades pages through every trade of marketID until an empty page. A
// failed page ends the walk with an error and the trades collected so far.
func (c *Client) AllTrades(ctx context.Context, marketID string) ([]Trade, error) {
	var all []Trade
	for offset := 0; ; offset += c.pageLimit {
		res := c.TradesPage(ctx, marketID, c.pageLimit, offset)
		switch res.Status {
		case PageEmpty:
			log.Info().Str("market", marketID).Int("trades", len(all)).Msg("polymarket: all trades fetched")
			return all, nil
		case PageFailed:
			log.Warn().Err(res.Err).Str("market", marketID).Int("offset", offset).Msg("polymarket: page failed")
			return all, fmt.Errorf("polymarket: offset %d: %w", offset, res.Err)
		}
		all = append(all, res.Trades...)
		log.Info().Str("market", marketID).Int("offset", offset).Int("trades", len(res.Trades)).Msg("polymarket: page downloaded")
	}
}

func (c *Client) get(ctx context.Context, endpoint string) ([]Trade, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	c.requests.Inc()
	resp, err := c.httpClient.Do(req)
	c.latency.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("polymarket: HTTP error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("polymarket: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("polymarket: HTTP %d", resp.StatusCode)
	}

	var trades []Trade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("polymarket: decode response: %w", err)
	}
	return trades, nil
}
