// Package coingecko reads exchange tickers and spot prices from the
// CoinGecko public API.
package coingecko

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
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/xarxa-labs/xarxa/internal/observability"
)

const (
	DefaultBaseURL           = "https://api.coingecko.com/api/v3"
	DefaultTimeout           = 10 * time.Second
	DefaultRequestsPerMinute = 10

	maxBodyBytes = 16 << 20
)

// Header is the column layout of a ticker export.
var Header = []string{"Exchange", "Base", "Target", "Last", "Volume", "Trust Score", "USD Price"}

// Ticker is one market quoting the coin.
type Ticker struct {
	Market struct {
		Name       string `json:"name"`
		Identifier string `json:"identifier"`
	} `json:"market"`
	Base          string          `json:"base"`
	Target        string          `json:"target"`
	Last          decimal.Decimal `json:"last"`
	Volume        decimal.Decimal `json:"volume"`
	TrustScore    string          `json:"trust_score"`
	ConvertedLast struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"converted_last"`
}

// Row renders the ticker in Header order.
func (t Ticker) Row() []string {
	return []string{
		t.Market.Name,
		t.Base,
		t.Target,
		t.Last.String(),
		t.Volume.String(),
		t.TrustScore,
		t.ConvertedLast.USD.String(),
	}
}

// PageStatus tells "no more data" apart from "this page failed".
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

// PageResult is the outcome of one ticker page request.
type PageResult struct {
	Status  PageStatus
	Page    int
	Tickers []Ticker
	Err     error
}

// Config configures the client.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute float64
}

// Client is a paced CoinGecko REST client.
type Client struct {
	baseURL    string
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
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1),
		requests:   metrics.Counter(observability.MetricHTTPRequests),
		failures:   metrics.Counter(observability.MetricHTTPFailures),
		pages:      metrics.Counter(observability.MetricPagesFetched),
		latency:    metrics.Histogram(observability.MetricFetchLatency),
	}
}

// TickersPage fetches one page of /coins/{id}/tickers. It waits on the
// client's rate limiter first; a cancelled wait is a failed page.
func (c *Client) TickersPage(ctx context.Context, coinID string, page int) PageResult {
	res := PageResult{Page: page}
	if err := c.limiter.Wait(ctx); err != nil {
		res.Status, res.Err = PageFailed, fmt.Errorf("coingecko: rate limiter: %w", err)
		return res
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	endpoint := fmt.Sprintf("%s/coins/%s/tickers?%s", c.baseURL, url.PathEscape(coinID), q.Encode())

	var body struct {
		Tickers []Ticker `json:"tickers"`
	}
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		c.failures.Inc()
		res.Status, res.Err = PageFailed, err
		return res
	}
	if len(body.Tickers) == 0 {
		res.Status = PageEmpty
		return res
	}
	c.pages.Inc()
	res.Status = PageItems
	res.Tickers = body.Tickers
	return res
}

// AllTickers walks pages from startPage until the first empty page. A
// failed page stops the walk and is returned as an error together with the
// tickers collected so far.
func (c *Client) AllTickers(ctx context.Context, coinID string, startPage int) ([]Ticker, error) {
	if startPage < 1 {
		startPage = 1
	}
	var all []Ticker
	for page := startPage; ; page++ {
		res := c.TickersPage(ctx, coinID, page)
		switch res.Status {
		case PageEmpty:
			log.Info().Str("coin", coinID).Int("pages", page-startPage).Int("tickers", len(all)).Msg("coingecko: all pages fetched")
			return all, nil
		case PageFailed:
			log.Warn().Err(res.Err).Str("coin", coinID).Int("page", page).Msg("coingecko: page failed")
			return all, fmt.Errorf("coingecko: page %d: %w", page, res.Err)
		}
		all = append(all, res.Tickers...)
		log.Info().Str("coin", coinID).Int("page", page).Int("tickers", len(res.Tickers)).Msg("coingecko: page processed")
	}
}

// SimplePrice returns the price of coin id in currency vs.
func (c *Client) SimplePrice(ctx context.Context, id, vs string) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("coingecko: rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", vs)
	endpoint := fmt.Sprintf("%s/simple/price?%s", c.baseURL, q.Encode())

	var body map[string]map[string]decimal.Decimal
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		c.failures.Inc()
		return decimal.Zero, err
	}
	price, ok := body[id][vs]
	if !ok {
		c.failures.Inc()
		return decimal.Zero, fmt.Errorf("coingecko: no %s price for %s", vs, id)
	}
	return price, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("coingecko: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	c.requests.Inc()
	resp, err := c.httpClient.Do(req)
	c.latency.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return fmt.Errorf("coingecko: HTTP error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("coingecko: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("coingecko: HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("coingecko: decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
