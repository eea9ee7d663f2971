package mempool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xarxa-labs/xarxa/internal/observability"
)

// ---------------------------------------------------------------------------
// Address transaction lookup: GET <base>/address/{address}/txs
// One blocking call per address, fixed timeout, no retry.
// ---------------------------------------------------------------------------

const (
	DefaultBaseURL = "https://mempool.space/api"
	DefaultTimeout = 10 * time.Second
	DefaultLimit   = 50

	maxBodyBytes = 32 << 20
)

// FetchStatus separates "the address has no transactions" from "the lookup
// failed", which the raw record list alone cannot express.
type FetchStatus int

const (
	FetchOK FetchStatus = iota
	FetchEmpty
	FetchFailed
)

func (s FetchStatus) String() string {
	switch s {
	case FetchOK:
		return "ok"
	case FetchEmpty:
		return "empty"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchResult is the outcome of one address lookup. Records is empty unless
// Status is FetchOK; Err is set only for FetchFailed.
type FetchResult struct {
	Status  FetchStatus
	Records []json.RawMessage
	Err     error
}

// Fetcher looks up the transactions of a single address.
type Fetcher interface {
	AddressTxs(ctx context.Context, address string, limit int) FetchResult
}

// Config configures the REST client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the mempool.space (Esplora) REST client.
type Client struct {
	baseURL    string
	httpClient *http.Client

	requests *observability.Counter
	failures *observability.Counter
	latency  *observability.Histogram
}

// NewClient creates a REST client. metrics may be nil.
func NewClient(cfg Config, metrics *observability.Registry) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		requests: metrics.Counter(observability.MetricHTTPRequests),
		failures: metrics.Counter(observability.MetricHTTPFailures),
		latency:  metrics.Histogram(observability.MetricFetchLatency),
	}
}

// AddressTxs fetches the transactions of address, keeping the first limit
// records in upstream order (limit <= 0 means DefaultLimit). Every failure
// mode is folded into a FetchFailed result.
func (c *Client) AddressTxs(ctx context.Context, address string, limit int) FetchResult {
	if limit <= 0 {
		limit = DefaultLimit
	}

	records, err := c.get(ctx, address)
	if err != nil {
		c.failures.Inc()
		log.Warn().Err(err).Str("address", address).Msg("mempool: lookup failed")
		return FetchResult{Status: FetchFailed, Err: err}
	}
	if len(records) == 0 {
		return FetchResult{Status: FetchEmpty}
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return FetchResult{Status: FetchOK, Records: records}
}

func (c *Client) get(ctx context.Context, address string) ([]json.RawMessage, error) {
	if address == "" {
		return nil, fmt.Errorf("mempool: empty address")
	}
	endpoint := fmt.Sprintf("%s/address/%s/txs", c.baseURL, url.PathEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mempool: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	c.requests.Inc()
	resp, err := c.httpClient.Do(req)
	c.latency.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("mempool: HTTP error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("mempool: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("mempool: HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("mempool: decode response: %w", err)
	}
	for i, r := range records {
		if len(r) == 0 || r[0] != '{' {
			return nil, fmt.Errorf("mempool: record %d is not an object", i)
		}
	}

	log.Debug().
		Str("address", address).
		Int("records", len(records)).
		Dur("latency", time.Since(start)).
		Msg("mempool: lookup ok")

	return records, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
