package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xarxa-labs/xarxa/internal/observability"
)

// tradeServer holds total trades and serves them by offset/limit.
func tradeServer(t *testing.T, total int, failOffset int) (*httptest.Server, func() []int) {
	var (
		mu      sync.Mutex
		offsets []int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trades", r.URL.Path)
		assert.Equal(t, "mkt-1", r.URL.Query().Get("marketId"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		mu.Lock()
		offsets = append(offsets, offset)
		mu.Unlock()
		if offset == failOffset {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		trades := []map[string]interface{}{}
		for i := offset; i < total && i < offset+limit; i++ {
			trades = append(trades, map[string]interface{}{
				"proxyWallet": fmt.Sprintf("0x%02d", i%3),
				"side":        "BUY",
				"size":        1.5,
				"price":       0.42,
				"timestamp":   1700000000 + i,
			})
		}
		_ = json.NewEncoder(w).Encode(trades)
	}))
	return srv, func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), offsets...)
	}
}

func newTestClient(url string, limit int, metrics *observability.Registry) *Client {
	return NewClient(Config{BaseURL: url, Timeout: 2 * time.Second, PageLimit: limit}, metrics)
}

func TestAllTrades_OffsetPagination(t *testing.T) {
	srv, offsets := tradeServer(t, 5, -1)
	defer srv.Close()

	metrics := observability.XarxaMetrics()
	trades, err := newTestClient(srv.URL, 2, metrics).AllTrades(context.Background(), "mkt-1")
	require.NoError(t, err)
	assert.Len(t, trades, 5)
	assert.Equal(t, []int{0, 2, 4, 6}, offsets())
	assert.Equal(t, int64(3), metrics.Counter(observability.MetricPagesFetched).Value(), "the empty terminal page is not counted")
	assert.Equal(t, "1.5", trades[0].Size.String())
	assert.Equal(t, int64(1700000004), trades[4].Timestamp)
}

func TestAllTrades_FailedPageReturnsError(t *testing.T) {
	srv, _ := tradeServer(t, 10, 4)
	defer srv.Close()

	trades, err := newTestClient(srv.URL, 2, nil).AllTrades(context.Background(), "mkt-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 4")
	assert.Len(t, trades, 4)
}

func TestTradesPage_Statuses(t *testing.T) {
	srv, _ := tradeServer(t, 1, 50)
	defer srv.Close()
	c := newTestClient(srv.URL, 10, nil)

	assert.Equal(t, PageItems, c.TradesPage(context.Background(), "mkt-1", 10, 0).Status)
	assert.Equal(t, PageEmpty, c.TradesPage(context.Background(), "mkt-1", 10, 10).Status)
	res := c.TradesPage(context.Background(), "mkt-1", 10, 50)
	assert.Equal(t, PageFailed, res.Status)
	assert.Error(t, res.Err)
}

func TestTradesPage_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"bad market"}`)
	}))
	defer srv.Close()

	res := newTestClient(srv.URL, 10, nil).TradesPage(context.Background(), "mkt-1", 10, 0)
	assert.Equal(t, PageFailed, res.Status)
}

func TestClient_PauseBetweenPages(t *testing.T) {
	srv, _ := tradeServer(t, 2, -1)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, PageLimit: 1, Pause: 30 * time.Millisecond}, nil)
	start := time.Now()
	_, err := c.AllTrades(context.Background(), "mkt-1")
	require.NoError(t, err)
	// Three requests, two of them paced.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
