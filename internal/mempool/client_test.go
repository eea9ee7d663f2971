package mempool

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xarxa-labs/xarxa/internal/observability"
)

func txJSON(id, from string, in int64, to string, out int64) string {
	return fmt.Sprintf(`{"txid":%q,"vin":[{"prevout":{"scriptpubkey_address":%q,"value":%d}}],"vout":[{"scriptpubkey_address":%q,"value":%d}],"fee":120}`,
		id, from, in, to, out)
}

func TestClient_AddressTxs_OK(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		fmt.Fprintf(w, "[%s,%s,%s]",
			txJSON("t1", "U1", 100, "W1", 90),
			txJSON("t2", "U2", 200, "W1", 190),
			txJSON("t3", "U3", 300, "W1", 290))
	}))
	defer srv.Close()

	metrics := observability.XarxaMetrics()
	c := NewClient(Config{BaseURL: srv.URL + "/"}, metrics)

	res := c.AddressTxs(context.Background(), "W1", 2)
	require.Equal(t, FetchOK, res.Status)
	require.NoError(t, res.Err)
	assert.Equal(t, "/address/W1/txs", gotPath.Load())

	// Truncated to the first two, upstream order kept, raw bytes untouched.
	require.Len(t, res.Records, 2)
	assert.JSONEq(t, txJSON("t1", "U1", 100, "W1", 90), string(res.Records[0]))
	tx, err := DecodeTransaction(res.Records[1])
	require.NoError(t, err)
	assert.Equal(t, "t2", tx.TxID)

	assert.Equal(t, int64(1), metrics.Counter(observability.MetricHTTPRequests).Value())
	assert.Equal(t, int64(0), metrics.Counter(observability.MetricHTTPFailures).Value())
}

func TestClient_AddressTxs_DefaultLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := make([]string, 60)
		for i := range parts {
			parts[i] = txJSON(fmt.Sprintf("t%d", i), "U", 1, "W", 1)
		}
		fmt.Fprintf(w, "[%s]", strings.Join(parts, ","))
	}))
	defer srv.Close()

	res := NewClient(Config{BaseURL: srv.URL}, nil).AddressTxs(context.Background(), "W", 0)
	assert.Equal(t, FetchOK, res.Status)
	assert.Len(t, res.Records, DefaultLimit)
}

func TestClient_AddressTxs_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	res := NewClient(Config{BaseURL: srv.URL}, nil).AddressTxs(context.Background(), "W", 50)
	assert.Equal(t, FetchEmpty, res.Status)
	assert.Empty(t, res.Records)
	assert.NoError(t, res.Err)
}

func TestClient_AddressTxs_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Invalid Bitcoin address", http.StatusBadRequest)
		}},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not":"an array"}`))
		}},
		{"non-object records", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[1,2,3]`))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			metrics := observability.XarxaMetrics()
			res := NewClient(Config{BaseURL: srv.URL}, metrics).AddressTxs(context.Background(), "W", 50)
			assert.Equal(t, FetchFailed, res.Status)
			assert.Error(t, res.Err)
			assert.Empty(t, res.Records)
			assert.Equal(t, int64(1), metrics.Counter(observability.MetricHTTPFailures).Value())
		})
	}
}

func TestClient_AddressTxs_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	res := c.AddressTxs(context.Background(), "W", 50)
	assert.Equal(t, FetchFailed, res.Status)
	assert.Error(t, res.Err)
}

func TestClient_AddressTxs_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewClient(Config{BaseURL: url}, nil).AddressTxs(context.Background(), "W", 50)
	assert.Equal(t, FetchFailed, res.Status)
}

func TestToUnits_Exact(t *testing.T) {
	assert.True(t, ToUnits(150_000_000, 8).Equal(decimal.RequireFromString("1.5")))
	assert.True(t, ToUnits(1, 8).Equal(decimal.RequireFromString("0.00000001")))
	assert.Equal(t, "0.3", ToUnits(30_000_000, 8).String())

	// Sum of many small values stays exact.
	sum := decimal.Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(ToUnits(10_000_000, 8))
	}
	assert.Equal(t, "1", sum.String())
}

func TestInput_CoinbaseHasNoSource(t *testing.T) {
	tx, err := DecodeTransaction([]byte(`{"txid":"cb","vin":[{"is_coinbase":true,"prevout":null}],"vout":[{"scriptpubkey_address":"M","value":625000000}]}`))
	require.NoError(t, err)
	assert.Equal(t, "", tx.Vin[0].SourceAddress())
	assert.Equal(t, int64(0), tx.Vin[0].SourceValue())
}

func TestNetFlow(t *testing.T) {
	tx, err := DecodeTransaction([]byte(`{"txid":"x","vin":[{"prevout":{"scriptpubkey_address":"A","value":1000}}],"vout":[{"scriptpubkey_address":"B","value":700},{"scriptpubkey_address":"A","value":250}]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(-750), NetFlow(tx, "A"))
	assert.Equal(t, int64(700), NetFlow(tx, "B"))
	assert.Equal(t, int64(0), NetFlow(tx, "C"))
}
