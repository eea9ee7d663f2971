package txcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/xarxa-labs/xarxa/internal/atomicfile"
	"github.com/xarxa-labs/xarxa/internal/mempool"
	"github.com/xarxa-labs/xarxa/internal/observability"
)

// ---------------------------------------------------------------------------
// Address Transaction Cache: address -> raw transaction records
// Stale forever: a present key is never fetched again, failures included.
// Every miss rewrites the whole file.
// ---------------------------------------------------------------------------

// Stats counts cache activity since construction.
type Stats struct {
	Entries  int `json:"entries"`
	Hits     int `json:"hits"`
	Misses   int `json:"misses"`
	Failures int `json:"failures"` // misses whose fetch failed and were cached empty
}

// Cache is a JSON-file backed lookup cache in front of a mempool.Fetcher.
type Cache struct {
	path    string
	fetcher mempool.Fetcher
	limit   int

	mu      sync.Mutex
	entries map[string][]json.RawMessage
	stats   Stats

	hits    *observability.Counter
	misses  *observability.Counter
	flushes *observability.Counter
}

// New creates an empty cache persisted at path. Call Load to read an existing
// file. metrics may be nil.
func New(path string, fetcher mempool.Fetcher, limit int, metrics *observability.Registry) *Cache {
	return &Cache{
		path:    path,
		fetcher: fetcher,
		limit:   limit,
		entries: make(map[string][]json.RawMessage),
		hits:    metrics.Counter(observability.MetricCacheHits),
		misses:  metrics.Counter(observability.MetricCacheMisses),
		flushes: metrics.Counter(observability.MetricCacheFlushes),
	}
}

// Path returns the backing file path.
func (c *Cache) Path() string {
	return c.path
}

// Load replaces the in-memory entries with the persisted file. A missing or
// empty file yields an empty cache.
func (c *Cache) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", c.path).Msg("txcache: no cache file, starting fresh")
			c.reset(nil)
			return nil
		}
		return fmt.Errorf("txcache: read: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		log.Warn().Str("path", c.path).Msg("txcache: empty cache file, starting fresh")
		c.reset(nil)
		return nil
	}

	var stored map[string][]json.RawMessage
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("txcache: decode %s: %w", c.path, err)
	}

	entries := make(map[string][]json.RawMessage, len(stored))
	for addr, records := range stored {
		normalized, err := compactAll(records)
		if err != nil {
			return fmt.Errorf("txcache: address %s: %w", addr, err)
		}
		entries[addr] = normalized
	}
	c.reset(entries)

	log.Info().
		Str("path", c.path).
		Int("addresses", len(entries)).
		Msg("txcache: loaded")
	return nil
}

func (c *Cache) reset(entries map[string][]json.RawMessage) {
	if entries == nil {
		entries = make(map[string][]json.RawMessage)
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Get returns the records for address. A hit does no network activity. A miss
// fetches, stores the result (an empty list when the fetch failed) and flushes
// the whole cache before returning. A lookup interrupted by ctx stores nothing
// and returns ctx.Err().
func (c *Cache) Get(ctx context.Context, address string) ([]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if records, ok := c.entries[address]; ok {
		c.stats.Hits++
		c.hits.Inc()
		log.Debug().Str("address", address).Int("records", len(records)).Msg("txcache: hit")
		return records, nil
	}

	c.stats.Misses++
	c.misses.Inc()

	res := c.fetcher.AddressTxs(ctx, address, c.limit)
	if err := ctx.Err(); err != nil {
		// An interrupted lookup is not an upstream failure: leave the address uncached.
		log.Warn().Err(err).Str("address", address).Msg("txcache: lookup cancelled")
		return nil, err
	}
	records, err := compactAll(res.Records)
	if err != nil {
		// Unparseable records are treated like a failed fetch.
		res.Status = mempool.FetchFailed
		records = nil
	}
	if res.Status == mempool.FetchFailed {
		c.stats.Failures++
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	c.entries[address] = records

	log.Info().
		Str("address", address).
		Str("status", res.Status.String()).
		Int("records", len(records)).
		Msg("txcache: fetched")

	if err := c.flushLocked(); err != nil {
		return records, err
	}
	return records, nil
}

// Has reports whether address is cached, without fetching.
func (c *Cache) Has(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[address]
	return ok
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Addresses returns the cached addresses in sorted order.
func (c *Cache) Addresses() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	addrs := make([]string, 0, len(c.entries))
	for a := range c.entries {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)
	return addrs
}

// Snapshot returns a copy of the address -> records mapping.
func (c *Cache) Snapshot() map[string][]json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]json.RawMessage, len(c.entries))
	for a, recs := range c.entries {
		out[a] = append([]json.RawMessage(nil), recs...)
	}
	return out
}

// Stats returns activity counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// Flush rewrites the whole persisted file.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("txcache: encode: %w", err)
	}
	if err := atomicfile.Write(c.path, data); err != nil {
		return fmt.Errorf("txcache: %w", err)
	}
	c.flushes.Inc()
	log.Debug().Str("path", c.path).Int("addresses", len(c.entries)).Int("bytes", len(data)).Msg("txcache: flushed")
	return nil
}

func compactAll(records []json.RawMessage) ([]json.RawMessage, error) {
	if records == nil {
		return nil, nil
	}
	out := make([]json.RawMessage, len(records))
	for i, r := range records {
		var buf bytes.Buffer
		if err := json.Compact(&buf, r); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = buf.Bytes()
	}
	return out, nil
}
