package mempool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/xarxa-labs/xarxa/internal/observability"
)

// ---------------------------------------------------------------------------
// Live address tracker: mempool.space websocket "track-addresses"
// Streams new/confirmed/removed transactions for a set of wallets.
// ---------------------------------------------------------------------------

const DefaultWSURL = "wss://mempool.space/api/v1/ws"

// EventKind tells where a tracked transaction was seen.
type EventKind string

const (
	EventMempool   EventKind = "mempool"
	EventConfirmed EventKind = "confirmed"
	EventRemoved   EventKind = "removed"
)

// AddressEvent is emitted for every transaction touching a tracked address.
type AddressEvent struct {
	Address    string          `json:"address"`
	Kind       EventKind       `json:"kind"`
	Tx         Transaction     `json:"tx"`
	Raw        json.RawMessage `json:"-"`
	ReceivedAt time.Time       `json:"received_at"`
}

// TrackerConfig configures the live tracker.
type TrackerConfig struct {
	WSURL            string
	Addresses        []string
	PingInterval     time.Duration
	ReconnectDelay   time.Duration
	MaxReconnectWait time.Duration
}

// Tracker keeps a websocket subscription alive and fans address events out on
// a channel.
type Tracker struct {
	config TrackerConfig
	events chan AddressEvent

	received *observability.Counter
}

type trackFrame struct {
	TrackAddresses []string `json:"track-addresses"`
}

type pingFrame struct {
	Action string `json:"action"`
}

type addressTxs struct {
	Mempool   []json.RawMessage `json:"mempool"`
	Confirmed []json.RawMessage `json:"confirmed"`
	Removed   []json.RawMessage `json:"removed"`
}

type inboundFrame struct {
	MultiAddressTransactions map[string]addressTxs `json:"multi-address-transactions"`
	TrackAddressesError      string                `json:"track-addresses-error"`
}

// NewTracker creates a tracker. metrics may be nil.
func NewTracker(config TrackerConfig, metrics *observability.Registry) *Tracker {
	if config.WSURL == "" {
		config.WSURL = DefaultWSURL
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = time.Second
	}
	if config.MaxReconnectWait <= 0 {
		config.MaxReconnectWait = 30 * time.Second
	}
	return &Tracker{
		config:   config,
		events:   make(chan AddressEvent, 256),
		received: metrics.Counter(observability.MetricStreamEvents),
	}
}

// Events returns the event channel. It is closed when Run returns.
func (t *Tracker) Events() <-chan AddressEvent {
	return t.events
}

// Run connects, subscribes and reads until ctx is cancelled, reconnecting with
// capped exponential backoff.
func (t *Tracker) Run(ctx context.Context) error {
	defer close(t.events)

	if len(t.config.Addresses) == 0 {
		return fmt.Errorf("ws: no addresses to track")
	}

	delay := t.config.ReconnectDelay
	for {
		err := t.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, errTrackRejected) {
			return err
		}
		log.Warn().Err(err).Dur("retry_in", delay).Msg("ws: session ended")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
		delay *= 2
		if delay > t.config.MaxReconnectWait {
			delay = t.config.MaxReconnectWait
		}
	}
}

// session runs one connection: subscribe, then read and ping loops until
// either fails or ctx ends.
func (t *Tracker) session(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, t.config.WSURL, nil)
	if err != nil {
		return fmt.Errorf("ws: dial: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := write(trackFrame{TrackAddresses: t.config.Addresses}); err != nil {
		return fmt.Errorf("ws: subscribe: %w", err)
	}
	log.Info().
		Str("endpoint", t.config.WSURL).
		Int("addresses", len(t.config.Addresses)).
		Msg("ws: connected and subscribed")

	g, gctx := errgroup.WithContext(ctx)

	// Unblock ReadMessage once the session is over.
	g.Go(func() error {
		<-gctx.Done()
		conn.Close()
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(t.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := write(pingFrame{Action: "ping"}); err != nil {
					return fmt.Errorf("ws: ping: %w", err)
				}
			}
		}
	})

	g.Go(func() error {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("ws: read: %w", err)
			}
			events, err := decodeFrame(data, time.Now())
			if err != nil {
				if errors.Is(err, errTrackRejected) {
					return err
				}
				log.Debug().Err(err).Msg("ws: skipping frame")
				continue
			}
			for _, ev := range events {
				t.received.Inc()
				select {
				case t.events <- ev:
				case <-gctx.Done():
					return nil
				}
			}
		}
	})

	return g.Wait()
}

var errTrackRejected = errors.New("ws: track-addresses rejected")

// decodeFrame turns one server frame into address events, ordered by address
// then kind. Frames without address data yield no events.
func decodeFrame(data []byte, now time.Time) ([]AddressEvent, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("ws: decode frame: %w", err)
	}
	if frame.TrackAddressesError != "" {
		return nil, fmt.Errorf("%w: %s", errTrackRejected, frame.TrackAddressesError)
	}

	addrs := make([]string, 0, len(frame.MultiAddressTransactions))
	for addr := range frame.MultiAddressTransactions {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var events []AddressEvent
	for _, addr := range addrs {
		txs := frame.MultiAddressTransactions[addr]
		for _, group := range []struct {
			kind EventKind
			raws []json.RawMessage
		}{
			{EventMempool, txs.Mempool},
			{EventConfirmed, txs.Confirmed},
			{EventRemoved, txs.Removed},
		} {
			for _, raw := range group.raws {
				tx, err := DecodeTransaction(raw)
				if err != nil {
					continue
				}
				events = append(events, AddressEvent{
					Address:    addr,
					Kind:       group.kind,
					Tx:         tx,
					Raw:        raw,
					ReceivedAt: now,
				})
			}
		}
	}
	return events, nil
}

// NetFlow returns what the transaction moved into (positive) or out of
// (negative) address, in the smallest unit.
func NetFlow(tx Transaction, address string) int64 {
	var net int64
	for _, in := range tx.Vin {
		if in.SourceAddress() == address {
			net -= in.SourceValue()
		}
	}
	for _, out := range tx.Vout {
		if out.ScriptPubKeyAddress == address {
			net += out.Value
		}
	}
	return net
}
