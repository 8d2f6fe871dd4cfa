// Package feed ingests the Binance futures miniTicker stream and pushes
// prices into the market state store. The feed owns its reconnect loop;
// the rest of the system only ever sees the store.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/marketstate"
	"momentum-lab/internal/observability"
)

// DefaultEndpoint is the combined miniTicker stream for all futures symbols.
const DefaultEndpoint = "wss://fstream.binance.com/ws/!miniTicker@arr"

// reconnectDelay is the fixed backoff between reconnect attempts.
const reconnectDelay = 5 * time.Second

// miniTicker is the subset of the Binance miniTicker payload we consume.
type miniTicker struct {
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	EventTime int64  `json:"E"` // unix ms
}

// Feed connects to the miniTicker stream and records prices for the
// monitored universe, silently ignoring everything else.
type Feed struct {
	endpoint string
	universe map[string]struct{}
	market   *marketstate.Store
	onTick   func(*domain.Tick)
	logger   *log.Logger
}

// Options contains configuration for creating a Feed.
type Options struct {
	Endpoint string // defaults to DefaultEndpoint
	Symbols  []string
	Market   *marketstate.Store
	OnTick   func(*domain.Tick) // optional hook for accepted ticks
	Logger   *log.Logger
}

// New creates a Feed.
func New(opts Options) *Feed {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	universe := make(map[string]struct{}, len(opts.Symbols))
	for _, s := range opts.Symbols {
		universe[s] = struct{}{}
	}

	return &Feed{
		endpoint: endpoint,
		universe: universe,
		market:   opts.Market,
		onTick:   opts.OnTick,
		logger:   logger,
	}
}

// Run maintains the stream connection until the context is cancelled.
// Any connection failure is logged and retried after a fixed backoff;
// the feed never terminates the process.
func (f *Feed) Run(ctx context.Context) error {
	for {
		if err := f.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Printf("feed: %v; reconnecting in %v", err, reconnectDelay)
			observability.RecordFeedReconnect()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// listen dials the stream and consumes messages until an error or
// context cancellation.
func (f *Feed) listen(ctx context.Context) error {
	f.logger.Printf("feed: connecting to %s", f.endpoint)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	f.logger.Println("feed: connected")

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		f.handleMessage(msg, time.Now().UTC())
	}
}

// handleMessage parses one miniTicker array frame and records every tick
// for a monitored symbol. Malformed entries are dropped individually so
// one bad ticker never costs a whole frame.
func (f *Feed) handleMessage(msg []byte, now time.Time) {
	var tickers []miniTicker
	if err := json.Unmarshal(msg, &tickers); err != nil {
		f.logger.Printf("feed: malformed frame: %v", err)
		return
	}

	for _, tk := range tickers {
		if _, ok := f.universe[tk.Symbol]; !ok {
			observability.RecordTickIgnored()
			continue
		}

		price, err := strconv.ParseFloat(tk.Close, 64)
		if err != nil {
			f.logger.Printf("feed: bad price %q for %s: %v", tk.Close, tk.Symbol, err)
			continue
		}

		ts := now
		if tk.EventTime > 0 {
			ts = time.UnixMilli(tk.EventTime).UTC()
		}

		f.market.Record(tk.Symbol, price, ts)
		observability.RecordTickAccepted()

		if f.onTick != nil {
			f.onTick(&domain.Tick{Symbol: tk.Symbol, Timestamp: ts, Price: price})
		}
	}
}
