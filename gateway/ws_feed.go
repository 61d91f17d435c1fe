package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"perp-trader-go/infrastructure/logger"
	"perp-trader-go/market"
)

const wsReadTimeout = 30 * time.Second

// WSFeed subscribes to l2Book updates over websocket and keeps the latest
// top-of-book per instrument. It is a lower-latency alternative snapshot
// source; the runner falls back to the REST read when the feed is stale.
type WSFeed struct {
	endpoint    string
	instruments []string
	dialer      *websocket.Dialer
	log         *logger.Logger

	mu     sync.RWMutex
	latest map[string]market.Snapshot
}

// NewWSFeed builds a feed for the given REST base URL (the ws endpoint is
// derived from it) and instrument set.
func NewWSFeed(baseURL string, instruments []string, log *logger.Logger) *WSFeed {
	if log == nil {
		log = logger.Nop()
	}
	endpoint := strings.Replace(baseURL, "https://", "wss://", 1) + "/ws"
	return &WSFeed{
		endpoint:    endpoint,
		instruments: instruments,
		dialer:      websocket.DefaultDialer,
		log:         log,
		latest:      make(map[string]market.Snapshot),
	}
}

// Latest returns the most recent snapshot for the instrument, if any.
func (f *WSFeed) Latest(instrument string) (market.Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap, ok := f.latest[instrument]
	return snap, ok
}

// Run connects, subscribes and consumes until ctx is done, reconnecting with
// backoff on any read error.
func (f *WSFeed) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := f.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		f.log.Warn("ws feed disconnected", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (f *WSFeed) consume(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, coin := range f.instruments {
		sub := map[string]any{
			"method": "subscribe",
			"subscription": map[string]any{
				"type": "l2Book",
				"coin": coin,
			},
		}
		if err := conn.WriteJSON(sub); err != nil {
			return fmt.Errorf("subscribe %s: %w", coin, err)
		}
	}

	// watcher 随连接退出，重连不会累积goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		coin, snap, ok := parseL2Message(raw)
		if !ok {
			continue
		}
		f.mu.Lock()
		f.latest[coin] = snap
		f.mu.Unlock()
	}
}

type wsL2Message struct {
	Channel string `json:"channel"`
	Data    struct {
		Coin   string      `json:"coin"`
		Levels [][]l2Level `json:"levels"`
		Time   int64       `json:"time"`
	} `json:"data"`
}

// parseL2Message extracts a top-of-book snapshot from a raw ws frame.
// Non-book frames (subscription acks, pongs) return ok=false.
func parseL2Message(raw []byte) (string, market.Snapshot, bool) {
	var msg wsL2Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", market.Snapshot{}, false
	}
	if msg.Channel != "l2Book" || msg.Data.Coin == "" {
		return "", market.Snapshot{}, false
	}
	if len(msg.Data.Levels) < 2 || len(msg.Data.Levels[0]) == 0 || len(msg.Data.Levels[1]) == 0 {
		return "", market.Snapshot{}, false
	}
	bid := parseFloat(msg.Data.Levels[0][0].Px)
	ask := parseFloat(msg.Data.Levels[1][0].Px)
	if bid <= 0 || ask <= 0 {
		return "", market.Snapshot{}, false
	}
	ts := time.UnixMilli(msg.Data.Time)
	if msg.Data.Time == 0 {
		ts = time.Now()
	}
	return msg.Data.Coin, market.Snapshot{
		BestBid: bid,
		BestAsk: ask,
		Mid:     (bid + ask) / 2.0,
		Ts:      ts,
	}, true
}
