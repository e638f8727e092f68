package connectors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// tickMessage is one LTP update pushed by the streaming quote feed.
type tickMessage struct {
	Type      string  `json:"type"`
	Token     int64   `json:"token"`
	LastPrice float64 `json:"last_price"`
}

// Ticker maintains a token -> last-traded-price cache fed by the broker's
// websocket quote stream. The trading loop reads the cache as a fast path and
// falls back to the REST quote when a token has no fresh tick; losing the
// stream therefore degrades latency, never correctness.
type Ticker struct {
	url         string
	apiKey      string
	accessToken string

	mu     sync.RWMutex
	prices map[int64]decimal.Decimal
	conn   *websocket.Conn
}

func NewTicker(url, apiKey, accessToken string) *Ticker {
	return &Ticker{
		url:         url,
		apiKey:      apiKey,
		accessToken: accessToken,
		prices:      make(map[int64]decimal.Decimal),
	}
}

// Run connects, subscribes and pumps ticks into the cache until ctx is done,
// redialing with a fixed pause after any stream failure.
func (t *Ticker) Run(ctx context.Context, tokens []int64) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := t.stream(ctx, tokens); err != nil {
			logger.WithError(err).Warn("quote stream dropped, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (t *Ticker) stream(ctx context.Context, tokens []int64) error {
	url := fmt.Sprintf("%s?api_key=%s&access_token=%s", t.url, t.apiKey, t.accessToken)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	subscribe := map[string]interface{}{"a": "subscribe", "v": tokens}
	if err := conn.WriteJSON(subscribe); err != nil {
		return err
	}

	logger.WithField("tokens", len(tokens)).Info("quote stream subscribed")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var tick tickMessage
		if err := conn.ReadJSON(&tick); err != nil {
			return err
		}
		if tick.Type != "ltp" || tick.Token == 0 {
			continue
		}

		t.mu.Lock()
		t.prices[tick.Token] = decimal.NewFromFloat(tick.LastPrice)
		t.mu.Unlock()
	}
}

// LastPrice returns the cached LTP for token, if any tick has arrived.
func (t *Ticker) LastPrice(token int64) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	price, ok := t.prices[token]
	return price, ok
}
