package connectors

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"optionsrunner/src/model"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	ExchangeNFO = "NFO"
	ExchangeNSE = "NSE"

	IntervalMinute = "minute"
	Interval60Min  = "60minute"
)

// OrderDetail is one row of the broker order book.
type OrderDetail struct {
	OrderID       string
	Symbol        string
	Side          string
	Status        string
	StatusMessage string
	FillPrice     decimal.Decimal
	UpdatedAt     time.Time
}

// BrokerAccount is the per-account capability the state machine fans out
// over. Placement calls fail with *OrderRejectedError, queries with
// *TransientIOError; callers branch on the kind, never on message text.
type BrokerAccount interface {
	UserID() string

	// PlaceOrder submits a market order and returns the broker order id.
	PlaceOrder(ctx context.Context, symbol, side string, quantity int, clientRef string) (string, error)

	// Orders returns the full order book for the day, newest last.
	Orders(ctx context.Context) ([]OrderDetail, error)

	// PlaceBracket submits a two-leg OCO sell (stop-loss, target) and returns
	// the broker trigger id.
	PlaceBracket(ctx context.Context, symbol string, quantity int, stop, target, lastPrice decimal.Decimal) (string, error)

	// ModifyBracket rewrites an existing trigger with new levels. The broker
	// hands back a fresh trigger id.
	ModifyBracket(ctx context.Context, triggerID, symbol string, quantity int, stop, target, lastPrice decimal.Decimal) (string, error)

	// BracketStatus reports the trigger's current status and last update time.
	BracketStatus(ctx context.Context, triggerID string) (string, time.Time, error)

	// LastPrice returns the last traded price of exchange:symbol.
	LastPrice(ctx context.Context, exchange, symbol string) (decimal.Decimal, error)
}

// MarketData is the historical-bars capability. Only the account holding a
// historical-data subscription implements it against the live API.
type MarketData interface {
	HistoricalBars(ctx context.Context, token int64, from, to time.Time, interval string) ([]model.Bar, error)
}
