package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Position is the unit of strategy state: one open option trade per
// (instrument, leg), fanned out across one or more accounts.
//
// The ID is assigned from the persisted position counter before any order is
// placed, never by the database, so ids stay monotonic across restarts and a
// fully failed entry can hand its id back.
type Position struct {
	ID           uint            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Instrument   string          `gorm:"size:60;index" json:"instrument"`
	Leg          OptionLeg       `gorm:"size:4;index" json:"leg"`
	Symbol       string          `gorm:"size:60" json:"symbol"`
	Token        int64           `json:"token"`
	Quantity     int             `json:"quantity"`
	EntryPrice   decimal.Decimal `gorm:"type:numeric" json:"entry_price"`
	LTP          decimal.Decimal `gorm:"type:numeric" json:"ltp"`
	TrailingStop decimal.Decimal `gorm:"type:numeric" json:"trailing_stop"`
	EnteredAt    time.Time       `json:"entered_at"`

	// OHLC of the hourly candle that produced the entry signal.
	SignalOpen  decimal.Decimal `gorm:"type:numeric" json:"signal_open"`
	SignalHigh  decimal.Decimal `gorm:"type:numeric" json:"signal_high"`
	SignalLow   decimal.Decimal `gorm:"type:numeric" json:"signal_low"`
	SignalClose decimal.Decimal `gorm:"type:numeric" json:"signal_close"`

	Status    string     `gorm:"size:20;not null;default:open" json:"status"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}
