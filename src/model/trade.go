package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ExitTypeTrailingStop = "Trailing_SL"
)

// TradeRecord is the immutable merged entry+exit row produced exactly once per
// (position, account) when that account's bracket order is observed filled.
type TradeRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PositionID uint      `gorm:"index" json:"position_id"`
	UserID     string    `gorm:"size:60;index" json:"user_id"`
	Instrument string    `gorm:"size:60" json:"instrument"`
	Leg        OptionLeg `gorm:"size:4" json:"leg"`
	Symbol     string    `gorm:"size:60" json:"symbol"`
	Quantity   int       `json:"quantity"`

	EntryOrderID string          `gorm:"size:60" json:"entry_order_id"`
	EntryPrice   decimal.Decimal `gorm:"type:numeric" json:"entry_price"`
	EnteredAt    time.Time       `json:"entered_at"`

	ExitOrderID string          `gorm:"size:60" json:"exit_order_id"`
	ExitPrice   decimal.Decimal `gorm:"type:numeric" json:"exit_price"`
	ExitedAt    time.Time       `json:"exited_at"`
	ExitType    string          `gorm:"size:30" json:"exit_type"`

	CreatedAt time.Time `json:"created_at"`
}

func (TradeRecord) TableName() string {
	return "trades"
}
