package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BracketStatusActive    = "active"
	BracketStatusTriggered = "triggered"
	BracketStatusCancelled = "cancelled"
	BracketStatusDeleted   = "deleted"
	BracketStatusExpired   = "expired"
	BracketStatusRejected  = "rejected"
)

// BracketOrder is the two-leg OCO exit protection (stop-loss leg, target leg)
// placed per successful account for an open position. The broker returns a
// fresh trigger id on every modify, so TriggerID is replaced, never patched,
// when the trailing stop ratchets up.
type BracketOrder struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	PositionID  uint            `gorm:"index" json:"position_id"`
	UserID      string          `gorm:"size:60;index" json:"user_id"`
	TriggerID   string          `gorm:"size:60;index" json:"trigger_id"`
	Symbol      string          `gorm:"size:60" json:"symbol"`
	Quantity    int             `json:"quantity"`
	StopPrice   decimal.Decimal `gorm:"type:numeric" json:"stop_price"`
	TargetPrice decimal.Decimal `gorm:"type:numeric" json:"target_price"`
	Status      string          `gorm:"size:20" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (BracketOrder) TableName() string {
	return "bracket_orders"
}
