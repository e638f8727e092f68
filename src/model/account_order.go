package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderRoleEntry   = "entry"
	OrderRoleBracket = "bracket"

	// Broker-side terminal and transient statuses.
	OrderStatusComplete  = "COMPLETE"
	OrderStatusRejected  = "REJECTED"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusOpen      = "OPEN"

	// Local status for submissions the broker refused outright.
	OrderStatusFailed = "FAILED"
)

// AccountOrder is one per-account, per-position order record. A position has
// up to one entry row and one bracket row per configured account; rows whose
// status never reached COMPLETE (entries) or active/triggered (brackets) stay
// behind as the failed-order history.
type AccountOrder struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	PositionID    uint            `gorm:"index" json:"position_id"`
	UserID        string          `gorm:"size:60;index" json:"user_id"`
	BrokerOrderID string          `gorm:"size:60;index" json:"broker_order_id"`
	ClientRef     string          `gorm:"size:40" json:"client_ref"`
	Symbol        string          `gorm:"size:60" json:"symbol"`
	Side          string          `gorm:"size:10" json:"side"` // BUY | SELL
	Role          string          `gorm:"size:10;not null" json:"role"`
	Quantity      int             `json:"quantity"`
	Status        string          `gorm:"size:30;not null" json:"status"`
	StatusMessage string          `gorm:"size:255" json:"status_message"`
	FillPrice     decimal.Decimal `gorm:"type:numeric" json:"fill_price"`
	PlacedAt      time.Time       `json:"placed_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (AccountOrder) TableName() string {
	return "account_orders"
}

// Succeeded reports whether the entry order reached terminal success.
func (o AccountOrder) Succeeded() bool {
	return o.Status == OrderStatusComplete
}
