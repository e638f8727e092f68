package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LegState is the per-(instrument, leg) trailing bookkeeping: the ratchet
// watermark, trailing increment, current stop, target and completed-cycle
// counter. One row per leg, overwritten wholesale after every transition.
type LegState struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Instrument string    `gorm:"size:60;uniqueIndex:ux_leg_state,priority:1" json:"instrument"`
	Leg        OptionLeg `gorm:"size:4;uniqueIndex:ux_leg_state,priority:2" json:"leg"`

	TrailingStop decimal.Decimal `gorm:"type:numeric" json:"trailing_stop"`
	PrevHigh     decimal.Decimal `gorm:"type:numeric" json:"prev_high"`
	Increment    decimal.Decimal `gorm:"type:numeric" json:"increment"`
	Target       decimal.Decimal `gorm:"type:numeric" json:"target"`

	CompletedCycles int       `json:"completed_cycles"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (LegState) TableName() string {
	return "leg_states"
}

// HourGate marks that the entry conditions for an instrument were already
// evaluated in a given calendar hour. Written before the evaluation itself so
// a restart mid-hour does not re-fire the check.
type HourGate struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Instrument string    `gorm:"size:60;uniqueIndex:ux_hour_gate,priority:1" json:"instrument"`
	Day        string    `gorm:"size:10;uniqueIndex:ux_hour_gate,priority:2" json:"day"` // YYYY-MM-DD
	Hour       int       `gorm:"uniqueIndex:ux_hour_gate,priority:3" json:"hour"`
	CreatedAt  time.Time `json:"created_at"`
}

func (HourGate) TableName() string {
	return "hour_gates"
}

// Counter is a named monotonic counter. The position-id counter is reserved
// before any order is placed and rolled back only when zero accounts fill.
type Counter struct {
	Name      string    `gorm:"primaryKey;size:40" json:"name"`
	Value     uint      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

const CounterPositionID = "position_id"

func (Counter) TableName() string {
	return "counters"
}
