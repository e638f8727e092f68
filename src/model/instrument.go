package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionLeg is the CALL or PUT side of a strategy instrument.
type OptionLeg string

const (
	LegCall OptionLeg = "CE"
	LegPut  OptionLeg = "PE"
)

// Legs lists both option legs in evaluation order.
var Legs = []OptionLeg{LegCall, LegPut}

// Instrument is the static per-run configuration for one underlying index.
// It never changes while the runner is alive.
type Instrument struct {
	Name           string          // index name, e.g. "NIFTY 50"
	OptionName     string          // contract name prefix, e.g. "NIFTY"
	StrikeInterval int64           // strike grid step
	DesiredStrike  int             // strike offset in interval steps
	TrailPct       decimal.Decimal // trailing increment as fraction of entry
	StopPct        decimal.Decimal // hard stop as fraction of entry
	TargetPct      decimal.Decimal // target as fraction of entry
	Quota          int             // completed round trips allowed per leg
	Lots           int             // lot multiplier applied to contract lot size
}

// StrikeOffset returns the leg's strike offset in price points.
// Calls are bought below the ATM strike, puts above it.
func (i Instrument) StrikeOffset(leg OptionLeg) int64 {
	offset := i.StrikeInterval * int64(i.DesiredStrike)
	if leg == LegCall {
		return -offset
	}
	return offset
}

// Contract is one tradable row of the broker instrument dump.
type Contract struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Token          int64           `gorm:"index" json:"token"`
	Symbol         string          `gorm:"size:60;uniqueIndex" json:"symbol"`
	Name           string          `gorm:"size:60;index" json:"name"`
	Expiry         time.Time       `gorm:"index" json:"expiry"`
	Strike         decimal.Decimal `gorm:"type:numeric" json:"strike"`
	InstrumentType string          `gorm:"size:10;index" json:"instrument_type"` // CE | PE | FUT | EQ
	Exchange       string          `gorm:"size:10" json:"exchange"`
	LotSize        int             `json:"lot_size"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Contract) TableName() string {
	return "contracts"
}

// Bar is one OHLC candle as returned by the market-data API.
type Bar struct {
	Date  time.Time       `json:"date"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}
