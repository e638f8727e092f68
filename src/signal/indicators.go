// Package signal holds the indicator engine and the entry-condition
// evaluator. Everything here is a pure function over OHLC bars.
package signal

import (
	"github.com/shopspring/decimal"

	"optionsrunner/src/model"
)

var (
	one  = decimal.NewFromInt(1)
	two  = decimal.NewFromInt(2)
	half = decimal.RequireFromString("0.5")
	body = decimal.RequireFromString("0.6")
)

// EMA computes the exponential moving average of closes, seeded with the first
// close (recursive form, matching an adjust=false ewm).
func EMA(bars []model.Bar, period int) decimal.Decimal {
	if len(bars) == 0 || period <= 0 {
		return decimal.Zero
	}

	alpha := two.Div(decimal.NewFromInt(int64(period) + 1))
	value := bars[0].Close
	for _, bar := range bars[1:] {
		value = bar.Close.Mul(alpha).Add(value.Mul(one.Sub(alpha)))
	}
	return value
}

// SMA computes the simple moving average of the last period closes. With
// period 20 this is the middle Bollinger band reference.
func SMA(bars []model.Bar, period int) decimal.Decimal {
	if len(bars) == 0 || period <= 0 {
		return decimal.Zero
	}
	if period > len(bars) {
		period = len(bars)
	}

	sum := decimal.Zero
	for _, bar := range bars[len(bars)-period:] {
		sum = sum.Add(bar.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}

// IsBullish reports a full-bodied up candle: body covers at least 60% of the
// range.
func IsBullish(b model.Bar) bool {
	return b.Close.GreaterThan(b.Open) &&
		b.Close.Sub(b.Open).GreaterThanOrEqual(body.Mul(b.High.Sub(b.Low)))
}

// IsBearish reports a full-bodied down candle.
func IsBearish(b model.Bar) bool {
	return b.Close.LessThan(b.Open) &&
		b.Open.Sub(b.Close).GreaterThanOrEqual(body.Mul(b.High.Sub(b.Low)))
}

// IsHammer reports a candle whose lower wick is at least half the range.
func IsHammer(b model.Bar) bool {
	rng := b.High.Sub(b.Low)
	if b.Close.GreaterThan(b.Open) {
		return b.Open.Sub(b.Low).GreaterThanOrEqual(half.Mul(rng))
	}
	if b.Close.LessThan(b.Open) {
		return b.Close.Sub(b.Low).GreaterThanOrEqual(half.Mul(rng))
	}
	return false
}

// IsShootingStar reports a candle whose upper wick is at least half the range.
func IsShootingStar(b model.Bar) bool {
	rng := b.High.Sub(b.Low)
	if b.Close.GreaterThan(b.Open) {
		return b.High.Sub(b.Close).GreaterThanOrEqual(half.Mul(rng))
	}
	if b.Close.LessThan(b.Open) {
		return b.High.Sub(b.Open).GreaterThanOrEqual(half.Mul(rng))
	}
	return false
}
