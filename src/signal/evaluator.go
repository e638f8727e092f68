package signal

import (
	"github.com/shopspring/decimal"

	"optionsrunner/src/model"
)

// MinBars is the minimum number of hourly bars needed before the entry rules
// can be evaluated. Fewer bars means "no signal", not an error.
const MinBars = 20

const (
	fastPeriod = 3
	midPeriod  = 13
	slowPeriod = 20
	bandPeriod = 20
)

// Snapshot is the indicator state derived from one hourly series.
type Snapshot struct {
	Fast       decimal.Decimal // EMA(3)
	Mid        decimal.Decimal // EMA(13)
	Slow       decimal.Decimal // EMA(20)
	MiddleBand decimal.Decimal // SMA(20)
	Candle     model.Bar       // most recent completed bar
}

// BuildSnapshot derives the indicator snapshot from an ascending hourly
// series. Returns ok=false when the series is too short to evaluate.
func BuildSnapshot(bars []model.Bar) (Snapshot, bool) {
	if len(bars) < MinBars {
		return Snapshot{}, false
	}

	return Snapshot{
		Fast:       EMA(bars, fastPeriod),
		Mid:        EMA(bars, midPeriod),
		Slow:       EMA(bars, slowPeriod),
		MiddleBand: SMA(bars, bandPeriod),
		Candle:     bars[len(bars)-1],
	}, true
}

// Entry decides whether the leg's entry conditions hold on this snapshot.
//
// Call leg: fast EMA above mid and slow, the candle low between the mid and
// fast EMAs, and the close above both the fast EMA and the middle band. Put
// leg is the mirror image.
func (s Snapshot) Entry(leg model.OptionLeg) bool {
	low := s.Candle.Low
	last := s.Candle.Close

	switch leg {
	case model.LegCall:
		return s.Fast.GreaterThan(s.Mid) &&
			s.Fast.GreaterThan(s.Slow) &&
			low.GreaterThan(s.Mid) &&
			low.LessThan(s.Fast) &&
			last.GreaterThan(s.Fast) &&
			last.GreaterThan(s.MiddleBand)

	case model.LegPut:
		return s.Fast.LessThan(s.Mid) &&
			s.Fast.LessThan(s.Slow) &&
			low.LessThan(s.Mid) &&
			low.GreaterThan(s.Fast) &&
			last.LessThan(s.Fast) &&
			last.LessThan(s.MiddleBand)
	}
	return false
}
