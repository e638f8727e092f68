// Package tp_sl computes bracket levels and the trailing-stop ratchet.
// Pure decimal arithmetic, no I/O.
package tp_sl

import "github.com/shopspring/decimal"

// Levels is the protective state seeded from the entry fill price.
type Levels struct {
	Stop      decimal.Decimal // hard stop, entry * (1 - stopPct)
	Target    decimal.Decimal // entry * (1 + targetPct)
	Increment decimal.Decimal // ratchet step, entry * trailPct
	Watermark decimal.Decimal // running-high reference, starts at entry
}

// InitialLevels derives the bracket levels for a fresh long position.
func InitialLevels(entry, stopPct, targetPct, trailPct decimal.Decimal) Levels {
	return Levels{
		Stop:      entry.Sub(stopPct.Mul(entry)),
		Target:    entry.Add(targetPct.Mul(entry)),
		Increment: trailPct.Mul(entry),
		Watermark: entry,
	}
}

// Ratchet advances the stop and watermark one full increment at a time while
// the observed trade high is at least one increment beyond the watermark.
// The stop only ever moves up, and moves exactly as many steps as the high
// dictates, so a fast excursion can consume several increments in one tick.
func Ratchet(stop, watermark, increment, tradeHigh decimal.Decimal) (newStop, newWatermark decimal.Decimal, steps int) {
	newStop, newWatermark = stop, watermark
	if increment.Sign() <= 0 {
		return newStop, newWatermark, 0
	}

	for tradeHigh.Sub(newWatermark).GreaterThanOrEqual(increment) {
		newWatermark = newWatermark.Add(increment)
		newStop = newStop.Add(increment)
		steps++
	}
	return newStop, newWatermark, steps
}
