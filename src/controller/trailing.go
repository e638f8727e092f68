package controller

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"optionsrunner/src/connectors"
	"optionsrunner/src/model"
	"optionsrunner/src/tp_sl"
)

// UpdateOpenPositions refreshes the last traded price of every open position
// and ratchets its trailing stop off the trade high since entry. Returns an
// error only when the checkpoint store fails.
func (c *Controller) UpdateOpenPositions(ctx context.Context) error {
	positions, err := c.Positions.FindOpen(ctx)
	if err != nil {
		return err
	}

	for i := range positions {
		if err := c.updatePosition(ctx, &positions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) updatePosition(ctx context.Context, position *model.Position) error {
	ltp := position.LTP
	if price, err := c.lastPrice(ctx, position.Token, position.Symbol); err != nil {
		Capture(ctx, c.Exceptions, serviceName, "controller", "LastPrice", "error", err,
			map[string]interface{}{"symbol": position.Symbol})
	} else {
		ltp = price
	}

	if !ltp.Equal(position.LTP) {
		if err := c.Positions.UpdateLTP(ctx, position.ID, ltp); err != nil {
			return err
		}
		position.LTP = ltp
	}

	high, ok := c.tradeHigh(ctx, position, ltp)
	if !ok {
		return nil
	}

	state, err := c.State.LegState(ctx, position.Instrument, position.Leg)
	if err != nil {
		return err
	}
	if state.Increment.IsZero() {
		return nil
	}

	newStop, newWatermark, steps := tp_sl.Ratchet(state.TrailingStop, state.PrevHigh, state.Increment, high)
	if steps == 0 {
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"position_id": position.ID,
		"symbol":      position.Symbol,
		"trade_high":  high,
		"old_stop":    state.TrailingStop,
		"new_stop":    newStop,
		"steps":       steps,
	}).Info("Trailing stop ratcheted")

	state.TrailingStop = newStop
	state.PrevHigh = newWatermark
	if err := c.State.SaveLegState(ctx, state); err != nil {
		return err
	}
	if err := c.Positions.UpdateTrailingStop(ctx, position.ID, newStop); err != nil {
		return err
	}

	return c.propagateStop(ctx, position, newStop, state.Target, ltp)
}

// tradeHigh is the highest minute-bar high since entry, floored at the live
// quote. A failed bar fetch skips the ratchet for this tick rather than
// trailing off the quote alone.
func (c *Controller) tradeHigh(ctx context.Context, position *model.Position, ltp decimal.Decimal) (decimal.Decimal, bool) {
	bars, err := c.History.HistoricalBars(ctx, position.Token, position.EnteredAt, c.now(), connectors.IntervalMinute)
	if err != nil {
		Capture(ctx, c.Exceptions, serviceName, "controller", "HistoricalBars", "error", err,
			map[string]interface{}{"symbol": position.Symbol, "token": position.Token})
		return decimal.Zero, false
	}

	high := ltp
	for _, bar := range bars {
		if bar.High.GreaterThan(high) {
			high = bar.High
		}
	}

	if high.IsZero() {
		return decimal.Zero, false
	}
	return high, true
}

// propagateStop rewrites every account's bracket with the ratcheted stop. A
// rejected rewrite leaves that account's trigger at its old level; the next
// ratchet retries it.
func (c *Controller) propagateStop(
	ctx context.Context,
	position *model.Position,
	stop, target, ltp decimal.Decimal,
) error {
	brackets, err := c.Brackets.FindByPosition(ctx, position.ID)
	if err != nil {
		return err
	}

	for _, bracket := range brackets {
		acct := c.account(bracket.UserID)
		if acct == nil {
			logger.WithFields(map[string]interface{}{
				"user":       bracket.UserID,
				"trigger_id": bracket.TriggerID,
			}).Warn("No account configured for bracket, skipping rewrite")
			continue
		}

		newTriggerID, err := acct.ModifyBracket(ctx, bracket.TriggerID, bracket.Symbol, bracket.Quantity, stop, target, ltp)
		if err != nil {
			Capture(ctx, c.Exceptions, serviceName, "controller", "ModifyBracket", "error", err,
				map[string]interface{}{"user": bracket.UserID, "trigger_id": bracket.TriggerID})
			continue
		}

		if err := c.Brackets.ReplaceTrigger(ctx, bracket.ID, newTriggerID, stop, target); err != nil {
			return err
		}
	}
	return nil
}
