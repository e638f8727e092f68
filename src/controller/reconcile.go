package controller

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"optionsrunner/src/connectors"
	"optionsrunner/src/model"
)

// ReconcileBrackets walks every live bracket, detects the ones the broker has
// executed, records the finished trade and closes the position once its last
// bracket is gone. Returns an error only when the checkpoint store fails.
func (c *Controller) ReconcileBrackets(ctx context.Context) error {
	brackets, err := c.Brackets.FindAll(ctx)
	if err != nil {
		return err
	}
	if len(brackets) == 0 {
		return nil
	}

	// Order books are fetched once per account and shared across brackets.
	books := map[string][]connectors.OrderDetail{}
	touched := map[uint]bool{}

	for i := range brackets {
		bracket := &brackets[i]

		acct := c.account(bracket.UserID)
		if acct == nil {
			logger.WithField("user", bracket.UserID).
				Warn("No account configured for bracket, skipping")
			continue
		}

		status, _, err := c.bracketStatus(ctx, acct, bracket.TriggerID)
		if err != nil {
			Capture(ctx, c.Exceptions, serviceName, "controller", "BracketStatus", "error", err,
				map[string]interface{}{"user": bracket.UserID, "trigger_id": bracket.TriggerID})
			continue
		}
		if status == model.BracketStatusActive {
			continue
		}

		book, ok := books[bracket.UserID]
		if !ok {
			book, err = c.orderBook(ctx, acct)
			if err != nil {
				Capture(ctx, c.Exceptions, serviceName, "controller", "Orders", "error", err,
					map[string]interface{}{"user": bracket.UserID})
				continue
			}
			books[bracket.UserID] = book
		}

		exit := latestSellFill(book, bracket.Symbol)
		if exit == nil && !bracketDead(status) {
			// The trigger fired but the sell leg has not completed yet.
			// The bracket row stays until a terminal fill shows up.
			logger.WithFields(map[string]interface{}{
				"user":       bracket.UserID,
				"trigger_id": bracket.TriggerID,
				"status":     status,
			}).Info("Bracket fired, awaiting sell fill")
			continue
		}
		if err := c.settleBracket(ctx, bracket, exit); err != nil {
			return err
		}
		touched[bracket.PositionID] = true
	}

	for positionID := range touched {
		if err := c.closeIfSettled(ctx, positionID); err != nil {
			return err
		}
	}
	return nil
}

// bracketDead reports whether the broker will never execute this trigger.
// Only a dead trigger may be settled without an observed sell fill.
func bracketDead(status string) bool {
	switch status {
	case model.BracketStatusCancelled,
		model.BracketStatusDeleted,
		model.BracketStatusExpired,
		model.BracketStatusRejected:
		return true
	}
	return false
}

// latestSellFill picks the most recent completed sell on the symbol, which is
// whichever bracket leg the broker executed.
func latestSellFill(book []connectors.OrderDetail, symbol string) *connectors.OrderDetail {
	var latest *connectors.OrderDetail
	for i := range book {
		detail := &book[i]
		if detail.Symbol != symbol ||
			detail.Side != connectors.SideSell ||
			detail.Status != model.OrderStatusComplete {
			continue
		}
		if latest == nil || detail.UpdatedAt.After(latest.UpdatedAt) {
			latest = detail
		}
	}
	return latest
}

// settleBracket records the finished round trip for one account and removes
// the spent bracket row. A dead trigger with no fill settles at the stop
// level so the cycle can still close.
func (c *Controller) settleBracket(ctx context.Context, bracket *model.BracketOrder, exit *connectors.OrderDetail) error {
	position, err := c.Positions.FindByID(ctx, bracket.PositionID)
	if err != nil {
		return err
	}

	entry, err := c.Orders.EntryForPosition(ctx, bracket.PositionID, bracket.UserID)
	if err != nil {
		return err
	}

	trade := &model.TradeRecord{
		PositionID: bracket.PositionID,
		UserID:     bracket.UserID,
		Symbol:     bracket.Symbol,
		Quantity:   bracket.Quantity,
		ExitType:   model.ExitTypeTrailingStop,
	}
	if position != nil {
		trade.Instrument = position.Instrument
		trade.Leg = position.Leg
	}
	if entry != nil {
		trade.EntryOrderID = entry.BrokerOrderID
		trade.EntryPrice = entry.FillPrice
		trade.EnteredAt = entry.PlacedAt
	}
	if exit != nil {
		trade.ExitOrderID = exit.OrderID
		trade.ExitPrice = exit.FillPrice
		trade.ExitedAt = exit.UpdatedAt
	} else {
		trade.ExitPrice = bracket.StopPrice
		trade.ExitedAt = c.now()
	}

	if err := c.Trades.Create(ctx, trade); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"position_id": bracket.PositionID,
		"user":        bracket.UserID,
		"symbol":      bracket.Symbol,
		"exit_price":  trade.ExitPrice,
	}).Info("Bracket executed, trade recorded")

	return c.Brackets.Delete(ctx, bracket.ID)
}

// closeIfSettled closes the position once no bracket rows remain and resets
// the leg's trailing state for the next cycle.
func (c *Controller) closeIfSettled(ctx context.Context, positionID uint) error {
	remaining, err := c.Brackets.CountByPosition(ctx, positionID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	position, err := c.Positions.FindByID(ctx, positionID)
	if err != nil {
		return err
	}
	if position == nil || position.Status == model.PositionStatusClosed {
		return nil
	}

	if err := c.Positions.Close(ctx, positionID, c.now()); err != nil {
		return err
	}

	state, err := c.State.LegState(ctx, position.Instrument, position.Leg)
	if err != nil {
		return err
	}
	state.TrailingStop = decimal.Zero
	state.PrevHigh = decimal.Zero
	state.Increment = decimal.Zero
	state.Target = decimal.Zero
	state.CompletedCycles++
	if err := c.State.SaveLegState(ctx, state); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"position_id": positionID,
		"instrument":  position.Instrument,
		"leg":         position.Leg,
		"cycles":      state.CompletedCycles,
	}).Info("Position closed")
	return nil
}
