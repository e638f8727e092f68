package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"optionsrunner/src/connectors"
	"optionsrunner/src/model"
	"optionsrunner/src/signal"
	"optionsrunner/src/tp_sl"
)

// signalLookback is how far back the hourly proxy series reaches.
const signalLookback = 14 * 24 * time.Hour

// EvaluateEntries runs the entry check for every instrument whose hourly gate
// has not yet been taken, and opens positions for legs whose conditions hold.
// Returns an error only when the checkpoint store fails.
func (c *Controller) EvaluateEntries(ctx context.Context) error {
	now := c.now().In(c.loc)
	day := now.Format("2006-01-02")

	for _, inst := range c.Instruments {
		first, err := c.State.TrySetHourGate(ctx, inst.Name, day, now.Hour())
		if err != nil {
			return fmt.Errorf("hour gate checkpoint failed: %w", err)
		}
		if !first {
			continue
		}

		snap, ok := c.signalSnapshot(ctx, inst, now)
		if !ok {
			continue
		}

		for _, leg := range model.Legs {
			if err := c.evaluateLeg(ctx, inst, leg, snap); err != nil {
				return err
			}
		}
	}
	return nil
}

// signalSnapshot fetches the hourly proxy-future series and derives the
// indicator snapshot. Missing data means "no signal this hour": holidays and
// out-of-hours gaps are expected, only the I/O failure itself is recorded.
func (c *Controller) signalSnapshot(ctx context.Context, inst model.Instrument, now time.Time) (signal.Snapshot, bool) {
	future, err := c.Contracts.NearestFuture(ctx, inst.OptionName)
	if err != nil {
		Capture(ctx, c.Exceptions, serviceName, "controller", "NearestFuture", "error", err,
			map[string]interface{}{"instrument": inst.Name})
		return signal.Snapshot{}, false
	}
	if future == nil {
		logger.WithField("instrument", inst.Name).Warn("No future contract for signal series")
		return signal.Snapshot{}, false
	}

	from := time.Date(now.Year(), now.Month(), now.Day(), 9, 15, 0, 0, c.loc).Add(-signalLookback)
	bars, err := c.History.HistoricalBars(ctx, future.Token, from, now, connectors.Interval60Min)
	if err != nil {
		Capture(ctx, c.Exceptions, serviceName, "controller", "HistoricalBars", "error", err,
			map[string]interface{}{"instrument": inst.Name, "token": future.Token})
		return signal.Snapshot{}, false
	}

	// Drop the still-forming candle; the rules run on completed bars only.
	if len(bars) > 0 {
		bars = bars[:len(bars)-1]
	}

	snap, ok := signal.BuildSnapshot(bars)
	if !ok {
		logger.WithFields(map[string]interface{}{
			"instrument": inst.Name,
			"bars":       len(bars),
		}).Info("Insufficient bars for signal, skipping hour")
		return signal.Snapshot{}, false
	}
	return snap, true
}

func (c *Controller) evaluateLeg(ctx context.Context, inst model.Instrument, leg model.OptionLeg, snap signal.Snapshot) error {
	state, err := c.State.LegState(ctx, inst.Name, leg)
	if err != nil {
		return err
	}
	if state.CompletedCycles >= inst.Quota {
		return nil
	}

	open, err := c.Positions.OpenForLeg(ctx, inst.Name, leg)
	if err != nil {
		return err
	}
	if open != nil {
		return nil
	}

	if !snap.Entry(leg) {
		return nil
	}

	contract, err := c.Resolver.Resolve(ctx, inst, leg)
	if err != nil {
		Capture(ctx, c.Exceptions, serviceName, "controller", "Resolve", "error", err,
			map[string]interface{}{"instrument": inst.Name, "leg": leg})
		return nil
	}
	if contract == nil {
		return nil
	}

	return c.enterPosition(ctx, inst, leg, contract, snap)
}

// enterPosition reserves a position id, fans the entry order out across every
// account, and opens the position if at least one fill comes back. A fully
// failed fan-out releases the reserved id and leaves the leg idle.
func (c *Controller) enterPosition(
	ctx context.Context,
	inst model.Instrument,
	leg model.OptionLeg,
	contract *model.Contract,
	snap signal.Snapshot,
) error {

	positionID, err := c.State.NextPositionID(ctx)
	if err != nil {
		return fmt.Errorf("position id reservation failed: %w", err)
	}

	quantity := inst.Lots * contract.LotSize

	logger.WithFields(map[string]interface{}{
		"position_id": positionID,
		"instrument":  inst.Name,
		"leg":         leg,
		"symbol":      contract.Symbol,
		"qty":         quantity,
	}).Info("Entry signal fired, placing orders")

	type placed struct {
		acct      connectors.BrokerAccount
		orderID   string
		clientRef string
	}
	var pending []placed

	for _, acct := range c.Accounts {
		clientRef := uuid.NewString()[:8]
		orderID, err := acct.PlaceOrder(ctx, contract.Symbol, connectors.SideBuy, quantity, clientRef)
		if err != nil {
			Capture(ctx, c.Exceptions, serviceName, "controller", "PlaceOrder", "error", err,
				map[string]interface{}{"user": acct.UserID(), "symbol": contract.Symbol})

			if err := c.Orders.Create(ctx, &model.AccountOrder{
				PositionID:    positionID,
				UserID:        acct.UserID(),
				ClientRef:     clientRef,
				Symbol:        contract.Symbol,
				Side:          connectors.SideBuy,
				Role:          model.OrderRoleEntry,
				Quantity:      quantity,
				Status:        model.OrderStatusFailed,
				StatusMessage: err.Error(),
				PlacedAt:      c.now(),
			}); err != nil {
				return err
			}
			continue
		}
		pending = append(pending, placed{acct: acct, orderID: orderID, clientRef: clientRef})
	}

	if len(pending) > 0 {
		c.sleep(c.entrySettle)
	}

	type fill struct {
		acct    connectors.BrokerAccount
		orderID string
		price   decimal.Decimal
		at      time.Time
	}
	var fills []fill

	for _, p := range pending {
		detail, err := c.orderDetail(ctx, p.acct, p.orderID)
		if err != nil {
			return err
		}

		row := &model.AccountOrder{
			PositionID:    positionID,
			UserID:        p.acct.UserID(),
			BrokerOrderID: p.orderID,
			ClientRef:     p.clientRef,
			Symbol:        contract.Symbol,
			Side:          connectors.SideBuy,
			Role:          model.OrderRoleEntry,
			Quantity:      quantity,
			Status:        detail.Status,
			StatusMessage: detail.StatusMessage,
			FillPrice:     detail.FillPrice,
			PlacedAt:      c.now(),
		}
		if err := c.Orders.Create(ctx, row); err != nil {
			return err
		}

		if detail.Status == model.OrderStatusComplete {
			at := detail.UpdatedAt
			if at.IsZero() {
				at = c.now()
			}
			fills = append(fills, fill{acct: p.acct, orderID: p.orderID, price: detail.FillPrice, at: at})
		}
	}

	if len(fills) == 0 {
		logger.WithField("position_id", positionID).
			Warn("No account filled, releasing position id")
		return c.State.ReleasePositionID(ctx, positionID)
	}

	entryPrice := fills[0].price
	levels := tp_sl.InitialLevels(entryPrice, inst.StopPct, inst.TargetPct, inst.TrailPct)

	state, err := c.State.LegState(ctx, inst.Name, leg)
	if err != nil {
		return err
	}
	state.TrailingStop = levels.Stop
	state.PrevHigh = levels.Watermark
	state.Increment = levels.Increment
	state.Target = levels.Target
	if err := c.State.SaveLegState(ctx, state); err != nil {
		return err
	}

	position := &model.Position{
		ID:           positionID,
		Instrument:   inst.Name,
		Leg:          leg,
		Symbol:       contract.Symbol,
		Token:        contract.Token,
		Quantity:     quantity,
		EntryPrice:   entryPrice,
		LTP:          entryPrice,
		TrailingStop: levels.Stop,
		EnteredAt:    fills[0].at,
		SignalOpen:   snap.Candle.Open,
		SignalHigh:   snap.Candle.High,
		SignalLow:    snap.Candle.Low,
		SignalClose:  snap.Candle.Close,
		Status:       model.PositionStatusOpen,
	}
	if err := c.Positions.Create(ctx, position); err != nil {
		return err
	}

	// Trigger reference for the bracket; the entry fill stands in when the
	// live quote is unavailable.
	reference, err := c.lastPrice(ctx, contract.Token, contract.Symbol)
	if err != nil {
		Capture(ctx, c.Exceptions, serviceName, "controller", "LastPrice", "error", err,
			map[string]interface{}{"symbol": contract.Symbol})
		reference = entryPrice
	}

	for _, f := range fills {
		if err := c.placeBracket(ctx, f.acct, position, levels, reference); err != nil {
			return err
		}
	}
	return nil
}

// placeBracket submits one account's protective OCO order. A bracket that
// fails to go active leaves the position open but under-protected on that
// account; the gap is surfaced through the failed-order and exception rows,
// never retried automatically.
func (c *Controller) placeBracket(
	ctx context.Context,
	acct connectors.BrokerAccount,
	position *model.Position,
	levels tp_sl.Levels,
	reference decimal.Decimal,
) error {

	triggerID, err := acct.PlaceBracket(ctx, position.Symbol, position.Quantity, levels.Stop, levels.Target, reference)
	if err != nil {
		Capture(ctx, c.Exceptions, serviceName, "controller", "PlaceBracket", "error", err,
			map[string]interface{}{"user": acct.UserID(), "symbol": position.Symbol})

		return c.Orders.Create(ctx, &model.AccountOrder{
			PositionID:    position.ID,
			UserID:        acct.UserID(),
			Symbol:        position.Symbol,
			Side:          connectors.SideSell,
			Role:          model.OrderRoleBracket,
			Quantity:      position.Quantity,
			Status:        model.OrderStatusFailed,
			StatusMessage: err.Error(),
			PlacedAt:      c.now(),
		})
	}

	c.sleep(c.bracketSettle)

	status, _, err := c.bracketStatus(ctx, acct, triggerID)
	if err != nil {
		return err
	}

	if status != model.BracketStatusActive && status != model.BracketStatusTriggered {
		Capture(ctx, c.Exceptions, serviceName, "controller", "placeBracket", "warn",
			fmt.Errorf("bracket %s in status %q, position %d unprotected on %s",
				triggerID, status, position.ID, acct.UserID()),
			map[string]interface{}{"user": acct.UserID(), "symbol": position.Symbol})

		return c.Orders.Create(ctx, &model.AccountOrder{
			PositionID:    position.ID,
			UserID:        acct.UserID(),
			BrokerOrderID: triggerID,
			Symbol:        position.Symbol,
			Side:          connectors.SideSell,
			Role:          model.OrderRoleBracket,
			Quantity:      position.Quantity,
			Status:        status,
			StatusMessage: "bracket not active after placement",
			PlacedAt:      c.now(),
		})
	}

	return c.Brackets.Create(ctx, &model.BracketOrder{
		PositionID:  position.ID,
		UserID:      acct.UserID(),
		TriggerID:   triggerID,
		Symbol:      position.Symbol,
		Quantity:    position.Quantity,
		StopPrice:   levels.Stop,
		TargetPrice: levels.Target,
		Status:      status,
	})
}

// orderDetail resolves one order's status from the account's order book,
// retrying the book query indefinitely on transient failures.
func (c *Controller) orderDetail(ctx context.Context, acct connectors.BrokerAccount, orderID string) (connectors.OrderDetail, error) {
	book, err := c.orderBook(ctx, acct)
	if err != nil {
		return connectors.OrderDetail{}, err
	}

	for _, detail := range book {
		if detail.OrderID == orderID {
			return detail, nil
		}
	}
	return connectors.OrderDetail{
		OrderID:       orderID,
		Status:        model.OrderStatusFailed,
		StatusMessage: "order not found in order book",
	}, nil
}
