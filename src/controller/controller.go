// Package controller implements the position and order lifecycle state
// machine: per-leg signal gating, multi-account entry fan-out, trailing-stop
// ratcheting and bracket reconciliation. It is the only writer of Position,
// AccountOrder and BracketOrder state.
package controller

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"optionsrunner/src/connectors"
	"optionsrunner/src/model"
)

const (
	serviceName = "options_runner"

	defaultEntrySettle   = 5 * time.Second
	defaultBracketSettle = 2 * time.Second
	defaultRetryDelay    = 5 * time.Second
)

type positionRepository interface {
	Create(ctx context.Context, position *model.Position) error
	FindByID(ctx context.Context, positionID uint) (*model.Position, error)
	FindOpen(ctx context.Context) ([]model.Position, error)
	OpenForLeg(ctx context.Context, instrument string, leg model.OptionLeg) (*model.Position, error)
	UpdateLTP(ctx context.Context, positionID uint, ltp decimal.Decimal) error
	UpdateTrailingStop(ctx context.Context, positionID uint, stop decimal.Decimal) error
	Close(ctx context.Context, positionID uint, closedAt time.Time) error
}

type orderRepository interface {
	Create(ctx context.Context, order *model.AccountOrder) error
	EntryForPosition(ctx context.Context, positionID uint, userID string) (*model.AccountOrder, error)
}

type bracketRepository interface {
	Create(ctx context.Context, bracket *model.BracketOrder) error
	FindAll(ctx context.Context) ([]model.BracketOrder, error)
	FindByPosition(ctx context.Context, positionID uint) ([]model.BracketOrder, error)
	CountByPosition(ctx context.Context, positionID uint) (int64, error)
	ReplaceTrigger(ctx context.Context, bracketID uint, newTriggerID string, stop, target decimal.Decimal) error
	Delete(ctx context.Context, bracketID uint) error
}

type tradeRepository interface {
	Create(ctx context.Context, trade *model.TradeRecord) error
}

type stateRepository interface {
	LegState(ctx context.Context, instrument string, leg model.OptionLeg) (*model.LegState, error)
	SaveLegState(ctx context.Context, state *model.LegState) error
	TrySetHourGate(ctx context.Context, instrument, day string, hour int) (bool, error)
	NextPositionID(ctx context.Context) (uint, error)
	ReleasePositionID(ctx context.Context, id uint) error
}

type exceptionRepository interface {
	Create(ctx context.Context, exc *model.Exception) error
}

type contractSource interface {
	NearestFuture(ctx context.Context, name string) (*model.Contract, error)
}

type symbolResolver interface {
	Resolve(ctx context.Context, inst model.Instrument, leg model.OptionLeg) (*model.Contract, error)
}

type quoteSource interface {
	LastPrice(ctx context.Context, exchange, symbol string) (decimal.Decimal, error)
}

// ltpCache is the optional websocket tick cache consulted before the REST
// quote endpoint.
type ltpCache interface {
	LastPrice(token int64) (decimal.Decimal, bool)
}

// Deps carries every collaborator the state machine talks to.
type Deps struct {
	Instruments []model.Instrument
	Accounts    []connectors.BrokerAccount
	History     connectors.MarketData
	Quotes      quoteSource
	Ticker      ltpCache
	Resolver    symbolResolver

	Positions  positionRepository
	Orders     orderRepository
	Brackets   bracketRepository
	Trades     tradeRepository
	State      stateRepository
	Exceptions exceptionRepository
	Contracts  contractSource
}

// Controller runs the lifecycle state machine. One sequential caller at a
// time; nothing here is safe for concurrent use.
type Controller struct {
	Deps

	loc   *time.Location
	now   func() time.Time
	sleep func(time.Duration)

	entrySettle   time.Duration
	bracketSettle time.Duration
	retryDelay    time.Duration
}

func New(deps Deps, loc *time.Location) *Controller {
	if loc == nil {
		loc = time.UTC
	}

	return &Controller{
		Deps:          deps,
		loc:           loc,
		now:           time.Now,
		sleep:         time.Sleep,
		entrySettle:   defaultEntrySettle,
		bracketSettle: defaultBracketSettle,
		retryDelay:    defaultRetryDelay,
	}
}

// Tick runs one full pass of the loop body: entry evaluation, trailing
// updates and bracket reconciliation. Only a checkpoint-store failure is
// returned; broker failures are captured and the pass continues.
func (c *Controller) Tick(ctx context.Context) error {
	if err := c.EvaluateEntries(ctx); err != nil {
		return err
	}
	if err := c.UpdateOpenPositions(ctx); err != nil {
		return err
	}
	return c.ReconcileBrackets(ctx)
}

// Done reports whether every leg of every instrument has exhausted its quota.
func (c *Controller) Done(ctx context.Context) (bool, error) {
	for _, inst := range c.Instruments {
		for _, leg := range model.Legs {
			state, err := c.State.LegState(ctx, inst.Name, leg)
			if err != nil {
				return false, err
			}
			if state.CompletedCycles < inst.Quota {
				return false, nil
			}
		}
	}
	return true, nil
}

func (c *Controller) account(userID string) connectors.BrokerAccount {
	for _, acct := range c.Accounts {
		if acct.UserID() == userID {
			return acct
		}
	}
	return nil
}

// lastPrice prefers the websocket tick cache and falls back to the REST
// quote. The error, when any, is transient.
func (c *Controller) lastPrice(ctx context.Context, token int64, symbol string) (decimal.Decimal, error) {
	if c.Ticker != nil {
		if price, ok := c.Ticker.LastPrice(token); ok {
			return price, nil
		}
	}
	return c.Quotes.LastPrice(ctx, connectors.ExchangeNFO, symbol)
}

// orderBook polls the account's order list, retrying indefinitely with a
// fixed delay on transient failures. An unresolved status query must never be
// allowed to desynchronize local state from the broker ledger, so this loop
// does not give up; every failed attempt lands in the exception log first.
func (c *Controller) orderBook(ctx context.Context, acct connectors.BrokerAccount) ([]connectors.OrderDetail, error) {
	for {
		orders, err := acct.Orders(ctx)
		if err == nil {
			return orders, nil
		}
		if !connectors.IsTransient(err) {
			return nil, err
		}

		Capture(ctx, c.Exceptions, serviceName, "controller", "orderBook", "error", err,
			map[string]interface{}{"user": acct.UserID()})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		c.sleep(c.retryDelay)
	}
}

// bracketStatus polls one trigger's status with the same never-give-up retry.
func (c *Controller) bracketStatus(ctx context.Context, acct connectors.BrokerAccount, triggerID string) (string, time.Time, error) {
	for {
		status, updated, err := acct.BracketStatus(ctx, triggerID)
		if err == nil {
			return status, updated, nil
		}
		if !connectors.IsTransient(err) {
			return "", time.Time{}, err
		}

		Capture(ctx, c.Exceptions, serviceName, "controller", "bracketStatus", "error", err,
			map[string]interface{}{"user": acct.UserID(), "trigger_id": triggerID})

		select {
		case <-ctx.Done():
			return "", time.Time{}, ctx.Err()
		default:
		}
		c.sleep(c.retryDelay)
	}
}
