// Package strike resolves an instrument and leg to the tradable option
// contract nearest the money on the nearest expiry.
package strike

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"optionsrunner/src/connectors"
	"optionsrunner/src/model"
)

// contractSource is the slice of the contract repository the resolver needs.
type contractSource interface {
	NearestExpiry(ctx context.Context, name, instrumentType string) (time.Time, error)
	FindOption(ctx context.Context, name string, strike decimal.Decimal, expiry time.Time, leg model.OptionLeg) (*model.Contract, error)
}

type quoteSource interface {
	LastPrice(ctx context.Context, exchange, symbol string) (decimal.Decimal, error)
}

type Resolver struct {
	contracts contractSource
	quotes    quoteSource
}

func NewResolver(contracts contractSource, quotes quoteSource) *Resolver {
	return &Resolver{contracts: contracts, quotes: quotes}
}

// ATMStrike rounds the spot price up to the nearest strike-interval boundary.
func ATMStrike(spot decimal.Decimal, interval int64) decimal.Decimal {
	step := decimal.NewFromInt(interval)
	return spot.Div(step).Ceil().Mul(step)
}

// Resolve computes the leg's desired strike from the live spot price and
// looks up the matching nearest-expiry contract. Returns (nil, nil) when no
// such contract is listed; the caller skips this opportunity, it is not an
// error. A failed spot lookup propagates as a transient error.
func (r *Resolver) Resolve(
	ctx context.Context,
	inst model.Instrument,
	leg model.OptionLeg,
) (*model.Contract, error) {

	expiry, err := r.contracts.NearestExpiry(ctx, inst.OptionName, string(leg))
	if err != nil {
		return nil, err
	}
	if expiry.IsZero() {
		logger.WithFields(map[string]interface{}{
			"instrument": inst.Name,
			"leg":        leg,
		}).Warn("No listed expiry for leg, skipping")
		return nil, nil
	}

	spot, err := r.quotes.LastPrice(ctx, connectors.ExchangeNSE, inst.Name)
	if err != nil {
		return nil, err
	}

	strikePrice := ATMStrike(spot, inst.StrikeInterval).
		Add(decimal.NewFromInt(inst.StrikeOffset(leg)))

	contract, err := r.contracts.FindOption(ctx, inst.OptionName, strikePrice, expiry, leg)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		logger.WithFields(map[string]interface{}{
			"instrument": inst.Name,
			"leg":        leg,
			"strike":     strikePrice,
			"expiry":     expiry.Format("2006-01-02"),
		}).Warn("No tradable contract at strike, skipping")
		return nil, nil
	}

	return contract, nil
}
