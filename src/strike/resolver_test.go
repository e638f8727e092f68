package strike_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"optionsrunner/src/model"
	"optionsrunner/src/strike"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeContracts struct {
	expiry    time.Time
	contracts map[string]*model.Contract // key: strike|leg

	gotStrike decimal.Decimal
	gotLeg    model.OptionLeg
}

func (f *fakeContracts) NearestExpiry(_ context.Context, _, _ string) (time.Time, error) {
	return f.expiry, nil
}

func (f *fakeContracts) FindOption(_ context.Context, _ string, strikePrice decimal.Decimal, _ time.Time, leg model.OptionLeg) (*model.Contract, error) {
	f.gotStrike = strikePrice
	f.gotLeg = leg
	return f.contracts[strikePrice.String()+"|"+string(leg)], nil
}

type fakeQuotes struct {
	spot decimal.Decimal
	err  error
}

func (f *fakeQuotes) LastPrice(_ context.Context, _, _ string) (decimal.Decimal, error) {
	return f.spot, f.err
}

func testInstrument() model.Instrument {
	return model.Instrument{
		Name:           "NIFTY 50",
		OptionName:     "NIFTY",
		StrikeInterval: 50,
		DesiredStrike:  2,
	}
}

func TestATMStrikeRoundsUp(t *testing.T) {
	if got := strike.ATMStrike(d("22436"), 50); !got.Equal(d("22450")) {
		t.Fatalf("expected 22450, got %s", got)
	}
}

func TestATMStrikeExactBoundary(t *testing.T) {
	if got := strike.ATMStrike(d("22450"), 50); !got.Equal(d("22450")) {
		t.Fatalf("expected exact multiple to stay at 22450, got %s", got)
	}
}

func TestResolveCallBuysBelowATM(t *testing.T) {
	expiry := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	want := &model.Contract{Symbol: "NIFTY25MAR22350CE", Token: 123}

	contracts := &fakeContracts{
		expiry: expiry,
		contracts: map[string]*model.Contract{
			"22350|CE": want,
		},
	}
	quotes := &fakeQuotes{spot: d("22436")}

	r := strike.NewResolver(contracts, quotes)
	got, err := r.Resolve(context.Background(), testInstrument(), model.LegCall)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Symbol != want.Symbol {
		t.Fatalf("expected %s, got %+v", want.Symbol, got)
	}
	// ATM 22450 minus 2 intervals of 50
	if !contracts.gotStrike.Equal(d("22350")) {
		t.Fatalf("expected strike 22350, got %s", contracts.gotStrike)
	}
}

func TestResolvePutBuysAboveATM(t *testing.T) {
	expiry := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	want := &model.Contract{Symbol: "NIFTY25MAR22550PE", Token: 456}

	contracts := &fakeContracts{
		expiry: expiry,
		contracts: map[string]*model.Contract{
			"22550|PE": want,
		},
	}
	quotes := &fakeQuotes{spot: d("22436")}

	r := strike.NewResolver(contracts, quotes)
	got, err := r.Resolve(context.Background(), testInstrument(), model.LegPut)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Symbol != want.Symbol {
		t.Fatalf("expected %s, got %+v", want.Symbol, got)
	}
}

func TestResolveNoExpiryIsNotAnError(t *testing.T) {
	contracts := &fakeContracts{}
	quotes := &fakeQuotes{spot: d("22436")}

	r := strike.NewResolver(contracts, quotes)
	got, err := r.Resolve(context.Background(), testInstrument(), model.LegCall)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil contract, got %+v", got)
	}
}

func TestResolveMissingStrikeIsNotAnError(t *testing.T) {
	contracts := &fakeContracts{
		expiry:    time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
		contracts: map[string]*model.Contract{},
	}
	quotes := &fakeQuotes{spot: d("22436")}

	r := strike.NewResolver(contracts, quotes)
	got, err := r.Resolve(context.Background(), testInstrument(), model.LegCall)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil contract, got %+v", got)
	}
}

func TestResolveSpotFailurePropagates(t *testing.T) {
	contracts := &fakeContracts{expiry: time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)}
	quotes := &fakeQuotes{err: errors.New("quote service down")}

	r := strike.NewResolver(contracts, quotes)
	if _, err := r.Resolve(context.Background(), testInstrument(), model.LegCall); err == nil {
		t.Fatalf("expected spot failure to propagate")
	}
}
