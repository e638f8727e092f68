package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"optionsrunner/src/model"
)

type Config struct {
	LoopPeriod   time.Duration `envconfig:"LOOP_PERIOD" default:"30s"`
	Timezone     string        `envconfig:"MARKET_TIMEZONE" default:"Asia/Kolkata"`
	KiteBaseURL  string        `envconfig:"KITE_BASE_URL" default:"https://api.kite.trade"`
	TickerURL    string        `envconfig:"KITE_TICKER_URL" default:"wss://ws.kite.trade"`
	EnableTicker bool          `envconfig:"ENABLE_TICKER" default:"true"`

	InstrumentNames []string        `envconfig:"INSTRUMENT_NAMES" default:"NIFTY 50,NIFTY BANK"`
	DesiredStrike   int             `envconfig:"DESIRED_STRIKE" default:"2"`
	TrailPct        decimal.Decimal `envconfig:"TRAIL_PCT" default:"0.18"`
	StopPct         decimal.Decimal `envconfig:"STOP_PCT" default:"0.27"`
	TargetPct       decimal.Decimal `envconfig:"TARGET_PCT" default:"5.0"`
	Quota           int             `envconfig:"TRADE_QUOTA" default:"3"`
	Lots            int             `envconfig:"LOTS" default:"1"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// indexParams holds the option chain prefix and strike step per index. The
// trailing knobs are shared across indices.
var indexParams = map[string]struct {
	OptionName     string
	StrikeInterval int64
}{
	"NIFTY 50":   {"NIFTY", 50},
	"NIFTY BANK": {"BANKNIFTY", 100},
}

// Instruments assembles the static strategy instruments from the environment,
// one per configured index name.
func (c Config) Instruments() ([]model.Instrument, error) {
	instruments := make([]model.Instrument, 0, len(c.InstrumentNames))
	for _, name := range c.InstrumentNames {
		params, ok := indexParams[name]
		if !ok {
			return nil, fmt.Errorf("unknown instrument %q", name)
		}
		instruments = append(instruments, model.Instrument{
			Name:           name,
			OptionName:     params.OptionName,
			StrikeInterval: params.StrikeInterval,
			DesiredStrike:  c.DesiredStrike,
			TrailPct:       c.TrailPct,
			StopPct:        c.StopPct,
			TargetPct:      c.TargetPct,
			Quota:          c.Quota,
			Lots:           c.Lots,
		})
	}
	return instruments, nil
}
