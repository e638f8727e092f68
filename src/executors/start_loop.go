package executors

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"optionsrunner/src/connectors"
	"optionsrunner/src/controller"
	"optionsrunner/src/repository"
	"optionsrunner/src/risk"
	"optionsrunner/src/security"
	"optionsrunner/src/strike"
)

// StartLoop runs the strategy day loop until the entry window closes, every
// leg quota is exhausted or the context is cancelled.
func StartLoop(ctx context.Context) error {
	config := GetConfig()

	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		logger.WithError(err).WithField("timezone", config.Timezone).Error("Failed to load market timezone")
		return err
	}

	ticker := time.NewTicker(config.LoopPeriod) // Set up a ticker that fires periodically
	defer ticker.Stop()

	ctrl, ltp, err := buildController(ctx, config, loc)
	if err != nil {
		return err
	}

	if ltp != nil {
		positions, err := repository.NewPositionRepository().FindOpen(ctx)
		if err != nil {
			return err
		}
		tokens := make([]int64, 0, len(positions))
		for _, p := range positions {
			tokens = append(tokens, p.Token)
		}
		if len(tokens) > 0 {
			go ltp.Run(ctx, tokens)
		}
	}

	window := risk.DefaultWindowConfig()

	for {
		select {
		case <-ctx.Done():
			logger.Info("loop stopped")
			return nil

		case <-ticker.C:
			now := time.Now().In(loc)

			if risk.PastCutoff(now, window) {
				logger.Warn("entry window over, stopping for the day")
				return nil
			}
			if !risk.CanEnter(now, window) {
				logger.Info("market closed, waiting for the session")
				continue
			}

			logger.Info("loop tick")
			if err := ctrl.Tick(ctx); err != nil {
				logger.WithError(err).Error("Tick failed, will exit here")
				return err
			}

			done, err := ctrl.Done(ctx)
			if err != nil {
				return err
			}
			if done {
				logger.Info("all leg quotas exhausted, stopping")
				return nil
			}
		}
	}
}

// buildController wires the broker accounts and repositories into the
// lifecycle state machine. Exactly one account, flagged Historical, serves
// market data and quotes for all of them.
func buildController(ctx context.Context, config Config, loc *time.Location) (*controller.Controller, *connectors.Ticker, error) {
	creds, err := repository.NewCredentialRepository().All(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load broker credentials")
		return nil, nil, err
	}
	if len(creds) == 0 {
		return nil, nil, errors.New("no broker credentials configured, run the session command first")
	}

	var (
		accounts []connectors.BrokerAccount
		dataAcct *connectors.Client
		ltp      *connectors.Ticker
	)

	for _, cred := range creds {
		accessToken, err := security.DecryptString(cred.AccessTokenEncrypted)
		if err != nil {
			logger.WithError(err).WithField("user", cred.UserID).Error("Failed to decrypt access token")
			return nil, nil, err
		}

		client := connectors.NewClient(cred.UserID, cred.APIKey, accessToken, config.KiteBaseURL)
		accounts = append(accounts, client)

		if dataAcct == nil && cred.Historical {
			dataAcct = client
			if config.EnableTicker {
				ltp = connectors.NewTicker(config.TickerURL, cred.APIKey, accessToken)
			}
		}
	}

	if dataAcct == nil {
		return nil, nil, errors.New("no credential flagged for historical data access")
	}

	instruments, err := config.Instruments()
	if err != nil {
		logger.WithError(err).Error("Bad instrument configuration")
		return nil, nil, err
	}

	contractRepo := repository.NewContractRepository()

	deps := controller.Deps{
		Instruments: instruments,
		Accounts:    accounts,
		History:     dataAcct,
		Quotes:      dataAcct,
		Resolver:    strike.NewResolver(contractRepo, dataAcct),

		Positions:  repository.NewPositionRepository(),
		Orders:     repository.NewOrderRepository(),
		Brackets:   repository.NewBracketRepository(),
		Trades:     repository.NewTradeRepository(),
		State:      repository.NewStateRepository(),
		Exceptions: repository.NewExceptionRepository(),
		Contracts:  contractRepo,
	}
	if ltp != nil {
		deps.Ticker = ltp
	}

	return controller.New(deps, loc), ltp, nil
}
