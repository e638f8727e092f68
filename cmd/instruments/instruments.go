// Command instruments refreshes the local contract table from the broker
// instrument dump. Meant to run once before market open; strike resolution
// reads only the local table during the trading day.
package instruments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"optionsrunner/src/connectors"
	"optionsrunner/src/database"
	"optionsrunner/src/repository"
	"optionsrunner/src/security"
)

type Config struct {
	Exchanges   []string `envconfig:"DUMP_EXCHANGES" default:"NFO,NSE"`
	KiteBaseURL string   `envconfig:"KITE_BASE_URL" default:"https://api.kite.trade"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}

type Instruments struct{}

func (i *Instruments) Start() error {
	config := GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	client, err := dataClient(ctx, config.KiteBaseURL)
	if err != nil {
		return err
	}

	contractRepo := repository.NewContractRepository()

	for _, exchange := range config.Exchanges {
		contracts, err := client.Instruments(ctx, exchange)
		if err != nil {
			logrus.WithError(err).WithField("exchange", exchange).Error("Failed to fetch instrument dump")
			return err
		}

		if err := contractRepo.UpsertAll(ctx, contracts); err != nil {
			logrus.WithError(err).WithField("exchange", exchange).Error("Failed to store instrument dump")
			return err
		}

		logrus.WithFields(logrus.Fields{
			"exchange":  exchange,
			"contracts": len(contracts),
		}).Info("Instrument dump synced")
	}

	return nil
}

// dataClient builds a broker client from the stored credentials, preferring
// the account flagged for historical data.
func dataClient(ctx context.Context, baseURL string) (*connectors.Client, error) {
	creds, err := repository.NewCredentialRepository().All(ctx)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, errors.New("no broker credentials configured, run the session command first")
	}

	cred := creds[0]
	for _, c := range creds {
		if c.Historical {
			cred = c
			break
		}
	}

	accessToken, err := security.DecryptString(cred.AccessTokenEncrypted)
	if err != nil {
		logrus.WithError(err).WithField("user", cred.UserID).Error("Failed to decrypt access token")
		return nil, err
	}

	return connectors.NewClient(cred.UserID, cred.APIKey, accessToken, baseURL), nil
}
