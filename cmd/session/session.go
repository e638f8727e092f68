// Command session performs the daily login handshake: it exchanges the
// request token from the browser login redirect for an access token and
// stores it encrypted. Run once per account per trading day.
package session

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
	"optionsrunner/src/model"
	"optionsrunner/src/repository"
	"optionsrunner/src/security"
)

type Config struct {
	UserID       string `envconfig:"USER_ID"`
	APIKey       string `envconfig:"API_KEY"`
	APISecret    string `envconfig:"API_SECRET"`
	RequestToken string `envconfig:"REQUEST_TOKEN"`
	Historical   bool   `envconfig:"HISTORICAL" default:"false"`
	KiteBaseURL  string `envconfig:"KITE_BASE_URL" default:"https://api.kite.trade"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}

type Session struct{}

func (s *Session) Start() error {
	config := GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if config.UserID == "" || config.APIKey == "" || config.APISecret == "" || config.RequestToken == "" {
		return errors.New("USER_ID, API_KEY, API_SECRET and REQUEST_TOKEN must all be set")
	}

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	accessToken, err := connectors.ExchangeToken(ctx, config.KiteBaseURL, config.APIKey, config.APISecret, config.RequestToken)
	if err != nil {
		logrus.WithError(err).WithField("user", config.UserID).Error("Token exchange failed")
		return err
	}

	sealed, err := security.EncryptString(accessToken)
	if err != nil {
		logrus.WithError(err).Error("Failed to encrypt access token")
		return err
	}

	if err := repository.NewCredentialRepository().Save(ctx, &model.AccountCredential{
		UserID:               config.UserID,
		APIKey:               config.APIKey,
		AccessTokenEncrypted: sealed,
		Historical:           config.Historical,
	}); err != nil {
		logrus.WithError(err).Error("Failed to store session credential")
		return err
	}

	logrus.WithField("user", config.UserID).Info("Session stored")
	return nil
}
