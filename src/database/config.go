package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"debug"` // debug, info, warn, error
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // json or text

	// DatabaseURL selects the checkpoint store. A plain file path opens an
	// embedded sqlite database; a postgres:// DSN connects to PostgreSQL.
	DatabaseURL  string `envconfig:"DATABASE_URL" default:"data/runner.db"`
	GormLogLevel int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
