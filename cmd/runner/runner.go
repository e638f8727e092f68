package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"optionsrunner/src/database"
	"optionsrunner/src/executors"
	"optionsrunner/src/server"
)

type Runner struct{}

func (r *Runner) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	// Initialize the checkpoint database
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	go server.StartServer(ctx, server.GetConfig().Port)

	if err := executors.StartLoop(ctx); err != nil {
		logrus.WithError(err).Error("Failed to run the day loop")
		return err
	}

	return nil
}
