package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"optionsrunner/cmd/instruments"
	"optionsrunner/cmd/runner"
	"optionsrunner/cmd/session"
)

var Version string

func main() {
	setupLogging()

	app := cli.NewApp()
	app.Name = "Options Runner CMD"
	app.Usage = "The options runner command line interface"

	app.Commands = []cli.Command{
		runnerCMD,
		instrumentsCMD,
		sessionCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging() {
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}
	if os.Getenv("LOG_FORMAT") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

var (
	runnerCMD = cli.Command{
		Name:        "runner",
		Usage:       "run the strategy day loop",
		Action:      runnerAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the intraday strategy loop CMD`,
	}
	instrumentsCMD = cli.Command{
		Name:        "instruments",
		Usage:       "sync the broker instrument dump",
		Action:      instrumentsAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Sync the instrument dump CMD`,
	}
	sessionCMD = cli.Command{
		Name:        "session",
		Usage:       "exchange a request token for a daily session",
		Action:      sessionAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Exchange the login request token CMD`,
	}
)

func runnerAction(_ *cli.Context) error {

	logrus.Info("Starting runner CMD")
	logrus.WithField("cmd", "runner")

	r := &runner.Runner{}
	err := r.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func instrumentsAction(_ *cli.Context) error {

	logrus.Info("Starting instruments CMD")
	logrus.WithField("cmd", "instruments")

	i := &instruments.Instruments{}
	err := i.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func sessionAction(_ *cli.Context) error {

	logrus.Info("Starting session CMD")
	logrus.WithField("cmd", "session")

	s := &session.Session{}
	err := s.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}
