package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "rentfold",
		Usage: "Lease, e-signature and rent payment core",
		Commands: []*cli.Command{
			serveCommand,
			migrateCommand,
			seedCommand,
			pruneEventsCommand,
			nanoidCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("application failed")
	}
}
