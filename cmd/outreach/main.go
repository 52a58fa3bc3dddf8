package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := &cli.App{
		Name:  "outreach",
		Usage: "invitation and RSVP outreach for events",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			sendCommand(),
			dispatchCommand(),
			batchCommand(),
			confirmCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("outreach failed")
	}
}
