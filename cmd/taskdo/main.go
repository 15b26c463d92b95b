package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "taskdo",
		Usage: "Task tracking backend with email-verified accounts",
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			keygenCmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
