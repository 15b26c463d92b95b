package main

import (
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/adeilh/taskdo/auth"
	"github.com/adeilh/taskdo/config"
	"github.com/adeilh/taskdo/db/sql/postgres"
)

func migrateCmd() *cli.Command {
	cfg := config.Defaults()
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit",
		Flags: configFlags(&cfg),
		Action: func(ctx *cli.Context) error {
			db, err := postgres.Open(postgres.WithDSN(cfg.DatabaseDSN))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(ctx.Context, db); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func keygenCmd() *cli.Command {
	cfg := config.Defaults()
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate the confirmation-link key file (overwrites invalidate in-flight links)",
		Flags: configFlags(&cfg),
		Action: func(*cli.Context) error {
			if err := auth.GenerateKey(cfg.KeyFile); err != nil {
				return err
			}
			log.Info().Str("path", cfg.KeyFile).Msg("key file written")
			return nil
		},
	}
}
