package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/adeilh/taskdo/api"
	"github.com/adeilh/taskdo/auth"
	"github.com/adeilh/taskdo/config"
	"github.com/adeilh/taskdo/db/sql/postgres"
	"github.com/adeilh/taskdo/httpx"
	"github.com/adeilh/taskdo/internal/logutil"
	"github.com/adeilh/taskdo/mail"
	"github.com/adeilh/taskdo/remind"
	"github.com/adeilh/taskdo/task"
)

func serveCmd() *cli.Command {
	cfg := config.Defaults()
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server and the daily reminder",
		Flags: configFlags(&cfg),
		Action: func(ctx *cli.Context) error {
			if n := ctx.Int("token-ttl-minutes"); n > 0 {
				cfg.TokenTTL = time.Duration(n) * time.Minute
			}
			if n := ctx.Int("store-timeout-seconds"); n > 0 {
				cfg.StoreTimeout = time.Duration(n) * time.Second
			}
			return serve(ctx.Context, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	ctx = logutil.WithLogger(ctx, logger)

	db, err := postgres.Open(
		postgres.WithDSN(cfg.DatabaseDSN),
	)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.SigningSecret), cfg.SigningAlgorithm, cfg.TokenTTL)
	if err != nil {
		return err
	}
	obfuscator, err := auth.LoadKey(cfg.KeyFile)
	if err != nil {
		return err
	}

	var notifier mail.Notifier = mail.LogNotifier{}
	if cfg.MailEndpoint != "" {
		notifier = mail.NewMailer(cfg.MailEndpoint,
			mail.WithAPIKey(cfg.MailAPIKey),
			mail.WithSender(cfg.MailSender),
		)
	}

	users := postgres.NewUserRepository(db)
	authSvc, err := auth.NewService(auth.ServiceConfig{
		Directory:   users,
		Tokens:      postgres.NewTokenRepository(db),
		Codec:       codec,
		Obfuscator:  obfuscator,
		Hasher:      auth.NewBcryptHasher(),
		Notifier:    notifier,
		LinkBaseURL: cfg.LinkBaseURL,
	})
	if err != nil {
		return err
	}

	tasks := postgres.NewTaskRepository(db)
	taskSvc := task.NewService(tasks)

	reminder := remind.New(users, tasks, notifier,
		remind.WithHourUTC(cfg.ReminderHourUTC),
		remind.WithStoreTimeout(cfg.StoreTimeout),
	)
	go func() {
		if err := reminder.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("reminder stopped")
		}
	}()

	srv := httpx.NewServer(
		httpx.WithAddress(cfg.Addr),
		httpx.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		httpx.WithLogger(logger),
		httpx.AppendMiddlewares(httpx.ContextTimeoutMiddleware(cfg.StoreTimeout)),
	)
	srv.RegisterRoutes(api.NewHandler(authSvc, taskSvc).Register)

	logger.Info().Str("addr", cfg.Addr).Msg("taskdo listening")
	return srv.Start(ctx)
}
