package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/adeilh/taskdo/config"
)

// configFlags exposes every config field as a flag with a TASKDO_*
// environment variable fallback.
func configFlags(cfg *config.Config) []cli.Flag {
	ttlMinutes := int(cfg.TokenTTL / time.Minute)
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Bind address for the HTTP server",
			Value:       cfg.Addr,
			Destination: &cfg.Addr,
			EnvVars:     []string{"TASKDO_ADDR"},
		},
		&cli.StringFlag{
			Name:        "database-dsn",
			Usage:       "lib/pq connection string",
			Value:       cfg.DatabaseDSN,
			Destination: &cfg.DatabaseDSN,
			EnvVars:     []string{"TASKDO_DATABASE_DSN"},
		},
		&cli.StringFlag{
			Name:        "signing-secret",
			Usage:       "HMAC secret for session tokens",
			Destination: &cfg.SigningSecret,
			EnvVars:     []string{"TASKDO_SIGNING_SECRET"},
		},
		&cli.StringFlag{
			Name:        "signing-algorithm",
			Usage:       "Session token algorithm (HS256, HS384, HS512)",
			Value:       cfg.SigningAlgorithm,
			Destination: &cfg.SigningAlgorithm,
			EnvVars:     []string{"TASKDO_SIGNING_ALGORITHM"},
		},
		&cli.IntFlag{
			Name:    "token-ttl-minutes",
			Usage:   "Session token lifetime in minutes",
			Value:   ttlMinutes,
			EnvVars: []string{"TASKDO_TOKEN_TTL_MINUTES"},
		},
		&cli.StringFlag{
			Name:        "key-file",
			Usage:       "Path of the confirmation-link key file",
			Value:       cfg.KeyFile,
			Destination: &cfg.KeyFile,
			EnvVars:     []string{"TASKDO_KEY_FILE"},
		},
		&cli.StringFlag{
			Name:        "link-base-url",
			Usage:       "Base URL prefixed to confirmation links",
			Value:       cfg.LinkBaseURL,
			Destination: &cfg.LinkBaseURL,
			EnvVars:     []string{"TASKDO_LINK_BASE_URL"},
		},
		&cli.StringFlag{
			Name:        "mail-endpoint",
			Usage:       "HTTP mail API endpoint (log-only delivery when empty)",
			Destination: &cfg.MailEndpoint,
			EnvVars:     []string{"TASKDO_MAIL_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:        "mail-api-key",
			Usage:       "Bearer credential for the mail API",
			Destination: &cfg.MailAPIKey,
			EnvVars:     []string{"TASKDO_MAIL_API_KEY"},
		},
		&cli.StringFlag{
			Name:        "mail-sender",
			Usage:       "From address on outgoing mail",
			Value:       cfg.MailSender,
			Destination: &cfg.MailSender,
			EnvVars:     []string{"TASKDO_MAIL_SENDER"},
		},
		&cli.IntFlag{
			Name:    "store-timeout-seconds",
			Usage:   "Deadline on every store and directory round-trip",
			Value:   int(cfg.StoreTimeout / time.Second),
			EnvVars: []string{"TASKDO_STORE_TIMEOUT_SECONDS"},
		},
		&cli.IntFlag{
			Name:        "reminder-hour-utc",
			Usage:       "UTC hour of day when the due-today reminder fires",
			Value:       cfg.ReminderHourUTC,
			Destination: &cfg.ReminderHourUTC,
			EnvVars:     []string{"TASKDO_REMINDER_HOUR_UTC"},
		},
	}
}
