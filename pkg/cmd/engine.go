package cmd

import (
	"log/slog"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/dineflow/dineflow/pkg/channels/smsgateway"
	"github.com/dineflow/dineflow/pkg/channels/smtp"
	"github.com/dineflow/dineflow/pkg/flow"
	"github.com/dineflow/dineflow/pkg/persistence"
	"github.com/dineflow/dineflow/pkg/template"
)

const (
	defaultEmailPerHour = 100
	defaultSMSPerHour   = 50
)

// EngineFlags returns the delivery and rate-limit flags shared by every
// binary that walks flows.
func EngineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "templates-path",
			Usage:   "Path to the directory containing message templates",
			Value:   "./templates",
			Sources: cli.EnvVars("TEMPLATES_PATH"),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP relay host for email delivery",
			Sources: cli.EnvVars("SMTP_HOST"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Usage:   "SMTP relay port",
			Value:   587,
			Sources: cli.EnvVars("SMTP_PORT"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP relay username",
			Sources: cli.EnvVars("SMTP_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP relay password",
			Sources: cli.EnvVars("SMTP_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "From address for outgoing email",
			Sources: cli.EnvVars("SMTP_FROM"),
		},
		&cli.StringFlag{
			Name:    "sms-gateway-url",
			Usage:   "HTTP endpoint of the SMS gateway",
			Sources: cli.EnvVars("SMS_GATEWAY_URL"),
		},
		&cli.StringFlag{
			Name:    "sms-api-key",
			Usage:   "API key for the SMS gateway",
			Sources: cli.EnvVars("SMS_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "sms-sender",
			Usage:   "Sender id for outgoing SMS",
			Sources: cli.EnvVars("SMS_SENDER"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the shared rate-limit counters (in-process counters if empty)",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.IntFlag{
			Name:    "email-per-hour",
			Usage:   "Hourly email send budget",
			Value:   defaultEmailPerHour,
			Sources: cli.EnvVars("EMAIL_PER_HOUR"),
		},
		&cli.IntFlag{
			Name:    "sms-per-hour",
			Usage:   "Hourly SMS send budget",
			Value:   defaultSMSPerHour,
			Sources: cli.EnvVars("SMS_PER_HOUR"),
		},
		&cli.DurationFlag{
			Name:    "jitter-min",
			Usage:   "Minimum delay between consecutive sends",
			Value:   2 * time.Second,
			Sources: cli.EnvVars("SEND_JITTER_MIN"),
		},
		&cli.DurationFlag{
			Name:    "jitter-max",
			Usage:   "Maximum delay between consecutive sends",
			Value:   10 * time.Second,
			Sources: cli.EnvVars("SEND_JITTER_MAX"),
		},
	}
}

// NewEngine wires the matcher, walker and engine from the shared flags.
func NewEngine(command *cli.Command, store persistence.Persistence, logger *slog.Logger) (*flow.Engine, *flow.Walker) {
	email := smtp.NewSender(smtp.Config{
		Host:     command.String("smtp-host"),
		Port:     command.Int("smtp-port"),
		Username: command.String("smtp-username"),
		Password: command.String("smtp-password"),
		From:     command.String("smtp-from"),
	})

	sms := smsgateway.NewSender(smsgateway.Config{
		URL:    command.String("sms-gateway-url"),
		APIKey: command.String("sms-api-key"),
		Sender: command.String("sms-sender"),
	})

	limiter := NewLimiter(
		command.String("redis-url"),
		command.Int("email-per-hour"),
		command.Int("sms-per-hour"),
		command.Duration("jitter-min"),
		command.Duration("jitter-max"),
	)

	templates := template.NewFileSource(command.String("templates-path"))

	walker := flow.NewWalker(store, email, sms, templates, limiter, logger)
	matcher := flow.NewMatcher(store, store, logger)
	engine := flow.NewEngine(store, matcher, walker, logger)

	return engine, walker
}
