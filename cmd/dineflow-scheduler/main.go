// Package main provides the dineflow scheduler: a periodic pass that resumes
// suspended executions whose wait is over and originates order reminders.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/dineflow/dineflow/pkg/cmd"
	"github.com/dineflow/dineflow/pkg/flow"
	"github.com/dineflow/dineflow/pkg/log"
)

func main() {
	logger := log.WithModule("scheduler")

	command := &cli.Command{
		Name:                  "dineflow-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Resume due executions and originate order reminders",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "cron",
				Usage:   "Cron expression for the polling cadence",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("SCHEDULER_CRON"),
			},
			&cli.DurationFlag{
				Name:    "cadence",
				Usage:   "Expected interval between runs, used for the resume tolerance window",
				Value:   5 * time.Minute,
				Sources: cli.EnvVars("SCHEDULER_CADENCE"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single pass and exit",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		}, cmd.EngineFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Dineflow Scheduler")

			if _, err := cron.ParseStandard(command.String("cron")); err != nil {
				return fmt.Errorf("invalid cron expression %q: %w", command.String("cron"), err)
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			engine, walker := cmd.NewEngine(command, persistence, logger)
			scheduler := flow.NewScheduler(
				persistence,
				walker,
				engine,
				command.Duration("cadence"),
				logger,
			)

			if command.Bool("once") {
				return runOnce(ctx, scheduler)
			}

			return runDaemon(ctx, scheduler, command.String("cron"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func runOnce(ctx context.Context, scheduler *flow.Scheduler) error {
	summary, err := scheduler.Run(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	log.WithModule("scheduler").InfoContext(ctx, "Scheduler pass completed",
		"checked", summary.Checked,
		"resumed", summary.Resumed,
		"originated", summary.Originated,
	)

	return nil
}

func runDaemon(ctx context.Context, scheduler *flow.Scheduler, cronExpr string) error {
	logger := log.WithModule("scheduler")

	runner := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := runner.AddFunc(cronExpr, func() {
		summary, err := scheduler.Run(ctx, time.Now().UTC())
		if err != nil {
			logger.ErrorContext(ctx, "Scheduler pass failed", "error", err)

			return
		}

		logger.InfoContext(ctx, "Scheduler pass completed",
			"checked", summary.Checked,
			"resumed", summary.Resumed,
			"originated", summary.Originated,
		)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule runs: %w", err)
	}

	runner.Start()
	logger.InfoContext(ctx, "Scheduler started", "cron", cronExpr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.InfoContext(ctx, "Shutting down scheduler...")

	stopCtx := runner.Stop()
	<-stopCtx.Done()

	return nil
}
