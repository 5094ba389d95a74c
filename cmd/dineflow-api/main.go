package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/dineflow/dineflow/pkg/cmd"
	"github.com/dineflow/dineflow/pkg/flow"
	"github.com/dineflow/dineflow/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "dineflow-api",
		Usage:                 "Create and manage campaign flows, accept domain events",
		EnableShellCompletion: true,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, memory)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "scheduler-secret",
				Usage:   "Shared secret guarding the scheduler run endpoint",
				Sources: cli.EnvVars("SCHEDULER_SECRET"),
			},
			&cli.DurationFlag{
				Name:    "scheduler-cadence",
				Usage:   "Expected interval between scheduler runs",
				Value:   5 * time.Minute,
				Sources: cli.EnvVars("SCHEDULER_CADENCE"),
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

			logger.InfoContext(ctx, "Initializing Dineflow API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "dineflow-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			engine, walker := cmd.NewEngine(command, persistence, logger)
			scheduler := flow.NewScheduler(
				persistence,
				walker,
				engine,
				command.Duration("scheduler-cadence"),
				logger,
			)

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				scheduler,
				command.String("scheduler-secret"),
			)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
