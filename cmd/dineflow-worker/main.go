// Package main provides the dineflow worker: it consumes domain events from
// the bus and walks matching flows.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dineflow/dineflow/pkg/cmd"
	"github.com/dineflow/dineflow/pkg/log"
	"github.com/dineflow/dineflow/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "dineflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker to run campaign flows for incoming events",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		}, cmd.EngineFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("dineflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Dineflow Worker")

			tracer, err := otelhelper.NewTracer(ctx, "dineflow-worker")
			if err != nil {
				logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)

				return err
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), "dineflow-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			engine, _ := cmd.NewEngine(command, persistence, logger)

			worker := NewWorkerManager(
				workerID,
				persistence,
				eventBus,
				engine,
				tracer,
				logger,
			)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start event-driven worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
