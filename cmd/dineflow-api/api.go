// Package main provides the dineflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dineflow/dineflow/pkg/eventbus"
	"github.com/dineflow/dineflow/pkg/flow"
	"github.com/dineflow/dineflow/pkg/persistence"
	"github.com/dineflow/dineflow/pkg/services"
	"github.com/dineflow/dineflow/pkg/web"
)

type API struct {
	logger          *slog.Logger
	persistence     persistence.Persistence
	eventBus        eventbus.EventBus
	scheduler       *flow.Scheduler
	validate        *validator.Validate
	schedulerSecret string
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	scheduler *flow.Scheduler,
	schedulerSecret string,
) *API {
	return &API{
		logger:          logger,
		persistence:     persistence,
		eventBus:        eventBus,
		scheduler:       scheduler,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		schedulerSecret: schedulerSecret,
	}
}

func (a *API) App() *fiber.App {
	flowService := services.NewFlow(a.persistence)
	adminService := services.NewAdmin(a.persistence)

	handlers := web.NewAPIHandlers(
		flowService,
		adminService,
		a.scheduler,
		a.eventBus,
		a.persistence,
		a.validate,
		a.schedulerSecret,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Dineflow API")
	})

	f := app.Group("/flows")
	f.Get("/", handlers.GetFlows)
	f.Post("/", handlers.CreateFlow)
	f.Get("/:id", handlers.GetFlow)
	f.Patch("/:id", handlers.UpdateFlow)
	f.Delete("/:id", handlers.DeleteFlow)
	f.Post("/:id/activate", handlers.ActivateFlow)
	f.Post("/:id/deactivate", handlers.DeactivateFlow)
	f.Get("/:id/executions", handlers.GetFlowExecutions)
	f.Get("/:id/stats", handlers.GetFlowStats)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/log", handlers.GetExecutionLog)
	e.Post("/:id/cancel", handlers.CancelExecution)

	app.Post("/events", handlers.PublishEvent)
	app.Post("/order-schedules", handlers.CreateOrderSchedule)
	app.Post("/scheduler/run", handlers.RunScheduler)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
