// Package web provides the HTTP handlers for the flow management and
// event ingestion API.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/dineflow/dineflow/pkg/eventbus"
	"github.com/dineflow/dineflow/pkg/events"
	"github.com/dineflow/dineflow/pkg/flow"
	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
	"github.com/dineflow/dineflow/pkg/services"
)

const defaultReminderLead = 60 * time.Minute

type APIHandlers struct {
	flowService  *services.Flow
	adminService *services.Admin
	scheduler    *flow.Scheduler
	eventBus     eventbus.EventBus
	store        persistence.Persistence
	validator    *validator.Validate

	// schedulerSecret guards POST /scheduler/run. Empty disables the check.
	schedulerSecret string
}

func NewAPIHandlers(
	flowService *services.Flow,
	adminService *services.Admin,
	scheduler *flow.Scheduler,
	eventBus eventbus.EventBus,
	store persistence.Persistence,
	validator *validator.Validate,
	schedulerSecret string,
) *APIHandlers {
	return &APIHandlers{
		flowService:     flowService,
		adminService:    adminService,
		scheduler:       scheduler,
		eventBus:        eventBus,
		store:           store,
		validator:       validator,
		schedulerSecret: schedulerSecret,
	}
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.ListFlows(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flows)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	definition, err := h.flowService.GetFlow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	definition := &models.FlowDefinition{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Nodes:       nodesFromInput(req.Nodes),
		Edges:       edgesFromInput(req.Edges),
	}

	created, err := h.flowService.CreateFlow(c.Context(), definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.flowService.GetFlow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	// Apply partial updates.
	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Nodes != nil {
		existing.Nodes = nodesFromInput(req.Nodes)
	}

	if req.Edges != nil {
		existing.Edges = edgesFromInput(req.Edges)
	}

	updated, err := h.flowService.UpdateFlow(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	if err := h.flowService.DeleteFlow(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	activated, err := h.flowService.ActivateFlow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activated)
}

func (h *APIHandlers) DeactivateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	deactivated, err := h.flowService.DeactivateFlow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(deactivated)
}

func (h *APIHandlers) GetFlowExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	executions, err := h.adminService.FlowExecutions(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(executions)
}

func (h *APIHandlers) GetFlowStats(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	stats, err := h.adminService.FlowStats(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.adminService.Execution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutionLog(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	entries, err := h.adminService.ExecutionLog(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(entries)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	cancelled, err := h.adminService.CancelExecution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(cancelled)
}

// PublishEvent accepts a domain event and hands it to the bus. The response
// acknowledges receipt only; flow matching and delivery happen in the worker.
func (h *APIHandlers) PublishEvent(c fiber.Ctx) error {
	var req PublishEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	eventID := h.eventBus.GenerateID()
	received := events.EventReceived{
		BaseEvent: events.BaseEvent{
			ID:        eventID,
			Type:      events.EventReceivedType,
			Timestamp: time.Now().UTC(),
		},
		Event: events.TriggerEvent{
			Name:       req.Name,
			Payload:    req.Payload,
			ReceivedAt: time.Now().UTC(),
		},
	}

	if err := h.eventBus.Publish(c.Context(), eventID, received); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": eventID,
		"status":   "accepted",
	})
}

// RunScheduler executes one resumption pass. It is invoked by an external
// cron-style caller and authenticated with a shared secret.
func (h *APIHandlers) RunScheduler(c fiber.Ctx) error {
	if h.schedulerSecret != "" && c.Get("X-Scheduler-Secret") != h.schedulerSecret {
		return unauthorized(c, "Invalid scheduler secret")
	}

	summary, err := h.scheduler.Run(c.Context(), time.Now().UTC())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) CreateOrderSchedule(c fiber.Ctx) error {
	var req CreateOrderScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	lead := defaultReminderLead
	if req.ReminderLeadMins > 0 {
		lead = time.Duration(req.ReminderLeadMins) * time.Minute
	}

	recipient := models.Recipient{
		Email:  req.CustomerEmail,
		Phone:  req.CustomerPhone,
		UserID: req.UserID,
	}

	schedule, err := models.NewOrderSchedule(
		"sched-"+uuid.New().String()[:8],
		req.OrderID,
		recipient,
		req.ScheduledAt,
		lead,
	)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.adminService.RegisterOrderSchedule(c.Context(), schedule); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(schedule)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.store.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func nodesFromInput(inputs []NodeInput) []*models.Node {
	nodes := make([]*models.Node, 0, len(inputs))
	for _, input := range inputs {
		nodes = append(nodes, &models.Node{
			ID:     input.ID,
			Kind:   models.NodeKind(input.Kind),
			Name:   input.Name,
			Config: input.Config,
		})
	}

	return nodes
}

func edgesFromInput(inputs []EdgeInput) []*models.Edge {
	edges := make([]*models.Edge, 0, len(inputs))
	for _, input := range inputs {
		edges = append(edges, &models.Edge{
			ID:       input.ID,
			SourceID: input.SourceID,
			TargetID: input.TargetID,
			Label:    input.Label,
		})
	}

	return edges
}
