// Package web provides HTTP request and response types for the flow API.
package web

import "time"

// CreateFlowRequest represents the request body for creating a new flow.
// Flows are created as drafts; graph validation happens on activation.
type CreateFlowRequest struct {
	Name        string      `json:"name"        validate:"required,min=3"`
	Description string      `json:"description"`
	Owner       string      `json:"owner"`
	Nodes       []NodeInput `json:"nodes"`
	Edges       []EdgeInput `json:"edges"`
}

// UpdateFlowRequest represents the request body for updating a draft flow.
// All fields are optional to support partial updates.
type UpdateFlowRequest struct {
	Name        *string     `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string     `json:"description,omitempty"`
	Nodes       []NodeInput `json:"nodes,omitempty"`
	Edges       []EdgeInput `json:"edges,omitempty"`
}

// NodeInput is the wire form of a graph node.
type NodeInput struct {
	ID     string         `json:"id"     validate:"required"`
	Kind   string         `json:"kind"   validate:"required,oneof=trigger action delay condition"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
}

// EdgeInput is the wire form of a graph edge.
type EdgeInput struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
	Label    string `json:"label,omitempty"   validate:"omitempty,oneof=true false"`
}

// PublishEventRequest represents the request body for submitting a domain
// event. The API accepts the event and returns before any flow runs.
type PublishEventRequest struct {
	Name    string         `json:"name"    validate:"required"`
	Payload map[string]any `json:"payload"`
}

// CreateOrderScheduleRequest registers an upcoming scheduled order so the
// reminder pass can originate an order_reminder_due event ahead of the slot.
type CreateOrderScheduleRequest struct {
	OrderID          string    `json:"order_id"           validate:"required"`
	CustomerEmail    string    `json:"customer_email"     validate:"omitempty,email"`
	CustomerPhone    string    `json:"customer_phone"`
	UserID           string    `json:"user_id"`
	ScheduledAt      time.Time `json:"scheduled_at"       validate:"required"`
	ReminderLeadMins int       `json:"reminder_lead_mins" validate:"omitempty,min=1"`
}
