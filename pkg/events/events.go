// Package events defines the domain events consumed by the automation engine
// and the typed bus events exchanged between the API, worker and scheduler.
package events

import (
	"errors"
	"fmt"
	"time"
)

// Domain event names produced by the ordering platform.
const (
	EventOrderCreated    = "order_created"
	EventOrderScheduled  = "order_scheduled"
	EventOrderReminder   = "order_reminder_due"
	EventUserRegistered  = "user_registered"
	EventCartAbandoned   = "cart_abandoned"
)

// ErrNoRecipient indicates that no delivery identity could be resolved from
// the event payload.
var ErrNoRecipient = errors.New("no recipient resolvable from event payload")

// TriggerEvent is an incoming domain event: a name plus a payload snapshot.
// The payload is copied onto each Execution it spawns so later nodes see the
// data as it was at trigger time.
type TriggerEvent struct {
	Name       string         `json:"name"    validate:"required"`
	Payload    map[string]any `json:"payload"`
	ReceivedAt time.Time      `json:"received_at"`
}

// recipientFields maps each event name to the payload keys carrying the
// delivery identity. The mapping is fixed per event type.
var recipientFields = map[string]struct{ email, phone, userID string }{
	EventOrderCreated:   {email: "customer_email", phone: "customer_phone", userID: "user_id"},
	EventOrderScheduled: {email: "customer_email", phone: "customer_phone", userID: "user_id"},
	EventOrderReminder:  {email: "customer_email", phone: "customer_phone", userID: "user_id"},
	EventUserRegistered: {email: "email", phone: "phone", userID: "user_id"},
	EventCartAbandoned:  {email: "email", phone: "phone", userID: "user_id"},
}

// KnownEvent reports whether the engine has a recipient mapping for the name.
func KnownEvent(name string) bool {
	_, ok := recipientFields[name]

	return ok
}

// ResolveRecipient extracts the delivery identity from the event payload using
// the fixed per-event mapping. At least one of email or phone must resolve.
func (e TriggerEvent) ResolveRecipient() (email, phone, userID string, err error) {
	fields, ok := recipientFields[e.Name]
	if !ok {
		return "", "", "", fmt.Errorf("%w: unknown event %q", ErrNoRecipient, e.Name)
	}

	email = payloadString(e.Payload, fields.email)
	phone = payloadString(e.Payload, fields.phone)
	userID = payloadString(e.Payload, fields.userID)

	if email == "" && phone == "" {
		return "", "", "", fmt.Errorf("%w: event %q", ErrNoRecipient, e.Name)
	}

	return email, phone, userID, nil
}

func payloadString(payload map[string]any, key string) string {
	if key == "" {
		return ""
	}

	value, _ := payload[key].(string)

	return value
}
