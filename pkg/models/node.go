package models

import (
	"errors"
	"fmt"
	"time"
)

// NodeKind tags the shape of a node's configuration. The walker dispatches on
// it exhaustively; adding a kind means teaching the walker about it.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindAction    NodeKind = "action"
	NodeKindDelay     NodeKind = "delay"
	NodeKindCondition NodeKind = "condition"
)

// Channel identifies an outbound delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Node is a node instance in a flow graph. Config carries the kind-specific
// parameters as authored; the typed accessors below decode it.
type Node struct {
	ID     string         `json:"id"     validate:"required"`
	Kind   NodeKind       `json:"kind"   validate:"required"`
	Name   string         `json:"name"   validate:"required,min=1"`
	Config map[string]any `json:"config"`
}

var (
	ErrInvalidNodeConfig = errors.New("invalid node configuration")
	ErrWrongNodeKind     = errors.New("wrong node kind")
)

// TriggerConfig is the configuration of a trigger node.
type TriggerConfig struct {
	EventName string `json:"event_name"`
	// Filter is an optional expr predicate over the event payload. An empty
	// filter matches every event with the configured name.
	Filter string `json:"filter,omitempty"`
}

// ActionConfig is the configuration of a send action node.
type ActionConfig struct {
	Channel    Channel `json:"channel"`
	TemplateID string  `json:"template_id"`
	// Subject is rendered for email sends; ignored for SMS.
	Subject string `json:"subject,omitempty"`
}

// DelayConfig is the configuration of a delay node.
type DelayConfig struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"` // minutes, hours or days
}

// ConditionConfig is the configuration of a condition node.
type ConditionConfig struct {
	Expression string `json:"expression"`
	Language   string `json:"language,omitempty"` // "expr" (default) or "simple"
}

// Duration converts the authored value/unit pair into a time.Duration.
func (d DelayConfig) Duration() (time.Duration, error) {
	if d.Value <= 0 {
		return 0, fmt.Errorf("%w: delay value must be positive, got %d", ErrInvalidNodeConfig, d.Value)
	}

	switch d.Unit {
	case "minutes":
		return time.Duration(d.Value) * time.Minute, nil
	case "hours":
		return time.Duration(d.Value) * time.Hour, nil
	case "days":
		return time.Duration(d.Value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: unknown delay unit %q", ErrInvalidNodeConfig, d.Unit)
	}
}

// TriggerConfig decodes the node's config as a trigger configuration.
func (n *Node) TriggerConfig() (TriggerConfig, error) {
	if n.Kind != NodeKindTrigger {
		return TriggerConfig{}, fmt.Errorf("%w: node %s is %s, not trigger", ErrWrongNodeKind, n.ID, n.Kind)
	}

	cfg := TriggerConfig{
		EventName: stringValue(n.Config, "event_name"),
		Filter:    stringValue(n.Config, "filter"),
	}
	if cfg.EventName == "" {
		return TriggerConfig{}, fmt.Errorf("%w: trigger node %s has no event_name", ErrInvalidNodeConfig, n.ID)
	}

	return cfg, nil
}

// ActionConfig decodes the node's config as an action configuration.
func (n *Node) ActionConfig() (ActionConfig, error) {
	if n.Kind != NodeKindAction {
		return ActionConfig{}, fmt.Errorf("%w: node %s is %s, not action", ErrWrongNodeKind, n.ID, n.Kind)
	}

	cfg := ActionConfig{
		Channel:    Channel(stringValue(n.Config, "channel")),
		TemplateID: stringValue(n.Config, "template_id"),
		Subject:    stringValue(n.Config, "subject"),
	}

	if cfg.Channel != ChannelEmail && cfg.Channel != ChannelSMS {
		return ActionConfig{}, fmt.Errorf("%w: action node %s has unknown channel %q", ErrInvalidNodeConfig, n.ID, cfg.Channel)
	}

	if cfg.TemplateID == "" {
		return ActionConfig{}, fmt.Errorf("%w: action node %s has no template_id", ErrInvalidNodeConfig, n.ID)
	}

	return cfg, nil
}

// DelayConfig decodes the node's config as a delay configuration.
func (n *Node) DelayConfig() (DelayConfig, error) {
	if n.Kind != NodeKindDelay {
		return DelayConfig{}, fmt.Errorf("%w: node %s is %s, not delay", ErrWrongNodeKind, n.ID, n.Kind)
	}

	cfg := DelayConfig{
		Value: intValue(n.Config, "value"),
		Unit:  stringValue(n.Config, "unit"),
	}

	if _, err := cfg.Duration(); err != nil {
		return DelayConfig{}, err
	}

	return cfg, nil
}

// ConditionConfig decodes the node's config as a condition configuration.
func (n *Node) ConditionConfig() (ConditionConfig, error) {
	if n.Kind != NodeKindCondition {
		return ConditionConfig{}, fmt.Errorf("%w: node %s is %s, not condition", ErrWrongNodeKind, n.ID, n.Kind)
	}

	cfg := ConditionConfig{
		Expression: stringValue(n.Config, "expression"),
		Language:   stringValue(n.Config, "language"),
	}
	if cfg.Expression == "" {
		return ConditionConfig{}, fmt.Errorf("%w: condition node %s has no expression", ErrInvalidNodeConfig, n.ID)
	}

	return cfg, nil
}

func stringValue(config map[string]any, key string) string {
	value, _ := config[key].(string)

	return value
}

// intValue tolerates float64 because node configs round-trip through JSON.
func intValue(config map[string]any, key string) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
