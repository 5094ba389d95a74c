package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow/pkg/events"
	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
)

// Matcher finds active flow definitions whose trigger node matches an
// incoming domain event. It reads definitions fresh on every call: flows may
// be deactivated between events, and in-flight executions are allowed to
// finish regardless.
type Matcher struct {
	flows  persistence.FlowRepository
	log    persistence.ExecutionLogRepository
	logger *slog.Logger
}

// Match pairs a selected flow with the recipient resolved from the event.
type Match struct {
	Flow      *models.FlowDefinition
	Trigger   *models.Node
	Recipient models.Recipient
}

// NewMatcher creates a trigger matcher.
func NewMatcher(flows persistence.FlowRepository, log persistence.ExecutionLogRepository, logger *slog.Logger) *Matcher {
	return &Matcher{
		flows:  flows,
		log:    log,
		logger: logger.With("module", "trigger_matcher"),
	}
}

// Match returns every active flow selected by the event. When the event
// carries no resolvable recipient, each otherwise-matching flow gets a failed
// trigger-stage log entry and no match is returned; the failure never reaches
// the event producer.
func (m *Matcher) Match(ctx context.Context, event events.TriggerEvent) ([]Match, error) {
	flows, err := m.flows.ActiveFlows(ctx)
	if err != nil {
		return nil, err
	}

	m.logger.DebugContext(ctx, "Matching event against active flows",
		"event", event.Name,
		"flows_count", len(flows))

	var selected []Match

	email, phone, userID, recipientErr := event.ResolveRecipient()
	recipient := models.Recipient{Email: email, Phone: phone, UserID: userID}

	for _, flow := range flows {
		trigger := flow.TriggerNode()
		if trigger == nil {
			continue
		}

		cfg, err := trigger.TriggerConfig()
		if err != nil {
			m.logger.WarnContext(ctx, "Skipping flow with invalid trigger config",
				"flow_id", flow.ID, "error", err)

			continue
		}

		if cfg.EventName != event.Name {
			continue
		}

		if !m.filterMatches(ctx, flow, cfg, event) {
			continue
		}

		if recipientErr != nil {
			m.logFailedTrigger(ctx, flow, trigger)

			continue
		}

		selected = append(selected, Match{Flow: flow, Trigger: trigger, Recipient: recipient})
	}

	m.logger.InfoContext(ctx, "Completed trigger matching",
		"event", event.Name,
		"matches_found", len(selected))

	return selected, nil
}

// filterMatches evaluates the trigger's optional filter predicate against the
// event payload. An evaluation failure means the flow does not fire.
func (m *Matcher) filterMatches(ctx context.Context, flow *models.FlowDefinition, cfg models.TriggerConfig, event events.TriggerEvent) bool {
	if cfg.Filter == "" {
		return true
	}

	env := make(map[string]any, len(event.Payload)+1)
	for key, value := range event.Payload {
		env[key] = value
	}

	env["event"] = event.Payload

	matched, err := evaluatePredicate(cfg.Filter, "", env)
	if err != nil {
		m.logger.WarnContext(ctx, "Trigger filter evaluation failed, flow not selected",
			"flow_id", flow.ID, "filter", cfg.Filter, "error", err)

		return false
	}

	return matched
}

// logFailedTrigger records a match failure at the trigger node. No execution
// exists yet, so the entry carries only the flow id.
func (m *Matcher) logFailedTrigger(ctx context.Context, flow *models.FlowDefinition, trigger *models.Node) {
	entry := &models.ExecutionLogEntry{
		ID:          uuid.New().String(),
		FlowID:      flow.ID,
		NodeID:      trigger.ID,
		NodeKind:    models.NodeKindTrigger,
		Outcome:     models.LogOutcomeFailed,
		Attempt:     1,
		ErrorDetail: models.LogDetailNoRecipient,
		Timestamp:   time.Now().UTC(),
	}

	if err := m.log.AppendLogEntry(ctx, entry); err != nil {
		m.logger.ErrorContext(ctx, "Failed to record trigger failure",
			"flow_id", flow.ID, "error", err)
	}
}
