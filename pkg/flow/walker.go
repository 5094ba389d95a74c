package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow/pkg/channels"
	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/persistence"
	"github.com/dineflow/dineflow/pkg/ratelimit"
	"github.com/dineflow/dineflow/pkg/template"
)

const (
	// maxSendAttempts bounds retries of a transient send failure within one
	// action node invocation.
	maxSendAttempts = 3
	// sendBackoffStep grows linearly with the attempt number.
	sendBackoffStep = 2 * time.Second
)

// Walker advances executions through their flow graph, one node at a time,
// until it reaches a terminal node, a suspension point or a failure. It never
// blocks waiting for a delay: delays are persisted as suspended state and
// picked up later by the scheduler.
type Walker struct {
	store     persistence.Persistence
	email     channels.EmailSender
	sms       channels.SMSSender
	templates template.Source
	limiter   *ratelimit.Limiter
	logger    *slog.Logger

	// now and sleep are swappable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWalker creates a step executor.
func NewWalker(
	store persistence.Persistence,
	email channels.EmailSender,
	sms channels.SMSSender,
	templates template.Source,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
) *Walker {
	return &Walker{
		store:     store,
		email:     email,
		sms:       sms,
		templates: templates,
		limiter:   limiter,
		logger:    logger.With("module", "walker"),
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepContext,
	}
}

// Start advances a freshly created execution from the node following its
// trigger.
func (w *Walker) Start(ctx context.Context, execution *models.Execution) (*models.Execution, error) {
	flow, err := w.store.FlowByID(ctx, execution.FlowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flow %s: %w", execution.FlowID, err)
	}

	next, ok := flow.NextNodeID(execution.CurrentNodeID)
	if !ok {
		// A trigger with no successor is a legal, if pointless, flow.
		execution.Complete(execution.CurrentNodeID)

		return execution, w.store.SaveExecution(ctx, execution)
	}

	return w.advance(ctx, flow, execution, next)
}

// Resume re-enters a suspended execution claimed by the scheduler. A delay
// suspension continues at the delay node's successor; a throttle suspension
// re-executes the deferred action node itself.
func (w *Walker) Resume(ctx context.Context, execution *models.Execution) (*models.Execution, error) {
	flow, err := w.store.FlowByID(ctx, execution.FlowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flow %s: %w", execution.FlowID, err)
	}

	from := execution.CurrentNodeID

	if execution.WaitReason != models.WaitReasonThrottle {
		next, ok := flow.NextNodeID(execution.CurrentNodeID)
		if !ok {
			execution.Complete(execution.CurrentNodeID)

			return execution, w.store.SaveExecution(ctx, execution)
		}

		from = next
	}

	execution.Status = models.ExecutionStatusRunning
	execution.WaitReason = ""
	execution.ResumeAt = nil

	return w.advance(ctx, flow, execution, from)
}

// advance executes nodes starting at fromNodeID until the execution
// terminates or suspends. The visited set guards against cycles within this
// call; the authoring side is expected to prevent them, so hitting one is a
// structural failure.
func (w *Walker) advance(ctx context.Context, flow *models.FlowDefinition, execution *models.Execution, fromNodeID string) (*models.Execution, error) {
	logger := w.logger.With("execution_id", execution.ID, "flow_id", flow.ID)
	visited := make(map[string]bool)
	nodeID := fromNodeID

	for nodeID != "" {
		if visited[nodeID] {
			logger.ErrorContext(ctx, "Cycle detected during execution", "node_id", nodeID)
			w.appendEntry(ctx, execution, nodeID, flowNodeKind(flow, nodeID), models.LogOutcomeFailed, 1, models.LogDetailCycleDetected)
			execution.Fail(nodeID, models.LogDetailCycleDetected)

			return execution, w.store.SaveExecution(ctx, execution)
		}

		visited[nodeID] = true

		node, ok := flow.NodeByID(nodeID)
		if !ok {
			detail := fmt.Sprintf("node %s not found in flow", nodeID)
			w.appendEntry(ctx, execution, nodeID, "", models.LogOutcomeFailed, 1, detail)
			execution.Fail(nodeID, detail)

			return execution, w.store.SaveExecution(ctx, execution)
		}

		execution.CurrentNodeID = node.ID
		execution.UpdatedAt = w.now()

		logger.DebugContext(ctx, "Executing node", "node_id", node.ID, "kind", node.Kind)

		var (
			next      string
			hasNext   bool
			terminate bool
			err       error
		)

		switch node.Kind {
		case models.NodeKindCondition:
			next, hasNext = w.executeCondition(ctx, flow, execution, node)
		case models.NodeKindDelay:
			terminate, err = w.executeDelay(ctx, execution, node)
			next, hasNext = "", false
		case models.NodeKindAction:
			terminate, err = w.executeAction(ctx, execution, node)
			if !terminate && err == nil {
				next, hasNext = flow.NextNodeID(node.ID)
			}
		case models.NodeKindTrigger:
			// Triggers have no incoming edges; reaching one mid-walk means
			// the graph is malformed.
			detail := fmt.Sprintf("trigger node %s reached during execution", node.ID)
			w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeFailed, 1, detail)
			execution.Fail(node.ID, detail)

			return execution, w.store.SaveExecution(ctx, execution)
		default:
			detail := fmt.Sprintf("unknown node kind %q", node.Kind)
			w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeFailed, 1, detail)
			execution.Fail(node.ID, detail)

			return execution, w.store.SaveExecution(ctx, execution)
		}

		if err != nil {
			return execution, err
		}

		if terminate {
			// The node wrote the terminal or suspended state itself.
			return execution, w.store.SaveExecution(ctx, execution)
		}

		if !hasNext {
			execution.Complete(node.ID)
			logger.InfoContext(ctx, "Execution completed", "node_id", node.ID)

			return execution, w.store.SaveExecution(ctx, execution)
		}

		nodeID = next

		if err := w.store.SaveExecution(ctx, execution); err != nil {
			return execution, err
		}
	}

	return execution, nil
}

// executeCondition evaluates the node's predicate and returns the branch
// target. Evaluation failure defaults to the false branch with a
// skipped-with-warning entry instead of aborting the execution.
func (w *Walker) executeCondition(ctx context.Context, flow *models.FlowDefinition, execution *models.Execution, node *models.Node) (string, bool) {
	cfg, err := node.ConditionConfig()
	if err != nil {
		w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeSkipped, 1, models.LogDetailConditionFailed+": "+err.Error())

		return flow.BranchTargetID(node.ID, models.EdgeLabelFalse)
	}

	result, err := evaluatePredicate(cfg.Expression, cfg.Language, conditionEnv(execution))
	if err != nil {
		w.logger.WarnContext(ctx, "Condition evaluation failed, taking false branch",
			"execution_id", execution.ID, "node_id", node.ID, "error", err)
		w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeSkipped, 1, models.LogDetailConditionFailed+": "+err.Error())

		return flow.BranchTargetID(node.ID, models.EdgeLabelFalse)
	}

	w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeSuccess, 1, "")

	label := models.EdgeLabelFalse
	if result {
		label = models.EdgeLabelTrue
	}

	return flow.BranchTargetID(node.ID, label)
}

// executeDelay suspends the execution until the node's duration has elapsed.
// The returned true tells the walk loop the node already wrote final state.
func (w *Walker) executeDelay(ctx context.Context, execution *models.Execution, node *models.Node) (bool, error) {
	cfg, err := node.DelayConfig()
	if err != nil {
		w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeFailed, 1, err.Error())
		execution.Fail(node.ID, err.Error())

		return true, nil
	}

	duration, err := cfg.Duration()
	if err != nil {
		w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeFailed, 1, err.Error())
		execution.Fail(node.ID, err.Error())

		return true, nil
	}

	resumeAt := w.now().Add(duration)
	execution.Suspend(node.ID, models.WaitReasonDelay, resumeAt)
	w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeSuccess, 1, "")

	w.logger.InfoContext(ctx, "Execution suspended at delay node",
		"execution_id", execution.ID, "node_id", node.ID, "resume_at", resumeAt)

	return true, nil
}

// executeAction reserves a rate-limit slot and sends through the channel
// adapter with bounded retries. It returns true when the execution reached a
// final or suspended state here (throttle deferral or failure).
func (w *Walker) executeAction(ctx context.Context, execution *models.Execution, node *models.Node) (bool, error) {
	cfg, err := node.ActionConfig()
	if err != nil {
		w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeFailed, 1, err.Error())
		execution.Fail(node.ID, err.Error())

		return true, nil
	}

	reservation, err := w.limiter.Reserve(ctx, cfg.Channel, w.now())
	if err != nil {
		// Counter store outage: treated like a transient send failure so the
		// execution fails visibly rather than silently skipping the budget.
		w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeFailed, 1, err.Error())
		execution.Fail(node.ID, err.Error())

		return true, nil
	}

	if reservation.Deferred {
		execution.Suspend(node.ID, models.WaitReasonThrottle, reservation.RetryAt)
		w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeSkipped, 1,
			fmt.Sprintf("%s budget exhausted, deferred to %s", cfg.Channel, reservation.RetryAt.Format(time.RFC3339)))

		w.logger.InfoContext(ctx, "Send deferred by rate limit",
			"execution_id", execution.ID, "node_id", node.ID, "channel", cfg.Channel, "retry_at", reservation.RetryAt)

		return true, nil
	}

	if reservation.Wait > 0 {
		if err := w.sleep(ctx, reservation.Wait); err != nil {
			return true, err
		}
	}

	message, err := w.templates.MessageByID(cfg.TemplateID)
	if err != nil {
		w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeFailed, 1, err.Error())
		execution.Fail(node.ID, err.Error())

		return true, nil
	}

	if cfg.Subject != "" {
		messageCopy := *message
		messageCopy.Subject = cfg.Subject
		message = &messageCopy
	}

	rendered, err := template.RenderMessage(message, execution)
	if err != nil {
		w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeFailed, 1, err.Error())
		execution.Fail(node.ID, err.Error())

		return true, nil
	}

	return w.sendWithRetries(ctx, execution, node, cfg, rendered)
}

// sendWithRetries performs up to maxSendAttempts sends with incremental
// backoff. Each attempt produces exactly one log entry; retries increment the
// attempt counter rather than duplicating send records.
func (w *Walker) sendWithRetries(ctx context.Context, execution *models.Execution, node *models.Node, cfg models.ActionConfig, rendered template.Rendered) (bool, error) {
	address := execution.Recipient.Address(cfg.Channel)

	var lastErr error

	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		var err error

		switch cfg.Channel {
		case models.ChannelEmail:
			_, err = w.email.SendEmail(ctx, address, rendered.Subject, rendered.HTML, rendered.Text)
		case models.ChannelSMS:
			body := rendered.Text
			if body == "" {
				body = rendered.HTML
			}

			_, err = w.sms.SendSMS(ctx, address, body)
		}

		if err == nil {
			w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeSuccess, attempt, "")

			return false, nil
		}

		lastErr = err
		w.appendEntry(ctx, execution, node.ID, node.Kind, models.LogOutcomeFailed, attempt, err.Error())

		if channels.IsPermanent(err) {
			w.logger.WarnContext(ctx, "Permanent send failure",
				"execution_id", execution.ID, "node_id", node.ID, "error", err)

			break
		}

		if attempt < maxSendAttempts {
			if sleepErr := w.sleep(ctx, time.Duration(attempt)*sendBackoffStep); sleepErr != nil {
				return true, sleepErr
			}
		}
	}

	execution.Fail(node.ID, lastErr.Error())

	w.logger.ErrorContext(ctx, "Action node failed",
		"execution_id", execution.ID, "node_id", node.ID, "error", lastErr)

	return true, nil
}

// appendEntry records one node execution attempt. Log failures are reported
// but never interrupt the walk; the log is an audit trail, not a dependency.
func (w *Walker) appendEntry(ctx context.Context, execution *models.Execution, nodeID string, kind models.NodeKind, outcome models.LogOutcome, attempt int, detail string) {
	entry := &models.ExecutionLogEntry{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		NodeID:      nodeID,
		NodeKind:    kind,
		Outcome:     outcome,
		Attempt:     attempt,
		ErrorDetail: detail,
		Timestamp:   w.now(),
	}

	if err := w.store.AppendLogEntry(ctx, entry); err != nil {
		w.logger.ErrorContext(ctx, "Failed to append execution log entry",
			"execution_id", execution.ID, "node_id", nodeID, "error", err)
	}
}

func flowNodeKind(flow *models.FlowDefinition, nodeID string) models.NodeKind {
	if node, ok := flow.NodeByID(nodeID); ok {
		return node.Kind
	}

	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
