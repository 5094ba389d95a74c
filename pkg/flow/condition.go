// Package flow implements the automation engine: trigger matching, graph
// walking and poll-based resumption scheduling.
package flow

import (
	"fmt"
	"strconv"

	"github.com/expr-lang/expr"

	"github.com/dineflow/dineflow/pkg/models"
)

// conditionEnv builds the evaluation environment for predicates: the event
// payload fields at the top level (so authors write "cartTotal > 50"
// directly) plus namespaced event, recipient and execution values.
func conditionEnv(execution *models.Execution) map[string]any {
	env := make(map[string]any, len(execution.EventPayload)+3)

	for key, value := range execution.EventPayload {
		env[key] = value
	}

	env["event"] = execution.EventPayload
	env["recipient"] = map[string]any{
		"email":   execution.Recipient.Email,
		"phone":   execution.Recipient.Phone,
		"user_id": execution.Recipient.UserID,
	}
	env["execution"] = map[string]any{
		"id":      execution.ID,
		"flow_id": execution.FlowID,
	}

	return env
}

// evaluatePredicate runs a predicate expression against the environment and
// coerces the result to a boolean. The default language is expr; "simple"
// accepts literal boolean-ish values for trivially authored conditions.
func evaluatePredicate(expression, language string, env map[string]any) (bool, error) {
	switch language {
	case "", "expr":
		output, err := expr.Eval(expression, env)
		if err != nil {
			return false, fmt.Errorf("failed to evaluate %q: %w", expression, err)
		}

		return toBool(output)
	case "simple":
		return toBool(expression)
	default:
		return false, fmt.Errorf("unsupported condition language %q", language)
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		result, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to boolean: %w", v, err)
		}

		return result, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}
