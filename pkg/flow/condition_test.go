package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineflow/dineflow/pkg/models"
)

func TestEvaluatePredicate(t *testing.T) {
	env := map[string]any{
		"cartTotal":  63.5,
		"item_count": 3,
		"takeaway":   true,
	}

	tests := []struct {
		name       string
		expression string
		language   string
		want       bool
		wantErr    bool
	}{
		{name: "numeric comparison true", expression: "cartTotal > 50", want: true},
		{name: "numeric comparison false", expression: "cartTotal > 100", want: false},
		{name: "boolean field", expression: "takeaway", want: true},
		{name: "compound expression", expression: "cartTotal > 50 && item_count >= 3", want: true},
		{name: "explicit expr language", expression: "item_count == 3", language: "expr", want: true},
		{name: "simple literal true", expression: "true", language: "simple", want: true},
		{name: "simple literal false", expression: "false", language: "simple", want: false},
		{name: "non-boolean result", expression: `"pasta"`, wantErr: true},
		{name: "parse error", expression: "cartTotal >", wantErr: true},
		{name: "unknown language", expression: "true", language: "jsonata", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluatePredicate(tt.expression, tt.language, env)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditionEnv(t *testing.T) {
	execution := &models.Execution{
		ID:           "exec-1",
		FlowID:       "flow-1",
		EventPayload: map[string]any{"cartTotal": 80.0, "order_id": "order-42"},
		Recipient:    models.Recipient{Email: "guest@example.com", UserID: "user-9"},
	}

	env := conditionEnv(execution)

	// Payload fields are exposed at the top level so authors can reference
	// them directly.
	assert.Equal(t, 80.0, env["cartTotal"])
	assert.Equal(t, execution.EventPayload, env["event"])

	recipient, ok := env["recipient"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "guest@example.com", recipient["email"])

	result, err := evaluatePredicate(`recipient.user_id == "user-9"`, "", env)
	require.NoError(t, err)
	assert.True(t, result)
}
