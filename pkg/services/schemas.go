package services

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dineflow/dineflow/pkg/models"
)

// nodeConfigSchemas holds the JSON schema for each node kind's config.
// Authored configs are validated here so the walker can assume well-formed
// parameters.
var nodeConfigSchemas = map[models.NodeKind]map[string]any{
	models.NodeKindTrigger: {
		"type":     "object",
		"required": []any{"event_name"},
		"properties": map[string]any{
			"event_name": map[string]any{"type": "string", "minLength": 1},
			"filter":     map[string]any{"type": "string"},
		},
	},
	models.NodeKindAction: {
		"type":     "object",
		"required": []any{"channel", "template_id"},
		"properties": map[string]any{
			"channel":     map[string]any{"type": "string", "enum": []any{"email", "sms"}},
			"template_id": map[string]any{"type": "string", "minLength": 1},
			"subject":     map[string]any{"type": "string"},
		},
	},
	models.NodeKindDelay: {
		"type":     "object",
		"required": []any{"value", "unit"},
		"properties": map[string]any{
			"value": map[string]any{"type": "integer", "minimum": 1},
			"unit":  map[string]any{"type": "string", "enum": []any{"minutes", "hours", "days"}},
		},
	},
	models.NodeKindCondition: {
		"type":     "object",
		"required": []any{"expression"},
		"properties": map[string]any{
			"expression": map[string]any{"type": "string", "minLength": 1},
			"language":   map[string]any{"type": "string", "enum": []any{"expr", "simple"}},
		},
	},
}

// validateNodeConfig checks a node's config against its kind's schema.
func validateNodeConfig(node *models.Node) error {
	schema, ok := nodeConfigSchemas[node.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown node kind %q", ErrInvalidConfig, node.Kind)
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(node.Config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("%w: node %s: %v", ErrInvalidConfig, node.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%w: node %s: %s", ErrInvalidConfig, node.ID, strings.Join(details, "; "))
	}

	return nil
}
