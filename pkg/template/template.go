// Package template renders campaign message templates against the execution
// context so subjects and bodies can reference event payload fields.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dineflow/dineflow/pkg/models"
)

// Message is an authored message template. Subject and Text are optional;
// SMS sends use Text, falling back to HTML stripped of nothing (authors are
// expected to provide Text for SMS templates).
type Message struct {
	ID      string `json:"id"`
	Subject string `json:"subject,omitempty"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

// Source resolves template ids to message templates.
type Source interface {
	MessageByID(id string) (*Message, error)
}

// Rendered is a message with all template expressions evaluated.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// RenderMessage evaluates the message's subject and bodies against the
// execution. The template data exposes the event payload, recipient and
// execution identifiers.
func RenderMessage(msg *Message, execution *models.Execution) (Rendered, error) {
	data := map[string]any{
		"event":   execution.EventPayload,
		"payload": execution.EventPayload,
		"recipient": map[string]any{
			"email":   execution.Recipient.Email,
			"phone":   execution.Recipient.Phone,
			"user_id": execution.Recipient.UserID,
		},
		"execution": map[string]any{
			"id":      execution.ID,
			"flow_id": execution.FlowID,
		},
	}

	subject, err := Render(msg.Subject, data)
	if err != nil {
		return Rendered{}, err
	}

	html, err := Render(msg.HTML, data)
	if err != nil {
		return Rendered{}, err
	}

	text, err := Render(msg.Text, data)
	if err != nil {
		return Rendered{}, err
	}

	return Rendered{Subject: subject, HTML: html, Text: text}, nil
}

// Render evaluates a single template string against data.
func Render(templateStr string, data any) (string, error) {
	if templateStr == "" {
		return "", nil
	}

	tmpl, err := template.
		New("message").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template %q: %w", templateStr, err)
	}

	return buf.String(), nil
}
