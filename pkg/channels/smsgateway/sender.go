// Package smsgateway provides an SMSSender over a JSON-over-HTTP provider API.
package smsgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dineflow/dineflow/pkg/channels"
)

// Config holds the provider endpoint settings.
type Config struct {
	URL    string
	APIKey string
	Sender string
	// Timeout bounds each provider call; exceeding it is a transient failure.
	Timeout time.Duration
}

// Sender posts SMS messages to an HTTP gateway.
type Sender struct {
	config Config
	client *http.Client
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	Sender  string `json:"sender,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// NewSender creates a gateway sender. A zero timeout defaults to 10 seconds.
func NewSender(config Config) *Sender {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Sender{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// SendSMS delivers one message. Provider 4xx responses are permanent failures
// (bad number, rejected content); 5xx and transport errors are transient.
func (s *Sender) SendSMS(ctx context.Context, to, message string) (channels.SendResult, error) {
	if to == "" {
		err := channels.NewPermanentError(fmt.Errorf("empty recipient phone number"))

		return channels.SendResult{Error: err.Error()}, err
	}

	body, err := json.Marshal(sendRequest{To: to, Message: message, Sender: s.config.Sender})
	if err != nil {
		sendErr := channels.NewPermanentError(fmt.Errorf("marshal sms request: %w", err))

		return channels.SendResult{Error: sendErr.Error()}, sendErr
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		sendErr := channels.NewPermanentError(fmt.Errorf("build sms request: %w", err))

		return channels.SendResult{Error: sendErr.Error()}, sendErr
	}

	request.Header.Set("Content-Type", "application/json")

	if s.config.APIKey != "" {
		request.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	response, err := s.client.Do(request)
	if err != nil {
		sendErr := channels.NewTransientError(fmt.Errorf("sms gateway call: %w", err))

		return channels.SendResult{Error: sendErr.Error()}, sendErr
	}

	defer func() { _ = response.Body.Close() }()

	payload, _ := io.ReadAll(io.LimitReader(response.Body, 64*1024))

	var decoded sendResponse

	_ = json.Unmarshal(payload, &decoded)

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		return channels.SendResult{Success: true, MessageID: decoded.MessageID}, nil
	case response.StatusCode >= 400 && response.StatusCode < 500:
		sendErr := channels.NewPermanentError(fmt.Errorf("sms gateway rejected send (%d): %s", response.StatusCode, decoded.Error))

		return channels.SendResult{Error: sendErr.Error()}, sendErr
	default:
		sendErr := channels.NewTransientError(fmt.Errorf("sms gateway error (%d): %s", response.StatusCode, decoded.Error))

		return channels.SendResult{Error: sendErr.Error()}, sendErr
	}
}
