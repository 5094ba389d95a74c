// Package channels defines the outbound delivery adapter contracts. The
// adapters wrap external transports (SMTP server, SMS provider); the engine
// wraps their failures with bounded retries but never reimplements provider
// retry logic.
package channels

import (
	"context"
	"errors"
	"fmt"
)

// EmailSender delivers a rendered email message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html, text string) (SendResult, error)
}

// SMSSender delivers a rendered SMS message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) (SendResult, error)
}

// SendResult is the adapter's report of a completed send.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SendError classifies a delivery failure. Permanent failures (rejected
// address, bad payload) are never retried; everything else is transient and
// retried within the action's bounded budget.
type SendError struct {
	Permanent bool
	Err       error
}

func (e *SendError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("permanent send failure: %v", e.Err)
	}

	return fmt.Sprintf("transient send failure: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps a non-retryable delivery failure.
func NewPermanentError(err error) *SendError {
	return &SendError{Permanent: true, Err: err}
}

// NewTransientError wraps a retryable delivery failure.
func NewTransientError(err error) *SendError {
	return &SendError{Err: err}
}

// IsPermanent reports whether the error is a non-retryable delivery failure.
func IsPermanent(err error) bool {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Permanent
	}

	return false
}
