// Package mocks provides testify mocks for the delivery and bus interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dineflow/dineflow/pkg/channels"
)

// MockEmailSender is a mock implementation of channels.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, html, text string) (channels.SendResult, error) {
	args := m.Called(ctx, to, subject, html, text)

	result, _ := args.Get(0).(channels.SendResult)

	return result, args.Error(1)
}

// MockSMSSender is a mock implementation of channels.SMSSender.
type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendSMS(ctx context.Context, to, message string) (channels.SendResult, error) {
	args := m.Called(ctx, to, message)

	result, _ := args.Get(0).(channels.SendResult)

	return result, args.Error(1)
}
