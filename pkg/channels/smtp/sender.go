// Package smtp provides an EmailSender over a plain SMTP relay.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/dineflow/dineflow/pkg/channels"
	"github.com/google/uuid"
)

// Config holds the relay connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout bounds the whole dial-and-send exchange. A hung relay is
	// treated as a transient failure, never left pending.
	Timeout time.Duration
}

// Sender sends email through an SMTP relay.
type Sender struct {
	config Config
}

// NewSender creates an SMTP sender. A zero timeout defaults to 15 seconds.
func NewSender(config Config) *Sender {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	return &Sender{config: config}
}

// SendEmail delivers one message. SMTP 5xx responses are permanent failures;
// connection and 4xx errors are transient.
func (s *Sender) SendEmail(ctx context.Context, to, subject, html, text string) (channels.SendResult, error) {
	if to == "" {
		err := channels.NewPermanentError(fmt.Errorf("empty recipient address"))

		return channels.SendResult{Error: err.Error()}, err
	}

	deadline := time.Now().Add(s.config.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	conn, err := net.DialTimeout("tcp", addr, time.Until(deadline))
	if err != nil {
		sendErr := channels.NewTransientError(fmt.Errorf("smtp dial %s: %w", addr, err))

		return channels.SendResult{Error: sendErr.Error()}, sendErr
	}

	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		_ = conn.Close()
		sendErr := channels.NewTransientError(fmt.Errorf("smtp handshake: %w", err))

		return channels.SendResult{Error: sendErr.Error()}, sendErr
	}
	defer func() { _ = client.Close() }()

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			sendErr := classify(fmt.Errorf("smtp auth: %w", err))

			return channels.SendResult{Error: sendErr.Error()}, sendErr
		}
	}

	messageID := uuid.New().String()

	if err := s.transmit(client, to, subject, html, text, messageID); err != nil {
		return channels.SendResult{Error: err.Error()}, err
	}

	return channels.SendResult{Success: true, MessageID: messageID}, nil
}

func (s *Sender) transmit(client *smtp.Client, to, subject, html, text, messageID string) error {
	if err := client.Mail(s.config.From); err != nil {
		return classify(fmt.Errorf("smtp mail from: %w", err))
	}

	if err := client.Rcpt(to); err != nil {
		return classify(fmt.Errorf("smtp rcpt to %s: %w", to, err))
	}

	writer, err := client.Data()
	if err != nil {
		return classify(fmt.Errorf("smtp data: %w", err))
	}

	_, err = writer.Write(buildMessage(s.config.From, to, subject, html, text, messageID))
	if err != nil {
		_ = writer.Close()

		return channels.NewTransientError(fmt.Errorf("smtp write: %w", err))
	}

	if err := writer.Close(); err != nil {
		return classify(fmt.Errorf("smtp close: %w", err))
	}

	return client.Quit()
}

// classify maps SMTP reply codes onto the transient/permanent split: 5xx is
// permanent, everything else transient.
func classify(err error) *channels.SendError {
	var protoErr *textproto.Error

	if errors.As(err, &protoErr) && protoErr.Code >= 500 {
		return channels.NewPermanentError(err)
	}

	return channels.NewTransientError(err)
}

func buildMessage(from, to, subject, html, text, messageID string) []byte {
	var builder strings.Builder

	boundary := "dineflow-" + messageID

	builder.WriteString("From: " + from + "\r\n")
	builder.WriteString("To: " + to + "\r\n")
	builder.WriteString("Subject: " + subject + "\r\n")
	builder.WriteString("Message-ID: <" + messageID + "@dineflow>\r\n")
	builder.WriteString("MIME-Version: 1.0\r\n")

	if text == "" {
		builder.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		builder.WriteString(html)
		builder.WriteString("\r\n")

		return []byte(builder.String())
	}

	builder.WriteString("Content-Type: multipart/alternative; boundary=" + boundary + "\r\n\r\n")

	parts := []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", text},
		{"text/html; charset=UTF-8", html},
	}

	writer := multipart.NewWriter(&builder)
	_ = writer.SetBoundary(boundary)

	for _, part := range parts {
		header := textproto.MIMEHeader{"Content-Type": {part.contentType}}

		partWriter, err := writer.CreatePart(header)
		if err != nil {
			continue
		}

		_, _ = partWriter.Write([]byte(part.body))
	}

	_ = writer.Close()

	return []byte(builder.String())
}
