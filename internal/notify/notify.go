// Package notify hands password-reset notifications to an external mailer.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"pocketbook/internal/logger"
)

// PasswordReset is the template data of a password-reset email.
type PasswordReset struct {
	FirstName string
	ResetURL  string
	ExpiresAt time.Time
}

// Sender delivers notifications.
type Sender interface {
	SendPasswordReset(ctx context.Context, recipient string, data PasswordReset) error
	Close() error
}

// PasswordResetMessage is the JSON document published for the mailer.
type PasswordResetMessage struct {
	Type      string    `json:"type"`
	Recipient string    `json:"recipient"`
	FirstName string    `json:"first_name"`
	ResetURL  string    `json:"reset_url"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPasswordResetMessage creates a message for recipient.
func NewPasswordResetMessage(recipient string, data PasswordReset) *PasswordResetMessage {
	return &PasswordResetMessage{
		Type:      "password_reset",
		Recipient: recipient,
		FirstName: data.FirstName,
		ResetURL:  data.ResetURL,
		ExpiresAt: data.ExpiresAt.UTC(),
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PasswordResetMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LogSender only logs notifications. It is used when no broker is configured.
type LogSender struct{}

// SendPasswordReset implements Sender.
func (LogSender) SendPasswordReset(_ context.Context, recipient string, data PasswordReset) error {
	logger.Get().Infow("Password reset requested; no broker configured, message not delivered",
		"recipient", recipient,
		"expires_at", data.ExpiresAt,
	)
	logger.Get().Debugw("Password reset link", "recipient", recipient, "url", data.ResetURL)
	return nil
}

// Close implements Sender.
func (LogSender) Close() error { return nil }
