package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"pocketbook/internal/logger"
)

func init() {
	logger.Init("test")
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPSenderPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	sender := &AMQPSender{channel: ch, exchangeName: "pocketbook", queueName: "password_reset"}

	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := sender.SendPasswordReset(context.Background(), "a@test.com", PasswordReset{
		FirstName: "Ada",
		ResetURL:  "http://localhost/reset?token=abc",
		ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ch.exchange != "pocketbook" || ch.key != "password_reset" {
		t.Errorf("published to %q/%q", ch.exchange, ch.key)
	}
	if ch.msg.ContentType != "application/json" {
		t.Errorf("content type = %q", ch.msg.ContentType)
	}
	if ch.msg.DeliveryMode != amqp091.Persistent {
		t.Error("expected persistent delivery")
	}

	var msg PasswordResetMessage
	if err := json.Unmarshal(ch.msg.Body, &msg); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if msg.Type != "password_reset" || msg.Recipient != "a@test.com" || msg.FirstName != "Ada" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.ResetURL != "http://localhost/reset?token=abc" || !msg.ExpiresAt.Equal(expires) {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestAMQPSenderPublishError(t *testing.T) {
	boom := errors.New("channel closed")
	sender := &AMQPSender{channel: &fakeChannel{err: boom}, exchangeName: "x", queueName: "q"}

	err := sender.SendPasswordReset(context.Background(), "a@test.com", PasswordReset{})
	if !errors.Is(err, boom) {
		t.Errorf("expected publish error to be wrapped, got %v", err)
	}
}

func TestAMQPSenderClose(t *testing.T) {
	ch := &fakeChannel{}
	sender := &AMQPSender{channel: ch}
	if err := sender.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ch.closed {
		t.Error("expected channel to be closed")
	}
}

func TestLogSender(t *testing.T) {
	var s Sender = LogSender{}
	if err := s.SendPasswordReset(context.Background(), "a@test.com", PasswordReset{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
