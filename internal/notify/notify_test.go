package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Darkpool645/alex-backend/internal/logging"
)

type captureSender struct {
	messages []Message
	err      error
	deadline bool
}

func (s *captureSender) Send(ctx context.Context, msg Message) error {
	_, s.deadline = ctx.Deadline()
	s.messages = append(s.messages, msg)
	return s.err
}

func newTestMailer(t *testing.T, sender Sender) *Mailer {
	t.Helper()
	mailer, err := NewMailer(sender, "Alex", time.Hour, time.Second)
	if err != nil {
		t.Fatalf("mailer error: %v", err)
	}
	return mailer
}

func TestSendVerificationCode(t *testing.T) {
	sender := &captureSender{}
	mailer := newTestMailer(t, sender)

	if err := mailer.SendVerificationCode(context.Background(), "admin@example.test", "482913"); err != nil {
		t.Fatalf("send error: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.messages))
	}
	msg := sender.messages[0]
	if msg.To != "admin@example.test" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if !strings.Contains(msg.HTML, "482913") || !strings.Contains(msg.Text, "482913") {
		t.Fatalf("expected code in both bodies")
	}
	if !strings.Contains(msg.Text, "1 hour") {
		t.Fatalf("expected validity in text body, got %q", msg.Text)
	}
	if !sender.deadline {
		t.Fatalf("expected send timeout on context")
	}
}

func TestSendWelcome(t *testing.T) {
	sender := &captureSender{}
	mailer := newTestMailer(t, sender)

	if err := mailer.SendWelcome(context.Background(), "admin@example.test", "111111"); err != nil {
		t.Fatalf("send error: %v", err)
	}
	msg := sender.messages[0]
	if !strings.HasPrefix(msg.Subject, "Welcome") {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "Welcome to Alex") {
		t.Fatalf("expected rendered welcome template")
	}
}

func TestSendErrors(t *testing.T) {
	boom := errors.New("smtp down")
	mailer := newTestMailer(t, &captureSender{err: boom})

	if err := mailer.SendVerificationCode(context.Background(), "a@example.test", "123456"); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if err := mailer.SendVerificationCode(context.Background(), "", "123456"); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestSenderConfigValidation(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{}); !errors.Is(err, ErrInvalidSenderConfig) {
		t.Fatalf("expected smtp config error, got %v", err)
	}
	if _, err := NewMailgunSender("", "key", "from@example.test"); !errors.Is(err, ErrInvalidSenderConfig) {
		t.Fatalf("expected mailgun config error, got %v", err)
	}
	if _, err := NewSendGridSender("", "from@example.test"); !errors.Is(err, ErrInvalidSenderConfig) {
		t.Fatalf("expected sendgrid config error, got %v", err)
	}
	if _, err := NewSendGridSender("key", "from@example.test"); err != nil {
		t.Fatalf("unexpected sendgrid error: %v", err)
	}
}

func TestLogSender(t *testing.T) {
	sender := LogSender{Logger: logging.Discard()}
	if err := sender.Send(context.Background(), Message{To: "a@example.test"}); err != nil {
		t.Fatalf("log sender error: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	cases := map[time.Duration]string{
		time.Hour:        "1 hour",
		2 * time.Hour:    "2 hours",
		30 * time.Minute: "30 minutes",
		90 * time.Minute: "90 minutes",
	}
	for d, expected := range cases {
		if got := describe(d); got != expected {
			t.Fatalf("describe(%s) expected %q, got %q", d, expected, got)
		}
	}
}
