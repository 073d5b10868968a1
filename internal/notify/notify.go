package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"
)

var ErrNoRecipient = errors.New("missing_recipient")

//go:embed templates/*.html
var templateFS embed.FS

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender is a mail transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier delivers the messages the session flows need.
type Notifier interface {
	SendWelcome(ctx context.Context, to, code string) error
	SendVerificationCode(ctx context.Context, to, code string) error
}

type Mailer struct {
	sender    Sender
	product   string
	validFor  time.Duration
	timeout   time.Duration
	templates *template.Template
}

func NewMailer(sender Sender, product string, validFor, timeout time.Duration) (*Mailer, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Mailer{
		sender:    sender,
		product:   product,
		validFor:  validFor,
		timeout:   timeout,
		templates: templates,
	}, nil
}

type templateData struct {
	Product  string
	Code     string
	ValidFor string
}

func (m *Mailer) SendWelcome(ctx context.Context, to, code string) error {
	subject := fmt.Sprintf("Welcome to %s", m.product)
	text := fmt.Sprintf("Your %s account is ready. Verification code: %s (valid for %s).", m.product, code, describe(m.validFor))
	return m.send(ctx, to, subject, text, "welcome.html", code)
}

func (m *Mailer) SendVerificationCode(ctx context.Context, to, code string) error {
	subject := fmt.Sprintf("Your %s verification code", m.product)
	text := fmt.Sprintf("Your verification code is %s. It expires in %s.", code, describe(m.validFor))
	return m.send(ctx, to, subject, text, "verification.html", code)
}

func (m *Mailer) send(ctx context.Context, to, subject, text, name, code string) error {
	if to == "" {
		return ErrNoRecipient
	}
	var html bytes.Buffer
	data := templateData{Product: m.product, Code: code, ValidFor: describe(m.validFor)}
	if err := m.templates.ExecuteTemplate(&html, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.sender.Send(ctx, Message{To: to, Subject: subject, Text: text, HTML: html.String()})
}

func describe(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d > time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
