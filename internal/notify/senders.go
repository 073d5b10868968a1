package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/jordan-wright/email"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrInvalidSenderConfig = errors.New("invalid_sender_config")

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type SMTPSender struct {
	pool    *email.Pool
	from    string
	timeout time.Duration
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("%w: smtp host and from are required", ErrInvalidSenderConfig)
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	pool, err := email.NewPool(cfg.Host+":"+strconv.Itoa(cfg.Port), 2, auth)
	if err != nil {
		return nil, err
	}
	return &SMTPSender{pool: pool, from: cfg.From, timeout: cfg.Timeout}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	e := &email.Email{
		To:      []string{msg.To},
		From:    s.from,
		Subject: msg.Subject,
		Text:    []byte(msg.Text),
		HTML:    []byte(msg.HTML),
		Headers: textproto.MIMEHeader{},
	}
	return s.pool.Send(e, timeout)
}

func (s *SMTPSender) Close() {
	s.pool.Close()
}

type MailgunSender struct {
	mg   *mailgun.MailgunImpl
	from string
}

func NewMailgunSender(domain, apiKey, from string) (*MailgunSender, error) {
	if domain == "" || apiKey == "" || from == "" {
		return nil, fmt.Errorf("%w: mailgun domain, key and from are required", ErrInvalidSenderConfig)
	}
	return &MailgunSender{mg: mailgun.NewMailgun(domain, apiKey), from: from}, nil
}

func (s *MailgunSender) Send(ctx context.Context, msg Message) error {
	message := mailgun.NewMessage(s.from, msg.Subject, msg.Text, msg.To)
	message.SetHtml(msg.HTML)
	_, _, err := s.mg.Send(ctx, message)
	return err
}

type SendGridSender struct {
	client *sendgrid.Client
	from   string
}

func NewSendGridSender(apiKey, from string) (*SendGridSender, error) {
	if apiKey == "" || from == "" {
		return nil, fmt.Errorf("%w: sendgrid key and from are required", ErrInvalidSenderConfig)
	}
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), from: from}, nil
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	message := mail.NewSingleEmail(mail.NewEmail("", s.from), msg.Subject, mail.NewEmail("", msg.To), msg.Text, msg.HTML)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("sendgrid: unexpected status %d", response.StatusCode)
	}
	return nil
}

// LogSender writes messages to the logger instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail not delivered (log transport)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}
