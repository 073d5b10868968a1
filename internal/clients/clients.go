package clients

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Darkpool645/alex-backend/internal/config"
	"github.com/Darkpool645/alex-backend/internal/notify"
	"github.com/Darkpool645/alex-backend/internal/payment"
)

const (
	productName        = "ALEX"
	breakerOpenTimeout = 30 * time.Second
)

// Clients holds the external adapters the service talks to.
type Clients struct {
	Redis    *redis.Client
	Gateway  payment.Gateway
	Breaker  *payment.Breaker
	Notifier notify.Notifier

	smtp *notify.SMTPSender
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Clients, error) {
	c := &Clients{}

	if cfg.RedisAddr != "" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
	}

	if err := c.initGateway(cfg, logger); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initNotifier(cfg, logger); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Clients) initGateway(cfg config.Config, logger *slog.Logger) error {
	var gateway payment.Gateway
	switch cfg.PaymentMode {
	case "sandbox":
		gateway = payment.Sandbox{}
	case "http":
		providers := map[string]payment.Provider{}
		if cfg.StripeURL != "" {
			providers["stripe"] = payment.Provider{URL: cfg.StripeURL, APIKey: cfg.StripeKey}
		}
		if cfg.PaypalURL != "" {
			providers["paypal"] = payment.Provider{URL: cfg.PaypalURL, APIKey: cfg.PaypalKey}
		}
		if len(providers) == 0 {
			return fmt.Errorf("payment mode http needs at least one provider url")
		}
		gateway = payment.NewHTTPGateway(providers, cfg.PaymentTimeout)
	default:
		return fmt.Errorf("unknown payment mode %q", cfg.PaymentMode)
	}

	trips := cfg.PaymentBreakerTrips
	if trips <= 0 {
		trips = 5
	}
	c.Breaker = payment.NewBreaker(gateway, "payment-gateway", uint32(trips), breakerOpenTimeout)
	c.Gateway = c.Breaker

	if c.Redis != nil {
		c.Gateway = payment.NewIdempotent(c.Breaker, c.Redis, cfg.PaymentIdempotencyTTL, 2*cfg.PaymentTimeout)
	} else {
		logger.Warn("redis not configured, payment retries are not deduplicated")
	}
	return nil
}

func (c *Clients) initNotifier(cfg config.Config, logger *slog.Logger) error {
	var sender notify.Sender
	switch cfg.MailProvider {
	case "log", "":
		sender = notify.LogSender{Logger: logger}
	case "smtp":
		smtpSender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			Timeout:  cfg.MailTimeout,
		})
		if err != nil {
			return err
		}
		c.smtp = smtpSender
		sender = smtpSender
	case "mailgun":
		mg, err := notify.NewMailgunSender(cfg.MailgunDomain, cfg.MailgunKey, cfg.MailFrom)
		if err != nil {
			return err
		}
		sender = mg
	case "sendgrid":
		sg, err := notify.NewSendGridSender(cfg.SendGridKey, cfg.MailFrom)
		if err != nil {
			return err
		}
		sender = sg
	default:
		return fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}

	mailer, err := notify.NewMailer(sender, productName, cfg.VerificationCodeTTL, cfg.MailTimeout)
	if err != nil {
		return err
	}
	c.Notifier = mailer
	return nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.smtp != nil {
		c.smtp.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
