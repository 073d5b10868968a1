package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Darkpool645/alex-backend/internal/config"
	"github.com/Darkpool645/alex-backend/internal/logging"
	"github.com/Darkpool645/alex-backend/internal/notify"
	"github.com/Darkpool645/alex-backend/internal/payment"
)

func baseConfig() config.Config {
	return config.Config{
		PaymentMode:         "sandbox",
		PaymentTimeout:      time.Second,
		PaymentBreakerTrips: 2,
		MailProvider:        "log",
		MailFrom:            "ALEX <no-reply@alex.test>",
		MailTimeout:         time.Second,
		VerificationCodeTTL: time.Hour,
	}
}

func TestNewSandboxWithoutRedis(t *testing.T) {
	c, err := New(context.Background(), baseConfig(), logging.Discard())
	if err != nil {
		t.Fatalf("new error: %v", err)
	}
	defer c.Close()

	if _, ok := c.Gateway.(*payment.Breaker); !ok {
		t.Fatalf("expected breaker-wrapped gateway without redis, got %T", c.Gateway)
	}
	receipt, err := c.Gateway.Charge(context.Background(), payment.Charge{
		Method: "stripe", Token: "tok_visa", Currency: "USD", AmountMinor: 1000,
	})
	if err != nil {
		t.Fatalf("charge error: %v", err)
	}
	if receipt.Reference == "" {
		t.Fatalf("expected sandbox reference")
	}
	if err := c.Notifier.SendWelcome(context.Background(), "ana@example.test", "123456"); err != nil {
		t.Fatalf("log notifier error: %v", err)
	}
}

func TestNewRejectsUnknownModes(t *testing.T) {
	cfg := baseConfig()
	cfg.PaymentMode = "carrier-pigeon"
	if _, err := New(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected unknown payment mode error")
	}

	cfg = baseConfig()
	cfg.PaymentMode = "http"
	if _, err := New(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected error for http mode without providers")
	}

	cfg = baseConfig()
	cfg.MailProvider = "fax"
	if _, err := New(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected unknown mail provider error")
	}
}

func TestNewValidatesMailProviderConfig(t *testing.T) {
	for _, provider := range []string{"mailgun", "sendgrid"} {
		cfg := baseConfig()
		cfg.MailProvider = provider
		_, err := New(context.Background(), cfg, logging.Discard())
		if !errors.Is(err, notify.ErrInvalidSenderConfig) {
			t.Fatalf("%s: expected invalid sender config, got %v", provider, err)
		}
	}
}

func TestCloseNil(t *testing.T) {
	var c *Clients
	c.Close()
}
