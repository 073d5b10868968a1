package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/Darkpool645/alex-backend/internal/auth"
	"github.com/Darkpool645/alex-backend/internal/billing"
	"github.com/Darkpool645/alex-backend/internal/crypto"
	"github.com/Darkpool645/alex-backend/internal/metrics"
	"github.com/Darkpool645/alex-backend/internal/model"
	"github.com/Darkpool645/alex-backend/internal/notify"
	"github.com/Darkpool645/alex-backend/internal/operations"
	"github.com/Darkpool645/alex-backend/internal/payment"
	"github.com/Darkpool645/alex-backend/internal/repository"
)

// Store is the persistence the session flows need. *repository.Store
// satisfies it.
type Store interface {
	repository.Queries
	WithTx(ctx context.Context, fn func(repository.Queries) error) error
}

type Options struct {
	SubscriptionFee    float64
	SubscriptionMonths int
	CodeTTL            time.Duration
	MaxAttempts        int
}

type Service struct {
	store    Store
	issuer   *auth.Issuer
	gateway  payment.Gateway
	notifier notify.Notifier
	rates    billing.Table
	metrics  *metrics.Recorder
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
	codes    func() (string, error)
}

func NewService(store Store, issuer *auth.Issuer, gateway payment.Gateway, notifier notify.Notifier, rates billing.Table, recorder *metrics.Recorder, logger *slog.Logger, opts Options) *Service {
	if opts.SubscriptionFee <= 0 {
		opts.SubscriptionFee = 10
	}
	if opts.SubscriptionMonths <= 0 {
		opts.SubscriptionMonths = 12
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = time.Hour
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		issuer:   issuer,
		gateway:  gateway,
		notifier: notifier,
		rates:    rates,
		metrics:  recorder,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		codes:    crypto.NewVerificationCode,
	}
}

type AccountSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role"`
	InstitutionID string `json:"institution_id,omitempty"`
	Status        string `json:"status"`
}

func summarize(account model.Account) AccountSummary {
	return AccountSummary{
		ID:            account.ID.String(),
		Name:          account.DisplayName(),
		Email:         account.EmailAddress(),
		Role:          string(account.Role),
		InstitutionID: account.InstitutionID.String(),
		Status:        string(account.Status),
	}
}

// Session is an issued access token together with the account it belongs to.
type Session struct {
	Token     string         `json:"access_token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Account   AccountSummary `json:"account"`
}

type ExamSession struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
	ExamID    string    `json:"exam_id"`
}

func (s *Service) issue(account model.Account, ttl time.Duration) (string, time.Time, error) {
	token, expiresAt, err := s.issuer.Issue(account.ID, account.Role, account.InstitutionID, ttl)
	if err != nil {
		return "", time.Time{}, operations.New(operations.KindInternal, operations.ErrServerError, err)
	}
	s.metrics.TokenIssued(string(account.Role))
	return token, expiresAt, nil
}

func (s *Service) newCode(accountID model.ID, now time.Time, code string) model.VerificationCode {
	return model.VerificationCode{
		ID:        model.NewID(),
		AccountID: accountID,
		Code:      code,
		ExpiresAt: now.Add(s.opts.CodeTTL),
		CreatedAt: now,
	}
}

// finish records the outcome of an operation and logs unexpected failures
// with their internal cause.
func (s *Service) finish(ctx context.Context, operation string, err error) {
	if err == nil {
		s.metrics.Session(operation, "ok")
		return
	}
	opErr := operations.As(err)
	s.metrics.Session(operation, opErr.Code)
	switch opErr.Kind {
	case operations.KindPersistence, operations.KindIntegrity, operations.KindInternal, operations.KindUpstream:
		s.logger.ErrorContext(ctx, "session operation failed",
			slog.String("operation", operation),
			slog.String("code", opErr.Code),
			slog.Any("error", opErr.Err),
		)
	default:
		s.logger.DebugContext(ctx, "session operation rejected",
			slog.String("operation", operation),
			slog.String("code", opErr.Code),
		)
	}
}
