package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Darkpool645/alex-backend/internal/billing"
	"github.com/Darkpool645/alex-backend/internal/model"
	"github.com/Darkpool645/alex-backend/internal/operations"
	"github.com/Darkpool645/alex-backend/internal/payment"
	"github.com/Darkpool645/alex-backend/internal/repository"
)

type RegisterAdministratorInput struct {
	Name               string `validate:"required,max=120"`
	Email              string `validate:"required,email,max=254"`
	InstitutionName    string `validate:"required,max=200"`
	InstitutionAddress string `validate:"max=300"`
	InstitutionPhone   string `validate:"max=30"`
	PaymentMethod      string `validate:"required"`
	PaymentToken       string `validate:"required"`
	Country            string `validate:"omitempty,len=3,alpha"`
}

type Registration struct {
	Session
	Currency    string `json:"currency"`
	AmountMinor int64  `json:"amount_minor"`
}

// RegisterAdministrator charges the subscription fee and, only once the
// charge is confirmed, persists the institution, the administrator and the
// billing records in one transaction.
func (s *Service) RegisterAdministrator(ctx context.Context, in RegisterAdministratorInput) (result Registration, err error) {
	defer func() { s.finish(ctx, "register_administrator", err) }()

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := operations.Validate(in); err != nil {
		return Registration{}, err
	}

	_, err = s.store.AccountByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return Registration{}, operations.New(operations.KindConflict, operations.ErrAlreadyExists, nil)
	case !errors.Is(err, repository.ErrNotFound):
		return Registration{}, operations.Persistence(err)
	}

	currency, amount, err := s.rates.Quote(in.Country, s.opts.SubscriptionFee)
	if err != nil {
		if errors.Is(err, billing.ErrUnsupportedCurrency) {
			return Registration{}, operations.New(operations.KindValidation, operations.ErrUnsupportedCurrency, err)
		}
		return Registration{}, operations.New(operations.KindInternal, operations.ErrServerError, err)
	}

	code, err := s.codes()
	if err != nil {
		return Registration{}, operations.New(operations.KindInternal, operations.ErrServerError, err)
	}

	receipt, err := s.gateway.Charge(ctx, payment.Charge{
		Method:         in.PaymentMethod,
		Token:          in.PaymentToken,
		Currency:       currency,
		AmountMinor:    amount,
		Description:    fmt.Sprintf("Annual subscription for %s", in.InstitutionName),
		IdempotencyKey: in.Email,
	})
	s.metrics.Charge(currency, err)
	if err != nil {
		return Registration{}, operations.New(operations.KindUpstream, operations.ErrPaymentFailed, err)
	}

	now := s.now().UTC()
	name, email := in.Name, in.Email
	institution := model.Institution{
		ID:        model.NewID(),
		Name:      in.InstitutionName,
		Address:   in.InstitutionAddress,
		Phone:     in.InstitutionPhone,
		CreatedAt: now,
	}
	admin := model.Account{
		ID:            model.NewID(),
		Name:          &name,
		Email:         &email,
		Role:          model.RoleAdministrator,
		InstitutionID: institution.ID,
		Status:        model.StatusActive,
		CreatedAt:     now,
	}
	subscription := model.Subscription{
		ID:              model.NewID(),
		AdministratorID: admin.ID,
		StartsAt:        now,
		EndsAt:          now.AddDate(0, s.opts.SubscriptionMonths, 0),
		Status:          "active",
	}
	paid := model.Payment{
		ID:                model.NewID(),
		SubscriptionID:    subscription.ID,
		AmountMinor:       receipt.AmountMinor,
		Currency:          currency,
		Method:            in.PaymentMethod,
		ProviderReference: receipt.Reference,
		Status:            "completed",
		PaidAt:            now,
	}

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.CreateInstitution(ctx, institution); err != nil {
			return err
		}
		if err := q.CreateAccount(ctx, admin); err != nil {
			return err
		}
		if err := q.CreateVerificationCode(ctx, s.newCode(admin.ID, now, code)); err != nil {
			return err
		}
		if err := q.CreateSubscription(ctx, subscription); err != nil {
			return err
		}
		return q.CreatePayment(ctx, paid)
	})
	if err != nil {
		// The charge is not refunded; a retry with the same email and payment
		// token reuses it through the idempotent gateway.
		s.logger.ErrorContext(ctx, "registration rolled back after confirmed charge",
			slog.String("provider_reference", receipt.Reference),
			slog.String("currency", currency),
			slog.Int64("amount_minor", receipt.AmountMinor),
		)
		if errors.Is(err, repository.ErrConflict) {
			return Registration{}, operations.New(operations.KindConflict, operations.ErrAlreadyExists, err)
		}
		return Registration{}, operations.Persistence(err)
	}

	notifyErr := s.notifier.SendWelcome(ctx, email, code)
	s.metrics.Notification("welcome", notifyErr)
	if notifyErr != nil {
		s.logger.WarnContext(ctx, "welcome message not delivered",
			slog.String("account_id", admin.ID.String()),
			slog.Any("error", notifyErr),
		)
	}

	token, expiresAt, err := s.issue(admin, 0)
	if err != nil {
		return Registration{}, err
	}
	return Registration{
		Session:     Session{Token: token, ExpiresAt: expiresAt, Account: summarize(admin)},
		Currency:    currency,
		AmountMinor: receipt.AmountMinor,
	}, nil
}
