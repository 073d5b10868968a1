package session

import (
	"context"
	"errors"
	"strings"

	"github.com/Darkpool645/alex-backend/internal/model"
	"github.com/Darkpool645/alex-backend/internal/operations"
	"github.com/Darkpool645/alex-backend/internal/repository"
)

type ChallengeInput struct {
	Email string `validate:"required,email"`
}

// ChallengeAdministratorLogin mails a fresh code and then replaces every
// earlier code and the attempt counter of the account with it.
func (s *Service) ChallengeAdministratorLogin(ctx context.Context, in ChallengeInput) (err error) {
	defer func() { s.finish(ctx, "challenge_administrator", err) }()

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := operations.Validate(in); err != nil {
		return err
	}
	admin, err := s.administrator(ctx, in.Email)
	if err != nil {
		return err
	}

	code, err := s.codes()
	if err != nil {
		return operations.New(operations.KindInternal, operations.ErrServerError, err)
	}
	sendErr := s.notifier.SendVerificationCode(ctx, in.Email, code)
	s.metrics.Notification("verification", sendErr)
	if sendErr != nil {
		return operations.New(operations.KindUpstream, operations.ErrNotificationFailed, sendErr)
	}

	now := s.now().UTC()
	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.DeleteVerificationCodes(ctx, admin.ID); err != nil {
			return err
		}
		if err := q.DeleteAttempts(ctx, admin.ID); err != nil {
			return err
		}
		return q.CreateVerificationCode(ctx, s.newCode(admin.ID, now, code))
	})
	if err != nil {
		return operations.Persistence(err)
	}
	return nil
}

type VerifyInput struct {
	Email string `validate:"required,email"`
	Code  string
}

// VerifyAdministratorCode checks a submitted code against the attempt ledger.
// The attempt limit is enforced before the code is looked at, and an expired
// code never counts as a failed attempt.
func (s *Service) VerifyAdministratorCode(ctx context.Context, in VerifyInput) (result Session, err error) {
	defer func() { s.finish(ctx, "verify_administrator_code", err) }()

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Code = strings.TrimSpace(in.Code)
	if err := operations.Validate(in); err != nil {
		return Session{}, err
	}
	admin, err := s.administrator(ctx, in.Email)
	if err != nil {
		return Session{}, err
	}

	attempt, err := s.store.GetAttempt(ctx, admin.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if err := s.store.CreateAttempt(ctx, admin.ID); err != nil {
			return Session{}, operations.Persistence(err)
		}
	case err != nil:
		return Session{}, operations.Persistence(err)
	case attempt.Attempts >= s.opts.MaxAttempts:
		return Session{}, operations.New(operations.KindAttemptsExceeded, operations.ErrAttemptsExceeded, nil)
	}

	found, err := s.store.FindVerificationCode(ctx, admin.ID, in.Code)
	if errors.Is(err, repository.ErrNotFound) {
		attempts, err := s.store.IncrementAttempt(ctx, admin.ID, s.now().UTC())
		if err != nil {
			return Session{}, operations.Persistence(err)
		}
		return Session{}, &operations.Error{
			Kind:      operations.KindInvalidCode,
			Code:      operations.ErrInvalidCode,
			Remaining: max(s.opts.MaxAttempts-attempts, 0),
		}
	}
	if err != nil {
		return Session{}, operations.Persistence(err)
	}

	if found.ExpiredAt(s.now()) {
		return Session{}, operations.New(operations.KindExpired, operations.ErrCodeExpired, nil)
	}

	// MarkCodeVerified only matches an unconsumed code, so of two concurrent
	// redemptions exactly one commits.
	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.MarkCodeVerified(ctx, found.ID); err != nil {
			return err
		}
		return q.ResetAttempt(ctx, admin.ID)
	})
	if errors.Is(err, repository.ErrNotFound) {
		// The winning redemption already reset the counter.
		return Session{}, &operations.Error{
			Kind:      operations.KindInvalidCode,
			Code:      operations.ErrInvalidCode,
			Remaining: s.opts.MaxAttempts,
			Err:       err,
		}
	}
	if err != nil {
		return Session{}, operations.Persistence(err)
	}

	token, expiresAt, err := s.issue(admin, 0)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt, Account: summarize(admin)}, nil
}

func (s *Service) administrator(ctx context.Context, email string) (model.Account, error) {
	admin, err := s.store.AdministratorByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, operations.New(operations.KindNotFound, operations.ErrNotFound, nil)
	}
	if err != nil {
		return model.Account{}, operations.Persistence(err)
	}
	return admin, nil
}
