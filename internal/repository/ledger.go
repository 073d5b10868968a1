package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Darkpool645/alex-backend/internal/model"
)

func (q *pgQueries) CreateVerificationCode(ctx context.Context, code model.VerificationCode) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO verification_codes (id, account_id, code, expires_at, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, pgID(code.ID), pgID(code.AccountID), code.Code, code.ExpiresAt, code.Verified, code.CreatedAt)
	return mapError(err)
}

func (q *pgQueries) DeleteVerificationCodes(ctx context.Context, accountID model.ID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM verification_codes WHERE account_id = $1`, pgID(accountID))
	return mapError(err)
}

// FindVerificationCode returns the newest unconsumed code matching code for
// the account. Expiry is not filtered here; callers decide.
func (q *pgQueries) FindVerificationCode(ctx context.Context, accountID model.ID, code string) (model.VerificationCode, error) {
	var (
		found       model.VerificationCode
		id, account pgtype.UUID
	)
	err := q.db.QueryRow(ctx, `
		SELECT id, account_id, code, expires_at, verified, created_at
		FROM verification_codes
		WHERE account_id = $1 AND code = $2 AND verified = false
		ORDER BY created_at DESC
		LIMIT 1
	`, pgID(accountID), code).Scan(&id, &account, &found.Code, &found.ExpiresAt, &found.Verified, &found.CreatedAt)
	if err != nil {
		return model.VerificationCode{}, mapError(err)
	}
	found.ID = modelID(id)
	found.AccountID = modelID(account)
	return found, nil
}

func (q *pgQueries) MarkCodeVerified(ctx context.Context, id model.ID) error {
	tag, err := q.db.Exec(ctx, `UPDATE verification_codes SET verified = true WHERE id = $1 AND verified = false`, pgID(id))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *pgQueries) GetAttempt(ctx context.Context, accountID model.ID) (model.VerificationAttempt, error) {
	var (
		attempt model.VerificationAttempt
		account pgtype.UUID
		last    pgtype.Timestamptz
	)
	err := q.db.QueryRow(ctx, `
		SELECT account_id, attempts, last_attempt_at
		FROM verification_attempts
		WHERE account_id = $1
	`, pgID(accountID)).Scan(&account, &attempt.Attempts, &last)
	if err != nil {
		return model.VerificationAttempt{}, mapError(err)
	}
	attempt.AccountID = modelID(account)
	if last.Valid {
		at := last.Time
		attempt.LastAttemptAt = &at
	}
	return attempt, nil
}

func (q *pgQueries) CreateAttempt(ctx context.Context, accountID model.ID) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO verification_attempts (account_id, attempts)
		VALUES ($1, 0)
		ON CONFLICT (account_id) DO NOTHING
	`, pgID(accountID))
	return mapError(err)
}

// IncrementAttempt bumps the counter in a single statement and returns the
// new value.
func (q *pgQueries) IncrementAttempt(ctx context.Context, accountID model.ID, at time.Time) (int, error) {
	var attempts int
	err := q.db.QueryRow(ctx, `
		UPDATE verification_attempts
		SET attempts = attempts + 1, last_attempt_at = $2
		WHERE account_id = $1
		RETURNING attempts
	`, pgID(accountID), at).Scan(&attempts)
	return attempts, mapError(err)
}

func (q *pgQueries) ResetAttempt(ctx context.Context, accountID model.ID) error {
	_, err := q.db.Exec(ctx, `UPDATE verification_attempts SET attempts = 0 WHERE account_id = $1`, pgID(accountID))
	return mapError(err)
}

func (q *pgQueries) DeleteAttempts(ctx context.Context, accountID model.ID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM verification_attempts WHERE account_id = $1`, pgID(accountID))
	return mapError(err)
}

func (q *pgQueries) CreateSubscription(ctx context.Context, subscription model.Subscription) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO subscriptions (id, administrator_id, starts_at, ends_at, status)
		VALUES ($1, $2, $3, $4, $5)
	`, pgID(subscription.ID), pgID(subscription.AdministratorID), subscription.StartsAt, subscription.EndsAt, subscription.Status)
	return mapError(err)
}

func (q *pgQueries) CreatePayment(ctx context.Context, payment model.Payment) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO payments (id, subscription_id, amount_minor, currency, method, provider_reference, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, pgID(payment.ID), pgID(payment.SubscriptionID), payment.AmountMinor, payment.Currency,
		payment.Method, payment.ProviderReference, payment.Status, payment.PaidAt)
	return mapError(err)
}
