package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Darkpool645/alex-backend/internal/model"
)

type Identity interface {
	AccountByEmail(ctx context.Context, email string) (model.Account, error)
	AdministratorByEmail(ctx context.Context, email string) (model.Account, error)
	AccountByRegistrationCode(ctx context.Context, code string) (model.Account, error)
	AccountByID(ctx context.Context, id model.ID) (model.Account, error)
	TeacherExists(ctx context.Context, name string, institutionID model.ID) (bool, error)
	ListTeachers(ctx context.Context, institutionID model.ID) ([]model.Account, error)
	CountTeachers(ctx context.Context, institutionID model.ID) (int, error)
	CreateAccount(ctx context.Context, account model.Account) error
	CreateInstitution(ctx context.Context, institution model.Institution) error
	InstitutionByID(ctx context.Context, id model.ID) (model.Institution, error)
}

// Ledger holds one-time verification codes and the per-account attempt
// counters that bound how often a code may be guessed.
type Ledger interface {
	CreateVerificationCode(ctx context.Context, code model.VerificationCode) error
	DeleteVerificationCodes(ctx context.Context, accountID model.ID) error
	FindVerificationCode(ctx context.Context, accountID model.ID, code string) (model.VerificationCode, error)
	MarkCodeVerified(ctx context.Context, id model.ID) error
	GetAttempt(ctx context.Context, accountID model.ID) (model.VerificationAttempt, error)
	CreateAttempt(ctx context.Context, accountID model.ID) error
	IncrementAttempt(ctx context.Context, accountID model.ID, at time.Time) (int, error)
	ResetAttempt(ctx context.Context, accountID model.ID) error
	DeleteAttempts(ctx context.Context, accountID model.ID) error
}

type Billing interface {
	CreateSubscription(ctx context.Context, subscription model.Subscription) error
	CreatePayment(ctx context.Context, payment model.Payment) error
}

type Exams interface {
	ExamByJoinCode(ctx context.Context, code string) (model.Exam, error)
	ExamByID(ctx context.Context, id model.ID) (model.Exam, error)
	CreateExam(ctx context.Context, exam model.Exam) error
	UpdateExam(ctx context.Context, exam model.Exam) error
	DeleteExamQuestions(ctx context.Context, examID model.ID) error
	CreateQuestion(ctx context.Context, question model.Question) error
	ExamQuestions(ctx context.Context, examID model.ID) ([]model.Question, error)
	ListActiveExamsByTeacher(ctx context.Context, teacherID model.ID) ([]model.Exam, error)
	CountExamsByInstitution(ctx context.Context, institutionID model.ID) (int, error)
	ListActiveExamsByInstitution(ctx context.Context, institutionID model.ID) ([]model.InstitutionExam, error)
}

type Queries interface {
	Identity
	Ledger
	Billing
	Exams
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgQueries struct {
	db dbtx
}

func New(db dbtx) Queries {
	return &pgQueries{db: db}
}

type Store struct {
	Queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Queries: New(pool), pool: pool}
}

// WithTx runs fn against a transaction. Any error or panic from fn rolls the
// transaction back; the connection is released on every path.
func (s *Store) WithTx(ctx context.Context, fn func(Queries) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()
	if err := fn(New(tx)); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
