package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Darkpool645/alex-backend/internal/model"
	"github.com/Darkpool645/alex-backend/internal/operations"
	"github.com/Darkpool645/alex-backend/internal/repository"
)

type TeacherLoginInput struct {
	Code string `validate:"required"`
}

// LoginTeacher exchanges a teacher's registration code for a token. The
// registration code is the only credential a teacher has.
func (s *Service) LoginTeacher(ctx context.Context, in TeacherLoginInput) (result Session, err error) {
	defer func() { s.finish(ctx, "login_teacher", err) }()

	in.Code = strings.TrimSpace(in.Code)
	if err := operations.Validate(in); err != nil {
		return Session{}, err
	}
	teacher, err := s.store.AccountByRegistrationCode(ctx, in.Code)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, operations.New(operations.KindInvalidCode, operations.ErrInvalidCode, nil)
	}
	if err != nil {
		return Session{}, operations.Persistence(err)
	}
	if teacher.Status != model.StatusActive {
		return Session{}, operations.New(operations.KindForbidden, operations.ErrInactiveAccount, nil)
	}

	token, expiresAt, err := s.issue(teacher, 0)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt, Account: summarize(teacher)}, nil
}

type JoinExamInput struct {
	ExamCode string `validate:"required"`
}

// JoinExam creates an anonymous student in the exam's institution and issues
// a token that lives exactly as long as the exam.
func (s *Service) JoinExam(ctx context.Context, in JoinExamInput) (result ExamSession, err error) {
	defer func() { s.finish(ctx, "join_exam", err) }()

	in.ExamCode = strings.ToUpper(strings.TrimSpace(in.ExamCode))
	if err := operations.Validate(in); err != nil {
		return ExamSession{}, err
	}
	exam, err := s.store.ExamByJoinCode(ctx, in.ExamCode)
	if errors.Is(err, repository.ErrNotFound) {
		return ExamSession{}, operations.New(operations.KindInvalidCode, operations.ErrInvalidCode, nil)
	}
	if err != nil {
		return ExamSession{}, operations.Persistence(err)
	}
	if exam.Status != model.StatusActive {
		return ExamSession{}, operations.New(operations.KindForbidden, operations.ErrInactiveExam, nil)
	}

	institutionID, err := s.examInstitution(ctx, exam)
	if err != nil {
		return ExamSession{}, err
	}

	student := model.Account{
		ID:            model.NewID(),
		Role:          model.RoleStudent,
		InstitutionID: institutionID,
		Status:        model.StatusActive,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, student); err != nil {
		return ExamSession{}, operations.Persistence(err)
	}

	token, expiresAt, err := s.issue(student, exam.Duration())
	if err != nil {
		return ExamSession{}, err
	}
	return ExamSession{Token: token, ExpiresAt: expiresAt, ExamID: exam.ID.String()}, nil
}

// examInstitution resolves exam -> teacher -> institution. Every hop must
// exist; a gap is a data integrity failure, not a client error.
func (s *Service) examInstitution(ctx context.Context, exam model.Exam) (model.ID, error) {
	if exam.TeacherID.IsZero() {
		return model.ID{}, operations.New(operations.KindIntegrity, operations.ErrIntegrity,
			fmt.Errorf("exam %s has no teacher", exam.ID))
	}
	teacher, err := s.store.AccountByID(ctx, exam.TeacherID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ID{}, operations.New(operations.KindIntegrity, operations.ErrIntegrity,
			fmt.Errorf("exam %s references missing teacher %s", exam.ID, exam.TeacherID))
	}
	if err != nil {
		return model.ID{}, operations.Persistence(err)
	}
	if teacher.InstitutionID.IsZero() {
		return model.ID{}, operations.New(operations.KindIntegrity, operations.ErrIntegrity,
			fmt.Errorf("teacher %s has no institution", teacher.ID))
	}
	return teacher.InstitutionID, nil
}
