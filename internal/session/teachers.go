package session

import (
	"context"
	"errors"
	"strings"

	"github.com/Darkpool645/alex-backend/internal/crypto"
	"github.com/Darkpool645/alex-backend/internal/model"
	"github.com/Darkpool645/alex-backend/internal/operations"
	"github.com/Darkpool645/alex-backend/internal/repository"
)

const registrationCodeTries = 3

type RegisterTeacherInput struct {
	Name          string   `validate:"required,max=120"`
	InstitutionID model.ID `validate:"-"`
}

type Teacher struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	InstitutionID    string `json:"institution_id"`
	RegistrationCode string `json:"registration_code"`
	Status           string `json:"status"`
}

func teacherView(account model.Account) Teacher {
	view := Teacher{
		ID:            account.ID.String(),
		Name:          account.DisplayName(),
		InstitutionID: account.InstitutionID.String(),
		Status:        string(account.Status),
	}
	if account.RegistrationCode != nil {
		view.RegistrationCode = *account.RegistrationCode
	}
	return view
}

// RegisterTeacher onboards a teacher into an institution and hands back the
// registration code the teacher signs in with.
func (s *Service) RegisterTeacher(ctx context.Context, in RegisterTeacherInput) (result Teacher, err error) {
	defer func() { s.finish(ctx, "register_teacher", err) }()

	in.Name = strings.TrimSpace(in.Name)
	if err := operations.Validate(in); err != nil {
		return Teacher{}, err
	}
	if in.InstitutionID.IsZero() {
		return Teacher{}, operations.Validation(operations.ErrMissingFields)
	}
	if _, err := s.store.InstitutionByID(ctx, in.InstitutionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Teacher{}, operations.New(operations.KindNotFound, operations.ErrInstitutionNotFound, nil)
		}
		return Teacher{}, operations.Persistence(err)
	}

	for try := 0; try < registrationCodeTries; try++ {
		exists, err := s.store.TeacherExists(ctx, in.Name, in.InstitutionID)
		if err != nil {
			return Teacher{}, operations.Persistence(err)
		}
		if exists {
			return Teacher{}, operations.New(operations.KindConflict, operations.ErrAlreadyExists, nil)
		}

		code, err := crypto.NewRegistrationCode()
		if err != nil {
			return Teacher{}, operations.New(operations.KindInternal, operations.ErrServerError, err)
		}
		name := in.Name
		teacher := model.Account{
			ID:               model.NewID(),
			Name:             &name,
			Role:             model.RoleTeacher,
			InstitutionID:    in.InstitutionID,
			Status:           model.StatusActive,
			RegistrationCode: &code,
			CreatedAt:        s.now().UTC(),
		}
		err = s.store.WithTx(ctx, func(q repository.Queries) error {
			return q.CreateAccount(ctx, teacher)
		})
		if err == nil {
			return teacherView(teacher), nil
		}
		// A conflict here is either a concurrent duplicate (caught by the
		// next TeacherExists) or a registration code collision.
		if !errors.Is(err, repository.ErrConflict) {
			return Teacher{}, operations.Persistence(err)
		}
	}
	return Teacher{}, operations.New(operations.KindConflict, operations.ErrAlreadyExists, nil)
}

func (s *Service) ListTeachers(ctx context.Context, institutionID model.ID) ([]Teacher, error) {
	accounts, err := s.store.ListTeachers(ctx, institutionID)
	if err != nil {
		return nil, operations.Persistence(err)
	}
	teachers := make([]Teacher, 0, len(accounts))
	for _, account := range accounts {
		teachers = append(teachers, teacherView(account))
	}
	return teachers, nil
}

func (s *Service) CountTeachers(ctx context.Context, institutionID model.ID) (int, error) {
	total, err := s.store.CountTeachers(ctx, institutionID)
	if err != nil {
		return 0, operations.Persistence(err)
	}
	return total, nil
}
