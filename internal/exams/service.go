// Package exams lets teachers author exams and lets students of the same
// institution read them.
package exams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Darkpool645/alex-backend/internal/crypto"
	"github.com/Darkpool645/alex-backend/internal/metrics"
	"github.com/Darkpool645/alex-backend/internal/model"
	"github.com/Darkpool645/alex-backend/internal/operations"
	"github.com/Darkpool645/alex-backend/internal/repository"
)

const joinCodeTries = 3

type Store interface {
	repository.Queries
	WithTx(ctx context.Context, fn func(repository.Queries) error) error
}

type Service struct {
	store   Store
	metrics *metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store Store, recorder *metrics.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, metrics: recorder, logger: logger, now: time.Now}
}

type AnswerInput struct {
	Body    string `json:"body" validate:"required"`
	Correct bool   `json:"correct"`
}

type QuestionInput struct {
	Body    string        `json:"body" validate:"required"`
	Answers []AnswerInput `json:"answers" validate:"required,min=1,dive"`
}

type ExamInput struct {
	Name            string          `json:"name" validate:"required,max=200"`
	Description     string          `json:"description" validate:"required"`
	Subject         string          `json:"subject" validate:"required"`
	DurationMinutes int             `json:"duration_minutes" validate:"required,min=1,max=1440"`
	EducationLevel  string          `json:"education_level" validate:"required"`
	Modality        string          `json:"modality" validate:"required"`
	Shift           string          `json:"shift" validate:"required"`
	Questions       []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// Create stores a new active exam with its questions in one transaction and
// assigns it a fresh join code.
func (s *Service) Create(ctx context.Context, teacherID model.ID, in ExamInput) (result Exam, err error) {
	defer func() { s.finish(ctx, "create_exam", err) }()

	in = trim(in)
	if err := operations.Validate(in); err != nil {
		return Exam{}, err
	}

	for try := 0; try < joinCodeTries; try++ {
		code, err := crypto.NewExamCode()
		if err != nil {
			return Exam{}, operations.New(operations.KindInternal, operations.ErrServerError, err)
		}
		exam := model.Exam{
			ID:              model.NewID(),
			TeacherID:       teacherID,
			Name:            in.Name,
			Description:     in.Description,
			Subject:         in.Subject,
			DurationMinutes: in.DurationMinutes,
			EducationLevel:  in.EducationLevel,
			Modality:        in.Modality,
			Shift:           in.Shift,
			JoinCode:        code,
			Status:          model.StatusActive,
			CreatedAt:       s.now().UTC(),
		}
		exam.Questions = buildQuestions(exam.ID, in.Questions)

		err = s.store.WithTx(ctx, func(q repository.Queries) error {
			if err := q.CreateExam(ctx, exam); err != nil {
				return err
			}
			return insertQuestions(ctx, q, exam.Questions)
		})
		if err == nil {
			return view(exam, true), nil
		}
		// join code collision
		if !errors.Is(err, repository.ErrConflict) {
			return Exam{}, operations.Persistence(err)
		}
	}
	return Exam{}, operations.New(operations.KindConflict, operations.ErrAlreadyExists, nil)
}

// Update rewrites the header of an exam the teacher owns and replaces all of
// its questions and answers. Either every change lands or none does.
func (s *Service) Update(ctx context.Context, teacherID, examID model.ID, in ExamInput) (result Exam, err error) {
	defer func() { s.finish(ctx, "update_exam", err) }()

	in = trim(in)
	if err := operations.Validate(in); err != nil {
		return Exam{}, err
	}
	exam, err := s.owned(ctx, teacherID, examID)
	if err != nil {
		return Exam{}, err
	}

	exam.Name = in.Name
	exam.Description = in.Description
	exam.Subject = in.Subject
	exam.DurationMinutes = in.DurationMinutes
	exam.EducationLevel = in.EducationLevel
	exam.Modality = in.Modality
	exam.Shift = in.Shift
	exam.Questions = buildQuestions(exam.ID, in.Questions)

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.UpdateExam(ctx, exam); err != nil {
			return err
		}
		if err := q.DeleteExamQuestions(ctx, exam.ID); err != nil {
			return err
		}
		return insertQuestions(ctx, q, exam.Questions)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return Exam{}, operations.New(operations.KindNotFound, operations.ErrExamNotFound, nil)
	}
	if err != nil {
		return Exam{}, operations.Persistence(err)
	}
	return view(exam, true), nil
}

// ListActive returns the teacher's active exams with questions and answers.
func (s *Service) ListActive(ctx context.Context, teacherID model.ID) ([]Exam, error) {
	exams, err := s.store.ListActiveExamsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, operations.Persistence(err)
	}
	result := make([]Exam, 0, len(exams))
	for _, exam := range exams {
		exam.Questions, err = s.store.ExamQuestions(ctx, exam.ID)
		if err != nil {
			return nil, operations.Persistence(err)
		}
		result = append(result, view(exam, true))
	}
	return result, nil
}

// CountByInstitution counts the exams of every teacher in the institution,
// whatever their status.
func (s *Service) CountByInstitution(ctx context.Context, institutionID model.ID) (int, error) {
	total, err := s.store.CountExamsByInstitution(ctx, institutionID)
	if err != nil {
		return 0, operations.Persistence(err)
	}
	return total, nil
}

// ListActiveByInstitution returns the active exams of every teacher in the
// institution, newest first. No institution exams is an empty list.
func (s *Service) ListActiveByInstitution(ctx context.Context, institutionID model.ID) ([]Listing, error) {
	exams, err := s.store.ListActiveExamsByInstitution(ctx, institutionID)
	if err != nil {
		return nil, operations.Persistence(err)
	}
	result := make([]Listing, 0, len(exams))
	for _, exam := range exams {
		result = append(result, listing(exam))
	}
	return result, nil
}

// Get returns an active exam to a student of the institution the exam's
// teacher belongs to. Correct answers are not revealed.
func (s *Service) Get(ctx context.Context, institutionID, examID model.ID) (result Exam, err error) {
	defer func() { s.finish(ctx, "get_exam", err) }()

	exam, err := s.store.ExamByID(ctx, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return Exam{}, operations.New(operations.KindNotFound, operations.ErrExamNotFound, nil)
	}
	if err != nil {
		return Exam{}, operations.Persistence(err)
	}
	if exam.TeacherID.IsZero() {
		return Exam{}, operations.New(operations.KindIntegrity, operations.ErrIntegrity,
			fmt.Errorf("exam %s has no teacher", exam.ID))
	}
	teacher, err := s.store.AccountByID(ctx, exam.TeacherID)
	if errors.Is(err, repository.ErrNotFound) {
		return Exam{}, operations.New(operations.KindIntegrity, operations.ErrIntegrity,
			fmt.Errorf("exam %s references missing teacher %s", exam.ID, exam.TeacherID))
	}
	if err != nil {
		return Exam{}, operations.Persistence(err)
	}
	if institutionID.IsZero() || teacher.InstitutionID != institutionID {
		return Exam{}, operations.New(operations.KindForbidden, operations.ErrForbidden, nil)
	}
	if exam.Status != model.StatusActive {
		return Exam{}, operations.New(operations.KindForbidden, operations.ErrInactiveExam, nil)
	}

	exam.Questions, err = s.store.ExamQuestions(ctx, exam.ID)
	if err != nil {
		return Exam{}, operations.Persistence(err)
	}
	return view(exam, false), nil
}

func (s *Service) owned(ctx context.Context, teacherID, examID model.ID) (model.Exam, error) {
	exam, err := s.store.ExamByID(ctx, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Exam{}, operations.New(operations.KindNotFound, operations.ErrExamNotFound, nil)
	}
	if err != nil {
		return model.Exam{}, operations.Persistence(err)
	}
	if exam.TeacherID != teacherID {
		return model.Exam{}, operations.New(operations.KindForbidden, operations.ErrForbidden, nil)
	}
	return exam, nil
}

func (s *Service) finish(ctx context.Context, operation string, err error) {
	if err == nil {
		s.metrics.Session(operation, "ok")
		return
	}
	opErr := operations.As(err)
	s.metrics.Session(operation, opErr.Code)
	if opErr.Kind == operations.KindPersistence || opErr.Kind == operations.KindIntegrity || opErr.Kind == operations.KindInternal {
		s.logger.ErrorContext(ctx, "exam operation failed",
			slog.String("operation", operation),
			slog.String("code", opErr.Code),
			slog.Any("error", opErr.Err),
		)
	}
}

func buildQuestions(examID model.ID, in []QuestionInput) []model.Question {
	questions := make([]model.Question, 0, len(in))
	for i, qi := range in {
		question := model.Question{
			ID:       model.NewID(),
			ExamID:   examID,
			Body:     qi.Body,
			Position: i + 1,
		}
		for _, ai := range qi.Answers {
			question.Answers = append(question.Answers, model.Answer{
				ID:         model.NewID(),
				QuestionID: question.ID,
				Body:       ai.Body,
				Correct:    ai.Correct,
			})
		}
		questions = append(questions, question)
	}
	return questions
}

func insertQuestions(ctx context.Context, q repository.Queries, questions []model.Question) error {
	for _, question := range questions {
		if err := q.CreateQuestion(ctx, question); err != nil {
			return err
		}
	}
	return nil
}

func trim(in ExamInput) ExamInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Subject = strings.TrimSpace(in.Subject)
	in.EducationLevel = strings.TrimSpace(in.EducationLevel)
	in.Modality = strings.TrimSpace(in.Modality)
	in.Shift = strings.TrimSpace(in.Shift)
	if in.Questions == nil {
		return in
	}
	questions := make([]QuestionInput, len(in.Questions))
	for i, q := range in.Questions {
		q.Body = strings.TrimSpace(q.Body)
		answers := make([]AnswerInput, len(q.Answers))
		for j, a := range q.Answers {
			a.Body = strings.TrimSpace(a.Body)
			answers[j] = a
		}
		q.Answers = answers
		questions[i] = q
	}
	in.Questions = questions
	return in
}
