// Package repositorytest provides an in-memory store with transaction
// rollback and failure injection for tests.
package repositorytest

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Darkpool645/alex-backend/internal/model"
	"github.com/Darkpool645/alex-backend/internal/repository"
)

type Memory struct {
	mu sync.Mutex
	State
	failures  map[string]error
	Commits   int
	Rollbacks int
}

// State is the data held by a Memory store.
type State struct {
	Accounts      map[model.ID]model.Account
	Institutions  map[model.ID]model.Institution
	Codes         map[model.ID]model.VerificationCode
	Attempts      map[model.ID]model.VerificationAttempt
	Subscriptions map[model.ID]model.Subscription
	Payments      map[model.ID]model.Payment
	Exams         map[model.ID]model.Exam
	Questions     map[model.ID][]model.Question
}

func (s State) clone() State {
	questions := make(map[model.ID][]model.Question, len(s.Questions))
	for id, list := range s.Questions {
		questions[id] = slices.Clone(list)
	}
	return State{
		Accounts:      maps.Clone(s.Accounts),
		Institutions:  maps.Clone(s.Institutions),
		Codes:         maps.Clone(s.Codes),
		Attempts:      maps.Clone(s.Attempts),
		Subscriptions: maps.Clone(s.Subscriptions),
		Payments:      maps.Clone(s.Payments),
		Exams:         maps.Clone(s.Exams),
		Questions:     questions,
	}
}

func New() *Memory {
	return &Memory{
		State: State{
			Accounts:      map[model.ID]model.Account{},
			Institutions:  map[model.ID]model.Institution{},
			Codes:         map[model.ID]model.VerificationCode{},
			Attempts:      map[model.ID]model.VerificationAttempt{},
			Subscriptions: map[model.ID]model.Subscription{},
			Payments:      map[model.ID]model.Payment{},
			Exams:         map[model.ID]model.Exam{},
			Questions:     map[model.ID][]model.Question{},
		},
		failures: map[string]error{},
	}
}

// FailOn makes every later call of method return err.
func (m *Memory) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = err
}

func (m *Memory) fail(method string) error {
	return m.failures[method]
}

// WithTx runs fn and restores the previous state if it fails.
func (m *Memory) WithTx(ctx context.Context, fn func(repository.Queries) error) error {
	m.mu.Lock()
	if err := m.fail("WithTx"); err != nil {
		m.mu.Unlock()
		return err
	}
	snapshot := m.State.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.State = snapshot
		m.Rollbacks++
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.Commits++
	m.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the stored data.
func (m *Memory) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.State.clone()
}

func (m *Memory) AccountByEmail(ctx context.Context, email string) (model.Account, error) {
	return m.findAccount("AccountByEmail", func(a model.Account) bool {
		return a.Email != nil && *a.Email == email
	})
}

func (m *Memory) AdministratorByEmail(ctx context.Context, email string) (model.Account, error) {
	return m.findAccount("AdministratorByEmail", func(a model.Account) bool {
		return a.Role == model.RoleAdministrator && a.Email != nil && *a.Email == email
	})
}

func (m *Memory) AccountByRegistrationCode(ctx context.Context, code string) (model.Account, error) {
	return m.findAccount("AccountByRegistrationCode", func(a model.Account) bool {
		return a.Role == model.RoleTeacher && a.RegistrationCode != nil && *a.RegistrationCode == code
	})
}

func (m *Memory) AccountByID(ctx context.Context, id model.ID) (model.Account, error) {
	return m.findAccount("AccountByID", func(a model.Account) bool { return a.ID == id })
}

func (m *Memory) findAccount(method string, match func(model.Account) bool) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(method); err != nil {
		return model.Account{}, err
	}
	for _, account := range m.Accounts {
		if match(account) {
			return account, nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (m *Memory) TeacherExists(ctx context.Context, name string, institutionID model.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("TeacherExists"); err != nil {
		return false, err
	}
	for _, a := range m.Accounts {
		if a.Role == model.RoleTeacher && a.DisplayName() == name && a.InstitutionID == institutionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListTeachers(ctx context.Context, institutionID model.ID) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListTeachers"); err != nil {
		return nil, err
	}
	var teachers []model.Account
	for _, a := range m.Accounts {
		if a.Role == model.RoleTeacher && a.InstitutionID == institutionID {
			teachers = append(teachers, a)
		}
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].DisplayName() < teachers[j].DisplayName() })
	return teachers, nil
}

func (m *Memory) CountTeachers(ctx context.Context, institutionID model.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CountTeachers"); err != nil {
		return 0, err
	}
	total := 0
	for _, a := range m.Accounts {
		if a.Role == model.RoleTeacher && a.InstitutionID == institutionID {
			total++
		}
	}
	return total, nil
}

func (m *Memory) CreateAccount(ctx context.Context, account model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateAccount"); err != nil {
		return err
	}
	for _, a := range m.Accounts {
		if account.Email != nil && a.Email != nil && *a.Email == *account.Email {
			return repository.ErrConflict
		}
		if account.RegistrationCode != nil && a.RegistrationCode != nil && *a.RegistrationCode == *account.RegistrationCode {
			return repository.ErrConflict
		}
		if account.Role == model.RoleTeacher && a.Role == model.RoleTeacher &&
			a.DisplayName() == account.DisplayName() && a.InstitutionID == account.InstitutionID {
			return repository.ErrConflict
		}
	}
	m.Accounts[account.ID] = account
	return nil
}

func (m *Memory) CreateInstitution(ctx context.Context, institution model.Institution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateInstitution"); err != nil {
		return err
	}
	m.Institutions[institution.ID] = institution
	return nil
}

func (m *Memory) InstitutionByID(ctx context.Context, id model.ID) (model.Institution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InstitutionByID"); err != nil {
		return model.Institution{}, err
	}
	institution, ok := m.Institutions[id]
	if !ok {
		return model.Institution{}, repository.ErrNotFound
	}
	return institution, nil
}

func (m *Memory) CreateVerificationCode(ctx context.Context, code model.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateVerificationCode"); err != nil {
		return err
	}
	m.Codes[code.ID] = code
	return nil
}

func (m *Memory) DeleteVerificationCodes(ctx context.Context, accountID model.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteVerificationCodes"); err != nil {
		return err
	}
	for id, code := range m.Codes {
		if code.AccountID == accountID {
			delete(m.Codes, id)
		}
	}
	return nil
}

func (m *Memory) FindVerificationCode(ctx context.Context, accountID model.ID, code string) (model.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindVerificationCode"); err != nil {
		return model.VerificationCode{}, err
	}
	var (
		found model.VerificationCode
		ok    bool
	)
	for _, c := range m.Codes {
		if c.AccountID == accountID && c.Code == code && !c.Verified {
			if !ok || c.CreatedAt.After(found.CreatedAt) {
				found, ok = c, true
			}
		}
	}
	if !ok {
		return model.VerificationCode{}, repository.ErrNotFound
	}
	return found, nil
}

func (m *Memory) MarkCodeVerified(ctx context.Context, id model.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("MarkCodeVerified"); err != nil {
		return err
	}
	code, ok := m.Codes[id]
	if !ok || code.Verified {
		return repository.ErrNotFound
	}
	code.Verified = true
	m.Codes[id] = code
	return nil
}

func (m *Memory) GetAttempt(ctx context.Context, accountID model.ID) (model.VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetAttempt"); err != nil {
		return model.VerificationAttempt{}, err
	}
	attempt, ok := m.Attempts[accountID]
	if !ok {
		return model.VerificationAttempt{}, repository.ErrNotFound
	}
	return attempt, nil
}

func (m *Memory) CreateAttempt(ctx context.Context, accountID model.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateAttempt"); err != nil {
		return err
	}
	if _, ok := m.Attempts[accountID]; !ok {
		m.Attempts[accountID] = model.VerificationAttempt{AccountID: accountID}
	}
	return nil
}

func (m *Memory) IncrementAttempt(ctx context.Context, accountID model.ID, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("IncrementAttempt"); err != nil {
		return 0, err
	}
	attempt, ok := m.Attempts[accountID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	attempt.Attempts++
	attempt.LastAttemptAt = &at
	m.Attempts[accountID] = attempt
	return attempt.Attempts, nil
}

func (m *Memory) ResetAttempt(ctx context.Context, accountID model.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ResetAttempt"); err != nil {
		return err
	}
	if attempt, ok := m.Attempts[accountID]; ok {
		attempt.Attempts = 0
		m.Attempts[accountID] = attempt
	}
	return nil
}

func (m *Memory) DeleteAttempts(ctx context.Context, accountID model.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteAttempts"); err != nil {
		return err
	}
	delete(m.Attempts, accountID)
	return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, subscription model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateSubscription"); err != nil {
		return err
	}
	m.Subscriptions[subscription.ID] = subscription
	return nil
}

func (m *Memory) CreatePayment(ctx context.Context, payment model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreatePayment"); err != nil {
		return err
	}
	m.Payments[payment.ID] = payment
	return nil
}

func (m *Memory) ExamByJoinCode(ctx context.Context, code string) (model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ExamByJoinCode"); err != nil {
		return model.Exam{}, err
	}
	for _, exam := range m.Exams {
		if exam.JoinCode == code {
			return exam, nil
		}
	}
	return model.Exam{}, repository.ErrNotFound
}

func (m *Memory) ExamByID(ctx context.Context, id model.ID) (model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ExamByID"); err != nil {
		return model.Exam{}, err
	}
	exam, ok := m.Exams[id]
	if !ok {
		return model.Exam{}, repository.ErrNotFound
	}
	return exam, nil
}

func (m *Memory) CreateExam(ctx context.Context, exam model.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateExam"); err != nil {
		return err
	}
	for _, e := range m.Exams {
		if e.JoinCode == exam.JoinCode {
			return repository.ErrConflict
		}
	}
	exam.Questions = nil
	m.Exams[exam.ID] = exam
	return nil
}

func (m *Memory) UpdateExam(ctx context.Context, exam model.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateExam"); err != nil {
		return err
	}
	current, ok := m.Exams[exam.ID]
	if !ok {
		return repository.ErrNotFound
	}
	current.Name = exam.Name
	current.Description = exam.Description
	current.Subject = exam.Subject
	current.DurationMinutes = exam.DurationMinutes
	current.EducationLevel = exam.EducationLevel
	current.Modality = exam.Modality
	current.Shift = exam.Shift
	current.Status = exam.Status
	m.Exams[exam.ID] = current
	return nil
}

func (m *Memory) DeleteExamQuestions(ctx context.Context, examID model.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteExamQuestions"); err != nil {
		return err
	}
	delete(m.Questions, examID)
	return nil
}

func (m *Memory) CreateQuestion(ctx context.Context, question model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateQuestion"); err != nil {
		return err
	}
	m.Questions[question.ExamID] = append(m.Questions[question.ExamID], question)
	return nil
}

func (m *Memory) ExamQuestions(ctx context.Context, examID model.ID) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ExamQuestions"); err != nil {
		return nil, err
	}
	questions := slices.Clone(m.Questions[examID])
	sort.Slice(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })
	return questions, nil
}

func (m *Memory) ListActiveExamsByTeacher(ctx context.Context, teacherID model.ID) ([]model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListActiveExamsByTeacher"); err != nil {
		return nil, err
	}
	var exams []model.Exam
	for _, exam := range m.Exams {
		if exam.TeacherID == teacherID && exam.Status == model.StatusActive {
			exams = append(exams, exam)
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].CreatedAt.After(exams[j].CreatedAt) })
	return exams, nil
}

func (m *Memory) CountExamsByInstitution(ctx context.Context, institutionID model.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CountExamsByInstitution"); err != nil {
		return 0, err
	}
	total := 0
	for _, exam := range m.Exams {
		if _, ok := m.teacherOf(exam, institutionID); ok {
			total++
		}
	}
	return total, nil
}

func (m *Memory) ListActiveExamsByInstitution(ctx context.Context, institutionID model.ID) ([]model.InstitutionExam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListActiveExamsByInstitution"); err != nil {
		return nil, err
	}
	var exams []model.InstitutionExam
	for _, exam := range m.Exams {
		teacher, ok := m.teacherOf(exam, institutionID)
		if !ok || exam.Status != model.StatusActive {
			continue
		}
		exams = append(exams, model.InstitutionExam{Exam: exam, TeacherName: teacher.DisplayName()})
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].CreatedAt.After(exams[j].CreatedAt) })
	return exams, nil
}

// teacherOf returns the owner of exam when it is a teacher of institutionID.
func (m *Memory) teacherOf(exam model.Exam, institutionID model.ID) (model.Account, bool) {
	teacher, ok := m.Accounts[exam.TeacherID]
	if !ok || teacher.Role != model.RoleTeacher || teacher.InstitutionID != institutionID {
		return model.Account{}, false
	}
	return teacher, true
}
