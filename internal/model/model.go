package model

import "time"

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleTeacher       Role = "teacher"
	RoleStudent       Role = "student"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Account struct {
	ID               ID
	Name             *string
	Email            *string
	Role             Role
	InstitutionID    ID
	Status           Status
	RegistrationCode *string
	CreatedAt        time.Time
}

func (a Account) DisplayName() string {
	if a.Name == nil {
		return ""
	}
	return *a.Name
}

func (a Account) EmailAddress() string {
	if a.Email == nil {
		return ""
	}
	return *a.Email
}

type Institution struct {
	ID        ID
	Name      string
	Address   string
	Phone     string
	CreatedAt time.Time
}

type VerificationCode struct {
	ID        ID
	AccountID ID
	Code      string
	ExpiresAt time.Time
	Verified  bool
	CreatedAt time.Time
}

func (c VerificationCode) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

type VerificationAttempt struct {
	AccountID     ID
	Attempts      int
	LastAttemptAt *time.Time
}

type Subscription struct {
	ID              ID
	AdministratorID ID
	StartsAt        time.Time
	EndsAt          time.Time
	Status          string
}

type Payment struct {
	ID                ID
	SubscriptionID    ID
	AmountMinor       int64
	Currency          string
	Method            string
	ProviderReference string
	Status            string
	PaidAt            time.Time
}

type Exam struct {
	ID              ID
	TeacherID       ID
	Name            string
	Description     string
	Subject         string
	DurationMinutes int
	EducationLevel  string
	Modality        string
	Shift           string
	JoinCode        string
	Status          Status
	CreatedAt       time.Time
	Questions       []Question
}

func (e Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// InstitutionExam is an exam listed across an institution together with the
// name of the teacher who owns it.
type InstitutionExam struct {
	Exam
	TeacherName string
}

type Question struct {
	ID       ID
	ExamID   ID
	Body     string
	Position int
	Answers  []Answer
}

type Answer struct {
	ID         ID
	QuestionID ID
	Body       string
	Correct    bool
}
