package exams

import (
	"time"

	"github.com/Darkpool645/alex-backend/internal/model"
)

type Answer struct {
	ID      string `json:"id"`
	Body    string `json:"body"`
	Correct *bool  `json:"correct,omitempty"`
}

type Question struct {
	ID       string   `json:"id"`
	Body     string   `json:"body"`
	Position int      `json:"position"`
	Answers  []Answer `json:"answers"`
}

type Exam struct {
	ID              string     `json:"id"`
	TeacherID       string     `json:"teacher_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Subject         string     `json:"subject"`
	DurationMinutes int        `json:"duration_minutes"`
	EducationLevel  string     `json:"education_level"`
	Modality        string     `json:"modality"`
	Shift           string     `json:"shift"`
	JoinCode        string     `json:"join_code"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	Questions       []Question `json:"questions"`
}

// view renders an exam for a caller. withKey controls whether the correct
// flags of the answers are included.
func view(exam model.Exam, withKey bool) Exam {
	out := Exam{
		ID:              exam.ID.String(),
		TeacherID:       exam.TeacherID.String(),
		Name:            exam.Name,
		Description:     exam.Description,
		Subject:         exam.Subject,
		DurationMinutes: exam.DurationMinutes,
		EducationLevel:  exam.EducationLevel,
		Modality:        exam.Modality,
		Shift:           exam.Shift,
		JoinCode:        exam.JoinCode,
		Status:          string(exam.Status),
		CreatedAt:       exam.CreatedAt,
		Questions:       make([]Question, 0, len(exam.Questions)),
	}
	for _, q := range exam.Questions {
		question := Question{
			ID:       q.ID.String(),
			Body:     q.Body,
			Position: q.Position,
			Answers:  make([]Answer, 0, len(q.Answers)),
		}
		for _, a := range q.Answers {
			answer := Answer{ID: a.ID.String(), Body: a.Body}
			if withKey {
				correct := a.Correct
				answer.Correct = &correct
			}
			question.Answers = append(question.Answers, answer)
		}
		out.Questions = append(out.Questions, question)
	}
	return out
}

// Listing is an exam as an administrator sees it across the institution:
// the header and its owner, without questions.
type Listing struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	JoinCode    string    `json:"join_code"`
	Status      string    `json:"status"`
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func listing(exam model.InstitutionExam) Listing {
	return Listing{
		ID:          exam.ID.String(),
		Name:        exam.Name,
		Description: exam.Description,
		Subject:     exam.Subject,
		JoinCode:    exam.JoinCode,
		Status:      string(exam.Status),
		TeacherID:   exam.TeacherID.String(),
		TeacherName: exam.TeacherName,
		CreatedAt:   exam.CreatedAt,
	}
}
