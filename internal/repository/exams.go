package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Darkpool645/alex-backend/internal/model"
)

const examColumns = `id, teacher_id, name, description, subject, duration_minutes, education_level, modality, shift, join_code, status, created_at`

func scanExam(row pgx.Row) (model.Exam, error) {
	var (
		exam        model.Exam
		id, teacher pgtype.UUID
		status      string
	)
	err := row.Scan(&id, &teacher, &exam.Name, &exam.Description, &exam.Subject, &exam.DurationMinutes,
		&exam.EducationLevel, &exam.Modality, &exam.Shift, &exam.JoinCode, &status, &exam.CreatedAt)
	if err != nil {
		return model.Exam{}, mapError(err)
	}
	exam.ID = modelID(id)
	exam.TeacherID = modelID(teacher)
	exam.Status = model.Status(status)
	return exam, nil
}

func (q *pgQueries) ExamByJoinCode(ctx context.Context, code string) (model.Exam, error) {
	return scanExam(q.db.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE join_code = $1`, code))
}

func (q *pgQueries) ExamByID(ctx context.Context, id model.ID) (model.Exam, error) {
	return scanExam(q.db.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, pgID(id)))
}

func (q *pgQueries) CreateExam(ctx context.Context, exam model.Exam) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO exams (id, teacher_id, name, description, subject, duration_minutes,
			education_level, modality, shift, join_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, pgID(exam.ID), pgID(exam.TeacherID), exam.Name, exam.Description, exam.Subject, exam.DurationMinutes,
		exam.EducationLevel, exam.Modality, exam.Shift, exam.JoinCode, string(exam.Status), exam.CreatedAt)
	return mapError(err)
}

func (q *pgQueries) UpdateExam(ctx context.Context, exam model.Exam) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE exams
		SET name = $2, description = $3, subject = $4, duration_minutes = $5,
			education_level = $6, modality = $7, shift = $8, status = $9
		WHERE id = $1
	`, pgID(exam.ID), exam.Name, exam.Description, exam.Subject, exam.DurationMinutes,
		exam.EducationLevel, exam.Modality, exam.Shift, string(exam.Status))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExamQuestions removes every question of the exam; answers follow via
// ON DELETE CASCADE.
func (q *pgQueries) DeleteExamQuestions(ctx context.Context, examID model.ID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, pgID(examID))
	return mapError(err)
}

func (q *pgQueries) CreateQuestion(ctx context.Context, question model.Question) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO questions (id, exam_id, body, position)
		VALUES ($1, $2, $3, $4)
	`, pgID(question.ID), pgID(question.ExamID), question.Body, question.Position)
	if err != nil {
		return mapError(err)
	}
	for i, answer := range question.Answers {
		_, err := q.db.Exec(ctx, `
			INSERT INTO answers (id, question_id, body, correct, position)
			VALUES ($1, $2, $3, $4, $5)
		`, pgID(answer.ID), pgID(question.ID), answer.Body, answer.Correct, i+1)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (q *pgQueries) ExamQuestions(ctx context.Context, examID model.ID) ([]model.Question, error) {
	rows, err := q.db.Query(ctx, `
		SELECT q.id, q.body, q.position, a.id, a.body, a.correct
		FROM questions q
		LEFT JOIN answers a ON a.question_id = q.id
		WHERE q.exam_id = $1
		ORDER BY q.position, a.position
	`, pgID(examID))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var questions []model.Question
	index := map[model.ID]int{}
	for rows.Next() {
		var (
			questionID, answerID pgtype.UUID
			body                 string
			position             int
			answerBody           pgtype.Text
			correct              pgtype.Bool
		)
		if err := rows.Scan(&questionID, &body, &position, &answerID, &answerBody, &correct); err != nil {
			return nil, mapError(err)
		}
		id := modelID(questionID)
		i, ok := index[id]
		if !ok {
			questions = append(questions, model.Question{ID: id, ExamID: examID, Body: body, Position: position})
			i = len(questions) - 1
			index[id] = i
		}
		if answerID.Valid {
			questions[i].Answers = append(questions[i].Answers, model.Answer{
				ID:         modelID(answerID),
				QuestionID: id,
				Body:       answerBody.String,
				Correct:    correct.Bool,
			})
		}
	}
	return questions, mapError(rows.Err())
}

func (q *pgQueries) ListActiveExamsByTeacher(ctx context.Context, teacherID model.ID) ([]model.Exam, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+examColumns+`
		FROM exams
		WHERE teacher_id = $1 AND status = 'active'
		ORDER BY created_at DESC
	`, pgID(teacherID))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		exam, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, exam)
	}
	return exams, mapError(rows.Err())
}

// CountExamsByInstitution counts every exam, in any status, owned by a teacher
// of the institution.
func (q *pgQueries) CountExamsByInstitution(ctx context.Context, institutionID model.ID) (int, error) {
	var total int
	err := q.db.QueryRow(ctx, `
		SELECT count(*)
		FROM exams e
		JOIN accounts t ON t.id = e.teacher_id
		WHERE t.institution_id = $1 AND t.role = 'teacher'
	`, pgID(institutionID)).Scan(&total)
	return total, mapError(err)
}

func (q *pgQueries) ListActiveExamsByInstitution(ctx context.Context, institutionID model.ID) ([]model.InstitutionExam, error) {
	rows, err := q.db.Query(ctx, `
		SELECT e.id, e.teacher_id, e.name, e.description, e.subject, e.duration_minutes,
			e.education_level, e.modality, e.shift, e.join_code, e.status, e.created_at, t.name
		FROM exams e
		JOIN accounts t ON t.id = e.teacher_id
		WHERE t.institution_id = $1 AND t.role = 'teacher' AND e.status = 'active'
		ORDER BY e.created_at DESC
	`, pgID(institutionID))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var exams []model.InstitutionExam
	for rows.Next() {
		var (
			listed      model.InstitutionExam
			id, teacher pgtype.UUID
			status      string
			teacherName pgtype.Text
		)
		err := rows.Scan(&id, &teacher, &listed.Name, &listed.Description, &listed.Subject, &listed.DurationMinutes,
			&listed.EducationLevel, &listed.Modality, &listed.Shift, &listed.JoinCode, &status, &listed.CreatedAt, &teacherName)
		if err != nil {
			return nil, mapError(err)
		}
		listed.ID = modelID(id)
		listed.TeacherID = modelID(teacher)
		listed.Status = model.Status(status)
		listed.TeacherName = teacherName.String
		exams = append(exams, listed)
	}
	return exams, mapError(rows.Err())
}
