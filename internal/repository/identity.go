package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Darkpool645/alex-backend/internal/model"
)

const accountColumns = `id, name, email, role, institution_id, status, registration_code, created_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var (
		account          model.Account
		id, institution  pgtype.UUID
		name, email, reg pgtype.Text
		role, status     string
	)
	if err := row.Scan(&id, &name, &email, &role, &institution, &status, &reg, &account.CreatedAt); err != nil {
		return model.Account{}, mapError(err)
	}
	account.ID = modelID(id)
	account.Name = textPtr(name)
	account.Email = textPtr(email)
	account.Role = model.Role(role)
	account.InstitutionID = modelID(institution)
	account.Status = model.Status(status)
	account.RegistrationCode = textPtr(reg)
	return account, nil
}

func (q *pgQueries) AccountByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = $1
	`, email))
}

func (q *pgQueries) AdministratorByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = $1 AND role = 'administrator'
	`, email))
}

func (q *pgQueries) AccountByRegistrationCode(ctx context.Context, code string) (model.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE registration_code = $1 AND role = 'teacher'
	`, code))
}

func (q *pgQueries) AccountByID(ctx context.Context, id model.ID) (model.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, pgID(id)))
}

func (q *pgQueries) TeacherExists(ctx context.Context, name string, institutionID model.ID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE role = 'teacher' AND name = $1 AND institution_id = $2
		)
	`, name, pgID(institutionID)).Scan(&exists)
	return exists, mapError(err)
}

func (q *pgQueries) ListTeachers(ctx context.Context, institutionID model.ID) ([]model.Account, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE role = 'teacher' AND institution_id = $1
		ORDER BY name
	`, pgID(institutionID))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var teachers []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		teachers = append(teachers, account)
	}
	return teachers, mapError(rows.Err())
}

func (q *pgQueries) CountTeachers(ctx context.Context, institutionID model.ID) (int, error) {
	var total int
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM accounts
		WHERE role = 'teacher' AND institution_id = $1
	`, pgID(institutionID)).Scan(&total)
	return total, mapError(err)
}

func (q *pgQueries) CreateAccount(ctx context.Context, account model.Account) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO accounts (id, name, email, role, institution_id, status, registration_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, pgID(account.ID), pgText(account.Name), pgText(account.Email), string(account.Role),
		pgID(account.InstitutionID), string(account.Status), pgText(account.RegistrationCode), account.CreatedAt)
	return mapError(err)
}

func (q *pgQueries) CreateInstitution(ctx context.Context, institution model.Institution) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO institutions (id, name, address, phone, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, pgID(institution.ID), institution.Name, institution.Address, institution.Phone, institution.CreatedAt)
	return mapError(err)
}

func (q *pgQueries) InstitutionByID(ctx context.Context, id model.ID) (model.Institution, error) {
	var (
		institution model.Institution
		raw         pgtype.UUID
	)
	err := q.db.QueryRow(ctx, `
		SELECT id, name, address, phone, created_at
		FROM institutions
		WHERE id = $1
	`, pgID(id)).Scan(&raw, &institution.Name, &institution.Address, &institution.Phone, &institution.CreatedAt)
	if err != nil {
		return model.Institution{}, mapError(err)
	}
	institution.ID = modelID(raw)
	return institution, nil
}
