package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/db"
)

// lookupErr turns a single-row read failure into the package taxonomy.
func lookupErr(op string, err error, notFound *apperr.Error) error {
	if db.IsNoRows(err) {
		return notFound
	}
	return apperr.Unavailable(op, err)
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, identity_id, first_name, last_name, email, phone,
	birth_date, gender, address, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, identity_id, first_name, last_name, email, phone, birth_date, gender, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.IdentityID, p.FirstName, p.LastName, p.Email, p.Phone, p.BirthDate, p.Gender, p.Address,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return apperr.Wrap(ErrAlreadyRegistered, err)
	}
	if err != nil {
		return apperr.Unavailable("create patient", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, lookupErr("get patient", err, ErrPatientNotFound)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patients SET first_name = $2, last_name = $3, phone = $4,
			birth_date = $5, gender = $6, address = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FirstName, p.LastName, p.Phone, p.BirthDate, p.Gender, p.Address,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return lookupErr("update patient", err, ErrPatientNotFound)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, apperr.Unavailable("count patients", err)
	}

	rows, err := conn.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Unavailable("list patients", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, apperr.Unavailable("scan patient", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Unavailable("list patients", err)
	}
	return items, total, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.IdentityID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.BirthDate, &p.Gender, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Vaccinator Repository --

type vaccinatorRepoPG struct {
	pool *pgxpool.Pool
}

func NewVaccinatorRepo(pool *pgxpool.Pool) VaccinatorRepository {
	return &vaccinatorRepoPG{pool: pool}
}

const vaccinatorCols = `id, identity_id, name, license_number, department, role, status,
	email, phone, created_at, updated_at`

func (r *vaccinatorRepoPG) Create(ctx context.Context, v *Vaccinator) error {
	v.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO vaccinators (id, identity_id, name, license_number, department, role, status, email, phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		v.ID, v.IdentityID, v.Name, v.LicenseNumber, v.Department, v.Role, v.Status, v.Email, v.Phone,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err, "vaccinators_license_number_key"):
		return apperr.Wrap(ErrLicenseTaken, err)
	case db.IsUniqueViolation(err, ""):
		return apperr.Wrap(ErrAlreadyRegistered, err)
	case err != nil:
		return apperr.Unavailable("create vaccinator", err)
	}
	return nil
}

func (r *vaccinatorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Vaccinator, error) {
	v, err := scanVaccinator(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+vaccinatorCols+` FROM vaccinators WHERE id = $1`, id))
	if err != nil {
		return nil, lookupErr("get vaccinator", err, ErrVaccinatorNotFound)
	}
	return v, nil
}

func (r *vaccinatorRepoPG) List(ctx context.Context, f VaccinatorFilter, limit, offset int) ([]*Vaccinator, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	idx := 1
	add := func(col, val string) {
		if val == "" {
			return
		}
		where = append(where, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}
	add("status", f.Status)
	add("role", f.Role)
	add("department", f.Department)
	whereClause := strings.Join(where, " AND ")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM vaccinators WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Unavailable("count vaccinators", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM vaccinators WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		vaccinatorCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Unavailable("list vaccinators", err)
	}
	defer rows.Close()

	var items []*Vaccinator
	for rows.Next() {
		v, err := scanVaccinator(rows)
		if err != nil {
			return nil, 0, apperr.Unavailable("scan vaccinator", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Unavailable("list vaccinators", err)
	}
	return items, total, nil
}

func (r *vaccinatorRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.setColumn(ctx, id, "status", status)
}

func (r *vaccinatorRepoPG) SetRole(ctx context.Context, id uuid.UUID, role string) error {
	return r.setColumn(ctx, id, "role", role)
}

// setColumn is only called with the fixed column names above.
func (r *vaccinatorRepoPG) setColumn(ctx context.Context, id uuid.UUID, column, value string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE vaccinators SET `+column+` = $2, updated_at = NOW() WHERE id = $1`, id, value)
	if err != nil {
		return apperr.Unavailable("update vaccinator "+column, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVaccinatorNotFound
	}
	return nil
}

func scanVaccinator(row pgx.Row) (*Vaccinator, error) {
	var v Vaccinator
	err := row.Scan(&v.ID, &v.IdentityID, &v.Name, &v.LicenseNumber, &v.Department, &v.Role, &v.Status,
		&v.Email, &v.Phone, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// -- Account Repository --

type accountRepoPG struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) AccountRepository {
	return &accountRepoPG{pool: pool}
}

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO accounts (identity_id, kind, record_id) VALUES ($1, $2, $3)`,
		a.IdentityID, a.Kind, a.RecordID)
	if db.IsUniqueViolation(err, "") {
		return apperr.Wrap(ErrAlreadyRegistered, err)
	}
	if err != nil {
		return apperr.Unavailable("create account", err)
	}
	return nil
}

// GetByIdentity resolves the account and, for vaccinators, their role in a
// single round trip.
func (r *accountRepoPG) GetByIdentity(ctx context.Context, identityID string) (*Account, error) {
	var a Account
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT a.identity_id, a.kind, a.record_id, COALESCE(v.role, '')
		FROM accounts a
		LEFT JOIN vaccinators v ON a.kind = 'vaccinator' AND v.id = a.record_id
		WHERE a.identity_id = $1`, identityID,
	).Scan(&a.IdentityID, &a.Kind, &a.RecordID, &a.VaccinatorRole)
	if err != nil {
		return nil, lookupErr("resolve account", err, ErrAccountNotFound)
	}
	return &a, nil
}
