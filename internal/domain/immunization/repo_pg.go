package immunization

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

const appointmentUnique = "vaccination_records_appointment_id_key"

type recordRepoPG struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

const recordCols = `id, patient_id, vaccinator_id, inventory_item_id, appointment_id,
	vaccine_name, dose_number, lot_number, site, administered_at, notes, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.PatientID, &r.VaccinatorID, &r.InventoryItemID, &r.AppointmentID,
		&r.VaccineName, &r.DoseNumber, &r.LotNumber, &r.Site, &r.AdministeredAt, &r.Notes, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *recordRepoPG) Create(ctx context.Context, r *Record) error {
	r.ID = uuid.New()
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO vaccination_records (id, patient_id, vaccinator_id, inventory_item_id, appointment_id,
			vaccine_name, dose_number, lot_number, site, administered_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		r.ID, r.PatientID, r.VaccinatorID, r.InventoryItemID, r.AppointmentID,
		r.VaccineName, r.DoseNumber, r.LotNumber, r.Site, r.AdministeredAt, r.Notes,
	).Scan(&r.CreatedAt)
	return insertError(err)
}

var referenceMessages = map[string]string{
	"patient_id":        "does not match a registered patient",
	"vaccinator_id":     "does not match a known vaccinator",
	"inventory_item_id": "does not match an inventory item",
	"appointment_id":    "does not match an appointment",
}

func insertError(err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, appointmentUnique) {
		return apperr.Wrap(ErrAlreadyRecorded, err)
	}
	if col, ok := db.ForeignKeyColumn(err, "vaccination_records"); ok {
		msg, known := referenceMessages[col]
		if !known {
			msg = "does not reference an existing record"
		}
		return apperr.Field(col, msg)
	}
	return apperr.Unavailable("create vaccination record", err)
}

func (p *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	r, err := scanRecord(db.Conn(ctx, p.pool).QueryRow(ctx,
		`SELECT `+recordCols+` FROM vaccination_records WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, apperr.Unavailable("get vaccination record", err)
	}
	return r, nil
}

func (p *recordRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	idx := 1
	if f.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, *f.PatientID)
		idx++
	}
	if f.VaccinatorID != nil {
		where = append(where, fmt.Sprintf("vaccinator_id = $%d", idx))
		args = append(args, *f.VaccinatorID)
		idx++
	}
	if f.From != nil {
		where = append(where, fmt.Sprintf("administered_at >= $%d", idx))
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where = append(where, fmt.Sprintf("administered_at < $%d", idx))
		args = append(args, *f.To)
		idx++
	}
	whereClause := strings.Join(where, " AND ")

	conn := db.Conn(ctx, p.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM vaccination_records WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Unavailable("count vaccination records", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM vaccination_records WHERE %s ORDER BY administered_at DESC LIMIT $%d OFFSET $%d`,
		recordCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Unavailable("list vaccination records", err)
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, apperr.Unavailable("scan vaccination record", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Unavailable("list vaccination records", err)
	}
	return items, total, nil
}
