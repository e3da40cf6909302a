package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/db"
	"github.com/vaxclinic/vaxclinic/internal/platform/validate"
)

const slotUniqueConstraint = "appointments_slot_unique"

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, patient_id, vaccinator_id, inventory_item_id, to_char(date, 'YYYY-MM-DD'), slot,
	status, notes, cancel_reason, created_at, updated_at`

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	date, err := time.Parse(validate.DateLayout, a.Date)
	if err != nil {
		return apperr.Field("date", "must be a date in YYYY-MM-DD format")
	}
	a.ID = uuid.New()
	a.Status = StatusScheduled
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, vaccinator_id, inventory_item_id, date, slot, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.VaccinatorID, a.InventoryItemID, date, a.Slot, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return insertError(err)
}

// insertError classifies a failed appointment INSERT. Dangling references
// are reported against the referencing field.
func insertError(err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, slotUniqueConstraint) {
		return apperr.Wrap(ErrSlotConflict, err)
	}
	if col, ok := db.ForeignKeyColumn(err, "appointments"); ok {
		return apperr.Field(col, "does not reference an existing record")
	}
	return apperr.Unavailable("create appointment", err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppt(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, apperr.Unavailable("get appointment", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) BookedSlots(ctx context.Context, vaccinatorID uuid.UUID, date time.Time) ([]string, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT slot FROM appointments
		WHERE vaccinator_id = $1 AND date = $2 AND status <> 'cancelled'`,
		vaccinatorID, date)
	if err != nil {
		return nil, apperr.Unavailable("read booked slots", err)
	}
	slots, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperr.Unavailable("read booked slots", err)
	}
	return slots, nil
}

func (r *appointmentRepoPG) Transition(ctx context.Context, id uuid.UUID, from, to string, reason *string) (*Appointment, error) {
	conn := db.Conn(ctx, r.pool)
	a, err := scanAppt(conn.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, cancel_reason = COALESCE($4, cancel_reason), updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+apptCols, id, from, to, reason))
	if err == nil {
		return a, nil
	}
	if !db.IsNoRows(err) {
		return nil, apperr.Unavailable("update appointment", err)
	}

	// Nothing matched: tell a missing appointment from one in another state.
	var current string
	err = conn.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
	switch {
	case db.IsNoRows(err):
		return nil, ErrAppointmentNotFound
	case err != nil:
		return nil, apperr.Unavailable("get appointment", err)
	default:
		return nil, apperr.Wrap(ErrNotScheduled, fmt.Errorf("status is %s", current))
	}
}

func (r *appointmentRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	idx := 1
	add := func(cond string, val interface{}) {
		where = append(where, fmt.Sprintf(cond, idx))
		args = append(args, val)
		idx++
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.VaccinatorID != nil {
		add("vaccinator_id = $%d", *f.VaccinatorID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}
	whereClause := strings.Join(where, " AND ")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Unavailable("count appointments", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE %s ORDER BY date DESC, slot LIMIT $%d OFFSET $%d`,
		apptCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Unavailable("list appointments", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, 0, apperr.Unavailable("scan appointment", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Unavailable("list appointments", err)
	}
	return items, total, nil
}

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.VaccinatorID, &a.InventoryItemID, &a.Date, &a.Slot,
		&a.Status, &a.Notes, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
