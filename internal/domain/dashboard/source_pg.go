package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxclinic/vaxclinic/internal/platform/db"
)

type sourcePG struct {
	pool *pgxpool.Pool
}

func NewSource(pool *pgxpool.Pool) Source {
	return &sourcePG{pool: pool}
}

func (s *sourcePG) count(ctx context.Context, sql string, args ...interface{}) (int, error) {
	var n int
	err := db.Conn(ctx, s.pool).QueryRow(ctx, sql, args...).Scan(&n)
	return n, err
}

func (s *sourcePG) CountAdministered(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM vaccination_records`)
}

func (s *sourcePG) CountActiveDoctors(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM vaccinators WHERE status = 'active' AND role = 'doctor'`)
}

func (s *sourcePG) CountScheduledBetween(ctx context.Context, from, to time.Time) (int, error) {
	return s.count(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE status = 'scheduled'
		  AND (date + slot::time) AT TIME ZONE 'UTC' >= $1
		  AND (date + slot::time) AT TIME ZONE 'UTC' < $2`, from, to)
}

func (s *sourcePG) StockRows(ctx context.Context) ([]StockRow, error) {
	rows, err := db.Conn(ctx, s.pool).Query(ctx, `
		SELECT id, vaccine_name, batch_number, quantity
		FROM inventory_items
		ORDER BY quantity, vaccine_name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StockRow, error) {
		var r StockRow
		err := row.Scan(&r.ItemID, &r.VaccineName, &r.BatchNumber, &r.Quantity)
		return r, err
	})
}

func (s *sourcePG) RecentVaccinations(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := db.Conn(ctx, s.pool).Query(ctx, `
		SELECT 'vaccination', r.id, r.patient_id, p.first_name || ' ' || p.last_name,
			r.vaccine_name || ' dose ' || r.dose_number, r.administered_at
		FROM vaccination_records r
		JOIN patients p ON p.id = r.patient_id
		ORDER BY r.administered_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanActivity)
}

func (s *sourcePG) RecentBookings(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := db.Conn(ctx, s.pool).Query(ctx, `
		SELECT 'booking', a.id, a.patient_id, p.first_name || ' ' || p.last_name,
			'booked ' || to_char(a.date, 'YYYY-MM-DD') || ' ' || a.slot || ' with ' || v.name, a.created_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN vaccinators v ON v.id = a.vaccinator_id
		ORDER BY a.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanActivity)
}

func scanActivity(row pgx.CollectableRow) (Activity, error) {
	var a Activity
	err := row.Scan(&a.Kind, &a.ID, &a.PatientID, &a.PatientName, &a.Summary, &a.OccurredAt)
	return a, err
}
