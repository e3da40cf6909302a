package inventory

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

type itemRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &itemRepoPG{pool: pool}
}

const itemCols = `id, vaccine_name, manufacturer, batch_number, quantity,
	to_char(expiry_date, 'YYYY-MM-DD'), notes, created_at, updated_at`

func (r *itemRepoPG) Create(ctx context.Context, item *Item) error {
	expiry, err := expiryParam(item.ExpiryDate)
	if err != nil {
		return err
	}
	item.ID = uuid.New()
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO inventory_items (id, vaccine_name, manufacturer, batch_number, quantity, expiry_date, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		item.ID, item.VaccineName, item.Manufacturer, item.BatchNumber, item.Quantity, expiry, item.Notes,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return apperr.Unavailable("create inventory item", err)
	}
	return nil
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := scanItem(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, apperr.Unavailable("get inventory item", err)
	}
	return item, nil
}

func (r *itemRepoPG) Update(ctx context.Context, item *Item) error {
	expiry, err := expiryParam(item.ExpiryDate)
	if err != nil {
		return err
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE inventory_items SET vaccine_name = $2, manufacturer = $3, batch_number = $4,
			quantity = $5, expiry_date = $6, notes = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		item.ID, item.VaccineName, item.Manufacturer, item.BatchNumber, item.Quantity, expiry, item.Notes,
	).Scan(&item.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrItemNotFound
	}
	if err != nil {
		return apperr.Unavailable("update inventory item", err)
	}
	return nil
}

func (r *itemRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.Wrap(ErrItemInUse, err)
	}
	if err != nil {
		return apperr.Unavailable("delete inventory item", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *itemRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Item, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	idx := 1
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(vaccine_name ILIKE $%d OR manufacturer ILIKE $%d OR batch_number ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	if f.MaxQuantity != nil {
		where = append(where, fmt.Sprintf("quantity <= $%d", idx))
		args = append(args, *f.MaxQuantity)
		idx++
	}
	whereClause := strings.Join(where, " AND ")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Unavailable("count inventory items", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM inventory_items WHERE %s ORDER BY vaccine_name, batch_number LIMIT $%d OFFSET $%d`,
		itemCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Unavailable("list inventory items", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, apperr.Unavailable("scan inventory item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Unavailable("list inventory items", err)
	}
	return items, total, nil
}

func (r *itemRepoPG) Adjust(ctx context.Context, id uuid.UUID, delta int) (*Item, error) {
	conn := db.Conn(ctx, r.pool)
	item, err := scanItem(conn.QueryRow(ctx, `
		UPDATE inventory_items SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING `+itemCols, id, delta))
	if err == nil {
		return item, nil
	}
	if !db.IsNoRows(err) {
		return nil, apperr.Unavailable("adjust stock", err)
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_items WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, apperr.Unavailable("adjust stock", err)
	}
	if !exists {
		return nil, ErrItemNotFound
	}
	return nil, ErrInsufficientStock
}

func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.VaccineName, &item.Manufacturer, &item.BatchNumber, &item.Quantity,
		&item.ExpiryDate, &item.Notes, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func expiryParam(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(validate.DateLayout, *raw)
	if err != nil {
		return nil, apperr.Field("expiry_date", "must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}
