package inventory

import (
	"context"

	"github.com/google/uuid"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

var (
	ErrItemNotFound      = apperr.NotFound("inventory item not found")
	ErrInsufficientStock = apperr.Conflict("not enough stock for this adjustment")
	ErrItemInUse         = apperr.Conflict("inventory item is referenced by appointments or vaccination records")
)

type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Item, int, error)
	// Adjust adds delta to the quantity atomically. A result below zero
	// fails with ErrInsufficientStock and changes nothing.
	Adjust(ctx context.Context, id uuid.UUID, delta int) (*Item, error)
}
