package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

type ItemRequest struct {
	VaccineName  string `json:"vaccine_name" validate:"required,max=200"`
	Manufacturer string `json:"manufacturer" validate:"required,max=200"`
	BatchNumber  string `json:"batch_number" validate:"required,max=100"`
	Quantity     int    `json:"quantity" validate:"gte=0"`
	ExpiryDate   string `json:"expiry_date" validate:"omitempty,date"`
	Notes        string `json:"notes" validate:"omitempty,max=1000"`
}

type AdjustRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type Service struct {
	items  Repository
	logger zerolog.Logger
}

func NewService(items Repository, logger zerolog.Logger) *Service {
	return &Service{items: items, logger: logger.With().Str("component", "inventory").Logger()}
}

func (s *Service) Create(ctx context.Context, req ItemRequest) (*Item, error) {
	item, err := itemFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.items.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req ItemRequest) (*Item, error) {
	item, err := itemFromRequest(req)
	if err != nil {
		return nil, err
	}
	item.ID = id
	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}
	return s.items.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.items.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Item, int, error) {
	return s.items.List(ctx, f, limit, offset)
}

// Adjust changes stock by a signed delta; stock never goes below zero.
func (s *Service) Adjust(ctx context.Context, id uuid.UUID, req AdjustRequest) (*Item, error) {
	if req.Delta == 0 {
		return nil, apperr.Field("delta", "must not be zero")
	}
	item, err := s.items.Adjust(ctx, id, req.Delta)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("item_id", id.String()).
		Int("delta", req.Delta).
		Int("quantity", item.Quantity).
		Str("reason", req.Reason).
		Msg("stock adjusted")
	return item, nil
}

// Consume takes one dose out of stock. It joins the caller's transaction
// when ctx carries one.
func (s *Service) Consume(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.items.Adjust(ctx, id, -1)
}

func itemFromRequest(req ItemRequest) (*Item, error) {
	item := &Item{
		VaccineName:  strings.TrimSpace(req.VaccineName),
		Manufacturer: strings.TrimSpace(req.Manufacturer),
		BatchNumber:  strings.TrimSpace(req.BatchNumber),
		Quantity:     req.Quantity,
	}
	fields := map[string]string{}
	if item.VaccineName == "" {
		fields["vaccine_name"] = "is required"
	}
	if item.Manufacturer == "" {
		fields["manufacturer"] = "is required"
	}
	if item.BatchNumber == "" {
		fields["batch_number"] = "is required"
	}
	if item.Quantity < 0 {
		fields["quantity"] = "must be greater than or equal to 0"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("validation failed", fields)
	}
	if req.ExpiryDate != "" {
		item.ExpiryDate = &req.ExpiryDate
	}
	if n := strings.TrimSpace(req.Notes); n != "" {
		item.Notes = &n
	}
	return item, nil
}
