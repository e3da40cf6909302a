package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

var (
	ErrPatientNotFound    = apperr.NotFound("patient not found")
	ErrVaccinatorNotFound = apperr.NotFound("vaccinator not found")
	ErrAccountNotFound    = apperr.NotFound("account not found")
	ErrAlreadyRegistered  = apperr.Conflict("this identity already has a profile")
	ErrLicenseTaken       = apperr.Conflict("license number is already registered")
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type VaccinatorRepository interface {
	Create(ctx context.Context, v *Vaccinator) error
	GetByID(ctx context.Context, id uuid.UUID) (*Vaccinator, error)
	List(ctx context.Context, f VaccinatorFilter, limit, offset int) ([]*Vaccinator, int, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SetRole(ctx context.Context, id uuid.UUID, role string) error
}

// AccountRepository owns the identity to record mapping.
type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	GetByIdentity(ctx context.Context, identityID string) (*Account, error)
}
