package immunization

import (
	"context"

	"github.com/google/uuid"

	"github.com/vaxclinic/vaxclinic/internal/domain/inventory"
	"github.com/vaxclinic/vaxclinic/internal/domain/scheduling"
	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

var (
	ErrRecordNotFound  = apperr.NotFound("vaccination record not found")
	ErrAlreadyRecorded = apperr.Conflict("a vaccination is already recorded for this appointment")
)

type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error)
}

// Stock hands out doses.
type Stock interface {
	Consume(ctx context.Context, itemID uuid.UUID) (*inventory.Item, error)
}

// Appointments closes the appointment a dose was given at.
type Appointments interface {
	MarkCompleted(ctx context.Context, id, patientID, vaccinatorID uuid.UUID) (*scheduling.Appointment, error)
}

type Patients interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}
