package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

var (
	ErrAppointmentNotFound = apperr.NotFound("appointment not found")
	ErrSlotConflict        = apperr.Conflict("this time slot is already booked")
	ErrNotScheduled        = apperr.Conflict("appointment is no longer scheduled")
)

type AppointmentRepository interface {
	// Create inserts a scheduled appointment. A second live booking of the
	// same vaccinator, date and slot fails with ErrSlotConflict.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// BookedSlots lists the slots of non-cancelled appointments.
	BookedSlots(ctx context.Context, vaccinatorID uuid.UUID, date time.Time) ([]string, error)
	// Transition moves an appointment from one status to another only if it
	// is still in from. Otherwise ErrNotScheduled or ErrAppointmentNotFound.
	Transition(ctx context.Context, id uuid.UUID, from, to string, reason *string) (*Appointment, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
}

// Directory answers the identity questions scheduling needs.
type Directory interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	// VaccinatorStatus fails with a not-found error for unknown ids.
	VaccinatorStatus(ctx context.Context, id uuid.UUID) (string, error)
}
