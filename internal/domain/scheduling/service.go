package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/events"
	"github.com/vaxclinic/vaxclinic/internal/platform/validate"
)

const vaccinatorActive = "active"

type Service struct {
	appointments AppointmentRepository
	directory    Directory
	events       events.Emitter
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(appointments AppointmentRepository, directory Directory, emitter events.Emitter, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appointments,
		directory:    directory,
		events:       emitter,
		logger:       logger.With().Str("component", "scheduling").Logger(),
		now:          time.Now,
	}
}

// AvailableSlots computes the free slots of a vaccinator on date. Unknown
// and inactive vaccinators have none. A failed read is returned as an
// error, never as a full template.
func (s *Service) AvailableSlots(ctx context.Context, vaccinatorID uuid.UUID, date time.Time) ([]string, error) {
	status, err := s.directory.VaccinatorStatus(ctx, vaccinatorID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if status != vaccinatorActive {
		return []string{}, nil
	}

	booked, err := s.appointments.BookedSlots(ctx, vaccinatorID, date)
	if err != nil {
		return nil, err
	}
	return FreeSlots(booked), nil
}

// Create books a slot. The insert is the authority on conflicts: a slot
// seen as free a moment ago can still fail with ErrSlotConflict.
func (s *Service) Create(ctx context.Context, in NewAppointment) (*Appointment, error) {
	if err := s.checkNew(in); err != nil {
		return nil, err
	}

	ok, err := s.directory.PatientExists(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Field("patient_id", "patient does not exist")
	}

	status, err := s.directory.VaccinatorStatus(ctx, in.VaccinatorID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return nil, apperr.Field("vaccinator_id", "vaccinator does not exist")
	}
	if err != nil {
		return nil, err
	}
	if status != vaccinatorActive {
		return nil, apperr.Field("vaccinator_id", "vaccinator is not accepting appointments")
	}

	a := &Appointment{
		PatientID:       in.PatientID,
		VaccinatorID:    in.VaccinatorID,
		InventoryItemID: in.InventoryItemID,
		Date:            in.Date.Format(validate.DateLayout),
		Slot:            in.Slot,
		Notes:           in.Notes,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			s.logger.Info().
				Str("vaccinator_id", a.VaccinatorID.String()).
				Str("date", a.Date).
				Str("slot", a.Slot).
				Msg("slot conflict on booking")
		}
		return nil, err
	}

	s.events.Emit(ctx, events.AppointmentCreated, a)
	return a, nil
}

func (s *Service) checkNew(in NewAppointment) error {
	fields := map[string]string{}
	if in.PatientID == uuid.Nil {
		fields["patient_id"] = "is required"
	}
	if in.VaccinatorID == uuid.Nil {
		fields["vaccinator_id"] = "is required"
	}
	if !IsTemplateSlot(in.Slot) {
		fields["slot"] = "must be one of the clinic time slots"
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(in.Date.Year(), in.Date.Month(), in.Date.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case in.Date.IsZero():
		fields["date"] = "is required"
	case day.Before(today):
		fields["date"] = "must not be in the past"
	case day.Equal(today) && fields["slot"] == "":
		if start, err := slotStart(day, in.Slot); err == nil && !start.After(now) {
			fields["slot"] = "has already started"
		}
	}

	if len(fields) > 0 {
		return apperr.Validation("validation failed", fields)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, f, limit, offset)
}

// Cancel frees the slot. Only scheduled appointments can be cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	var r *string
	if reason != "" {
		r = &reason
	}
	a, err := s.appointments.Transition(ctx, id, StatusScheduled, StatusCancelled, r)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.AppointmentCancelled, a)
	return a, nil
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.Transition(ctx, id, StatusScheduled, StatusCompleted, nil)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.AppointmentCompleted, a)
	return a, nil
}

// MarkCompleted completes the appointment a dose was given at. The dose must
// be for the appointment's patient and given by its vaccinator. It runs
// inside the caller's transaction and emits nothing; the caller publishes
// the returned appointment once its transaction commits.
func (s *Service) MarkCompleted(ctx context.Context, id, patientID, vaccinatorID uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, apperr.Field("appointment_id", "appointment belongs to another patient")
	}
	if a.VaccinatorID != vaccinatorID {
		return nil, apperr.Field("appointment_id", "appointment is booked with another vaccinator")
	}
	return s.appointments.Transition(ctx, id, StatusScheduled, StatusCompleted, nil)
}
