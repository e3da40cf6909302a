package immunization

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxclinic/vaxclinic/internal/config"
	"github.com/vaxclinic/vaxclinic/internal/domain/scheduling"
	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/db"
	"github.com/vaxclinic/vaxclinic/internal/platform/events"
)

type Service struct {
	records      RecordRepository
	stock        Stock
	appointments Appointments
	patients     Patients
	tx           db.TxRunner
	events       events.Emitter
	clinic       config.Clinic
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(records RecordRepository, stock Stock, appointments Appointments, patients Patients,
	tx db.TxRunner, emitter events.Emitter, clinic config.Clinic, logger zerolog.Logger) *Service {
	return &Service{
		records:      records,
		stock:        stock,
		appointments: appointments,
		patients:     patients,
		tx:           tx,
		events:       emitter,
		clinic:       clinic,
		logger:       logger.With().Str("component", "immunization").Logger(),
		now:          time.Now,
	}
}

// Record stores an administered dose. Taking the dose out of stock, writing
// the record and completing the linked appointment commit together or not
// at all.
func (s *Service) Record(ctx context.Context, in NewRecord) (*Record, error) {
	if err := s.checkNew(&in); err != nil {
		return nil, err
	}
	exists, err := s.patients.PatientExists(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.Field("patient_id", "does not match a registered patient")
	}

	rec := &Record{
		PatientID:       in.PatientID,
		VaccinatorID:    in.VaccinatorID,
		InventoryItemID: in.InventoryItemID,
		AppointmentID:   in.AppointmentID,
		VaccineName:     in.VaccineName,
		DoseNumber:      in.DoseNumber,
		LotNumber:       in.LotNumber,
		Site:            in.Site,
		AdministeredAt:  in.AdministeredAt,
		Notes:           in.Notes,
	}
	var completed *scheduling.Appointment
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		item, err := s.stock.Consume(ctx, in.InventoryItemID)
		if err != nil {
			return err
		}
		if rec.VaccineName == "" {
			rec.VaccineName = item.VaccineName
		}
		if rec.LotNumber == nil {
			lot := item.BatchNumber
			rec.LotNumber = &lot
		}
		if err := s.records.Create(ctx, rec); err != nil {
			return err
		}
		if rec.AppointmentID == nil {
			return nil
		}
		completed, err = s.appointments.MarkCompleted(ctx, *rec.AppointmentID, rec.PatientID, rec.VaccinatorID)
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", in.PatientID.String()).
			Str("inventory_item_id", in.InventoryItemID.String()).
			Msg("vaccination not recorded")
		return nil, err
	}

	s.events.Emit(ctx, events.VaccinationRecorded, rec)
	if completed != nil {
		s.events.Emit(ctx, events.AppointmentCompleted, completed)
	}
	return rec, nil
}

func (s *Service) checkNew(in *NewRecord) error {
	fields := map[string]string{}
	if in.PatientID == uuid.Nil {
		fields["patient_id"] = "is required"
	}
	if in.VaccinatorID == uuid.Nil {
		fields["vaccinator_id"] = "is required"
	}
	if in.InventoryItemID == uuid.Nil {
		fields["inventory_item_id"] = "is required"
	}
	in.VaccineName = strings.TrimSpace(in.VaccineName)
	if in.DoseNumber == 0 {
		in.DoseNumber = s.clinic.DoseNumber
	}
	if in.DoseNumber < 1 {
		fields["dose_number"] = "must be at least 1"
	}
	now := s.now()
	if in.AdministeredAt.IsZero() {
		in.AdministeredAt = now
	} else if in.AdministeredAt.After(now) {
		fields["administered_at"] = "must not be in the future"
	}
	if len(fields) > 0 {
		return apperr.Validation("validation failed", fields)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	return s.records.List(ctx, f, limit, offset)
}
