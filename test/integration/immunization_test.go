package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/vaxclinic/vaxclinic/internal/config"
	"github.com/vaxclinic/vaxclinic/internal/domain/identity"
	"github.com/vaxclinic/vaxclinic/internal/domain/immunization"
	"github.com/vaxclinic/vaxclinic/internal/domain/inventory"
	"github.com/vaxclinic/vaxclinic/internal/domain/scheduling"
	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/db"
	"github.com/vaxclinic/vaxclinic/internal/platform/events"
)

func newImmunizationService(pool *pgxpool.Pool, rec *events.Recorder) *immunization.Service {
	directory := newIdentityService(pool)
	return immunization.NewService(
		immunization.NewRecordRepo(pool),
		inventory.NewService(inventory.NewRepo(pool), zerolog.Nop()),
		scheduling.NewService(scheduling.NewAppointmentRepo(pool), directory, rec, zerolog.Nop()),
		directory,
		db.NewTxRunner(pool),
		rec,
		config.DefaultClinic(),
		zerolog.Nop(),
	)
}

func quantityOf(t *testing.T, ctx context.Context, pool *pgxpool.Pool, id uuid.UUID) int {
	t.Helper()
	item, err := inventory.NewRepo(pool).GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	return item.Quantity
}

func TestImmunizationService_Record(t *testing.T) {
	pool := newSchemaPool(t)
	ctx := context.Background()
	patient := createTestPatient(t, ctx, pool, "Jonas", "Salk")
	doctor := createTestVaccinator(t, ctx, pool, "Dr Sabin", identity.VaccinatorRoleDoctor, identity.VaccinatorActive)
	colleague := createTestVaccinator(t, ctx, pool, "Dr Other", identity.VaccinatorRoleDoctor, identity.VaccinatorActive)
	item := createTestItem(t, ctx, pool, "Polio", 5)
	appts := scheduling.NewAppointmentRepo(pool)
	day := futureDay(3).Format("2006-01-02")

	t.Run("CompletesAppointment", func(t *testing.T) {
		rec := &events.Recorder{}
		svc := newImmunizationService(pool, rec)
		appt := &scheduling.Appointment{PatientID: patient.ID, VaccinatorID: doctor.ID, Date: day, Slot: "09:00"}
		if err := appts.Create(ctx, appt); err != nil {
			t.Fatalf("book: %v", err)
		}

		got, err := svc.Record(ctx, immunization.NewRecord{
			PatientID: patient.ID, VaccinatorID: doctor.ID, InventoryItemID: item.ID,
			AppointmentID: &appt.ID, AdministeredAt: time.Now().Add(-time.Minute),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if got.LotNumber == nil || *got.LotNumber != item.BatchNumber {
			t.Errorf("lot number = %v, want %s", got.LotNumber, item.BatchNumber)
		}
		if q := quantityOf(t, ctx, pool, item.ID); q != 4 {
			t.Errorf("quantity = %d, want 4", q)
		}
		stored, err := appts.GetByID(ctx, appt.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if stored.Status != scheduling.StatusCompleted {
			t.Errorf("appointment status = %s, want completed", stored.Status)
		}
		if types := rec.Types(); len(types) != 2 || types[1] != events.AppointmentCompleted {
			t.Errorf("events = %v", types)
		}

		_, err = svc.Record(ctx, immunization.NewRecord{
			PatientID: patient.ID, VaccinatorID: doctor.ID, InventoryItemID: item.ID, AppointmentID: &appt.ID,
		})
		if !errors.Is(err, immunization.ErrAlreadyRecorded) {
			t.Errorf("expected ErrAlreadyRecorded, got %v", err)
		}
		if q := quantityOf(t, ctx, pool, item.ID); q != 4 {
			t.Errorf("rolled back quantity = %d, want 4", q)
		}
	})

	t.Run("UnknownAppointment", func(t *testing.T) {
		svc := newImmunizationService(pool, &events.Recorder{})
		before := quantityOf(t, ctx, pool, item.ID)

		_, err := svc.Record(ctx, immunization.NewRecord{
			PatientID: patient.ID, VaccinatorID: doctor.ID, InventoryItemID: item.ID, AppointmentID: ptrUUID(uuid.New()),
		})
		var ae *apperr.Error
		if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := ae.Fields["appointment_id"]; !ok {
			t.Errorf("expected appointment_id field, got %v", ae.Fields)
		}
		if q := quantityOf(t, ctx, pool, item.ID); q != before {
			t.Errorf("quantity = %d, want %d", q, before)
		}
	})

	t.Run("AppointmentOfAnotherVaccinator", func(t *testing.T) {
		svc := newImmunizationService(pool, &events.Recorder{})
		appt := &scheduling.Appointment{PatientID: patient.ID, VaccinatorID: colleague.ID, Date: day, Slot: "09:30"}
		if err := appts.Create(ctx, appt); err != nil {
			t.Fatalf("book: %v", err)
		}

		_, err := svc.Record(ctx, immunization.NewRecord{
			PatientID: patient.ID, VaccinatorID: doctor.ID, InventoryItemID: item.ID, AppointmentID: &appt.ID,
		})
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
		stored, _ := appts.GetByID(ctx, appt.ID)
		if stored == nil || stored.Status != scheduling.StatusScheduled {
			t.Errorf("appointment should stay scheduled, got %+v", stored)
		}
	})
}
