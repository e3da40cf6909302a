package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaxclinic/vaxclinic/internal/config"
	"github.com/vaxclinic/vaxclinic/internal/domain/dashboard"
	"github.com/vaxclinic/vaxclinic/internal/domain/identity"
	"github.com/vaxclinic/vaxclinic/internal/domain/scheduling"
)

func TestDashboardStats(t *testing.T) {
	pool := newSchemaPool(t)
	ctx := context.Background()
	patient := createTestPatient(t, ctx, pool, "Louis", "Pasteur")
	doctor := createTestVaccinator(t, ctx, pool, "Dr Active", identity.VaccinatorRoleDoctor, identity.VaccinatorActive)
	createTestVaccinator(t, ctx, pool, "Dr Resting", identity.VaccinatorRoleDoctor, identity.VaccinatorInactive)
	createTestVaccinator(t, ctx, pool, "Admin Active", identity.VaccinatorRoleAdmin, identity.VaccinatorActive)
	low := createTestItem(t, ctx, pool, "Polio", 12)
	createTestItem(t, ctx, pool, "Measles", 45)
	createTestItem(t, ctx, pool, "Tetanus", 150)

	asOf := time.Date(2031, 1, 7, 10, 0, 0, 0, time.UTC)
	repo := scheduling.NewAppointmentRepo(pool)
	book := func(date, slot string) *scheduling.Appointment {
		a := &scheduling.Appointment{PatientID: patient.ID, VaccinatorID: doctor.ID, Date: date, Slot: slot}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("book %s %s: %v", date, slot, err)
		}
		return a
	}
	book("2031-01-07", "09:30") // started before as_of
	book("2031-01-07", "10:00") // starts exactly at as_of
	book("2031-01-13", "16:30") // last slot inside the window
	book("2031-01-14", "10:00") // starts exactly at the window end
	cancelled := book("2031-01-08", "09:00")
	if _, err := repo.Transition(ctx, cancelled.ID, scheduling.StatusScheduled, scheduling.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO vaccination_records (id, patient_id, vaccinator_id, inventory_item_id, vaccine_name, dose_number, administered_at)
		VALUES (gen_random_uuid(), $1, $2, $3, 'Polio', 1, $4)`,
		patient.ID, doctor.ID, low.ID, asOf.Add(-time.Hour))
	if err != nil {
		t.Fatalf("insert vaccination: %v", err)
	}

	svc := dashboard.NewService(dashboard.NewSource(pool), config.DefaultClinic(), zerolog.Nop())
	stats := svc.ComputeStats(ctx, asOf)

	if stats.TotalAdministered != 1 {
		t.Errorf("total_administered = %d, want 1", stats.TotalAdministered)
	}
	if stats.ActiveDoctorCount != 1 {
		t.Errorf("active_doctor_count = %d, want 1", stats.ActiveDoctorCount)
	}
	if stats.UpcomingAppointmentCount != 2 {
		t.Errorf("upcoming_appointment_count = %d, want 2", stats.UpcomingAppointmentCount)
	}
	if stats.StockAlertCount != 1 {
		t.Errorf("stock_alert_count = %d, want 1", stats.StockAlertCount)
	}

	bands := map[string]string{}
	for _, lvl := range stats.StockLevels {
		bands[lvl.VaccineName] = lvl.Band
	}
	want := map[string]string{"Polio": dashboard.BandRed, "Measles": dashboard.BandYellow, "Tetanus": dashboard.BandGreen}
	for name, band := range want {
		if bands[name] != band {
			t.Errorf("%s band = %q, want %q", name, bands[name], band)
		}
	}

	// Five bookings plus one vaccination.
	if len(stats.RecentActivity) != 6 {
		t.Fatalf("recent_activity has %d entries, want 6", len(stats.RecentActivity))
	}
	for i := 1; i < len(stats.RecentActivity); i++ {
		if stats.RecentActivity[i].OccurredAt.After(stats.RecentActivity[i-1].OccurredAt) {
			t.Errorf("recent activity not newest first at %d", i)
		}
	}
	if stats.RecentActivity[0].PatientName != "Louis Pasteur" {
		t.Errorf("patient name = %q", stats.RecentActivity[0].PatientName)
	}
}
