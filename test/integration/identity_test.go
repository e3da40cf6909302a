package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/vaxclinic/vaxclinic/internal/domain/identity"
)

func TestResolver_AccountLookup(t *testing.T) {
	pool := newSchemaPool(t)
	ctx := context.Background()
	accounts := identity.NewAccountRepo(pool)
	resolver := identity.NewResolver(accounts)

	patient := createTestPatient(t, ctx, pool, "Florence", "Nightingale")
	doctor := createTestVaccinator(t, ctx, pool, "Dr Snow", identity.VaccinatorRoleDoctor, identity.VaccinatorActive)
	admin := createTestVaccinator(t, ctx, pool, "Head Nurse", identity.VaccinatorRoleAdmin, identity.VaccinatorActive)

	for _, a := range []*identity.Account{
		{IdentityID: patient.IdentityID, Kind: identity.KindPatient, RecordID: patient.ID},
		{IdentityID: doctor.IdentityID, Kind: identity.KindVaccinator, RecordID: doctor.ID},
		{IdentityID: admin.IdentityID, Kind: identity.KindVaccinator, RecordID: admin.ID},
	} {
		if err := accounts.Create(ctx, a); err != nil {
			t.Fatalf("create account %s: %v", a.IdentityID, err)
		}
	}

	tests := []struct {
		name       string
		identityID string
		role       string
		redirect   string
		recordID   *uuid.UUID
	}{
		{"patient", patient.IdentityID, "patient", identity.RedirectPatient, &patient.ID},
		{"doctor", doctor.IdentityID, "doctor", identity.RedirectDoctor, &doctor.ID},
		{"admin", admin.IdentityID, "admin", identity.RedirectAdmin, &admin.ID},
		{"no profile", uuid.NewString(), identity.RoleNone, identity.RedirectRegister, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := resolver.Resolve(ctx, tt.identityID)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Role != tt.role || res.Redirect != tt.redirect {
				t.Errorf("got role=%q redirect=%q, want %q %q", res.Role, res.Redirect, tt.role, tt.redirect)
			}
			switch {
			case tt.recordID == nil && res.RecordID != nil:
				t.Errorf("expected no record id, got %s", res.RecordID)
			case tt.recordID != nil && (res.RecordID == nil || *res.RecordID != *tt.recordID):
				t.Errorf("record id = %v, want %s", res.RecordID, tt.recordID)
			}
		})
	}

	t.Run("second account for identity", func(t *testing.T) {
		err := accounts.Create(ctx, &identity.Account{IdentityID: patient.IdentityID, Kind: identity.KindVaccinator, RecordID: doctor.ID})
		if err == nil {
			t.Fatal("expected the identity to keep a single account")
		}
	})
}
