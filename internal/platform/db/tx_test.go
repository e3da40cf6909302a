package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_slot_unique"})

	if !IsUniqueViolation(err, "") {
		t.Error("expected unique violation for any constraint")
	}
	if !IsUniqueViolation(err, "appointments_slot_unique") {
		t.Error("expected unique violation for named constraint")
	}
	if IsUniqueViolation(err, "accounts_identity_id_key") {
		t.Error("expected mismatch on other constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Error("plain error is not a unique violation")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped ErrNoRows to match")
	}
	if IsNoRows(errors.New("other")) {
		t.Error("unexpected match")
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected no transaction in empty context")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(fmt.Errorf("delete: %w", &pgconn.PgError{Code: "23503"})) {
		t.Error("expected foreign key violation")
	}
	if IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("unique violation is not a foreign key violation")
	}
}

func TestForeignKeyColumn(t *testing.T) {
	fk := func(name string) error {
		return fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503", ConstraintName: name})
	}
	tests := []struct {
		err    error
		table  string
		col    string
		wantOK bool
	}{
		{fk("appointments_inventory_item_id_fkey"), "appointments", "inventory_item_id", true},
		{fk("vaccination_records_appointment_id_fkey"), "vaccination_records", "appointment_id", true},
		{fk("vaccination_records_appointment_id_fkey"), "appointments", "", false},
		{fk("appointments_custom_check"), "appointments", "", false},
		{&pgconn.PgError{Code: "23505", ConstraintName: "appointments_slot_unique"}, "appointments", "", false},
		{errors.New("boom"), "appointments", "", false},
	}
	for _, tt := range tests {
		col, ok := ForeignKeyColumn(tt.err, tt.table)
		if ok != tt.wantOK || col != tt.col {
			t.Errorf("ForeignKeyColumn(%v, %q) = %q, %v; want %q, %v", tt.err, tt.table, col, ok, tt.col, tt.wantOK)
		}
	}
}
