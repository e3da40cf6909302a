package immunization

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

func TestInsertError(t *testing.T) {
	assert.NoError(t, insertError(nil))
	assert.ErrorIs(t,
		insertError(&pgconn.PgError{Code: "23505", ConstraintName: appointmentUnique}),
		ErrAlreadyRecorded)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(insertError(errors.New("timeout"))))

	for constraint, field := range map[string]string{
		"vaccination_records_appointment_id_fkey":    "appointment_id",
		"vaccination_records_vaccinator_id_fkey":     "vaccinator_id",
		"vaccination_records_inventory_item_id_fkey": "inventory_item_id",
	} {
		err := insertError(&pgconn.PgError{Code: "23503", ConstraintName: constraint})
		var ae *apperr.Error
		require.ErrorAs(t, err, &ae, constraint)
		assert.Equal(t, apperr.KindValidation, ae.Kind)
		assert.Len(t, ae.Fields, 1)
		assert.Contains(t, ae.Fields, field, constraint)
	}
}
