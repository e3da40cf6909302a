package scheduling

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

func TestInsertError(t *testing.T) {
	assert.NoError(t, insertError(nil))

	t.Run("slot taken", func(t *testing.T) {
		err := insertError(&pgconn.PgError{Code: "23505", ConstraintName: slotUniqueConstraint})
		assert.ErrorIs(t, err, ErrSlotConflict)
	})

	t.Run("unknown inventory item", func(t *testing.T) {
		err := insertError(fmt.Errorf("insert: %w",
			&pgconn.PgError{Code: "23503", ConstraintName: "appointments_inventory_item_id_fkey"}))

		var ae *apperr.Error
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, apperr.KindValidation, ae.Kind)
		assert.Contains(t, ae.Fields, "inventory_item_id")
		assert.Equal(t, http.StatusUnprocessableEntity, apperr.ToHTTP(err).Code)
	})

	t.Run("patient removed before insert", func(t *testing.T) {
		err := insertError(&pgconn.PgError{Code: "23503", ConstraintName: "appointments_patient_id_fkey"})
		var ae *apperr.Error
		require.ErrorAs(t, err, &ae)
		assert.Contains(t, ae.Fields, "patient_id")
	})

	t.Run("connection failure", func(t *testing.T) {
		err := insertError(errors.New("connection reset"))
		assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
	})
}
