package immunization

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/auth"
	"github.com/vaxclinic/vaxclinic/internal/platform/validate"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(env.svc), env, e
}

func newJSONContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asPrincipal(c echo.Context, role string, recordID uuid.UUID) {
	ctx := auth.WithPrincipal(c.Request().Context(), "identity-"+role, role, recordID, "tok")
	c.SetRequest(c.Request().WithContext(ctx))
}

func TestHandler_RecordVaccination(t *testing.T) {
	h, env, e := newTestHandler()
	body := `{"patient_id":"` + env.patientID.String() + `","inventory_item_id":"` + env.itemID.String() +
		`","site":"left deltoid","administered_at":"2025-03-10T09:30:00Z"}`
	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/vaccinations", body)
	asPrincipal(c, auth.RoleDoctor, env.vaccinatorID)

	require.NoError(t, h.RecordVaccination(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var got Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, env.vaccinatorID, got.VaccinatorID)
	require.NotNil(t, got.Site)
	assert.Equal(t, "left deltoid", *got.Site)
}

func TestHandler_RecordVaccination_DoctorForOtherVaccinator(t *testing.T) {
	h, env, e := newTestHandler()
	body := `{"patient_id":"` + env.patientID.String() + `","inventory_item_id":"` + env.itemID.String() +
		`","vaccinator_id":"` + uuid.NewString() + `"}`
	c, _ := newJSONContext(e, http.MethodPost, "/api/v1/vaccinations", body)
	asPrincipal(c, auth.RoleDoctor, env.vaccinatorID)

	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(h.RecordVaccination(c)))
}

func TestHandler_RecordVaccination_Validation(t *testing.T) {
	h, env, e := newTestHandler()
	c, _ := newJSONContext(e, http.MethodPost, "/api/v1/vaccinations",
		`{"patient_id":"nope","dose_number":-2,"administered_at":"yesterday"}`)
	asPrincipal(c, auth.RoleDoctor, env.vaccinatorID)

	var ae *apperr.Error
	require.ErrorAs(t, h.RecordVaccination(c), &ae)
	for _, field := range []string{"patient_id", "inventory_item_id", "dose_number", "administered_at"} {
		assert.Contains(t, ae.Fields, field)
	}
}

func TestHandler_GetVaccination_OtherPatientHidden(t *testing.T) {
	h, env, e := newTestHandler()
	rec, err := env.svc.Record(context.Background(), env.newRecord())
	require.NoError(t, err)

	tests := []struct {
		name     string
		role     string
		recordID uuid.UUID
		wantErr  bool
	}{
		{"owner", auth.RolePatient, env.patientID, false},
		{"other patient", auth.RolePatient, uuid.New(), true},
		{"doctor", auth.RoleDoctor, env.vaccinatorID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newJSONContext(e, http.MethodGet, "/", "")
			c.SetParamNames("id")
			c.SetParamValues(rec.ID.String())
			asPrincipal(c, tt.role, tt.recordID)

			err := h.GetVaccination(c)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRecordNotFound)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandler_ListVaccinations_PatientSeesOwn(t *testing.T) {
	h, env, e := newTestHandler()
	_, err := env.svc.Record(context.Background(), env.newRecord())
	require.NoError(t, err)

	c, rec := newJSONContext(e, http.MethodGet, "/api/v1/vaccinations?patient_id="+env.patientID.String(), "")
	asPrincipal(c, auth.RolePatient, uuid.New())
	require.NoError(t, h.ListVaccinations(c))

	var body struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Total)
}
