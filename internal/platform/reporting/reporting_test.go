package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vaxclinic/vaxclinic/internal/config"
	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

type fakeEvaluator struct {
	sql  string
	args []interface{}
	err  error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	f.sql, f.args = sql, args
	if f.err != nil {
		return nil, f.err
	}
	return []map[string]interface{}{{"status": "scheduled", "total": 4}}, nil
}

type fakeExport struct {
	rows     []ExportRow
	from, to time.Time
	limit    int
}

func (f *fakeExport) VaccinationsBetween(_ context.Context, from, to time.Time, limit int) ([]ExportRow, error) {
	f.from, f.to, f.limit = from, to, limit
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func newTestHandler(eval Evaluator, export ExportSource, clinic config.Clinic) *Handler {
	h := NewHandler(eval, export, clinic, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return h
}

func exportRows(n int) []ExportRow {
	lot := "LOT-1"
	rows := make([]ExportRow, n)
	for i := range rows {
		rows[i] = ExportRow{
			RecordID:       uuid.New(),
			AdministeredAt: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
			PatientName:    "Ada Lovelace",
			VaccineName:    "Influenza",
			DoseNumber:     i + 1,
			LotNumber:      &lot,
			VaccinatorName: "Dr. Jenner",
			Department:     "Immunization",
		}
	}
	return rows
}

func TestPredefinedMeasures(t *testing.T) {
	ids := make([]string, 0, len(PredefinedMeasures))
	for _, m := range PredefinedMeasures {
		assert.NotEmpty(t, m.SQL, m.ID)
		assert.NotEmpty(t, m.Name, m.ID)
		assert.NotEmpty(t, m.Description, m.ID)
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{
		"vaccinations-by-vaccine",
		"appointments-by-status",
		"low-stock-items",
		"doses-by-vaccinator",
	}, ids)
}

func TestFindMeasure(t *testing.T) {
	m := FindMeasure("low-stock-items")
	require.NotNil(t, m)
	assert.Equal(t, "Low Stock Items", m.Name)
	assert.Nil(t, FindMeasure("nonexistent"))
}

func TestBindParameters(t *testing.T) {
	m := FindMeasure("low-stock-items")
	query := map[string]string{}
	lookup := func(k string) string { return query[k] }

	params, args, err := bindParameters(m, lookup)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"threshold": config.DefaultStockRedBelow}, params)
	assert.Equal(t, []interface{}{config.DefaultStockRedBelow}, args)

	query["threshold"] = "12"
	_, args, err = bindParameters(m, lookup)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{12}, args)

	query["threshold"] = "-4"
	_, _, err = bindParameters(m, lookup)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	params, args, err = bindParameters(FindMeasure("appointments-by-status"), lookup)
	require.NoError(t, err)
	assert.Nil(t, params)
	assert.Nil(t, args)
}

func TestEvaluateMeasure(t *testing.T) {
	eval := &fakeEvaluator{}
	h := newTestHandler(eval, &fakeExport{}, config.DefaultClinic())
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/measures/low-stock-items/evaluate?threshold=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("low-stock-items")

	require.NoError(t, h.EvaluateMeasure(c))
	assert.Equal(t, []interface{}{5}, eval.args)

	var report MeasureReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "low-stock-items", report.MeasureID)
	assert.Len(t, report.Results, 1)
	assert.Equal(t, 5, report.Parameters["threshold"])
}

func TestEvaluateMeasure_Errors(t *testing.T) {
	e := echo.New()
	h := newTestHandler(&fakeEvaluator{err: errors.New("relation does not exist")}, &fakeExport{}, config.DefaultClinic())

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(h.EvaluateMeasure(c)))

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("appointments-by-status")
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(h.EvaluateMeasure(c)))
}

func TestBuildVaccinationWorkbook(t *testing.T) {
	rows := exportRows(3)
	rows[1].LotNumber = nil

	data, err := BuildVaccinationWorkbook(rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{exportSheet}, f.GetSheetList())
	got, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, ExportHeader, got[0])
	assert.Equal(t, rows[0].RecordID.String(), got[1][0])
	assert.Equal(t, "2025-03-01T09:30:00Z", got[1][1])
	assert.Equal(t, "Influenza", got[1][3])
	assert.Equal(t, "1", got[1][4])
	assert.Equal(t, "LOT-1", got[1][5])
	assert.Equal(t, "", got[2][5])
}

func TestExportVaccinations(t *testing.T) {
	src := &fakeExport{rows: exportRows(2)}
	h := newTestHandler(&fakeEvaluator{}, src, config.DefaultClinic())
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/vaccinations/export?from=2025-03-01&to=2025-03-31", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ExportVaccinations(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "vaccinations-2025-03-01-2025-03-31.xlsx")
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), src.from)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), src.to)
	assert.Equal(t, config.DefaultExportMaxRows+1, src.limit)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestExportVaccinations_TooManyRows(t *testing.T) {
	clinic := config.DefaultClinic()
	clinic.ExportMaxRows = 2
	h := newTestHandler(&fakeEvaluator{}, &fakeExport{rows: exportRows(3)}, clinic)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?from=2025-03-01&to=2025-03-31", nil)
	err := h.ExportVaccinations(e.NewContext(req, httptest.NewRecorder()))

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Fields, "to")
}

func TestExportRange(t *testing.T) {
	_, _, err := exportRange("2025-03-10", "2025-03-01")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, _, err = exportRange("", "March")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Fields, "from")
	assert.Contains(t, ae.Fields, "to")

	from, to, err := exportRange("2025-03-10", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, to.Sub(from))
}
