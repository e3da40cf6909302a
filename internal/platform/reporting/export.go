package reporting

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/db"
	"github.com/vaxclinic/vaxclinic/internal/platform/validate"
)

const exportSheet = "Vaccinations"

// ExportHeader is the first row of the vaccination workbook.
var ExportHeader = []string{
	"Record ID",
	"Administered At",
	"Patient",
	"Vaccine",
	"Dose",
	"Lot Number",
	"Site",
	"Vaccinator",
	"Department",
}

var exportColumnWidths = []float64{38, 20, 28, 24, 8, 16, 16, 28, 20}

type ExportRow struct {
	RecordID       uuid.UUID
	AdministeredAt time.Time
	PatientName    string
	VaccineName    string
	DoseNumber     int
	LotNumber      *string
	Site           *string
	VaccinatorName string
	Department     string
}

// ExportSource lists vaccination records administered in [from, to), at
// most limit of them, oldest first.
type ExportSource interface {
	VaccinationsBetween(ctx context.Context, from, to time.Time, limit int) ([]ExportRow, error)
}

type pgExportSource struct {
	pool *pgxpool.Pool
}

func NewExportSource(pool *pgxpool.Pool) ExportSource {
	return &pgExportSource{pool: pool}
}

func (s *pgExportSource) VaccinationsBetween(ctx context.Context, from, to time.Time, limit int) ([]ExportRow, error) {
	rows, err := db.Conn(ctx, s.pool).Query(ctx, `
		SELECT r.id, r.administered_at, p.first_name || ' ' || p.last_name, r.vaccine_name, r.dose_number,
			r.lot_number, r.site, v.name, v.department
		FROM vaccination_records r
		JOIN patients p ON p.id = r.patient_id
		JOIN vaccinators v ON v.id = r.vaccinator_id
		WHERE r.administered_at >= $1 AND r.administered_at < $2
		ORDER BY r.administered_at, r.id
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ExportRow, error) {
		var r ExportRow
		err := row.Scan(&r.RecordID, &r.AdministeredAt, &r.PatientName, &r.VaccineName, &r.DoseNumber,
			&r.LotNumber, &r.Site, &r.VaccinatorName, &r.Department)
		return r, err
	})
}

// ExportVaccinations streams an XLSX workbook of the records administered
// between ?from= and ?to= (both YYYY-MM-DD, inclusive).
func (h *Handler) ExportVaccinations(c echo.Context) error {
	from, to, err := exportRange(c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return err
	}

	limit := h.clinic.ExportMaxRows
	rows, err := h.export.VaccinationsBetween(c.Request().Context(), from, to, limit+1)
	if err != nil {
		return apperr.Unavailable("export vaccinations", err)
	}
	if len(rows) > limit {
		return apperr.Field("to", fmt.Sprintf("range holds more than %d records; narrow it", limit))
	}

	data, err := BuildVaccinationWorkbook(rows)
	if err != nil {
		return err
	}
	h.logger.Info().
		Str("from", from.Format(validate.DateLayout)).
		Str("to", to.AddDate(0, 0, -1).Format(validate.DateLayout)).
		Int("rows", len(rows)).
		Msg("vaccinations exported")

	name := fmt.Sprintf("vaccinations-%s-%s.xlsx", c.QueryParam("from"), c.QueryParam("to"))
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+name)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// exportRange turns an inclusive date range into [from, to+1 day).
func exportRange(rawFrom, rawTo string) (time.Time, time.Time, error) {
	fields := map[string]string{}
	from, err := time.Parse(validate.DateLayout, rawFrom)
	if err != nil {
		fields["from"] = "must be a date in YYYY-MM-DD format"
	}
	to, err := time.Parse(validate.DateLayout, rawTo)
	if err != nil {
		fields["to"] = "must be a date in YYYY-MM-DD format"
	}
	if len(fields) > 0 {
		return time.Time{}, time.Time{}, apperr.Validation("validation failed", fields)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, apperr.Field("to", "must not be before from")
	}
	return from, to.AddDate(0, 0, 1), nil
}

// BuildVaccinationWorkbook renders rows as a single-sheet XLSX file.
func BuildVaccinationWorkbook(rows []ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &ExportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(ExportHeader))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	for i, w := range exportColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{
			r.RecordID.String(),
			r.AdministeredAt.UTC().Format(time.RFC3339),
			r.PatientName,
			r.VaccineName,
			r.DoseNumber,
			deref(r.LotNumber),
			deref(r.Site),
			r.VaccinatorName,
			r.Department,
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
