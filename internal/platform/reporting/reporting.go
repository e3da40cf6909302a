package reporting

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vaxclinic/vaxclinic/internal/config"
	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/auth"
	"github.com/vaxclinic/vaxclinic/internal/platform/db"
)

// Parameter is a query-string argument of a measure, bound positionally.
type Parameter struct {
	Name    string `json:"name"`
	Default int    `json:"default"`
}

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	SQL         string      `json:"sql"`
	Parameters  []Parameter `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]int           `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "vaccinations-by-vaccine",
		Name:        "Vaccinations by Vaccine",
		Description: "Doses administered per vaccine, with the number of distinct patients",
		SQL: `SELECT vaccine_name, COUNT(*) AS doses, COUNT(DISTINCT patient_id) AS patients
			FROM vaccination_records GROUP BY vaccine_name ORDER BY doses DESC`,
		Parameters: []Parameter{},
	},
	{
		ID:          "appointments-by-status",
		Name:        "Appointments by Status",
		Description: "Number of appointments in each status",
		SQL:         `SELECT status, COUNT(*) AS total FROM appointments GROUP BY status ORDER BY total DESC`,
		Parameters:  []Parameter{},
	},
	{
		ID:          "low-stock-items",
		Name:        "Low Stock Items",
		Description: "Inventory batches at or below the threshold quantity",
		SQL: `SELECT id, vaccine_name, batch_number, quantity, to_char(expiry_date, 'YYYY-MM-DD') AS expiry_date
			FROM inventory_items WHERE quantity <= $1 ORDER BY quantity, vaccine_name`,
		Parameters: []Parameter{{Name: "threshold", Default: config.DefaultStockRedBelow}},
	},
	{
		ID:          "doses-by-vaccinator",
		Name:        "Doses by Vaccinator",
		Description: "Doses administered per vaccinator",
		SQL: `SELECT v.id AS vaccinator_id, v.name, v.department, COUNT(r.id) AS doses
			FROM vaccinators v LEFT JOIN vaccination_records r ON r.vaccinator_id = v.id
			GROUP BY v.id, v.name, v.department ORDER BY doses DESC, v.name`,
		Parameters: []Parameter{},
	},
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// Evaluator runs a measure query and returns each row as a column map.
type Evaluator interface {
	Evaluate(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error)
}

type pgEvaluator struct {
	pool *pgxpool.Pool
}

func NewEvaluator(pool *pgxpool.Pool) Evaluator {
	return &pgEvaluator{pool: pool}
}

func (e *pgEvaluator) Evaluate(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := db.Conn(ctx, e.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	eval   Evaluator
	export ExportSource
	clinic config.Clinic
	logger zerolog.Logger
	now    func() time.Time
}

func NewHandler(eval Evaluator, export ExportSource, clinic config.Clinic, logger zerolog.Logger) *Handler {
	return &Handler{
		eval:   eval,
		export: export,
		clinic: clinic,
		logger: logger.With().Str("component", "reporting").Logger(),
		now:    time.Now,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole(auth.RoleAdmin))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
	reportGroup.GET("/vaccinations/export", h.ExportVaccinations)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL with its parameters taken from
// the query string.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return apperr.NotFound("measure not found")
	}

	params, args, err := bindParameters(measure, c.QueryParam)
	if err != nil {
		return err
	}
	results, err := h.eval.Evaluate(c.Request().Context(), measure.SQL, args...)
	if err != nil {
		return apperr.Unavailable("evaluate measure "+measure.ID, err)
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: h.now().UTC(),
		Results:     results,
		Parameters:  params,
	})
}

func bindParameters(m *MeasureDefinition, lookup func(string) string) (map[string]int, []interface{}, error) {
	if len(m.Parameters) == 0 {
		return nil, nil, nil
	}
	params := make(map[string]int, len(m.Parameters))
	args := make([]interface{}, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		v := p.Default
		if raw := lookup(p.Name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return nil, nil, apperr.Field(p.Name, "must be a non-negative integer")
			}
			v = n
		}
		params[p.Name] = v
		args = append(args, v)
	}
	return params, args, nil
}
