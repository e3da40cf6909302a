package immunization

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/auth"
	"github.com/vaxclinic/vaxclinic/internal/platform/validate"
	"github.com/vaxclinic/vaxclinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	profiled := api.Group("", auth.RequireProfile())
	profiled.GET("/vaccinations", h.ListVaccinations)
	profiled.GET("/vaccinations/:id", h.GetVaccination)

	staff := api.Group("", auth.RequireRole(auth.RoleDoctor))
	staff.POST("/vaccinations", h.RecordVaccination)
}

type RecordRequest struct {
	PatientID       string `json:"patient_id" validate:"required,uuid"`
	InventoryItemID string `json:"inventory_item_id" validate:"required,uuid"`
	AppointmentID   string `json:"appointment_id" validate:"omitempty,uuid"`
	VaccinatorID    string `json:"vaccinator_id" validate:"omitempty,uuid"`
	VaccineName     string `json:"vaccine_name" validate:"omitempty,max=200"`
	DoseNumber      int    `json:"dose_number" validate:"omitempty,gte=1"`
	LotNumber       string `json:"lot_number" validate:"omitempty,max=100"`
	Site            string `json:"site" validate:"omitempty,max=100"`
	AdministeredAt  string `json:"administered_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Notes           string `json:"notes" validate:"omitempty,max=1000"`
}

// RecordVaccination attributes the dose to the calling vaccinator. Admins
// may record on behalf of another vaccinator with vaccinator_id.
func (h *Handler) RecordVaccination(c echo.Context) error {
	var req RecordRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	in := NewRecord{
		PatientID:       uuid.MustParse(req.PatientID),
		InventoryItemID: uuid.MustParse(req.InventoryItemID),
		VaccinatorID:    auth.RecordIDFromContext(ctx),
		VaccineName:     req.VaccineName,
		DoseNumber:      req.DoseNumber,
		LotNumber:       optional(req.LotNumber),
		Site:            optional(req.Site),
		Notes:           optional(req.Notes),
	}
	if req.VaccinatorID != "" {
		id := uuid.MustParse(req.VaccinatorID)
		if id != in.VaccinatorID && !auth.HasRole(ctx, auth.RoleAdmin) {
			return apperr.Forbidden("doctors can only record their own doses")
		}
		in.VaccinatorID = id
	}
	if req.AppointmentID != "" {
		id := uuid.MustParse(req.AppointmentID)
		in.AppointmentID = &id
	}
	if req.AdministeredAt != "" {
		in.AdministeredAt, _ = time.Parse(time.RFC3339, req.AdministeredAt)
	}

	rec, err := h.svc.Record(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

// ListVaccinations returns the caller's own history for patients; staff
// may filter with ?patient_id= and ?vaccinator_id=.
func (h *Handler) ListVaccinations(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	var f ListFilter
	if auth.IsStaff(ctx) {
		var err error
		if f.PatientID, err = parseOptionalID("patient_id", c.QueryParam("patient_id")); err != nil {
			return err
		}
		if f.VaccinatorID, err = parseOptionalID("vaccinator_id", c.QueryParam("vaccinator_id")); err != nil {
			return err
		}
	} else {
		own := auth.RecordIDFromContext(ctx)
		f.PatientID = &own
	}

	items, total, err := h.svc.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetVaccination(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Field("id", "must be a valid UUID")
	}
	ctx := c.Request().Context()
	rec, err := h.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canSee(ctx, rec) {
		return ErrRecordNotFound
	}
	return c.JSON(http.StatusOK, rec)
}

func canSee(ctx context.Context, r *Record) bool {
	if auth.IsStaff(ctx) {
		return true
	}
	return auth.HasRole(ctx, auth.RolePatient) && auth.RecordIDFromContext(ctx) == r.PatientID
}

func parseOptionalID(field, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Field(field, "must be a valid UUID")
	}
	return &id, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
