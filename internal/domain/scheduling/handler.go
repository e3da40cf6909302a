package scheduling

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
	profiled.GET("/vaccinators/:id/availability", h.GetAvailability)
	profiled.POST("/appointments", h.CreateAppointment)
	profiled.GET("/appointments", h.ListAppointments)
	profiled.GET("/appointments/:id", h.GetAppointment)
	profiled.POST("/appointments/:id/cancel", h.CancelAppointment)

	staff := api.Group("", auth.RequireRole(auth.RoleDoctor))
	staff.POST("/appointments/:id/complete", h.CompleteAppointment)
}

func (h *Handler) GetAvailability(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	date, err := parseDate("date", c.QueryParam("date"))
	if err != nil {
		return err
	}
	if date == nil {
		return apperr.Field("date", "is required")
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), id, *date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Availability{
		VaccinatorID: id,
		Date:         date.Format(validate.DateLayout),
		Slots:        slots,
	})
}

type CreateAppointmentRequest struct {
	PatientID       string `json:"patient_id" validate:"omitempty,uuid"`
	VaccinatorID    string `json:"vaccinator_id" validate:"required,uuid"`
	InventoryItemID string `json:"inventory_item_id" validate:"omitempty,uuid"`
	Date            string `json:"date" validate:"required,date"`
	Slot            string `json:"slot" validate:"required,slot"`
	Notes           string `json:"notes" validate:"omitempty,max=1000"`
}

// CreateAppointment books for the calling patient, or for patient_id when
// staff book on someone's behalf.
func (h *Handler) CreateAppointment(c echo.Context) error {
	var req CreateAppointmentRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	in := NewAppointment{
		VaccinatorID: uuid.MustParse(req.VaccinatorID),
		Slot:         req.Slot,
	}
	if auth.IsStaff(ctx) {
		if req.PatientID == "" {
			return apperr.Field("patient_id", "is required")
		}
		in.PatientID = uuid.MustParse(req.PatientID)
	} else {
		in.PatientID = auth.RecordIDFromContext(ctx)
		if req.PatientID != "" && uuid.MustParse(req.PatientID) != in.PatientID {
			return apperr.Forbidden("patients can only book for themselves")
		}
	}
	if req.InventoryItemID != "" {
		itemID := uuid.MustParse(req.InventoryItemID)
		in.InventoryItemID = &itemID
	}
	in.Date, _ = time.Parse(validate.DateLayout, req.Date)
	if req.Notes != "" {
		in.Notes = &req.Notes
	}

	a, err := h.svc.Create(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

// ListAppointments returns the caller's own appointments for patients.
// Staff may filter by ?patient_id= and ?vaccinator_id=; everyone may use
// ?status=, ?from= and ?to=.
func (h *Handler) ListAppointments(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	var f ListFilter
	var err error
	if auth.IsStaff(ctx) {
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
	f.Status = c.QueryParam("status")
	if f.From, err = parseDate("from", c.QueryParam("from")); err != nil {
		return err
	}
	if f.To, err = parseDate("to", c.QueryParam("to")); err != nil {
		return err
	}

	items, total, err := h.svc.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.visibleAppointment(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	a, err := h.visibleAppointment(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	a, err = h.svc.Cancel(c.Request().Context(), a.ID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// visibleAppointment loads :id and hides other patients' appointments
// behind a not-found.
func (h *Handler) visibleAppointment(c echo.Context) (*Appointment, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(ctx, a) {
		return nil, ErrAppointmentNotFound
	}
	return a, nil
}

func canSee(ctx context.Context, a *Appointment) bool {
	if auth.IsStaff(ctx) {
		return true
	}
	return auth.HasRole(ctx, auth.RolePatient) && auth.RecordIDFromContext(ctx) == a.PatientID
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Field("id", "must be a valid UUID")
	}
	return id, nil
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

func parseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(validate.DateLayout, raw)
	if err != nil {
		return nil, apperr.Field(field, "must be a date in YYYY-MM-DD format")
	}
	return &d, nil
}
