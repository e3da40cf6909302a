package identity

import (
	"context"
	"net/http"

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

// RegisterRoutes mounts the unauthenticated auth endpoints on public and
// everything else on api, which is expected to carry session middleware.
func (h *Handler) RegisterRoutes(public *echo.Group, api *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)

	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/me", h.Me)
	api.POST("/auth/profile", h.CompleteProfile)

	profiled := api.Group("", auth.RequireProfile())
	profiled.GET("/patients/:id", h.GetPatient)
	profiled.PUT("/patients/:id", h.UpdatePatient)
	profiled.GET("/vaccinators", h.ListVaccinators)
	profiled.GET("/vaccinators/:id", h.GetVaccinator)

	staff := api.Group("", auth.RequireRole(auth.RoleDoctor))
	staff.GET("/patients", h.ListPatients)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/vaccinators", h.OnboardVaccinator)
	admin.PATCH("/vaccinators/:id/status", h.SetVaccinatorStatus)
	admin.PATCH("/vaccinators/:id/role", h.SetVaccinatorRole)
}

// -- Auth --

func (h *Handler) Register(c echo.Context) error {
	var req RegisterPatientRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	reg, err := h.svc.RegisterPatient(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, reg)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if token := auth.TokenFromContext(ctx); token != "" {
		if err := h.svc.Logout(ctx, token); err != nil {
			return err
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	res, err := h.svc.Resolve(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) CompleteProfile(c echo.Context) error {
	ctx := c.Request().Context()
	if len(auth.RolesFromContext(ctx)) > 0 {
		return ErrAlreadyRegistered
	}
	var req CompleteProfileRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.CreatePatientProfile(ctx, auth.UserIDFromContext(ctx), req.Email, req.ProfileRequest)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// -- Patients --

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if !canAccessPatient(ctx, id) {
		return ErrPatientNotFound
	}
	p, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if !canAccessPatient(ctx, id) {
		return ErrPatientNotFound
	}
	var req ProfileRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.UpdatePatient(ctx, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

// -- Vaccinators --

func (h *Handler) OnboardVaccinator(c echo.Context) error {
	var req OnboardVaccinatorRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	reg, err := h.svc.OnboardVaccinator(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, reg.Vaccinator)
}

func (h *Handler) GetVaccinator(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVaccinator(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// ListVaccinators shows patients only active staff; staff may filter by
// ?status=, ?role= and ?department=.
func (h *Handler) ListVaccinators(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	f := VaccinatorFilter{Department: c.QueryParam("department")}
	if auth.IsStaff(ctx) {
		f.Status = c.QueryParam("status")
		f.Role = c.QueryParam("role")
	} else {
		f.Status = VaccinatorActive
	}
	items, total, err := h.svc.ListVaccinators(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

func (h *Handler) SetVaccinatorStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.SetVaccinatorStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=doctor admin"`
}

func (h *Handler) SetVaccinatorRole(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req roleRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.SetVaccinatorRole(c.Request().Context(), id, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// -- helpers --

// canAccessPatient lets staff see every patient and patients only
// themselves. Other callers get a not-found so record ids stay hidden.
func canAccessPatient(ctx context.Context, id uuid.UUID) bool {
	if auth.IsStaff(ctx) {
		return true
	}
	return auth.HasRole(ctx, auth.RolePatient) && auth.RecordIDFromContext(ctx) == id
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Field("id", "must be a valid UUID")
	}
	return id, nil
}
