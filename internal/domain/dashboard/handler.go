package dashboard

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/auth"
	"github.com/vaxclinic/vaxclinic/internal/platform/validate"
)

type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard/stats", h.GetStats, auth.RequireRole(auth.RoleDoctor))
}

// GetStats accepts ?as_of= as RFC 3339 or YYYY-MM-DD (midnight UTC).
func (h *Handler) GetStats(c echo.Context) error {
	asOf, err := parseAsOf(c.QueryParam("as_of"), h.now)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.ComputeStats(c.Request().Context(), asOf))
}

func parseAsOf(raw string, now func() time.Time) (time.Time, error) {
	if raw == "" {
		return now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(validate.DateLayout, raw); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Field("as_of", "must be an RFC 3339 timestamp or a YYYY-MM-DD date")
}
