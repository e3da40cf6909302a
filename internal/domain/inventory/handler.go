package inventory

import (
	"net/http"
	"strconv"

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
	read := api.Group("", auth.RequireRole(auth.RoleDoctor))
	read.GET("/inventory", h.ListItems)
	read.GET("/inventory/:id", h.GetItem)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("/inventory", h.CreateItem)
	write.PUT("/inventory/:id", h.UpdateItem)
	write.DELETE("/inventory/:id", h.DeleteItem)
	write.POST("/inventory/:id/adjust", h.AdjustStock)
}

func (h *Handler) CreateItem(c echo.Context) error {
	var req ItemRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	item, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// ListItems supports ?q= text search and ?max_quantity= for low stock.
func (h *Handler) ListItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Search: c.QueryParam("q")}
	if raw := c.QueryParam("max_quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apperr.Field("max_quantity", "must be a non-negative integer")
		}
		f.MaxQuantity = &n
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ItemRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	item, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AdjustStock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req AdjustRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	item, err := h.svc.Adjust(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Field("id", "must be a valid UUID")
	}
	return id, nil
}
