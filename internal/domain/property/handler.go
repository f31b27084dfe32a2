package property

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/estate/estate/internal/platform/envelope"
	"github.com/estate/estate/pkg/pagination"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes mounts the read endpoints, normally under
// /PropertiesController.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/getproperties", h.List)
	g.GET("/getproperty/:id", h.Get)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, err := h.repo.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return envelope.Internal("Error fetching properties", err)
	}
	return envelope.JSON(c, http.StatusOK, "Found Properties", items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.New(http.StatusNotFound, "Property not found")
	}
	p, err := h.repo.GetByID(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return envelope.New(http.StatusNotFound, "Property not found")
	}
	if err != nil {
		return envelope.Internal("Error fetching property", err)
	}
	return envelope.JSON(c, http.StatusOK, "Found Property", p)
}
