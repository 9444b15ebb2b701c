package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-surety/internal/gate"
	"github.com/iliyamo/flight-surety/internal/registry"
)

// QueryHandler serves the public, cacheable read surface.
type QueryHandler struct {
	Gate     *gate.Gate
	Registry *registry.Registry
}

func NewQueryHandler(g *gate.Gate, r *registry.Registry) *QueryHandler {
	return &QueryHandler{Gate: g, Registry: r}
}

// Status reports the platform's operational flag and the size of the
// approved airline set.
func (h *QueryHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"operational":       h.Gate.IsOperational(),
		"approved_airlines": h.Registry.ApprovedCount(),
	})
}
