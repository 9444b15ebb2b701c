package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-surety/internal/gate"
)

// AdminHandler exposes the owner-only control surface: the operational
// switch and the orchestrator allow-list.
type AdminHandler struct {
	Gate *gate.Gate
}

func NewAdminHandler(g *gate.Gate) *AdminHandler {
	return &AdminHandler{Gate: g}
}

type operationalReq struct {
	Operational bool `json:"operational"`
}

// SetOperational pauses or resumes all state-changing operations.
func (h *AdminHandler) SetOperational(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req operationalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Gate.SetOperational(c.Request().Context(), callerID, req.Operational); err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"operational": req.Operational})
}

// Authorize adds a caller to the orchestrator allow-list, permitting it
// to trigger insurance settlement.
func (h *AdminHandler) Authorize(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid caller id"})
	}
	if err := h.Gate.Authorize(c.Request().Context(), callerID, id); err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"authorized": id})
}

// Deauthorize removes a caller from the orchestrator allow-list.
func (h *AdminHandler) Deauthorize(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid caller id"})
	}
	if err := h.Gate.Deauthorize(c.Request().Context(), callerID, id); err != nil {
		return domainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
