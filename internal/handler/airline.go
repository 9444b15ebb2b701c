package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-surety/internal/model"
	"github.com/iliyamo/flight-surety/internal/registry"
)

// AirlineHandler exposes the admission governance surface: admitting
// candidates, paying in capital and voting.
type AirlineHandler struct {
	Registry *registry.Registry
}

func NewAirlineHandler(r *registry.Registry) *AirlineHandler {
	return &AirlineHandler{Registry: r}
}

type admitReq struct {
	AirlineID uint64 `json:"airline_id"`
	Name      string `json:"name"`
}
type fundReq struct {
	AmountCents int64 `json:"amount_cents"`
}

type airlineResp struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	FundedCents int64  `json:"funded_cents"`
	Votes       int    `json:"votes"`
	Seq         int    `json:"seq"`
}

func toAirlineResp(a *model.Airline) airlineResp {
	return airlineResp{
		ID:          a.ID,
		Name:        a.Name,
		Status:      a.Status,
		FundedCents: a.FundedCents,
		Votes:       a.Votes,
		Seq:         a.Seq,
	}
}

// Admit registers a candidate airline.  The authenticated caller is the
// sponsor; the very first airline bootstraps itself without a sponsor
// check, and early entrants are approved immediately while later ones
// start the voting process.
func (h *AirlineHandler) Admit(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req admitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.AirlineID == 0 {
		req.AirlineID = callerID // airlines usually admit themselves at bootstrap
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	a, err := h.Registry.Admit(c.Request().Context(), req.AirlineID, req.Name, callerID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, toAirlineResp(a))
}

// Fund records a capital payment by an airline toward the funding
// threshold.  Airlines fund themselves; the path ID must match the
// caller.
func (h *AirlineHandler) Fund(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid airline id"})
	}
	if id != callerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "airlines fund their own account"})
	}
	var req fundReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	a, err := h.Registry.Fund(c.Request().Context(), id, req.AmountCents)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, toAirlineResp(a))
}

// Vote records the caller's admission vote for a pending candidate.
func (h *AirlineHandler) Vote(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid airline id"})
	}

	a, err := h.Registry.Vote(c.Request().Context(), id, callerID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, toAirlineResp(a))
}

// Get returns the registry view of one airline.
func (h *AirlineHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid airline id"})
	}
	a, ok := h.Registry.Get(id)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "airline not found"})
	}
	return c.JSON(http.StatusOK, toAirlineResp(a))
}
