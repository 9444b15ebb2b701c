package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-surety/internal/model"
	"github.com/iliyamo/flight-surety/internal/oracle"
)

// OracleHandler exposes node registration, flight status inquiries and
// oracle response submission.
type OracleHandler struct {
	Coordinator *oracle.Coordinator
}

func NewOracleHandler(co *oracle.Coordinator) *OracleHandler {
	return &OracleHandler{Coordinator: co}
}

type registerNodeReq struct {
	FeeCents int64 `json:"fee_cents"`
}
type flightKeyReq struct {
	AirlineID uint64 `json:"airline_id"`
	Flight    string `json:"flight"`
	Timestamp int64  `json:"timestamp"`
}
type submitResponseReq struct {
	Index      uint8  `json:"index"`
	AirlineID  uint64 `json:"airline_id"`
	Flight     string `json:"flight"`
	Timestamp  int64  `json:"timestamp"`
	StatusCode uint8  `json:"status_code"`
}

type nodeResp struct {
	ID       uint64   `json:"id"`
	Indexes  [3]uint8 `json:"indexes"`
	FeeCents int64    `json:"fee_cents"`
}

func (r flightKeyReq) key() (model.FlightKey, bool) {
	flight := strings.TrimSpace(r.Flight)
	if r.AirlineID == 0 || flight == "" || r.Timestamp <= 0 {
		return model.FlightKey{}, false
	}
	return model.FlightKey{AirlineID: r.AirlineID, Flight: flight, Timestamp: r.Timestamp}, true
}

// Register enrolls the caller as an oracle node.  The fee must cover the
// registration price; the response reveals the node's three secret
// indexes, which only the node itself ever sees.
func (h *OracleHandler) Register(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req registerNodeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	n, err := h.Coordinator.RegisterNode(c.Request().Context(), callerID, req.FeeCents)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, nodeResp{ID: n.ID, Indexes: n.Indexes, FeeCents: n.FeeCents})
}

// Indexes returns the caller's own oracle indexes, for nodes that lost
// the registration response.
func (h *OracleHandler) Indexes(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	n, ok := h.Coordinator.GetNode(callerID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "node not registered"})
	}
	return c.JSON(http.StatusOK, nodeResp{ID: n.ID, Indexes: n.Indexes, FeeCents: n.FeeCents})
}

// RequestStatus opens a flight status inquiry.  A fresh index is drawn
// for the request and broadcast on the notification stream so that
// matching nodes respond.
func (h *OracleHandler) RequestStatus(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req flightKeyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	key, ok := req.key()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "airline_id, flight and timestamp required"})
	}

	index, err := h.Coordinator.RequestStatus(c.Request().Context(), callerID, key)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"index":      index,
		"airline_id": key.AirlineID,
		"flight":     key.Flight,
		"timestamp":  key.Timestamp,
	})
}

// SubmitResponse records one oracle node's verdict for an open request.
// Responses after closure are absorbed silently so slow nodes are not
// punished for losing the race to quorum.
func (h *OracleHandler) SubmitResponse(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req submitResponseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	key, ok := flightKeyReq{AirlineID: req.AirlineID, Flight: req.Flight, Timestamp: req.Timestamp}.key()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "airline_id, flight and timestamp required"})
	}

	err := h.Coordinator.SubmitResponse(c.Request().Context(), callerID, req.Index, key, req.StatusCode)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"accepted": true})
}

// GetRequest returns the current state of one status request.
func (h *OracleHandler) GetRequest(c echo.Context) error {
	var req submitResponseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	key, ok := flightKeyReq{AirlineID: req.AirlineID, Flight: req.Flight, Timestamp: req.Timestamp}.key()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "airline_id, flight and timestamp required"})
	}
	sr, found := h.Coordinator.GetRequest(req.Index, key)
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "request not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"index":      sr.Index,
		"airline_id": sr.Key.AirlineID,
		"flight":     sr.Key.Flight,
		"timestamp":  sr.Key.Timestamp,
		"open":       sr.Open,
		"verdict":    sr.Verdict,
	})
}
