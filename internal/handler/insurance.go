package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-surety/internal/ledger"
)

// InsuranceHandler exposes policy purchase, settlement and payout
// withdrawal.
type InsuranceHandler struct {
	Ledger *ledger.Ledger
}

func NewInsuranceHandler(l *ledger.Ledger) *InsuranceHandler {
	return &InsuranceHandler{Ledger: l}
}

type buyReq struct {
	AirlineID   uint64 `json:"airline_id"`
	Flight      string `json:"flight"`
	Timestamp   int64  `json:"timestamp"`
	AmountCents int64  `json:"amount_cents"`
}

// Buy escrows a premium for one passenger on one flight.  Premiums above
// the cap are trimmed and the excess refunded to the passenger's wallet,
// so paying too much is safe.
func (h *InsuranceHandler) Buy(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req buyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	key, ok := flightKeyReq{AirlineID: req.AirlineID, Flight: req.Flight, Timestamp: req.Timestamp}.key()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "airline_id, flight and timestamp required"})
	}

	p, err := h.Ledger.Buy(c.Request().Context(), callerID, key, req.AmountCents)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"policy_id":     p.ID,
		"airline_id":    p.AirlineID,
		"flight":        p.Flight,
		"timestamp":     p.Timestamp,
		"premium_cents": p.PremiumCents,
	})
}

// Credit multiplies escrowed premiums into payout credit for every
// not-yet-credited policy on a flight.  Restricted to the owner and
// authorized orchestrators; normally driven by the settlement consumer
// rather than called by hand.
func (h *InsuranceHandler) Credit(c echo.Context) error {
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

	n, err := h.Ledger.CreditInsurees(c.Request().Context(), callerID, key)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"policies_credited": n})
}

// Withdraw drains the caller's payout balance into their wallet.
func (h *InsuranceHandler) Withdraw(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	amount, err := h.Ledger.Withdraw(c.Request().Context(), callerID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"withdrawn_cents": amount})
}

// Balance returns the caller's available payout credit.
func (h *InsuranceHandler) Balance(c echo.Context) error {
	callerID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"balance_cents": h.Ledger.Balance(callerID)})
}
