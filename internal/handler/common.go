package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-surety/internal/gate"
	"github.com/iliyamo/flight-surety/internal/ledger"
	"github.com/iliyamo/flight-surety/internal/oracle"
	"github.com/iliyamo/flight-surety/internal/registry"
)

// currentUserID extracts the authenticated user's numeric ID from the JWT
// claims placed in context by the auth middleware.  JWT numbers decode as
// float64; string subjects are parsed for robustness.
func currentUserID(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), true
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n, true
		}
	case uint64:
		return v, true
	}
	return 0, false
}

// domainError maps core sentinel errors onto HTTP responses.  Unknown
// errors fall through to 500 so internal failures are never mistaken for
// client mistakes.
func domainError(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, gate.ErrNotOperational):
		code = http.StatusServiceUnavailable
	case errors.Is(err, gate.ErrUnauthorized),
		errors.Is(err, registry.ErrUnauthorized):
		code = http.StatusForbidden
	case errors.Is(err, registry.ErrNotPending),
		errors.Is(err, oracle.ErrUnknownNode):
		code = http.StatusNotFound
	case errors.Is(err, registry.ErrAlreadyAdmitted),
		errors.Is(err, registry.ErrDuplicateVote),
		errors.Is(err, oracle.ErrAlreadyRegistered),
		errors.Is(err, ledger.ErrAlreadyInsured):
		code = http.StatusConflict
	case errors.Is(err, registry.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, oracle.ErrInsufficientFee):
		code = http.StatusBadRequest
	case errors.Is(err, oracle.ErrIndexMismatch),
		errors.Is(err, ledger.ErrNotApproved):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, oracle.ErrRequestClosed):
		code = http.StatusGone
	case errors.Is(err, ledger.ErrNoPayoutAvailable):
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		c.Logger().Errorf("internal error: %v", err)
		return c.JSON(code, echo.Map{"error": "internal error"})
	}
	return c.JSON(code, echo.Map{"error": err.Error()})
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}
