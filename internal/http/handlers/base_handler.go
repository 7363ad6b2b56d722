// README: Shared handler utilities; maps module errors to HTTP statuses.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"

	"fleetops/internal/infra"
	"fleetops/internal/modules/expense"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/modules/maintenance"
	"fleetops/internal/modules/trip"
)

type errorResponse struct {
	Error string `json:"error"`
	Rule  string `json:"rule,omitempty"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

// writeServiceError translates service errors into HTTP statuses. Eligibility
// rejections carry the failed rule so clients can react per rule.
func writeServiceError(c *gin.Context, err error) {
	var rej *trip.RejectionError
	if errors.As(err, &rej) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: rej.Error(), Rule: rej.Rule})
		return
	}

	switch {
	case errors.Is(err, trip.ErrBadRequest),
		errors.Is(err, fleet.ErrBadRequest),
		errors.Is(err, expense.ErrBadRequest),
		errors.Is(err, maintenance.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())

	// 22P02: a path or query value that does not parse as the column type,
	// typically a malformed id hitting a UUID parameter.
	case isInvalidInput(err):
		writeError(c, http.StatusBadRequest, "invalid identifier")

	case errors.Is(err, trip.ErrNotFound),
		errors.Is(err, fleet.ErrVehicleNotFound),
		errors.Is(err, fleet.ErrDriverNotFound),
		errors.Is(err, maintenance.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())

	case errors.Is(err, trip.ErrInvalidState),
		errors.Is(err, trip.ErrConflict),
		errors.Is(err, fleet.ErrStatusConflict),
		errors.Is(err, fleet.ErrDuplicatePlate),
		errors.Is(err, fleet.ErrDuplicateLicense),
		errors.Is(err, maintenance.ErrResolved):
		writeError(c, http.StatusConflict, err.Error())

	case errors.Is(err, infra.ErrTxConflict):
		c.Header("Retry-After", "1")
		writeError(c, http.StatusServiceUnavailable, "transaction conflict, retry")

	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func isInvalidInput(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
