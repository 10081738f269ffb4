// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/fieldserve/fieldserve/internal/shared"
)

// RespondError maps shared domain errors to HTTP responses using RFC7807.
// Module handlers map their own sentinel errors before falling back here.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidQuantity), errors.Is(err, shared.ErrInvalidAmount):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrCompanyRequired):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "Company scope required.")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
