package shared

import "errors"

var (
	// ErrNotFound indicates resource not found within the caller's company.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a concurrent mutation lost the race; callers may retry.
	ErrConflict = errors.New("conflict")
	// ErrInvalidQuantity indicates a non-positive or malformed quantity.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidAmount indicates a malformed monetary amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrCompanyRequired occurs when a request carries no company scope.
	ErrCompanyRequired = errors.New("company scope required")
)

// UserSafeMessage maps internal errors to a message safe for display.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrConflict):
		return "The record was changed by another request. Please retry."
	case errors.Is(err, ErrInvalidQuantity):
		return "Quantity must be a positive number."
	case errors.Is(err, ErrInvalidAmount):
		return "Amount is not valid."
	default:
		return "An unexpected error occurred."
	}
}
