package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Unexpected
// errors are logged and answered with an opaque 500.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		verr  *shared.ValidationError
		trans *shared.IllegalTransitionError
		stock *shared.InsufficientStockError
	)
	switch {
	case errors.As(err, &verr):
		writeProblem(w, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Error:  "validation_error",
			Errors: verr.Fields,
		})
	case errors.As(err, &trans):
		writeProblem(w, ProblemDetail{
			Title:  "Illegal Transition",
			Status: http.StatusBadRequest,
			Detail: trans.Error(),
			Error:  "illegal_transition",
		})
	case errors.As(err, &stock):
		writeProblem(w, ProblemDetail{
			Title:   "Insufficient Stock",
			Status:  http.StatusBadRequest,
			Error:   shared.ErrInsufficientStock.Error(),
			Details: stock.Lines,
		})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	default:
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
