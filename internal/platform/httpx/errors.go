package httpx

import (
	"errors"
	"net/http"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// RespondError maps domain errors to HTTP responses. Business-rule
// violations from the billing and AMC engines land in the 4xx range;
// anything unmapped is a 5xx without detail leakage.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrExceedsBalance):
		Problem(w, http.StatusUnprocessableEntity, "Exceeds Balance", err.Error())
	case errors.Is(err, shared.ErrAlreadySettled):
		Problem(w, http.StatusConflict, "Already Settled", err.Error())
	case errors.Is(err, shared.ErrInvalidDateRange):
		Problem(w, http.StatusBadRequest, "Invalid Date Range", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
