package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vivi-tora/mfc/internal/service"
	"github.com/vivi-tora/mfc/internal/signer"
	"github.com/vivi-tora/mfc/internal/validation"
	"github.com/vivi-tora/mfc/pkg/apierror"
	"github.com/vivi-tora/mfc/pkg/response"
)

// writeServiceError maps service sentinels onto API errors.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrBatchRunning):
		response.Error(w, apierror.Conflict("A batch is already running"))
	case errors.Is(err, service.ErrBatchNotFound):
		response.Error(w, apierror.NotFound("Batch not found"))
	case errors.Is(err, signer.ErrMissingCredentials):
		response.Error(w, apierror.InternalError(signer.ErrMissingCredentials.Error()))
	default:
		log.Printf("[Handler] %s %s failed: %v", r.Method, r.URL.Path, err)
		response.Error(w, apierror.InternalError(""))
	}
}

// validationError converts validator output into field details keyed by
// the JSON path of the offending value, e.g. "items[2].available".
func validationError(err error) *apierror.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierror.BadRequest(err.Error())
	}
	details := make([]apierror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		details = append(details, apierror.FieldError{
			Field:   field,
			Message: validation.DescribeField(fe),
		})
	}
	return apierror.ValidationError("Request validation failed", details...)
}
