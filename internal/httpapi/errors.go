package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/sieve/internal/auth"
	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/search"
)

// requestError is a client error with a fixed status.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func message(msg string) ir.IRObject {
	return ir.IRObject{ir.O("message", ir.IRString(msg))}
}

// errorResponse maps err to a status and body.
func errorResponse(err error) (int, ir.IRObject) {
	if verr, ok := filter.AsValidationError(err); ok {
		return http.StatusUnprocessableEntity, ir.IRObject{
			ir.O("message", ir.IRString("The given data was invalid.")),
			ir.O("errors", ir.IRObject{ir.O(verr.Field, ir.IRArray{ir.IRString(verr.Message)})}),
		}
	}

	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, message(reqErr.message)
	case errors.Is(err, auth.ErrAuthenticationRequired):
		return http.StatusUnauthorized, message("Unauthenticated.")
	case errors.Is(err, auth.ErrAuthorizationDenied):
		return http.StatusForbidden, message("This action is unauthorized.")
	case errors.Is(err, search.ErrUnknownEntity):
		return http.StatusNotFound, message(err.Error())
	default:
		return http.StatusInternalServerError, message("Server Error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	writeValue(w, r, status, body)
}
