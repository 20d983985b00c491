package handler

import (
	"errors"
	"net/http"

	"github.com/dtroode/otpauth-server/internal/apierrors"
)

// WriteError renders err in the error envelope. Errors that are not
// APIErrors become internal server errors.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		apiErr = apierrors.NewErrInternalServerError(err)
	}

	WriteJSON(w, apiErr.HTTPCode, errorEnvelope{
		Status:  statusError,
		Message: apiErr.Message,
		Errors:  apiErr.Fields,
	})
}
