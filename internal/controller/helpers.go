package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
}

var errorMappings = []errorMapping{
	{domainErrors.ErrNotFound, http.StatusNotFound},
	{domainErrors.ErrForbidden, http.StatusForbidden},
	{domainErrors.ErrArgument, http.StatusBadRequest},
	{domainErrors.ErrArgumentNull, http.StatusBadRequest},
	{domainErrors.ErrAlreadyInUse, http.StatusConflict},
	{domainErrors.ErrRateLimitExceeded, http.StatusTooManyRequests},
	{domainErrors.ErrNotImplemented, http.StatusNotImplemented},
	{domainErrors.ErrServiceUnavailable, http.StatusServiceUnavailable},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Code: domainErrors.CodeOf(err)}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, resp)
			return
		}
	}

	log.Error().Err(err).Msg("unhandled error in ops handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
