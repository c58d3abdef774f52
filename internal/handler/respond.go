// Package handler provides the HTTP API for the Palisade forum.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/service"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a service error to an HTTP status and JSON body.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrUserBanned),
		errors.Is(err, domain.ErrAccessDenied),
		errors.Is(err, domain.ErrSelfTarget):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrThreadNotFound),
		errors.Is(err, domain.ErrReplyNotFound),
		errors.Is(err, domain.ErrAccessKeyNotFound),
		errors.Is(err, domain.ErrIPBanNotFound),
		errors.Is(err, domain.ErrEventNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrIPAlreadyBanned),
		errors.Is(err, domain.ErrAccessKeyUsed):
		return http.StatusConflict

	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusTooManyRequests

	case errors.Is(err, domain.ErrAccessKeyInvalid),
		errors.Is(err, domain.ErrInvalidSeverity),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidTitle),
		errors.Is(err, service.ErrInvalidBody),
		errors.Is(err, service.ErrInvalidReply),
		errors.Is(err, service.ErrInvalidIP),
		errors.Is(err, service.ErrInvalidKeyCount),
		errors.Is(err, service.ErrRegistrationKeyRequired):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrKeyRedemptionBusy):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
