package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/erpauth/internal/models"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Status  string `json:"status"`            // "fail" for 4xx, "error" for 5xx
	Error   string `json:"error"`             // Machine-readable error kind
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Optional additional context
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	status := "fail"
	if statusCode >= 500 {
		status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Status:  status,
		Error:   errorCode,
		Message: message,
		Details: details,
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind models.Kind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindConflict:
		return http.StatusConflict
	case models.KindAuthentication:
		return http.StatusUnauthorized
	case models.KindAccountLocked:
		return http.StatusLocked
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindNotFound:
		// An id that should exist no longer does; do not leak that.
		return http.StatusUnauthorized
	case models.KindRateLimited:
		return http.StatusTooManyRequests
	case models.KindConfiguration, models.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError renders any error returned by the auth subsystem.
// Internal and configuration errors get a fixed message.
func WriteAppError(w http.ResponseWriter, err error) {
	var appErr *models.Error
	if !errors.As(err, &appErr) {
		writeInternal(w)
		return
	}

	switch appErr.Kind {
	case models.KindInternal, models.KindConfiguration:
		writeInternal(w)
	case models.KindNotFound:
		WriteError(w, StatusForKind(appErr.Kind), models.KindAuthentication.String(), models.ErrUnauthorized.Message)
	default:
		WriteError(w, StatusForKind(appErr.Kind), appErr.Kind.String(), appErr.Message)
	}
}

func writeInternal(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, models.KindInternal.String(), "Something went wrong")
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteBadRequest writes a 400 validation failure.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, models.KindValidation.String(), message)
}
