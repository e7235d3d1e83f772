package httpapi

import (
	"encoding/json"
	"net/http"

	"llamabridge/internal/bridge"
	"llamabridge/internal/session"
	"llamabridge/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

type statusError struct {
	code int
	msg  string
}

func (e statusError) Error() string   { return e.msg }
func (e statusError) StatusCode() int { return e.code }

// statusFor maps an error to its HTTP status and machine-readable kind.
func statusFor(err error) (int, string) {
	kind := bridge.CodeOf(err).String()
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode(), kind
	}
	switch {
	case session.IsUnknownSession(err), session.IsNotFound(err):
		return http.StatusNotFound, kind
	case session.IsNotLoaded(err), session.IsAlreadyLoading(err):
		return http.StatusConflict, kind
	case session.IsBusy(err):
		return http.StatusTooManyRequests, kind
	case session.IsCorruptFormat(err):
		return http.StatusUnprocessableEntity, kind
	case session.IsOutOfMemory(err):
		return http.StatusInsufficientStorage, kind
	case session.IsEngineUnavailable(err):
		return http.StatusServiceUnavailable, kind
	case session.IsInvalidRequest(err):
		return http.StatusBadRequest, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSONErrorKind(w, status, msg, "")
}

func writeJSONErrorKind(w http.ResponseWriter, status int, msg, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status, Kind: kind})
}

// writeErr maps err and writes it. It returns the status written.
func writeErr(w http.ResponseWriter, err error) int {
	status, kind := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("busy")
	}
	writeJSONErrorKind(w, status, err.Error(), kind)
	return status
}
