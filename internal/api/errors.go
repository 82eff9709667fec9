package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-doorbird/internal/bridges/doorbird/bha"
	"github.com/nerrad567/gray-logic-doorbird/internal/host"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeDevice      = "device_error"
	ErrCodeUnavailable = "unavailable"
)

// failure maps a sentinel error to its response.
type failure struct {
	target  error
	status  int
	code    string
	message string
}

// failures is walked in order; the first errors.Is match wins.
var failures = []failure{
	{host.ErrEntryNotFound, http.StatusNotFound, ErrCodeNotFound, "config entry not found"},
	{host.ErrEntityNotFound, http.StatusNotFound, ErrCodeNotFound, "entity not found"},
	{host.ErrNotPressable, http.StatusBadRequest, ErrCodeBadRequest, "entity cannot be pressed"},
	{host.ErrUnloadFailed, http.StatusConflict, ErrCodeConflict, "config entry could not be unloaded"},
	{host.ErrManagerClosed, http.StatusServiceUnavailable, ErrCodeUnavailable, "shutting down"},
	{host.ErrLoopStopped, http.StatusServiceUnavailable, ErrCodeUnavailable, "shutting down"},
	{bha.ErrCommandRejected, http.StatusBadGateway, ErrCodeDevice, "device rejected the command"},
	{host.ErrPressFailed, http.StatusBadGateway, ErrCodeDevice, "device command failed"},
}

// classify returns the response for err. Unknown errors are internal
// unless the device answered with an HTTP error.
func classify(err error) failure {
	for _, f := range failures {
		if errors.Is(err, f.target) {
			return f
		}
	}
	var httpErr *bha.HTTPError
	if errors.As(err, &httpErr) {
		return failure{status: http.StatusBadGateway, code: ErrCodeDevice, message: "device command failed"}
	}
	return failure{status: http.StatusInternalServerError, code: ErrCodeInternal, message: "internal server error"}
}

// writeFailure writes the classified response for err. Server side
// failures are logged with the request id and the given context.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error, keysAndValues ...any) {
	f := classify(err)
	requestID, _ := r.Context().Value(ctxKeyRequestID).(string)
	if f.status >= http.StatusInternalServerError && f.status != http.StatusServiceUnavailable {
		args := append([]any{"method", r.Method, "path", r.URL.Path, "request_id", requestID, "error", err}, keysAndValues...)
		s.logger.Error("request failed", args...)
	}
	writeJSON(w, f.status, Error{Status: f.status, Code: f.code, Message: f.message, RequestID: requestID})
}

// writeJSON writes v as the response body. A nil v writes only the status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // client may have gone away
		json.NewEncoder(w).Encode(v)
	}
}

// writeBadRequest rejects malformed input.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Error{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message})
}
