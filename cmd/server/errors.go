package main

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/seaborne-data/restmed"
)

// errorEnvelope is the uniform error response body.
type errorEnvelope struct {
	Error *restmed.ApplicationError `json:"error"`
}

// writeAppError renders any error as the application error envelope. The
// error's own status hint drives the HTTP code; errors without an opinion
// and foreign errors map to 500.
func writeAppError(w http.ResponseWriter, err error) {
	appErr := restmed.AsApplicationError(err)
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		zap.S().Errorw("request failed", "error", appErr.Error(), "cause", appErr.Cause)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: appErr})
}

// writeBadRequest wraps boundary-level failures (malformed paths, bodies)
// that never reach the mediation layer.
func writeBadRequest(w http.ResponseWriter, message string) {
	appErr := restmed.NewValidationError("", "", message)
	appErr.Status = http.StatusBadRequest
	writeAppError(w, appErr)
}
