/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/suparena/eserp/errors"
)

// Error codes returned in the body of failed requests.
const (
	CodeInvalidInput        = "invalid_input"
	CodeUnauthenticated     = "unauthenticated"
	CodeForbidden           = "forbidden"
	CodeNotFound            = "not_found"
	CodeConflict            = "conflict"
	CodeCycleDetected       = "cycle_detected"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeInternal            = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps a typed error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.IsValidationError(err):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.IsUnauthorized(err):
		return http.StatusForbidden, CodeForbidden
	case errors.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case errors.IsAlreadyExists(err), errors.IsConditionFailed(err):
		return http.StatusConflict, CodeConflict
	case errors.IsCycleDetected(err):
		return http.StatusInternalServerError, CodeCycleDetected
	case errors.IsUpstreamUnavailable(err):
		return http.StatusServiceUnavailable, CodeUpstreamUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if code == CodeInternal {
		msg = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", code, "error", err)
	} else {
		h.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "error", err)
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: CodeInvalidInput})
}

