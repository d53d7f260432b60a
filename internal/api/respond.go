package api

import (
	"encoding/json"
	"net/http"

	"github.com/watchpost/watchpost/internal/apierr"
)

// apiResponse is the stable error shape every handler returns on failure:
// {"error": "<human message>", "code": "<STABLE_CODE>"}.
type apiResponse struct {
	Error      string      `json:"error"`
	Code       apierr.Code `json:"code"`
	RetryAfter int         `json:"retry_after,omitempty"`
}

const (
	codeSLANotSet   = apierr.SLANotConfigured
	codeRateLimited = apierr.RateLimited
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeAPIErr(w http.ResponseWriter, e *apierr.Error) {
	writeJSON(w, e.HTTPStatus(), apiResponse{Error: e.Message, Code: e.Code, RetryAfter: e.RetryAfter})
}

func writeErr(w http.ResponseWriter, status int, code apierr.Code, message string) {
	writeJSON(w, status, apiResponse{Error: message, Code: code})
}

func writeValidation(w http.ResponseWriter, message string) {
	writeAPIErr(w, apierr.New(apierr.Validation, message))
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeAPIErr(w, apierr.New(apierr.Unauthenticated, "missing or invalid credential"))
}

func writeForbidden(w http.ResponseWriter) {
	writeAPIErr(w, apierr.New(apierr.Forbidden, "credential does not grant access to this resource"))
}

func writeNotFound(w http.ResponseWriter, what string) {
	writeAPIErr(w, apierr.NewNotFound("%s not found", what))
}

func writeConflict(w http.ResponseWriter, message string) {
	writeAPIErr(w, apierr.New(apierr.Conflict, message))
}

func writeInternal(w http.ResponseWriter) {
	writeAPIErr(w, apierr.New(apierr.Internal, "internal error"))
}
