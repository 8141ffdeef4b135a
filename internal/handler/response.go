package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/connexus-ai/resumatch/internal/apperr"
)

// envelope is the wire shape every analysis/roadmap endpoint responds with
// (spec §6: "{success, data, message}").
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// respondError maps the apperr taxonomy to an HTTP status and a stable,
// client-safe message. Diagnostic detail (the wrapped cause) is logged,
// never written to the response body.
func respondError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "kind", apperr.KindOf(err), "error", err)

	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotReady:
		status = http.StatusUnprocessableEntity
	case apperr.KindUpstream:
		status = http.StatusBadGateway
	case apperr.KindInternal:
		status = http.StatusInternalServerError
	}

	message := "internal error"
	var ae *apperr.Error
	if errors.As(err, &ae) {
		message = ae.Message
	}
	respondJSON(w, status, envelope{Success: false, Error: message})
}
