package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/agendadigital/agenda-platform/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeResult maps a ledger outcome to an HTTP status. The body is always
// the full result so clients can show the message directly.
func writeResult(w http.ResponseWriter, res scheduling.Result) {
	status := http.StatusOK
	switch res.Kind {
	case scheduling.FailureValidation:
		status = http.StatusUnprocessableEntity
	case scheduling.FailureConflict:
		status = http.StatusConflict
	case scheduling.FailureStore:
		status = http.StatusBadGateway
	case scheduling.FailurePartial:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}
