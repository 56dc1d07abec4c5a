package api

import (
	"encoding/json"
	"net/http"

	"github.com/sungwon/ticket-printer/internal/worker"
)

// StatusSource reports the consumer's state for the health endpoint.
type StatusSource interface {
	Stats() worker.Stats
	PrinterPresent() bool
}

type healthResponse struct {
	Status  string       `json:"status"`
	Printer string       `json:"printer"`
	Stats   worker.Stats `json:"stats"`
}

// HealthzHandler handles GET /healthz.
// Always returns 200 OK: a missing printer is a supported mode, not a fault.
func HealthzHandler(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		printer := "absent"
		if src.PrinterPresent() {
			printer = "present"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(healthResponse{
			Status:  "ok",
			Printer: printer,
			Stats:   src.Stats(),
		})
	}
}
