package daemon

import (
	"encoding/json"
	"net/http"
)

// ControlResponse is the standard response for control API calls
type ControlResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// scanControl queues at most one manual scan
type scanControl struct {
	manualTrigger chan struct{}
}

func newScanControl() *scanControl {
	return &scanControl{
		manualTrigger: make(chan struct{}, 1),
	}
}

// triggerScan requests a manual scan. It reports false when one is already queued.
func (sc *scanControl) triggerScan() bool {
	select {
	case sc.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// handleTriggerScan handles POST /api/scan/trigger
func (d *Daemon) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if d.status.GetStatus().State == StateScanning {
		respondJSON(w, http.StatusConflict, ControlResponse{
			Success: false,
			Message: "Scan already in progress",
		})
		return
	}

	if !d.control.triggerScan() {
		respondJSON(w, http.StatusConflict, ControlResponse{
			Success: false,
			Message: "Scan already queued",
		})
		return
	}

	respondJSON(w, http.StatusAccepted, ControlResponse{
		Success: true,
		Message: "Scan triggered",
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
