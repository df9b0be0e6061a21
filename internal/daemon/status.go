package daemon

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// ScanState represents the current state of the daemon
type ScanState string

const (
	// StateIdle indicates the daemon is waiting for the next scan
	StateIdle ScanState = "idle"

	// StateScanning indicates documents are being processed
	StateScanning ScanState = "scanning"

	// StateError indicates the last scan failed
	StateError ScanState = "error"
)

// Status represents the current daemon status
type Status struct {
	State          ScanState      `json:"state"`
	LastScanTime   *time.Time     `json:"last_scan_time,omitempty"`
	NextScanTime   *time.Time     `json:"next_scan_time,omitempty"`
	ScanDuration   *time.Duration `json:"scan_duration,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CurrentScan    *ScanProgress  `json:"current_scan,omitempty"`
	LastScanResult *ScanSummary   `json:"last_scan_result,omitempty"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
}

// ScanProgress tracks an in-progress scan
type ScanProgress struct {
	StartTime          time.Time `json:"start_time"`
	DocumentsTotal     int       `json:"documents_total"`
	DocumentsProcessed int       `json:"documents_processed"`
	CurrentDocument    string    `json:"current_document,omitempty"`
}

// ScanSummary contains a summary of a completed scan
type ScanSummary struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// Found is the number of documents waiting when the scan started
	Found     int `json:"found"`
	Processed int `json:"processed"`
	Complete  int `json:"complete"`
	Partial   int `json:"partial"`

	// Failed counts documents that errored or ended ABORTED
	Failed int `json:"failed"`
}

// StatusTracker tracks the daemon's current status in a thread-safe manner
type StatusTracker struct {
	mu         sync.RWMutex
	state      ScanState
	startTime  time.Time
	lastScan   *time.Time
	nextScan   *time.Time
	lastDur    *time.Duration
	errMsg     string
	curScan    *ScanProgress
	lastResult *ScanSummary
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		state:     StateIdle,
		startTime: time.Now(),
	}
}

// GetStatus returns the current status
func (st *StatusTracker) GetStatus() Status {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var cur *ScanProgress
	if st.curScan != nil {
		c := *st.curScan
		cur = &c
	}

	return Status{
		State:          st.state,
		LastScanTime:   st.lastScan,
		NextScanTime:   st.nextScan,
		ScanDuration:   st.lastDur,
		ErrorMessage:   st.errMsg,
		CurrentScan:    cur,
		LastScanResult: st.lastResult,
		UptimeSeconds:  int64(time.Since(st.startTime).Seconds()),
	}
}

// ScanStarted records the start of a scan that found total documents
func (st *StatusTracker) ScanStarted(total int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	st.state = StateScanning
	st.lastScan = &now
	st.errMsg = ""
	st.curScan = &ScanProgress{
		StartTime:      now,
		DocumentsTotal: total,
	}
}

// UpdateProgress updates the current scan progress
func (st *StatusTracker) UpdateProgress(processed int, currentDoc string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.curScan != nil {
		st.curScan.DocumentsProcessed = processed
		st.curScan.CurrentDocument = currentDoc
	}
}

// ScanCompleted records a finished scan
func (st *StatusTracker) ScanCompleted(summary ScanSummary) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state = StateIdle
	st.curScan = nil
	st.lastResult = &summary
	st.errMsg = ""

	dur := summary.Duration
	st.lastDur = &dur
}

// ScanFailed records a scan that could not finish
func (st *StatusTracker) ScanFailed(err error, duration time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state = StateError
	st.curScan = nil
	st.lastDur = &duration

	if err != nil {
		st.errMsg = err.Error()
	}
}

// SetNextScanTime updates when the next scan is scheduled
func (st *StatusTracker) SetNextScanTime(t time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.nextScan = &t
}

// handleStatus serves the current status as JSON
func (d *Daemon) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := d.status.GetStatus()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		d.logger.WithError(err).Error("Failed to encode status")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}
