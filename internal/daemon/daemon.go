// Package daemon watches an inbox directory and runs every document dropped
// into it through extraction.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

const (
	// DoneDir and FailedDir are created inside the inbox. Documents are moved
	// into one of them once processed so they are never picked up twice.
	DoneDir   = "done"
	FailedDir = "failed"

	// SidecarSuffix names the optional region file next to a document:
	// lease.pdf is paired with lease.regions.yaml
	SidecarSuffix = ".regions.yaml"
)

// documentExtensions are the inbox files treated as documents
var documentExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
}

// Processor runs one document through extraction and returns the finished
// document, or an error when no run could take place
type Processor interface {
	Process(ctx context.Context, path string) (*model.Document, error)
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, path string) (*model.Document, error)

// Process calls f
func (f ProcessorFunc) Process(ctx context.Context, path string) (*model.Document, error) {
	return f(ctx, path)
}

// Daemon polls the inbox and processes new documents one at a time
type Daemon struct {
	processor  Processor
	logger     *logger.Logger
	inbox      string
	interval   time.Duration
	timeout    time.Duration
	healthAddr string
	pidFile    string
	httpServer *http.Server
	listener   net.Listener
	status     *StatusTracker
	control    *scanControl
}

// Config holds configuration for the daemon
type Config struct {
	Processor       Processor
	Logger          *logger.Logger
	Inbox           string        // Directory to watch
	ScanInterval    time.Duration // How often to scan (default: 1 minute)
	DocumentTimeout time.Duration // Upper bound for one document (default: 30 minutes)
	HealthCheckAddr string        // Optional health and status address (e.g. ":8080")
	PIDFile         string        // Optional PID file path
}

// New creates a new daemon instance
func New(cfg *Config) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config cannot be nil", model.ErrConfig)
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("%w: processor is required", model.ErrConfig)
	}
	if cfg.Inbox == "" {
		return nil, fmt.Errorf("%w: inbox directory is required", model.ErrConfig)
	}
	info, err := os.Stat(cfg.Inbox)
	if err != nil {
		return nil, fmt.Errorf("%w: inbox: %v", model.ErrConfig, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: inbox %s is not a directory", model.ErrConfig, cfg.Inbox)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	interval := cfg.ScanInterval
	if interval == 0 {
		interval = time.Minute
	}
	timeout := cfg.DocumentTimeout
	if timeout == 0 {
		timeout = 30 * time.Minute
	}

	return &Daemon{
		processor:  cfg.Processor,
		logger:     log.WithFields("inbox", cfg.Inbox),
		inbox:      cfg.Inbox,
		interval:   interval,
		timeout:    timeout,
		healthAddr: cfg.HealthCheckAddr,
		pidFile:    cfg.PIDFile,
		status:     NewStatusTracker(),
		control:    newScanControl(),
	}, nil
}

// Status returns the current daemon status
func (d *Daemon) Status() Status {
	return d.status.GetStatus()
}

// Run starts the daemon and blocks until a shutdown signal is received or ctx ends
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.WithFields("interval", d.interval).Info("Starting daemon")

	if d.pidFile != "" {
		if err := d.writePIDFile(); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer d.removePIDFile()
	}

	if d.healthAddr != "" {
		if err := d.startHealthCheck(); err != nil {
			return fmt.Errorf("failed to start health check: %w", err)
		}
		defer d.stopHealthCheck()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("Running initial scan")
	d.runScan(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Context canceled, shutting down")
			return ctx.Err()

		case sig := <-sigChan:
			d.logger.WithFields("signal", sig.String()).Info("Received shutdown signal")
			return nil

		case <-ticker.C:
			d.runScan(ctx)

		case <-d.control.manualTrigger:
			d.logger.Info("Manual scan triggered")
			d.runScan(ctx)
		}
	}
}

// runScan processes everything currently in the inbox
func (d *Daemon) runScan(ctx context.Context) {
	defer d.status.SetNextScanTime(time.Now().Add(d.interval))

	summary, err := d.Scan(ctx)
	if err != nil {
		d.logger.WithError(err).Error("Scan failed")
		d.status.ScanFailed(err, summary.Duration)
		return
	}

	if summary.Found == 0 {
		d.logger.Debug("Inbox empty")
	} else {
		d.logger.WithFields(
			"processed", summary.Processed,
			"complete", summary.Complete,
			"partial", summary.Partial,
			"failed", summary.Failed,
			"duration", summary.Duration,
		).Info("Scan completed")
	}
	d.status.ScanCompleted(summary)
}

// Scan runs one pass over the inbox. Documents are processed in name order.
func (d *Daemon) Scan(ctx context.Context) (ScanSummary, error) {
	summary := ScanSummary{StartTime: time.Now()}
	finish := func() ScanSummary {
		summary.EndTime = time.Now()
		summary.Duration = summary.EndTime.Sub(summary.StartTime)
		return summary
	}

	files, err := d.pending()
	if err != nil {
		return finish(), err
	}
	summary.Found = len(files)
	if len(files) == 0 {
		return finish(), nil
	}

	d.status.ScanStarted(len(files))
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		d.status.UpdateProgress(i, filepath.Base(path))

		dest := d.processOne(ctx, path, &summary)
		if dest == "" {
			// interrupted by shutdown, picked up again on the next start
			break
		}
		if err := d.move(path, dest); err != nil {
			// leaving it would reprocess the document on every scan
			return finish(), err
		}
		summary.Processed++
	}
	return finish(), nil
}

// processOne runs the processor on one document and returns the inbox
// subdirectory it belongs in, or "" to leave it in the inbox
func (d *Daemon) processOne(ctx context.Context, path string, summary *ScanSummary) string {
	log := d.logger.WithFields("document", filepath.Base(path))
	log.Info("Processing document")

	docCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	doc, err := d.processor.Process(docCtx, path)
	if ctx.Err() != nil {
		log.Info("Shutdown interrupted document, leaving it in the inbox")
		return ""
	}
	if docCtx.Err() != nil {
		summary.Failed++
		log.Warnw("Document exceeded its time limit", "timeout", d.timeout)
		return FailedDir
	}
	if err == nil && doc == nil {
		err = fmt.Errorf("%w: processor returned no document", model.ErrSystem)
	}
	if err != nil {
		summary.Failed++
		log.WithError(err).Warn("Document failed")
		return FailedDir
	}

	switch doc.Status() {
	case model.RunComplete:
		summary.Complete++
	case model.RunPartial:
		summary.Partial++
	default:
		summary.Failed++
		log.WithFields("status", doc.Status()).Warn("Document run did not finish")
		return FailedDir
	}
	log.WithFields("document_id", doc.ID, "status", doc.Status()).Info("Document processed")
	return DoneDir
}

// pending lists the documents waiting in the inbox
func (d *Daemon) pending() ([]string, error) {
	entries, err := os.ReadDir(d.inbox)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if documentExtensions[strings.ToLower(filepath.Ext(name))] {
			files = append(files, filepath.Join(d.inbox, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// move puts a processed document and its sidecar into the inbox subdirectory sub
func (d *Daemon) move(path, sub string) error {
	dir := filepath.Join(d.inbox, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		return fmt.Errorf("failed to move %s: %w", filepath.Base(path), err)
	}

	sidecar := SidecarPath(path)
	if err := os.Rename(sidecar, filepath.Join(dir, filepath.Base(sidecar))); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.WithError(err).Warnw("Failed to move region file", "file", sidecar)
	}
	return nil
}

// SidecarPath returns the region file paired with a document
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + SidecarSuffix
}

// writePIDFile writes the current process ID to the configured PID file
func (d *Daemon) writePIDFile() error {
	pid := os.Getpid()
	content := fmt.Sprintf("%d\n", pid)

	if err := os.WriteFile(d.pidFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.logger.WithFields("pid", pid, "file", d.pidFile).Info("Wrote PID file")
	return nil
}

// removePIDFile removes the PID file
func (d *Daemon) removePIDFile() {
	if d.pidFile == "" {
		return
	}

	if err := os.Remove(d.pidFile); err != nil {
		d.logger.WithFields("file", d.pidFile, "error", err).
			Warn("Failed to remove PID file")
	} else {
		d.logger.WithFields("file", d.pidFile).Info("Removed PID file")
	}
}

// routes builds the health, status and control endpoints
func (d *Daemon) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	// not ready while the last scan failed
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if d.status.GetStatus().State == StateError {
			http.Error(w, "last scan failed", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	mux.HandleFunc("/status", d.handleStatus)
	mux.HandleFunc("/api/scan/trigger", d.handleTriggerScan)
	return mux
}

// startHealthCheck starts the health check HTTP server
func (d *Daemon) startHealthCheck() error {
	ln, err := net.Listen("tcp", d.healthAddr)
	if err != nil {
		return err
	}
	d.listener = ln
	d.httpServer = &http.Server{
		Handler:           d.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		d.logger.WithFields("addr", ln.Addr().String()).Info("Starting health check server")
		if err := d.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			d.logger.WithFields("error", err).Error("Health check server failed")
		}
	}()

	return nil
}

// Addr returns the address the health check server listens on, if running
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// stopHealthCheck stops the health check HTTP server
func (d *Daemon) stopHealthCheck() {
	if d.httpServer == nil {
		return
	}

	d.logger.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.httpServer.Shutdown(ctx); err != nil {
		d.logger.WithFields("error", err).Warn("Failed to shutdown health check server gracefully")
	} else {
		d.logger.Info("Health check server stopped")
	}
}
