package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/regionscan/internal/daemon"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
	"github.com/platinummonkey/regionscan/internal/pipeline"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <inbox-dir>",
	Short: "Extract every document dropped into a directory",
	Long: `Run as a long-lived process that polls an inbox directory and extracts
each PDF or page image that appears in it. Every run is saved to the store.

Region selection per document, first match wins:
  1. a sidecar file next to it (lease.pdf -> lease.regions.yaml)
  2. the --regions file
  3. the classifier's suggested regions

Processed documents move to <inbox>/done, failed or aborted ones to
<inbox>/failed.

With --health-addr the process serves /health, /ready, /status and
POST /api/scan/trigger.

Examples:
  # Watch a scanner drop folder every 30 seconds
  regionscan watch ~/scans/inbox --interval 30s

  # Serve status on port 8080 and write a PID file
  regionscan watch /srv/inbox --health-addr :8080 --pid-file /run/regionscan.pid`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("regions", "", "default region definition file for documents without a sidecar")
	watchCmd.Flags().Duration("interval", time.Minute, "time between inbox scans")
	watchCmd.Flags().Duration("document-timeout", 30*time.Minute, "upper bound for one document")
	watchCmd.Flags().String("health-addr", "", "address for health and status endpoints (e.g. :8080)")
	watchCmd.Flags().String("pid-file", "", "write the process ID to this file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	var defaults []model.Region
	if path, _ := cmd.Flags().GetString("regions"); path != "" {
		if defaults, err = loadRegions(path); err != nil {
			return err
		}
	}

	ex, err := newExtractor(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer ex.Close()

	interval, _ := cmd.Flags().GetDuration("interval")
	timeout, _ := cmd.Flags().GetDuration("document-timeout")
	healthAddr, _ := cmd.Flags().GetString("health-addr")
	pidFile, _ := cmd.Flags().GetString("pid-file")

	d, err := daemon.New(&daemon.Config{
		Processor:       inboxProcessor(ex, defaults, log),
		Logger:          log,
		Inbox:           args[0],
		ScanInterval:    interval,
		DocumentTimeout: timeout,
		HealthCheckAddr: healthAddr,
		PIDFile:         pidFile,
	})
	if err != nil {
		return err
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// inboxProcessor extracts one inbox document, preferring its sidecar regions
func inboxProcessor(ex *extractor, defaults []model.Region, log *logger.Logger) daemon.ProcessorFunc {
	return func(ctx context.Context, path string) (*model.Document, error) {
		regions, err := regionsFor(path, defaults)
		if err != nil {
			return nil, err
		}
		doc, err := ex.extract(ctx, extractRequest{Location: path, Regions: regions})
		if err != nil {
			return nil, err
		}
		sum := pipeline.Summarize(doc)
		log.Infow("Extraction finished",
			"document", path,
			"status", sum.Status,
			"document_type", sum.Classification.DocumentType,
			"regions", sum.TotalRegions,
			"failed", sum.FailedCount,
			"mean_quality", sum.MeanQuality)
		return doc, nil
	}
}

// regionsFor picks the regions for an inbox document. A nil result means
// the classifier decides.
func regionsFor(path string, defaults []model.Region) ([]model.Region, error) {
	sidecar := daemon.SidecarPath(path)
	if _, err := os.Stat(sidecar); err == nil {
		return loadRegions(sidecar)
	}
	if len(defaults) == 0 {
		return nil, nil
	}
	// fresh IDs per document
	out := make([]model.Region, len(defaults))
	for i, r := range defaults {
		out[i] = model.NewRegion(r.Name, r.Page, r.X, r.Y, r.Width, r.Height, r.FieldType)
	}
	return out, nil
}
