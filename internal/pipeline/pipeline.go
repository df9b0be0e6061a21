// Package pipeline runs every region of a document through OCR, enhancement,
// validation and scoring, and aggregates the results into per-page records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/regionscan/internal/enhance"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
	"github.com/platinummonkey/regionscan/internal/quality"
	"github.com/platinummonkey/regionscan/internal/validate"
)

// DefaultDrainTimeout bounds how long in-flight regions may run after cancellation
const DefaultDrainTimeout = 45 * time.Second

// Recognizer crops regions out of page images and reads their text
type Recognizer interface {
	Crop(page []byte, region model.Region) ([]byte, error)
	Recognize(ctx context.Context, crop []byte, region model.Region) (string, float64, error)
}

// PageObserver receives a snapshot of a page's record every time it changes.
// Calls are serialized.
type PageObserver func(record *model.PageRecord)

// Config holds the orchestrator's collaborators and limits
type Config struct {
	// OCR is required
	OCR Recognizer

	// Enhancer defaults to pass-through
	Enhancer enhance.Enhancer

	// Concurrency is the number of region workers, defaulting to the CPU count
	Concurrency int

	// ConfidenceFloor adds a warning to results whose OCR confidence is lower
	ConfidenceFloor float64

	// DrainTimeout bounds in-flight work after the run context is canceled
	DrainTimeout time.Duration

	// OnPageUpdate is optional
	OnPageUpdate PageObserver

	Logger *logger.Logger
}

// Orchestrator coordinates extraction runs. It holds no per-run state and may
// run several documents concurrently.
type Orchestrator struct {
	ocr          Recognizer
	enhancer     enhance.Enhancer
	concurrency  int
	floor        float64
	drainTimeout time.Duration
	observer     PageObserver
	logger       *logger.Logger
}

// New creates an orchestrator, rejecting invalid configuration before any region is processed
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: pipeline config cannot be nil", model.ErrConfig)
	}
	if cfg.OCR == nil {
		return nil, fmt.Errorf("%w: an OCR recognizer is required", model.ErrConfig)
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("%w: concurrency must be positive, got %d", model.ErrConfig, cfg.Concurrency)
	}
	if cfg.ConfidenceFloor < 0 || cfg.ConfidenceFloor > 1 {
		return nil, fmt.Errorf("%w: confidence floor must be in [0,1], got %v", model.ErrConfig, cfg.ConfidenceFloor)
	}
	if cfg.DrainTimeout < 0 {
		return nil, fmt.Errorf("%w: drain timeout cannot be negative", model.ErrConfig)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	o := &Orchestrator{
		ocr:          cfg.OCR,
		enhancer:     cfg.Enhancer,
		concurrency:  cfg.Concurrency,
		floor:        cfg.ConfidenceFloor,
		drainTimeout: cfg.DrainTimeout,
		observer:     cfg.OnPageUpdate,
		logger:       log,
	}
	if o.enhancer == nil {
		o.enhancer = enhance.PassThrough{}
	}
	if o.concurrency == 0 {
		o.concurrency = runtime.NumCPU()
	}
	if o.drainTimeout == 0 {
		o.drainTimeout = DefaultDrainTimeout
	}
	return o, nil
}

// run is the mutable state of one Run call
type run struct {
	doc   *model.Document
	pages *pageCache
	log   *logger.Logger

	mu          sync.Mutex
	finished    []bool
	sealed      bool
	aborted     bool
	renderFails map[int]bool

	notifyMu sync.Mutex
}

// Run extracts every region of doc and returns it with its terminal run
// status. It never returns an error: failures are recorded on the results.
//
// Canceling ctx stops dispatching new regions. Regions already in flight keep
// running on a detached context for up to the drain timeout; whatever has not
// finished by then is recorded as FAILED/Canceled.
func (o *Orchestrator) Run(ctx context.Context, doc *model.Document, pages PageSource) *model.Document {
	log := o.logger.WithDocumentID(doc.ID)
	start := time.Now()

	r := &run{
		doc:         doc,
		pages:       newPageCache(pages),
		log:         log,
		finished:    make([]bool, len(doc.Regions)),
		renderFails: make(map[int]bool),
	}

	// Work outlives ctx so in-flight regions can drain after cancellation
	drainCtx, stopDrain := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDrain()
	var drainTimer *time.Timer
	var timerMu sync.Mutex
	stopAfter := context.AfterFunc(ctx, func() {
		timerMu.Lock()
		drainTimer = time.AfterFunc(o.drainTimeout, stopDrain)
		timerMu.Unlock()
	})
	defer func() {
		stopAfter()
		timerMu.Lock()
		if drainTimer != nil {
			drainTimer.Stop()
		}
		timerMu.Unlock()
	}()

	g, gctx := errgroup.WithContext(drainCtx)
	g.SetLimit(o.concurrency)

	pageCount := pages.PageCount()
	log.Infow("Starting extraction run",
		"regions", len(doc.Regions),
		"pages", len(doc.Pages()),
		"workers", o.concurrency)

	// Dispatch off the caller's goroutine so a saturated pool cannot hold Run
	// past the drain deadline
	wait := make(chan error, 1)
	go func() {
		for i, region := range doc.Regions {
			if ctx.Err() != nil || gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				// Queued behind a full pool when the run stopped
				if ctx.Err() != nil || gctx.Err() != nil {
					return nil
				}
				return o.processRegion(gctx, r, i, region, pageCount)
			})
		}
		wait <- g.Wait()
	}()

	var runErr error
	select {
	case runErr = <-wait:
	case <-drainCtx.Done():
		log.Warnw("Drain timeout expired, discarding in-flight regions", "drain_timeout", o.drainTimeout)
	}

	// Anything not finished by now is recorded as canceled
	r.seal(func(i int) {
		res := model.NewExtractionResult(doc.Regions[i])
		reason := errors.New("run canceled before region completed")
		if runErr != nil {
			reason = fmt.Errorf("run aborted: %w", runErr)
		}
		res.Fail(model.KindCanceled, reason)
		doc.AddResult(res)
	})

	status := r.status(ctx)
	doc.Finish(status)

	log.Infow("Extraction run finished",
		"status", status,
		"regions", len(doc.Regions),
		"duration", time.Since(start))

	return doc
}

// processRegion runs one region to a terminal stage. It only returns an error
// for SystemError, which stops the run.
func (o *Orchestrator) processRegion(ctx context.Context, r *run, i int, region model.Region, pageCount int) (err error) {
	res := model.NewExtractionResult(region)
	log := r.log.WithRegion(region.ID, region.Key(), region.Page)

	defer func() {
		if p := recover(); p != nil {
			log.Errorw("Region worker panicked", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: panic processing region %s: %v", model.ErrSystem, region.ID, p)
			res.Fail(model.KindSystem, err)
		}
		if !res.Stage.Terminal() && ctx.Err() != nil {
			res.Fail(model.KindCanceled, ctx.Err())
		}
		if res.Fatal() && err == nil {
			err = res.Err()
			if err == nil {
				err = fmt.Errorf("%w: %s", model.ErrSystem, res.FailureReason)
			}
		}
		if rerr := o.complete(r, i, res, log); rerr != nil && err == nil {
			err = rerr
		}
	}()

	o.extract(ctx, res, region, r.pages, pageCount, log)

	if res.Stage == model.StageFailed && res.HasError(model.KindRender) {
		r.markRenderFailure(region.Page)
	}
	return nil
}

// extract advances res through the stage machine, stopping at the first failure
func (o *Orchestrator) extract(ctx context.Context, res *model.ExtractionResult, region model.Region, pages *pageCache, pageCount int, log *logger.Logger) {
	if err := region.Validate(); err != nil {
		res.Fail(model.KindConfig, err)
		log.WithError(err).Warn("Region rejected before OCR")
		return
	}
	if pageCount > 0 && region.Page >= pageCount {
		err := fmt.Errorf("%w: region %q is on page %d but the document has %d pages", model.ErrConfig, region.Key(), region.Page, pageCount)
		res.Fail(model.KindConfig, err)
		log.WithError(err).Warn("Region rejected before OCR")
		return
	}

	page, err := pages.get(ctx, region.Page)
	if err != nil {
		res.Fail(stageKind(ctx, err), err)
		log.WithError(err).Warn("Page image unavailable")
		return
	}

	crop, err := o.ocr.Crop(page, region)
	if err != nil {
		res.Fail(stageKind(ctx, err), err)
		log.WithError(err).Warn("Failed to crop region")
		return
	}

	text, conf, err := o.ocr.Recognize(ctx, crop, region)
	if err != nil {
		res.Fail(stageKind(ctx, err), err)
		log.WithError(err).Warn("OCR failed")
		return
	}
	if !o.advance(ctx, res, model.StageOCRDone) {
		return
	}
	res.RawText = text
	res.OCRConfidence = conf
	if conf < o.floor {
		res.Warn("", fmt.Sprintf("OCR confidence %.2f is below floor %.2f", conf, o.floor))
	}

	out := o.enhancer.Enhance(ctx, res.RawText, res.FieldType)
	res.CorrectedText = out.Text
	res.AIApplied = out.AIApplied
	if out.Warning != "" {
		res.Warn(out.WarningKind, out.Warning)
	}
	if !o.advance(ctx, res, model.StageEnhanced) {
		return
	}

	v := validate.Validate(res.CorrectedText, res.FieldType)
	res.ValidationPassed = v.Passed
	res.NormalizedValue = v.Normalized
	if !v.Passed {
		res.Warn(model.KindValidation, fmt.Sprintf("%s validation failed: %s", res.FieldType, v.Reason))
	}
	if !o.advance(ctx, res, model.StageValidated) {
		return
	}

	res.QualityScore = quality.ScoreResult(res)
	if !o.advance(ctx, res, model.StageScored) {
		return
	}

	log.Debugw("Region scored",
		"confidence", res.OCRConfidence,
		"ai_applied", res.AIApplied,
		"valid", res.ValidationPassed,
		"quality", res.QualityScore)
}

// advance moves res forward unless the run's hard deadline has passed, in
// which case the region's late result is discarded
func (o *Orchestrator) advance(ctx context.Context, res *model.ExtractionResult, to model.Stage) bool {
	if err := ctx.Err(); err != nil {
		res.Fail(model.KindCanceled, err)
		return false
	}
	if err := res.Advance(to); err != nil {
		res.Fail(model.KindSystem, fmt.Errorf("%w: %w", model.ErrSystem, err))
		return false
	}
	return true
}

// complete records a terminal result unless the run has already been sealed
func (o *Orchestrator) complete(r *run, i int, res *model.ExtractionResult, log *logger.Logger) error {
	r.mu.Lock()
	if r.sealed || r.finished[i] {
		r.mu.Unlock()
		log.Debug("Discarding result that arrived after the run was sealed")
		return nil
	}
	r.finished[i] = true
	if res.Fatal() {
		r.aborted = true
	}
	r.mu.Unlock()

	r.doc.AddResult(res)

	// Regions on pages that could not be rendered never produce a record
	if res.HasError(model.KindRender) {
		return nil
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	record, err := r.doc.Record(res)
	if err != nil {
		r.mu.Lock()
		r.aborted = true
		r.mu.Unlock()
		return err
	}
	o.notify(record, log)
	return nil
}

// notify hands a record to the observer. A panicking observer is logged and
// otherwise ignored.
func (o *Orchestrator) notify(record *model.PageRecord, log *logger.Logger) {
	if o.observer == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Errorw("Page observer panicked", "panic", p)
		}
	}()
	o.observer(record)
}

func (r *run) markRenderFailure(page int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderFails[page] = true
}

// seal stops accepting results and calls fill for every unfinished region
func (r *run) seal(fill func(i int)) {
	r.mu.Lock()
	r.sealed = true
	var pending []int
	for i, done := range r.finished {
		if !done {
			pending = append(pending, i)
			r.finished[i] = true
		}
	}
	r.mu.Unlock()

	for _, i := range pending {
		fill(i)
	}
}

// status derives the terminal run status
func (r *run) status(ctx context.Context) model.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aborted {
		return model.RunAborted
	}

	pages := r.doc.Pages()
	if len(pages) > 0 && len(r.renderFails) == len(pages) {
		return model.RunAborted
	}

	if ctx.Err() != nil {
		return model.RunPartial
	}
	for _, res := range r.doc.Snapshot().Results {
		if !res.Succeeded() {
			return model.RunPartial
		}
	}
	return model.RunComplete
}

// stageKind classifies a stage failure. Context errors only count as
// cancellation when the run itself was canceled; provider errors raised while
// reading text are OCR failures.
func stageKind(ctx context.Context, err error) model.ErrorKind {
	if ctx.Err() != nil {
		return model.KindCanceled
	}
	switch kind := model.KindOf(err); kind {
	case model.KindAITimeout, model.KindAIService, model.KindCanceled:
		return model.KindOCR
	default:
		return kind
	}
}
