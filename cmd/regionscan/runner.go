package main

import (
	"context"
	"fmt"

	"github.com/platinummonkey/regionscan/internal/classify"
	"github.com/platinummonkey/regionscan/internal/config"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
	"github.com/platinummonkey/regionscan/internal/pipeline"
	"github.com/platinummonkey/regionscan/internal/store"
)

// classifySamplePages is how many leading pages feed classification during extract
const classifySamplePages = 2

// extractor owns everything a run needs and is reused across documents
type extractor struct {
	cfg        *config.Config
	log        *logger.Logger
	comps      *components
	orch       *pipeline.Orchestrator
	classifier *classify.Classifier

	// store is nil when runs are not persisted
	store store.Store
}

// extractRequest describes one document to extract
type extractRequest struct {
	Location   string
	Regions    []model.Region
	Classify   bool
	DocumentID string
}

func newExtractor(ctx context.Context, cfg *config.Config, log *logger.Logger, persist bool) (*extractor, error) {
	comps, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	e := &extractor{cfg: cfg, log: log, comps: comps}

	e.classifier, err = classify.New(cfg.ClassifierThreshold)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.orch, err = pipeline.New(&pipeline.Config{
		OCR:             comps.ocr,
		Enhancer:        comps.enhancer,
		Concurrency:     cfg.OCR.Concurrency,
		ConfidenceFloor: cfg.ConfidenceFloor,
		DrainTimeout:    cfg.DrainTimeout,
		OnPageUpdate: func(rec *model.PageRecord) {
			log.Debugw("Page updated", "page", rec.Page, "fields", len(rec.Fields))
		},
		Logger: log,
	})
	if err != nil {
		e.Close()
		return nil, err
	}

	if persist {
		e.store, err = store.Open(ctx, cfg.Store, log)
		if err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

// Close releases the store and provider clients
func (e *extractor) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.log.WithError(err).Debug("Failed to close store")
		}
	}
	e.comps.Close()
}

// extract runs one document. Without regions the document is classified and
// the suggested regions are used.
func (e *extractor) extract(ctx context.Context, req extractRequest) (*model.Document, error) {
	log := e.log.WithFields("source", req.Location)

	src, cleanup, err := openSource(ctx, e.cfg, req.Location, log)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	regions := req.Regions
	classification := model.UnknownClassification()
	if req.Classify || len(regions) == 0 {
		result, err := classifySource(ctx, e.classifier, e.comps, src, classifySamplePages, log)
		if err != nil {
			return nil, err
		}
		classification = result.classification
		if len(regions) == 0 {
			if len(result.regions) == 0 {
				return nil, fmt.Errorf("%w: no regions given and document type is %s", model.ErrConfig, classification.DocumentType)
			}
			regions = result.regions
			log.Infow("Using suggested regions", "document_type", classification.DocumentType, "regions", len(regions))
		}
	}

	doc := model.NewDocument(req.DocumentID, src.PageCount(), regions)
	doc.Classification = classification

	doc = e.orch.Run(ctx, doc, src)

	if e.store != nil {
		// still saved after Ctrl-C
		if err := e.store.Save(context.WithoutCancel(ctx), store.NewRun(req.Location, doc)); err != nil {
			log.WithError(err).Warn("Failed to save run")
		}
	}
	return doc, nil
}
