package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/regionscan/internal/model"
	"github.com/platinummonkey/regionscan/internal/pipeline"
)

// StoreFileVersion is the file store format version
const StoreFileVersion = 1

// Run is one persisted extraction run
type Run struct {
	// ID is the document ID of the run
	ID string `json:"id"`

	// Source is where the pages came from (path or gs:// URI)
	Source string `json:"source"`

	// SavedAt is when the run was persisted
	SavedAt time.Time `json:"saved_at"`

	// Document is the finished aggregate
	Document *model.Document `json:"document"`
}

// RunSummary is the listing view of a run
type RunSummary struct {
	ID           string             `json:"id"`
	Source       string             `json:"source"`
	Status       model.RunStatus    `json:"status"`
	DocumentType model.DocumentType `json:"document_type"`
	Regions      int                `json:"regions"`
	Failed       int                `json:"failed"`
	MeanQuality  float64            `json:"mean_quality"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
}

// NewRun captures a snapshot of a finished document
func NewRun(source string, doc *model.Document) *Run {
	snap := doc.Snapshot()
	return &Run{
		ID:       snap.ID,
		Source:   source,
		SavedAt:  time.Now(),
		Document: snap,
	}
}

// Summary derives the listing view of the run
func (r *Run) Summary() RunSummary {
	s := RunSummary{ID: r.ID, Source: r.Source}
	if r.Document == nil {
		return s
	}
	sum := pipeline.Summarize(r.Document)
	s.Status = sum.Status
	s.DocumentType = sum.Classification.DocumentType
	s.Regions = sum.TotalRegions
	s.Failed = sum.FailedCount
	s.MeanQuality = sum.MeanQuality
	s.StartedAt = r.Document.StartedAt
	s.FinishedAt = r.Document.FinishedAt
	return s
}

// validate checks a run before it is written
func (r *Run) validate() error {
	if r == nil || r.Document == nil {
		return fmt.Errorf("%w: run has no document", model.ErrConfig)
	}
	if r.ID == "" {
		return fmt.Errorf("%w: run has no ID", model.ErrConfig)
	}
	return nil
}

// encodeDocument and decodeDocument move the aggregate in and out of the
// payload column of the database stores
func encodeDocument(doc *model.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	return string(data), nil
}

func decodeDocument(payload string) (*model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse stored document: %w", err)
	}
	return &doc, nil
}
