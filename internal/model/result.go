package model

import (
	"fmt"
)

// Stage is a region's position in the extraction lifecycle
type Stage string

const (
	StagePending   Stage = "PENDING"
	StageOCRDone   Stage = "OCR_DONE"
	StageEnhanced  Stage = "ENHANCED"
	StageValidated Stage = "VALIDATED"
	StageScored    Stage = "SCORED"
	StageFailed    Stage = "FAILED"
)

// next holds the only legal forward transition out of each non-terminal stage
var next = map[Stage]Stage{
	StagePending:   StageOCRDone,
	StageOCRDone:   StageEnhanced,
	StageEnhanced:  StageValidated,
	StageValidated: StageScored,
}

// Terminal reports whether no further transitions are possible
func (s Stage) Terminal() bool {
	return s == StageScored || s == StageFailed
}

// ExtractionResult is the outcome of running one region through the pipeline.
// It is created once per region per run and only moves forward.
type ExtractionResult struct {
	RegionID         string      `json:"region_id"`
	RegionName       string      `json:"region_name"`
	Page             int         `json:"page"`
	FieldType        FieldType   `json:"field_type"`
	RawText          string      `json:"raw_text"`
	OCRConfidence    float64     `json:"ocr_confidence"`
	CorrectedText    string      `json:"corrected_text"`
	AIApplied        bool        `json:"ai_applied"`
	ValidationPassed bool        `json:"validation_passed"`
	NormalizedValue  string      `json:"normalized_value"`
	QualityScore     float64     `json:"quality_score"`
	Stage            Stage       `json:"stage"`
	Errors           []ErrorKind `json:"errors,omitempty"`
	Warnings         []string    `json:"warnings,omitempty"`
	FailureReason    string      `json:"failure_reason,omitempty"`

	failure *StageError
}

// NewExtractionResult creates a PENDING result for a region
func NewExtractionResult(r Region) *ExtractionResult {
	fieldType := r.FieldType
	if fieldType == "" {
		fieldType = FieldText
	}
	return &ExtractionResult{
		RegionID:   r.ID,
		RegionName: r.Key(),
		Page:       r.Page,
		FieldType:  fieldType,
		Stage:      StagePending,
	}
}

// Advance moves the result to the given stage. Only the single forward step out
// of the current stage is accepted.
func (e *ExtractionResult) Advance(to Stage) error {
	want, ok := next[e.Stage]
	if !ok || want != to {
		return fmt.Errorf("illegal stage transition %s -> %s for region %s", e.Stage, to, e.RegionID)
	}
	e.Stage = to
	return nil
}

// Fail moves a non-terminal result to FAILED and records why. The error is
// kept as a StageError naming the stage the region had reached.
func (e *ExtractionResult) Fail(kind ErrorKind, err error) {
	if e.Stage.Terminal() {
		return
	}
	e.failure = NewStageError(kind, e.RegionID, e.Stage, err)
	e.Stage = StageFailed
	e.Errors = append(e.Errors, kind)
	e.FailureReason = e.failure.Error()
}

// Err returns the failure recorded by Fail, or nil
func (e *ExtractionResult) Err() error {
	if e.failure == nil {
		return nil
	}
	return e.failure
}

// Fatal reports whether any recorded error ends the whole run
func (e *ExtractionResult) Fatal() bool {
	for _, k := range e.Errors {
		if k.Fatal() {
			return true
		}
	}
	return false
}

// Warn records a non-fatal problem. A non-empty kind is also appended to Errors.
func (e *ExtractionResult) Warn(kind ErrorKind, msg string) {
	if kind != "" {
		e.Errors = append(e.Errors, kind)
	}
	e.Warnings = append(e.Warnings, msg)
}

// HasError reports whether kind was recorded on the result
func (e *ExtractionResult) HasError(kind ErrorKind) bool {
	for _, k := range e.Errors {
		if k == kind {
			return true
		}
	}
	return false
}

// Succeeded reports whether the region reached SCORED
func (e *ExtractionResult) Succeeded() bool {
	return e.Stage == StageScored
}

// Clone returns a deep copy of the result
func (e *ExtractionResult) Clone() *ExtractionResult {
	c := *e
	c.Errors = append([]ErrorKind(nil), e.Errors...)
	c.Warnings = append([]string(nil), e.Warnings...)
	return &c
}
