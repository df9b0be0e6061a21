package model

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for extraction stages.
var (
	ErrConfig    = errors.New("invalid configuration")
	ErrRender    = errors.New("page image unavailable")
	ErrOCR       = errors.New("ocr engine failure")
	ErrAITimeout = errors.New("ai enhancement timed out")
	ErrAIService = errors.New("ai enhancement service error")
	ErrSystem    = errors.New("system error")
)

// ErrorKind classifies an error recorded on an ExtractionResult
type ErrorKind string

const (
	KindConfig     ErrorKind = "ConfigError"
	KindRender     ErrorKind = "RenderError"
	KindOCR        ErrorKind = "OCRFailure"
	KindAITimeout  ErrorKind = "AITimeout"
	KindAIService  ErrorKind = "AIServiceError"
	KindValidation ErrorKind = "ValidationFailure"
	KindSystem     ErrorKind = "SystemError"
	KindCanceled   ErrorKind = "Canceled"
)

// Fatal reports whether an error of this kind terminates the whole run
func (k ErrorKind) Fatal() bool {
	return k == KindSystem
}

// KindOf maps an error onto its ErrorKind. Unknown errors are treated as OCR
// failures since the OCR stage is the only one allowed to return raw engine errors.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}

	switch {
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrRender):
		return KindRender
	case errors.Is(err, ErrAITimeout), errors.Is(err, context.DeadlineExceeded):
		return KindAITimeout
	case errors.Is(err, ErrAIService):
		return KindAIService
	case errors.Is(err, ErrSystem):
		return KindSystem
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindOCR
	}
}

// StageError is the error attached to a region that failed at a given stage
type StageError struct {
	Kind     ErrorKind
	RegionID string
	Stage    Stage
	Err      error
}

// NewStageError wraps err with the region and stage it failed in
func NewStageError(kind ErrorKind, regionID string, stage Stage, err error) *StageError {
	return &StageError{Kind: kind, RegionID: regionID, Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("region %s failed in %s (%s)", e.RegionID, e.Stage, e.Kind)
	}
	return fmt.Sprintf("region %s failed in %s (%s): %v", e.RegionID, e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
