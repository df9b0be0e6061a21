package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/platinummonkey/regionscan/internal/model"
)

// Summary aggregates the outcome of a finished run
type Summary struct {
	DocumentID     string
	Status         model.RunStatus
	Classification model.DocumentClassification
	TotalRegions   int
	ScoredCount    int
	FailedCount    int
	WarningCount   int
	ValidCount     int
	AIAppliedCount int
	MeanQuality    float64
	Duration       time.Duration
	ErrorCounts    map[model.ErrorKind]int
	Failures       []RegionFailure
}

// RegionFailure describes a region that ended FAILED
type RegionFailure struct {
	RegionID string
	Name     string
	Page     int
	Kind     model.ErrorKind
	Reason   string
}

// Summarize builds a summary from a finished document
func Summarize(doc *model.Document) *Summary {
	snap := doc.Snapshot()

	s := &Summary{
		DocumentID:     snap.ID,
		Status:         snap.RunStatus,
		Classification: snap.Classification,
		TotalRegions:   len(snap.Results),
		ErrorCounts:    make(map[model.ErrorKind]int),
		Failures:       make([]RegionFailure, 0),
	}
	if !snap.FinishedAt.IsZero() {
		s.Duration = snap.FinishedAt.Sub(snap.StartedAt)
	}

	qualityTotal := 0.0
	for _, res := range snap.Results {
		for _, kind := range res.Errors {
			s.ErrorCounts[kind]++
		}
		s.WarningCount += len(res.Warnings)

		if !res.Succeeded() {
			s.FailedCount++
			kind := model.KindSystem
			if len(res.Errors) > 0 {
				kind = res.Errors[len(res.Errors)-1]
			}
			s.Failures = append(s.Failures, RegionFailure{
				RegionID: res.RegionID,
				Name:     res.RegionName,
				Page:     res.Page,
				Kind:     kind,
				Reason:   res.FailureReason,
			})
			continue
		}

		s.ScoredCount++
		qualityTotal += res.QualityScore
		if res.ValidationPassed {
			s.ValidCount++
		}
		if res.AIApplied {
			s.AIAppliedCount++
		}
	}
	if s.ScoredCount > 0 {
		s.MeanQuality = qualityTotal / float64(s.ScoredCount)
	}

	return s
}

// HasFailures returns true if any region failed
func (s *Summary) HasFailures() bool {
	return s.FailedCount > 0
}

// String returns a human-readable summary of the run
func (s *Summary) String() string {
	var sb strings.Builder

	sb.WriteString("Extraction Summary:\n")
	sb.WriteString(fmt.Sprintf("  Document: %s\n", s.DocumentID))
	sb.WriteString(fmt.Sprintf("  Status: %s\n", s.Status))
	if s.Classification.DocumentType != "" {
		sb.WriteString(fmt.Sprintf("  Type: %s (%.2f)\n", s.Classification.DocumentType, s.Classification.Confidence))
	}
	sb.WriteString(fmt.Sprintf("  Regions: %d\n", s.TotalRegions))
	sb.WriteString(fmt.Sprintf("  Scored: %d\n", s.ScoredCount))
	sb.WriteString(fmt.Sprintf("  Failed: %d\n", s.FailedCount))
	sb.WriteString(fmt.Sprintf("  Validated: %d\n", s.ValidCount))
	sb.WriteString(fmt.Sprintf("  AI Applied: %d\n", s.AIAppliedCount))
	sb.WriteString(fmt.Sprintf("  Mean Quality: %.2f\n", s.MeanQuality))
	sb.WriteString(fmt.Sprintf("  Duration: %v\n", s.Duration.Round(time.Millisecond)))

	if len(s.ErrorCounts) > 0 {
		kinds := make([]string, 0, len(s.ErrorCounts))
		for k := range s.ErrorCounts {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		sb.WriteString("\nIssues:\n")
		for _, k := range kinds {
			sb.WriteString(fmt.Sprintf("  %s: %d\n", k, s.ErrorCounts[model.ErrorKind(k)]))
		}
	}

	if s.HasFailures() {
		sb.WriteString("\nFailures:\n")
		for _, f := range s.Failures {
			sb.WriteString(fmt.Sprintf("  - %s (page %d, %s): %s\n", f.Name, f.Page, f.Kind, f.Reason))
		}
	}

	return sb.String()
}
