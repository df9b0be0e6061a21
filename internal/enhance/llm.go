package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"github.com/platinummonkey/regionscan/internal/llm"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

const (
	// DefaultTimeout bounds a single correction call
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency caps simultaneous correction calls
	DefaultConcurrency = 4
)

// errImplausible marks a response that cannot be a correction of the input
var errImplausible = errors.New("implausible correction")

const correctionSystemPrompt = `You correct OCR errors in single form fields extracted from scanned business documents.
Fix character-level recognition mistakes only. Never invent missing content, never add explanation.
Reply with the corrected field value and nothing else.`

// fieldHints guide the model toward the expected shape of each field type
var fieldHints = map[model.FieldType]string{
	model.FieldCurrency: "a US dollar amount such as $1,200.00",
	model.FieldDate:     "a calendar date such as 03/15/2024",
	model.FieldAddress:  "a US street address such as 123 Main St",
	model.FieldSqft:     "an area in square feet such as 2,500 SF",
	model.FieldPhone:    "a US phone number such as (512) 555-0142",
	model.FieldEmail:    "an email address",
	model.FieldText:     "free text",
}

// LLMEnhancer asks a language model to correct OCR text
type LLMEnhancer struct {
	client  llm.Client
	model   string
	timeout time.Duration
	sem     *semaphore.Weighted
	logger  *logger.Logger
}

// LLMConfig configures an LLMEnhancer
type LLMConfig struct {
	Client      llm.Client
	Model       string
	Timeout     time.Duration
	Concurrency int
	Logger      *logger.Logger
}

// NewLLMEnhancer creates an enhancer backed by client
func NewLLMEnhancer(cfg LLMConfig) (*LLMEnhancer, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: llm enhancer requires a client", model.ErrConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}

	return &LLMEnhancer{
		client:  cfg.Client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		logger:  cfg.Logger,
	}, nil
}

// Name returns the strategy name
func (e *LLMEnhancer) Name() string {
	return "llm:" + e.client.Name()
}

// Enhance sends rawText to the model. Any failure returns rawText unchanged
// with a warning classified as AITimeout or AIServiceError.
func (e *LLMEnhancer) Enhance(ctx context.Context, rawText string, fieldType model.FieldType) Outcome {
	if strings.TrimSpace(rawText) == "" {
		return Outcome{Text: rawText}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	corrected, err := e.correct(callCtx, rawText, fieldType)
	if err != nil {
		kind := aiKind(err)
		e.logger.WithError(err).Warnw("AI enhancement failed, keeping raw text",
			"provider", e.client.Name(),
			"kind", kind,
			"elapsed", time.Since(start))
		return Outcome{
			Text:        rawText,
			Warning:     fmt.Sprintf("AI enhancement skipped: %v", err),
			WarningKind: kind,
		}
	}

	e.logger.Debugw("AI enhancement applied",
		"provider", e.client.Name(),
		"changed", corrected != rawText,
		"elapsed", time.Since(start))

	return Outcome{Text: corrected, AIApplied: true}
}

// correct returns when the model answers or ctx ends, whichever is first.
// A call still running at the deadline keeps its semaphore slot until the
// client returns, and its reply is dropped.
func (e *LLMEnhancer) correct(ctx context.Context, rawText string, fieldType model.FieldType) (string, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		defer e.sem.Release(1)
		resp, err := e.client.Complete(ctx, e.model, correctionSystemPrompt, buildPrompt(rawText, fieldType))
		done <- reply{text: resp, err: err}
	}()

	var r reply
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return "", r.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	corrected := cleanResponse(r.text)
	if !plausible(rawText, corrected) {
		return "", fmt.Errorf("%w: %w: %q", model.ErrAIService, errImplausible, truncate(corrected, 80))
	}
	return corrected, nil
}

func buildPrompt(rawText string, fieldType model.FieldType) string {
	hint, ok := fieldHints[fieldType]
	if !ok {
		hint = fieldHints[model.FieldText]
	}
	return fmt.Sprintf("Field type: %s (expected %s)\nOCR text: %s", fieldType, hint, rawText)
}

// cleanResponse strips code fences and wrapping quotes some models add
func cleanResponse(resp string) string {
	s := strings.TrimSpace(llm.StripFences(resp))
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// plausible rejects empty answers and answers far longer than the input,
// which are explanations rather than corrections
func plausible(raw, corrected string) bool {
	if corrected == "" {
		return false
	}
	return utf8.RuneCountInString(corrected) <= 2*utf8.RuneCountInString(raw)+16
}

// aiKind maps an enhancement error to its warning kind. Deadline and
// cancellation errors count as timeouts.
func aiKind(err error) model.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.KindAITimeout
	}
	if kind := model.KindOf(err); kind == model.KindAITimeout {
		return kind
	}
	return model.KindAIService
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
