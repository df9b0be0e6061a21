package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platinummonkey/regionscan/internal/llm"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
	"github.com/platinummonkey/regionscan/internal/validate"
)

// mockClient is a scriptable llm.Client
type mockClient struct {
	reply     string
	err       error
	delay     time.Duration
	healthErr error

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32

	mu      sync.Mutex
	prompts []string
}

func (m *mockClient) Complete(ctx context.Context, modelName, system, prompt string) (string, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.reply, m.err
}

func (m *mockClient) Recognize(ctx context.Context, modelName, imageData string) ([]llm.Word, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) HealthCheck(ctx context.Context, modelName string) error {
	return m.healthErr
}

func (m *mockClient) Name() string {
	return "mock"
}

func newTestEnhancer(t *testing.T, client llm.Client, timeout time.Duration, concurrency int) *LLMEnhancer {
	t.Helper()
	e, err := NewLLMEnhancer(LLMConfig{
		Client:      client,
		Model:       "test-model",
		Timeout:     timeout,
		Concurrency: concurrency,
		Logger:      logger.Nop(),
	})
	if err != nil {
		t.Fatalf("NewLLMEnhancer() error = %v", err)
	}
	return e
}

func TestPassThrough(t *testing.T) {
	out := PassThrough{}.Enhance(context.Background(), " $1,2OO.OO ", model.FieldCurrency)
	if out.Text != " $1,2OO.OO " || out.AIApplied || out.Warning != "" {
		t.Errorf("PassThrough.Enhance() = %+v, want input unchanged", out)
	}
}

func TestCorrect(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		fieldType model.FieldType
		want      string
	}{
		{"currency letter zeros", "$1,2OO.OO", model.FieldCurrency, "$1,200.00"},
		{"currency spaced separators", "$ 1 , 200 . 00", model.FieldCurrency, "$1,200.00"},
		{"currency S and l", "$l,5S0", model.FieldCurrency, "$1,550"},
		{"sqft unit untouched", "l,500  SF", model.FieldSqft, "1,500 SF"},
		{"sqft attached SF unit", "2,500SF", model.FieldSqft, "2,500SF"},
		{"sqft attached lowercase unit", "12,000sf", model.FieldSqft, "12,000sf"},
		{"sqft attached sqft unit", "1200sqft", model.FieldSqft, "1200sqft"},
		{"sqft zeros before unit", "2,5OO sq ft", model.FieldSqft, "2,500 sq ft"},
		{"sqft rentable unit", "4,2OORSF", model.FieldSqft, "4,200RSF"},
		{"currency letters after separator", "$1,2OO.OO", model.FieldCurrency, "$1,200.00"},
		{"phone letter away from digits kept", "555-0142 Office", model.FieldPhone, "555-0142 Office"},
		{"date dotted", "O3.15.2024", model.FieldDate, "03/15/2024"},
		{"phone pipe", "(5|2) 555-0142", model.FieldPhone, "(512) 555-0142"},
		{"text only collapses whitespace", "  Total   Rent\nDue ", model.FieldText, "Total Rent Due"},
		{"address letters kept", "1OO  Main St", model.FieldAddress, "1OO Main St"},
		{"email spaces removed", "leasing @ example.com", model.FieldEmail, "leasing@example.com"},
		{"word without digits kept", "SOLD", model.FieldCurrency, "SOLD"},
		{"empty", "   ", model.FieldCurrency, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Correct(tt.text, tt.fieldType); got != tt.want {
				t.Errorf("Correct(%q, %s) = %q, want %q", tt.text, tt.fieldType, got, tt.want)
			}
		})
	}
}

func TestCorrect_SqftStillValidates(t *testing.T) {
	for _, raw := range []string{"2,500SF", "12,000sf", "1200sqft", "2,5OO SF"} {
		got := Correct(raw, model.FieldSqft)
		if res := validate.Validate(got, model.FieldSqft); !res.Passed {
			t.Errorf("Correct(%q) = %q, which no longer validates as sqft", raw, got)
		}
	}
}

func TestRuleBasedEnhancer_NeverClaimsAI(t *testing.T) {
	out := NewRuleBasedEnhancer().Enhance(context.Background(), "$1,2OO.OO", model.FieldCurrency)
	if out.AIApplied {
		t.Error("rule-based enhancement should not set AIApplied")
	}
	if out.Text != "$1,200.00" {
		t.Errorf("Text = %q, want $1,200.00", out.Text)
	}
}

func TestLLMEnhancer_Success(t *testing.T) {
	client := &mockClient{reply: "```\n\"$1,200.00\"\n```"}
	e := newTestEnhancer(t, client, time.Second, 2)

	out := e.Enhance(context.Background(), "$1,2OO.OO", model.FieldCurrency)
	if !out.AIApplied {
		t.Fatalf("AIApplied = false, warning %q", out.Warning)
	}
	if out.Text != "$1,200.00" {
		t.Errorf("Text = %q, want $1,200.00", out.Text)
	}
	if len(client.prompts) != 1 || !strings.Contains(client.prompts[0], "currency") || !strings.Contains(client.prompts[0], "$1,2OO.OO") {
		t.Errorf("unexpected prompt %q", client.prompts)
	}
}

func TestLLMEnhancer_Timeout(t *testing.T) {
	client := &mockClient{reply: "$1,200.00", delay: 2 * time.Second}
	e := newTestEnhancer(t, client, 20*time.Millisecond, 1)

	start := time.Now()
	out := e.Enhance(context.Background(), "$1,2OO.OO", model.FieldCurrency)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Enhance took %v, the per-call timeout was not enforced", elapsed)
	}

	if out.AIApplied {
		t.Error("AIApplied should be false after a timeout")
	}
	if out.Text != "$1,2OO.OO" {
		t.Errorf("Text = %q, want raw text", out.Text)
	}
	if out.WarningKind != model.KindAITimeout {
		t.Errorf("WarningKind = %s, want %s", out.WarningKind, model.KindAITimeout)
	}
}

// stubbornClient sleeps without watching ctx, like a provider SDK that ignores cancellation
type stubbornClient struct {
	reply    string
	sleep    time.Duration
	finished chan struct{}
}

func (c *stubbornClient) Complete(ctx context.Context, modelName, system, prompt string) (string, error) {
	time.Sleep(c.sleep)
	close(c.finished)
	return c.reply, nil
}

func (c *stubbornClient) Recognize(ctx context.Context, modelName, imageData string) ([]llm.Word, error) {
	return nil, errors.New("not implemented")
}

func (c *stubbornClient) HealthCheck(ctx context.Context, modelName string) error { return nil }

func (c *stubbornClient) Name() string { return "stubborn" }

func TestLLMEnhancer_TimeoutWithClientIgnoringContext(t *testing.T) {
	client := &stubbornClient{reply: "$1,200.00", sleep: 1500 * time.Millisecond, finished: make(chan struct{})}
	e := newTestEnhancer(t, client, 50*time.Millisecond, 1)

	start := time.Now()
	out := e.Enhance(context.Background(), "$1,2OO.OO", model.FieldCurrency)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Enhance took %v, want it to return at the 50ms timeout", elapsed)
	}
	if out.AIApplied || out.Text != "$1,2OO.OO" {
		t.Errorf("late reply was used: %+v", out)
	}
	if out.WarningKind != model.KindAITimeout || out.Warning == "" {
		t.Errorf("WarningKind = %q warning %q, want an AITimeout warning", out.WarningKind, out.Warning)
	}

	// the abandoned call holds the only slot until it returns
	if e.sem.TryAcquire(1) {
		t.Error("semaphore slot released before the client returned")
		e.sem.Release(1)
	}
	select {
	case <-client.finished:
	case <-time.After(5 * time.Second):
		t.Fatal("client call never finished")
	}
	deadline := time.Now().Add(time.Second)
	for !e.sem.TryAcquire(1) {
		if time.Now().After(deadline) {
			t.Fatal("semaphore slot not released after the client returned")
		}
		time.Sleep(5 * time.Millisecond)
	}
	e.sem.Release(1)
}

func TestLLMEnhancer_Failures(t *testing.T) {
	tests := []struct {
		name     string
		client   *mockClient
		wantKind model.ErrorKind
	}{
		{"service error", &mockClient{err: fmt.Errorf("%w: 503", model.ErrAIService)}, model.KindAIService},
		{"untyped error", &mockClient{err: errors.New("connection reset")}, model.KindAIService},
		{"tagged timeout", &mockClient{err: model.ErrAITimeout}, model.KindAITimeout},
		{"empty reply", &mockClient{reply: "  "}, model.KindAIService},
		{"explanation instead of value", &mockClient{reply: strings.Repeat("The corrected value is probably ", 5)}, model.KindAIService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnhancer(t, tt.client, time.Second, 1)
			out := e.Enhance(context.Background(), "1OO", model.FieldSqft)
			if out.AIApplied || out.Text != "1OO" {
				t.Errorf("Enhance() = %+v, want raw text without AI", out)
			}
			if out.WarningKind != tt.wantKind {
				t.Errorf("WarningKind = %s, want %s", out.WarningKind, tt.wantKind)
			}
			if out.Warning == "" {
				t.Error("expected a warning message")
			}
		})
	}
}

func TestLLMEnhancer_EmptyInputSkipsCall(t *testing.T) {
	client := &mockClient{reply: "x"}
	e := newTestEnhancer(t, client, time.Second, 1)

	out := e.Enhance(context.Background(), "  ", model.FieldText)
	if out.AIApplied || out.Text != "  " {
		t.Errorf("Enhance() = %+v", out)
	}
	if client.calls.Load() != 0 {
		t.Errorf("client called %d times, want 0", client.calls.Load())
	}
}

func TestLLMEnhancer_ConcurrencyBounded(t *testing.T) {
	client := &mockClient{reply: "ok", delay: 20 * time.Millisecond}
	e := newTestEnhancer(t, client, time.Second, 2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Enhance(context.Background(), "ok", model.FieldText)
		}()
	}
	wg.Wait()

	if peak := client.peak.Load(); peak > 2 {
		t.Errorf("peak concurrent calls = %d, want <= 2", peak)
	}
	if client.calls.Load() != 10 {
		t.Errorf("calls = %d, want 10", client.calls.Load())
	}
}

func TestNewLLMEnhancer_RequiresClient(t *testing.T) {
	_, err := NewLLMEnhancer(LLMConfig{})
	if !errors.Is(err, model.ErrConfig) {
		t.Errorf("error = %v, want ErrConfig", err)
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name          string
		cfg           SelectConfig
		client        llm.Client
		wantStrategy  string
		wantAvailable bool
		wantErr       bool
	}{
		{"disabled", SelectConfig{Enabled: false}, &mockClient{}, "passthrough", false, false},
		{"disabled with rule fallback", SelectConfig{Enabled: false, RuleFallback: true}, &mockClient{}, "rules", false, false},
		{"enabled without client", SelectConfig{Enabled: true}, nil, "passthrough", false, false},
		{"probe fails", SelectConfig{Enabled: true, Model: "m"}, &mockClient{healthErr: errors.New("connection refused")}, "passthrough", false, true},
		{"probe fails with rule fallback", SelectConfig{Enabled: true, RuleFallback: true}, &mockClient{healthErr: errors.New("down")}, "rules", false, true},
		{"probe succeeds", SelectConfig{Enabled: true, Model: "m"}, &mockClient{}, "llm:mock", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, probe := Select(context.Background(), tt.cfg, tt.client, logger.Nop())
			if e.Name() != tt.wantStrategy {
				t.Errorf("strategy = %s, want %s", e.Name(), tt.wantStrategy)
			}
			if probe.Available != tt.wantAvailable {
				t.Errorf("Available = %v, want %v", probe.Available, tt.wantAvailable)
			}
			if (probe.Err != nil) != tt.wantErr {
				t.Errorf("probe.Err = %v, wantErr %v", probe.Err, tt.wantErr)
			}
		})
	}
}

func TestSelect_DisabledOutputEqualsInput(t *testing.T) {
	e, _ := Select(context.Background(), SelectConfig{Enabled: false}, nil, logger.Nop())
	for _, raw := range []string{"$1,2OO.OO", "  spaced  ", ""} {
		out := e.Enhance(context.Background(), raw, model.FieldCurrency)
		if out.Text != raw || out.AIApplied {
			t.Errorf("Enhance(%q) = %+v, want unchanged", raw, out)
		}
	}
}
