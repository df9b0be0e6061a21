package enhance

import (
	"context"
	"time"

	"github.com/platinummonkey/regionscan/internal/llm"
	"github.com/platinummonkey/regionscan/internal/logger"
)

// ProbeResult records the outcome of the startup capability probe
type ProbeResult struct {
	Available bool
	Provider  string
	Model     string
	Latency   time.Duration
	Err       error
}

// SelectConfig controls strategy selection
type SelectConfig struct {
	Enabled      bool
	RuleFallback bool
	Model        string
	Timeout      time.Duration
	Concurrency  int
}

// Select probes the AI provider once and returns the enhancer every region
// will use for the whole run. A disabled or unreachable provider yields the
// pass-through, or the rule-based enhancer when RuleFallback is set.
func Select(ctx context.Context, cfg SelectConfig, client llm.Client, log *logger.Logger) (Enhancer, ProbeResult) {
	if log == nil {
		log = logger.Get()
	}

	probe := ProbeResult{Model: cfg.Model}
	if client != nil {
		probe.Provider = client.Name()
	}

	fallback := func() Enhancer {
		if cfg.RuleFallback {
			return NewRuleBasedEnhancer()
		}
		return PassThrough{}
	}

	if !cfg.Enabled || client == nil {
		log.Infow("AI enhancement disabled", "strategy", fallback().Name())
		return fallback(), probe
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	probe.Err = client.HealthCheck(probeCtx, cfg.Model)
	probe.Latency = time.Since(start)

	if probe.Err != nil {
		strategy := fallback()
		log.WithError(probe.Err).Warnw("AI provider unavailable, continuing without AI enhancement",
			"provider", probe.Provider,
			"model", probe.Model,
			"strategy", strategy.Name())
		return strategy, probe
	}

	enhancer, err := NewLLMEnhancer(LLMConfig{
		Client:      client,
		Model:       cfg.Model,
		Timeout:     cfg.Timeout,
		Concurrency: cfg.Concurrency,
		Logger:      log,
	})
	if err != nil {
		probe.Err = err
		return fallback(), probe
	}

	probe.Available = true
	log.Infow("AI enhancement enabled",
		"provider", probe.Provider,
		"model", probe.Model,
		"probe_latency", probe.Latency)
	return enhancer, probe
}
