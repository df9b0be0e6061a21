package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check whether the AI provider is reachable",
	Long: `Run the same capability probe extract performs at startup and report
which enhancement strategy a run would use.

Examples:
  # Check a local Ollama model
  REGIONSCAN_AI_ENABLED=true regionscan probe

  # Check Anthropic (reads ANTHROPIC_API_KEY)
  REGIONSCAN_AI_ENABLED=true REGIONSCAN_AI_PROVIDER=anthropic \
    REGIONSCAN_AI_MODEL=claude-sonnet-4-5 regionscan probe`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	comps, err := buildEnhancer(commandContext(cmd), cfg, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	out := cmd.OutOrStdout()
	p := comps.probe
	fmt.Fprintf(out, "AI enabled:  %t\n", cfg.AI.Enabled)
	fmt.Fprintf(out, "Provider:    %s\n", valueOr(p.Provider, cfg.AI.Provider))
	fmt.Fprintf(out, "Model:       %s\n", valueOr(p.Model, "-"))
	fmt.Fprintf(out, "Available:   %t\n", p.Available)
	if p.Latency > 0 {
		fmt.Fprintf(out, "Latency:     %s\n", p.Latency.Round(time.Millisecond))
	}
	if p.Err != nil {
		fmt.Fprintf(out, "Error:       %v\n", p.Err)
	}
	fmt.Fprintf(out, "Strategy:    %s\n", comps.enhancer.Name())
	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
