package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/platinummonkey/regionscan/internal/config"
	"github.com/platinummonkey/regionscan/internal/logger"
)

var (
	cfgFile string

	// v collects flags from every command; config.LoadWith layers file,
	// environment and defaults underneath them
	v = viper.New()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "regionscan",
	Short: "Extract fields from scanned real-estate documents",
	Long: `regionscan reads named rectangular regions out of scanned commercial
real-estate documents (rent rolls, offering memos, leases) and turns them
into structured, validated and scored fields.

Features:
  - PDF, page-image directories and gs:// objects as input
  - Tesseract, Azure Computer Vision or a vision LLM for OCR
  - Optional LLM correction of OCR output (Ollama, OpenAI, Anthropic, Gemini)
  - Field validation and normalization (currency, date, sqft, phone, email)
  - Document classification with suggested regions
  - Run history in a local file, PostgreSQL or Firestore`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.regionscan.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("store-driver", "file", "run store (file, postgres, firestore)")
	rootCmd.PersistentFlags().String("store-dsn", "", "store location: file path, postgres DSN or project/collection")

	for _, name := range []string{"log-level", "log-format", "store-driver", "store-dsn"} {
		_ = v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// loadRuntime loads configuration and installs the global logger
func loadRuntime() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadWith(v, cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(&logger.Config{
		Level:            cfg.LogLevel,
		Format:           cfg.LogFormat,
		EnableCaller:     cfg.LogLevel == "debug",
		EnableStacktrace: cfg.LogLevel == "debug",
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log := logger.Get()
	log.Debug(cfg.String())
	return cfg, log, nil
}
