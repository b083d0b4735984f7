package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	cfgpkg "github.com/KaramelBytes/salesloom-cli/internal/config"
	"github.com/KaramelBytes/salesloom-cli/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile      string
	debug        bool
	flagLogLevel string
	flagDataDir  string
	flagProvider string
	flagModel    string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "salesloom",
	Short: "SalesLoom CLI: ask questions about your sales data",
	Long: `SalesLoom answers natural-language questions about a directory of sales CSV files.
A language model turns each question into an analysis plan, the plan runs locally
against the loaded tables, and the model phrases the result as an answer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.salesloom/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error|off (overrides config)")
	pf.StringVar(&flagDataDir, "data-dir", "", "directory with sales CSV/TSV/XLSX files (overrides config)")
	pf.StringVar(&flagProvider, "provider", "", "LLM provider: groq|openrouter|ollama (overrides config)")
	pf.StringVar(&flagModel, "model", "", "model name (overrides config)")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	pf.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max attempts per model call on 429/5xx (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands that need config report it themselves.
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("data-dir") && flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if f.Changed("provider") && flagProvider != "" {
		cfg.Provider = strings.ToLower(strings.TrimSpace(flagProvider))
		if k := cfgpkg.ProviderKeyFromEnv(cfg.Provider); k != "" && os.Getenv("SALESLOOM_API_KEY") == "" {
			cfg.APIKey = k
		}
	}
	if f.Changed("model") && flagModel != "" {
		cfg.Model = flagModel
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}

	level := logging.LevelFromString(cfg.LogLevel)
	if f.Changed("log-level") {
		level = logging.LevelFromString(flagLogLevel)
	}
	if debug {
		level = slog.LevelDebug
	}
	logger = logging.New(os.Stderr, level)
}

// currentConfig returns the loaded configuration or an error explaining why
// there is none.
func currentConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no configuration loaded (check --config)")
	}
	return cfg, nil
}
