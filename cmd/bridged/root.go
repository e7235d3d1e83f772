package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"llamabridge/internal/config"
)

// options collects flag values shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	logJSON    bool

	// Overrides; applied only when the flag was set explicitly.
	addr         string
	modelsDir    string
	engine       string
	echo         bool
	contextSize  int
	threads      int
	budgetMB     int
	marginMB     int
	maxRetries   int
	tokenDelayMS int
	corsOrigins  string
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&options{}) }

// newRootCmdWith builds the command tree around o.
func newRootCmdWith(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "bridged",
		Short:         "On-device model session manager (desktop bring-up)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", envStr("LLAMABRIDGE_CONFIG", ""), "Config file (.yaml/.yml/.json/.toml)")
	pf.StringVar(&o.logLevel, "log-level", envStr("LLAMABRIDGE_LOG_LEVEL", ""), "Log level: debug|info|warn|error (overrides config)")
	pf.BoolVar(&o.logJSON, "log-json", false, "Emit JSON logs instead of console output")
	bindConfigFlags(pf, o)

	root.AddCommand(newServeCmd(o), newGenerateCmd(o), newModelsCmd(o))
	return root
}

// bindConfigFlags registers flags that override config file values.
func bindConfigFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.addr, "addr", "", "HTTP listen address, e.g. :8080")
	fs.StringVar(&o.modelsDir, "models-dir", "", "Directory to scan for *.gguf/*.bin model files")
	fs.StringVar(&o.engine, "engine", "", "Inference engine: stub|llama|none")
	fs.BoolVar(&o.echo, "echo", false, "Echo prompts instead of running an engine")
	fs.IntVar(&o.contextSize, "context-size", 0, "Engine context size in tokens")
	fs.IntVar(&o.threads, "threads", 0, "Engine threads (0 = engine default)")
	fs.IntVar(&o.budgetMB, "budget-mb", 0, "Memory budget in MB across sessions (0=unlimited)")
	fs.IntVar(&o.marginMB, "margin-mb", 0, "Memory margin in MB to keep free")
	fs.IntVar(&o.maxRetries, "max-retries", 0, "Retries for transient engine errors (negative disables)")
	fs.IntVar(&o.tokenDelayMS, "token-delay-ms", 0, "Stub engine delay between tokens")
	fs.StringVar(&o.corsOrigins, "cors-origins", "", "Comma-separated CORS origins; empty disables CORS")
}

// resolveConfig loads the config file (if any) and applies explicit flags.
func resolveConfig(cmd *cobra.Command, o *options) (config.Config, error) {
	cfg := config.Defaults()
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	fs := cmd.Flags()
	changed := func(name string) bool { return fs.Changed(name) }
	if changed("addr") {
		cfg.Addr = o.addr
	}
	if changed("models-dir") {
		cfg.ModelsDir = o.modelsDir
	}
	if changed("engine") {
		cfg.Engine = o.engine
	}
	if changed("echo") {
		cfg.EchoMode = o.echo
	}
	if changed("context-size") {
		cfg.ContextSize = o.contextSize
	}
	if changed("threads") {
		cfg.Threads = o.threads
	}
	if changed("budget-mb") {
		cfg.BudgetMB = o.budgetMB
	}
	if changed("margin-mb") {
		cfg.MarginMB = o.marginMB
	}
	if changed("max-retries") {
		cfg.MaxRetries = o.maxRetries
	}
	if changed("token-delay-ms") {
		cfg.TokenDelayMS = o.tokenDelayMS
	}
	if changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(o.corsOrigins)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger builds the process logger. Console output goes to stderr so
// generated text on stdout stays clean.
func newLogger(level string, asJSON bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	var w io.Writer = os.Stderr
	if !asJSON {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma-separated list, trimming spaces and dropping empties.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
