package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
)

const (
	defaultListenAddr      = ":8000"
	defaultLogFormat       = "json"
	defaultBlockingWorkers = 8

	envConfigFile      = "GRAPHRUN_CONFIG"
	envListenAddr      = "GRAPHRUN_LISTEN_ADDR"
	envLogLevel        = "GRAPHRUN_LOG_LEVEL"
	envLogFormat       = "GRAPHRUN_LOG_FORMAT"
	envBlockingWorkers = "GRAPHRUN_BLOCKING_WORKERS"
	envGraphsDir       = "GRAPHRUN_GRAPHS_DIR"
)

// Config holds application configuration.
type Config struct {
	ListenAddr string
	LogLevel   slog.Level
	// LogFormat is "json" or "text".
	LogFormat string
	// BlockingWorkers bounds how many blocking tool calls run at once.
	BlockingWorkers int
	// GraphsDir is an optional directory of extra .hcl graph definitions.
	GraphsDir string
}

// fileConfig is the TOML file layout.
type fileConfig struct {
	ListenAddr      string `toml:"listen_addr"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	BlockingWorkers int    `toml:"blocking_workers"`
	GraphsDir       string `toml:"graphs_dir"`
}

func defaults() Config {
	return Config{
		ListenAddr:      defaultListenAddr,
		LogLevel:        slog.LevelInfo,
		LogFormat:       defaultLogFormat,
		BlockingWorkers: defaultBlockingWorkers,
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// GRAPHRUN_CONFIG (if any), then environment variables. Fields left empty
// or zero by the overlays fall back to their defaults.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv(envConfigFile); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := mergo.Merge(&cfg, defaults()); err != nil {
		return Config{}, fmt.Errorf("apply config defaults: %w", err)
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = parseLogLevel(raw.LogLevel)
	}
	if meta.IsDefined("log_format") {
		cfg.LogFormat = parseLogFormat(raw.LogFormat)
	}
	if meta.IsDefined("blocking_workers") {
		cfg.BlockingWorkers = raw.BlockingWorkers
	}
	if meta.IsDefined("graphs_dir") {
		cfg.GraphsDir = strings.TrimSpace(raw.GraphsDir)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envLogFormat); v != "" {
		cfg.LogFormat = parseLogFormat(v)
	}
	if v := os.Getenv(envBlockingWorkers); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", envBlockingWorkers, err)
		}
		cfg.BlockingWorkers = n
	}
	if v := os.Getenv(envGraphsDir); v != "" {
		cfg.GraphsDir = v
	}
	if cfg.BlockingWorkers < 0 {
		return fmt.Errorf("blocking workers must not be negative, got %d", cfg.BlockingWorkers)
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseLogFormat(s string) string {
	if strings.ToLower(strings.TrimSpace(s)) == "text" {
		return "text"
	}
	return defaultLogFormat
}

// NewLogger creates a structured logger writing to w at the given level.
// format "text" selects the text handler; anything else yields JSON.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
