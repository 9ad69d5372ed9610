// Package logging provides config-driven categorized logging for rikyu.
// Logs are written as JSON lines to <data_dir>/logs/rikyu.log when debug mode is on.
// With debug mode off every category logger is a no-op so the chat terminal stays clean.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Boot/initialization
	CategorySession Category = "session" // Interactive session loop
	CategoryAPI     Category = "api"     // Remote model calls
	CategoryStore   Category = "store"   // Transcript persistence
	CategoryChat    Category = "chat"    // Request adapter decisions
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	Debug bool
	Level string // debug, info, warn, error
	Dir   string // directory that receives rikyu.log
	// Enabled filters categories; nil keeps every category.
	Enabled func(category string) bool
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	enabled func(category string) bool
)

// Initialize builds the root logger. Safe to call more than once; the last call wins.
func Initialize(cfg Config) error {
	if !cfg.Debug {
		mu.Lock()
		root = zap.NewNop()
		enabled = nil
		mu.Unlock()
		return nil
	}

	if cfg.Dir == "" {
		return fmt.Errorf("log directory required in debug mode")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.OutputPaths = []string{filepath.Join(cfg.Dir, "rikyu.log")}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	mu.Lock()
	root = logger
	enabled = cfg.Enabled
	mu.Unlock()

	Get(CategoryBoot).Info("logging initialized",
		zap.String("dir", cfg.Dir),
		zap.String("level", cfg.Level))
	return nil
}

// SetLogger replaces the root logger. Tests use it with zaptest/observer cores.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	root = l
	enabled = nil
	mu.Unlock()
}

// Get returns a named logger for the category, or a no-op logger when the category is disabled.
func Get(category Category) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if enabled != nil && !enabled(string(category)) {
		return zap.NewNop()
	}
	return root.Named(string(category))
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	_ = l.Sync()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
