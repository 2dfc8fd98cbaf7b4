package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base     = zap.NewNop()
	mu       sync.Mutex
	enabled  bool
	counters = make(map[string]int)
)

// Options selects where and how much is logged.
type Options struct {
	Level string // debug, info, warn, error
	File  string // empty logs to stderr
	JSON  bool   // JSON encoding instead of console
}

// Enable builds the process logger. Calling it again replaces the logger.
func Enable(opts Options) error {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	if opts.JSON {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		cfg.OutputPaths = []string{opts.File}
		cfg.ErrorOutputPaths = []string{opts.File}
	} else {
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
	base = logger
	enabled = true
	base.Named("debug").Debug("logging started", zap.String("level", level.String()))
	return nil
}

// Disable flushes and drops back to a no-op logger.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	_ = base.Sync()
	base = zap.NewNop()
	enabled = false
}

// Enabled reports whether Enable has been called.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Named returns a component logger.
func Named(name string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return base.Named(name).Sugar()
}

// Log writes a debug message under category.
func Log(category, format string, args ...any) {
	mu.Lock()
	l := base
	mu.Unlock()
	l.Named(category).Sugar().Debugf(format, args...)
}

// LogEvery logs only every N calls (use for high-frequency events)
func LogEvery(n int, category, format string, args ...any) {
	if n <= 0 {
		n = 1
	}
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

// Sync flushes buffered log entries.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
}
