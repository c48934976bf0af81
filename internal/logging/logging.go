// Package logging provides config-driven categorized structured logging for
// the Sys2DSL reasoning engine. Every core package pulls a named sub-logger
// the way the teacher scopes its categories, but the backing implementation
// is a real zap.SugaredLogger rather than a hand-rolled file logger.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a reasoning-substrate subsystem for log scoping.
type Category string

const (
	CategoryHDC           Category = "hdc"
	CategoryVocab         Category = "vocab"
	CategoryExecutor      Category = "executor"
	CategoryKB            Category = "kb"
	CategorySemantic      Category = "semantic"
	CategoryContradiction Category = "contradiction"
	CategorySymbolic      Category = "symbolic"
	CategoryProof         Category = "proof"
	CategoryQuery         Category = "query"
	CategorySession       Category = "session"
	CategoryStorage       Category = "storage"
)

var (
	mu       sync.RWMutex
	base     *zap.Logger
	enabled  = true
	debugOn  bool
	named    = make(map[Category]*zap.SugaredLogger)
	levelVar = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	cfg := zap.NewProductionConfig()
	cfg.Level = levelVar
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	base = l
}

// Configure rewires the package logger: level and a master debug toggle;
// the encoding is left as it is (mirrors the teacher's debug_mode/category gating,
// collapsed to a single atomic level since this core has no per-category
// config file of its own).
func Configure(level string, debug bool) {
	mu.Lock()
	defer mu.Unlock()

	debugOn = debug
	enabled = true

	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}
	if debug && lvl > zapcore.DebugLevel {
		lvl = zapcore.DebugLevel
	}
	levelVar.SetLevel(lvl)

	named = make(map[Category]*zap.SugaredLogger)
}

// Disable silences all logging output; used by tests and by embedders that
// want the engine library-quiet.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	enabled = false
	levelVar.SetLevel(zapcore.FatalLevel + 1)
}

// Named returns (and caches) a category-scoped sugared logger, analogous to
// the teacher's logging.Get(category).
func Named(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := named[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := named[category]; ok {
		return l
	}
	l := base.Named(string(category)).Sugar()
	named[category] = l
	return l
}

// IsDebug reports whether debug-level logging is active.
func IsDebug() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debugOn
}
