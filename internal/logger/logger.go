// Package logger provides the process-wide structured logger used by every
// component of the execution engine.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global *zap.Logger

// Init (re)initializes the global logger from environment configuration.
// CODESESSION_LOG_LEVEL sets the level; CODESESSION_ENV=development switches
// to a colorized, human-readable encoder.
func Init() {
	config := zap.NewProductionConfig()

	if lvl := os.Getenv("CODESESSION_LOG_LEVEL"); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	if os.Getenv("CODESESSION_ENV") == "development" {
		config.Development = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := config.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	global = built
}

// Get returns the global logger, lazily initializing it on first use.
func Get() *zap.Logger {
	if global == nil {
		Init()
	}
	return global
}

// Sync flushes any buffered log entries. Callers should defer this at
// process exit; the error is intentionally discarded for stderr/stdout
// sync failures on some platforms, matching common zap usage.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}

// ExecuteCall logs the start of a session.run(code) invocation.
func ExecuteCall(sessionID string, codeLen int) {
	Get().Info("execute.start", zap.String("session_id", sessionID), zap.Int("code_len", codeLen))
}

// ExecuteResult logs the outcome of a session.run(code) invocation.
func ExecuteResult(sessionID string, durationMs int64, errKind string) {
	if errKind != "" {
		Get().Warn("execute.done", zap.String("session_id", sessionID), zap.Int64("duration_ms", durationMs), zap.String("error_kind", errKind))
		return
	}
	Get().Info("execute.done", zap.String("session_id", sessionID), zap.Int64("duration_ms", durationMs))
}

// ToolCall logs a tool/recipe invocation.
func ToolCall(tool, recipe string, durationSeconds float64, err error) {
	if err != nil {
		Get().Error("tool.call", zap.String("tool", tool), zap.String("recipe", recipe), zap.Float64("duration_seconds", durationSeconds), zap.Error(err))
		return
	}
	Get().Info("tool.call", zap.String("tool", tool), zap.String("recipe", recipe), zap.Float64("duration_seconds", durationSeconds))
}
