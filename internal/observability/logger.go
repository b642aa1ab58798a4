// Package observability provides process-wide logging for the CLI.
//
// Diagnostic logs go to stderr so stdout stays reserved for JSONL
// records; the two streams can be piped independently.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger for CLI commands.
//
// It defaults to a no-op logger so library consumers and tests that
// never call InitCLILogger stay silent.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger at the given level.
//
// Levels follow zap: debug, info, warn, error. The special level "test"
// maps to debug with caller annotations for troubleshooting test runs.
// When jsonFormat is true, log lines are structured JSON; otherwise a
// human-readable console encoding is used.
func InitCLILogger(level string, jsonFormat bool) error {
	var zapLevel zapcore.Level
	switch level {
	case "test":
		zapLevel = zapcore.DebugLevel
	default:
		if err := zapLevel.Set(level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if !jsonFormat {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	CLILogger = logger
	return nil
}

// Sync flushes buffered log entries. Safe to call on the default no-op
// logger.
func Sync() {
	_ = CLILogger.Sync()
}
