// Package logging builds the zap loggers used by the command line tools.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing human readable lines to stderr at the given
// level ("debug", "info", "warn", "error"). When file is not empty the same
// entries are appended to it as JSON.
func New(level, file string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("failed to parse log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), lvl),
	}

	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), lvl))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if file != "" {
		logger.Info("logger initialized", zap.String("level", lvl.String()), zap.String("file", file))
	} else {
		logger.Info("logger initialized", zap.String("level", lvl.String()))
	}
	return logger, nil
}

// Must is New for main packages; it exits on error.
func Must(level, file string) *zap.Logger {
	logger, err := New(level, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return logger
}
