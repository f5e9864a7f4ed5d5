// Package logging provides structured logging using zap
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// SecureLogName is the logger name of the restricted-detail log.
const SecureLogName = "tjenestekall"

// NewDefaultLogger creates a logger with default configuration using zap
func NewDefaultLogger() Logger {
	config := DefaultLogConfig()
	logger, err := NewZapLogger(config)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

func newDefaultSecureLogger() Logger {
	config := DefaultLogConfig()
	config.Prefix = SecureLogName
	logger, err := NewZapLogger(config)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize secure zap logger: %v", err))
	}
	return logger
}

// Options controls InitGlobalLogger.
type Options struct {
	Level string
	// JSON is set when running on the platform, where logs are shipped as JSON.
	JSON bool
	// SecureLogFile routes the secure log to a file. Empty means stdout.
	SecureLogFile string
}

// InitGlobalLogger initializes the global and secure loggers. The returned
// closer releases the secure log file, if one was opened.
func InitGlobalLogger(opts Options) (io.Closer, error) {
	level := ParseLevel(opts.Level)

	logger, err := NewZapLogger(LogConfig{
		Level:      level,
		JSON:       opts.JSON,
		TimeFormat: time.RFC3339,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var (
		secureOut io.Writer
		closer    io.Closer = nopCloser{}
	)
	if opts.SecureLogFile != "" {
		file, err := os.OpenFile(opts.SecureLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open secure log file %s: %w", opts.SecureLogFile, err)
		}
		secureOut = file
		closer = file
	}

	secure, err := NewZapLogger(LogConfig{
		Level:      DebugLevel,
		Output:     secureOut,
		JSON:       opts.JSON,
		TimeFormat: time.RFC3339,
		Prefix:     SecureLogName,
	})
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to initialize secure logger: %w", err)
	}

	SetGlobalLogger(logger)
	SetSecureLogger(secure)

	logger.Info("Logger initialized",
		Field{"level", level.String()},
		Field{"json", opts.JSON},
		Field{"secure_log_file", opts.SecureLogFile},
	)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// MustSync flushes any buffered log entries for zap loggers
// This should be called before application exit
func MustSync() {
	for _, logger := range []Logger{GetGlobalLogger(), Secure()} {
		if zapLogger, ok := logger.(*ZapAdapter); ok {
			_ = zapLogger.Sync()
		}
	}
}

type contextFieldsKey struct{}

// ContextWithFields returns a context carrying log fields. Loggers obtained
// through WithContext pick them up, so every line logged while handling one
// message carries the same correlation ids.
func ContextWithFields(ctx context.Context, fields ...Field) context.Context {
	existing := FieldsFromContext(ctx)
	merged := make([]Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, contextFieldsKey{}, merged)
}

// FieldsFromContext returns the fields stored by ContextWithFields.
func FieldsFromContext(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(contextFieldsKey{}).([]Field)
	return fields
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
