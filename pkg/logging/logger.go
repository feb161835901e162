// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	// Ignored when File is set.
	Output io.Writer

	// File routes output to a rotated log file when non-empty.
	File string

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Pretty:     false,
		Output:     os.Stderr,
		MaxSizeMB:  100,
		MaxBackups: 3,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	output, outErr := buildOutput(cfg)
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()
	if outErr != nil {
		logger.Warn().Err(outErr).Str("path", cfg.File).Msg("Log file unavailable, using console output")
	}

	// Set as global logger
	log.Logger = logger

	return logger
}

// buildOutput returns the log writer for cfg. When the log file cannot be
// prepared it falls back to Output (or stderr) and returns the error.
func buildOutput(cfg Config) (io.Writer, error) {
	fallback := cfg.Output
	if fallback == nil {
		fallback = os.Stderr
	}

	if cfg.File == "" {
		return fallback, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return fallback, fmt.Errorf("create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Tier hits and misses (layer, key, stale)
//   - Joined in-flight fetches
//   - Successful origin fetches and preheat summaries
//
// Info: Normal operation events
//   - Rejected origin responses (404, non-image content)
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Durable store read/write failures
//   - Exhausted retries
//   - Log file fallback
//
// Error: Error conditions requiring attention
//   - Service unavailability
//   - Configuration errors
//
// Context Fields:
//   - key: Derived cache key
//   - url: Origin image URL
//   - layer: Tier that served a hit (memory, disk)
//   - stale: Whether a durable hit was past its TTL
//   - status_code: HTTP status code
//   - error_class: Fetch failure class (transport, status, empty_body, content_type, too_large)
//   - duration: Fetch duration
//   - request_id: Proxy request ID
