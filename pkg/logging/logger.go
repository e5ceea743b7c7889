// Package logging configures zerolog for the Soundcharts client and its tools.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelTrace also logs decoded response bodies when the client has
	// LogResponses enabled.
	LevelTrace LogLevel = "trace"

	// LevelDebug logs every page, window and request.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs quota updates and cap stops.
	LevelInfo LogLevel = "info"

	// LevelWarn logs remote errors swallowed by best-effort queries.
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

	// Output defaults to os.Stderr, keeping stdout free for command output.
	Output io.Writer

	// Service is added to every entry when set.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
		Service: "soundcharts",
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel validates a level name.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level. Unknown levels mean info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "trace":
		return zerolog.TraceLevel
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
// Debug: per-request detail
//   - Outgoing requests (method, url)
//   - Each fetched page (page, items, has_next)
//   - Each date window (window_start, window_end)
//   - Non-JSON success bodies treated as no content
//
// Info: normal operation
//   - Quota remaining after each response
//   - Item cap reached during pagination
//   - Server startup/shutdown (metrics endpoint)
//
// Warn: degraded but handled
//   - Quota low (throttling active)
//   - Remote errors answered as "no data" or "not found"
//   - Ambiguous daily data (more than one item for a day)
//   - Retry attempts exhausted
//
// Error: needs attention
//   - Transport failures
//   - Quota critical (requests blocked)
//   - Configuration errors
//
// Context Fields:
//   - component: package emitting the entry
//   - endpoint: resource path including version prefix
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - quota_remaining: last x-quota-remaining value
//   - page, items, total: pagination progress
//   - window_start, window_end, day, hops: windowed retrieval progress
