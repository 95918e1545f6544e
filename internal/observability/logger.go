// Package observability holds the logging, metrics and health endpoints
// shared by the CLI and the server.
package observability

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu           sync.Mutex
	globalLogger zerolog.Logger
	initialized  bool
)

// ParseLevel maps a level name to a zerolog level. Unknown names are info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger builds a logger writing to w, as JSON or as console output.
func NewLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// InitLogger sets up the global logger on stderr. Stdout is left to answers.
// Later calls are ignored.
func InitLogger(level string, pretty bool) {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return
	}
	globalLogger = NewLogger(os.Stderr, level, pretty)
	log.Logger = globalLogger
	initialized = true
}

// GetLogger returns the global logger, initializing it at warn level if
// nothing has yet.
func GetLogger() zerolog.Logger {
	mu.Lock()
	ready := initialized
	mu.Unlock()
	if !ready {
		InitLogger("warn", false)
	}
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}

// WithCorrelationID returns the global logger tagged with id, or with a fresh
// id when id is empty.
func WithCorrelationID(id string) zerolog.Logger {
	if id == "" {
		id = NewCorrelationID()
	}
	return GetLogger().With().Str("correlation_id", id).Logger()
}

// NewCorrelationID generates a new correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()
}
