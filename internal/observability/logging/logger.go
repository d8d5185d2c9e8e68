// Package logging builds the JSON slog loggers used by the api, worker and extract binaries.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger logs to stdout, the stream the api and worker containers collect.
func NewJSONLogger(service, level string) *slog.Logger {
	return New(os.Stdout, service, level)
}

// New returns a JSON logger tagged with service. An unrecognised level falls
// back to info and is reported once through the new logger.
func New(w io.Writer, service, level string) *slog.Logger {
	parsed, err := ParseLevel(level)
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parsed})).With("service", service)
	if err != nil {
		logger.Warn("log_level_fallback", "effective_level", parsed.String(), "error", err)
	}
	return logger
}

// ParseLevel accepts the slog level names with optional offsets ("debug", "INFO+2")
// and "warning". An empty string means info.
func ParseLevel(raw string) (slog.Level, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
	return level, nil
}
