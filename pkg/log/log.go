// Package log configures the process-wide slog logger for leadflow binaries.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
// Unknown values fall back to info.
func ParseLevel(logLevel string) slog.Level {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.TrimSpace(logLevel)))
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

// New returns a text logger writing to w that tags every record with service.
func New(w io.Writer, service, logLevel string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	})

	return slog.New(handler).With("service", service)
}

// Setup installs a stderr logger for service as the slog default.
func Setup(service, logLevel string) {
	slog.SetDefault(New(os.Stderr, service, logLevel))
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
