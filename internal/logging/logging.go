// Package logging builds the structured logger shared by the commands.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

// NewRunID returns a fresh correlation ID for one process run.
func NewRunID() string {
	return uuid.NewString()
}

// New returns a logger writing one record per line to w. format is "json"
// (default) or "text"; level is debug, info (default), warn or error. Every
// record carries run_id.
func New(w io.Writer, level, format, runID string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(orDefault(level, "info"))); err != nil {
		return nil, fmt.Errorf("logging: level %q: %w", level, contract.ErrInvalidConfiguration)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(orDefault(format, "json")) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("logging: format %q: %w", format, contract.ErrInvalidConfiguration)
	}
	return slog.New(h).With("run_id", runID), nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
