package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Setup builds the process logger and installs it as the slog default.
// format is "text" or "json"; level is debug, info, warn or error.
func Setup(w io.Writer, level, format, serviceName string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	logger := slog.New(handler).With("service", serviceName)
	slog.SetDefault(logger)
	return logger, nil
}

type ctxKey struct{}

// WithRun returns a context carrying a logger tagged with a fresh run_id and
// the job name, plus the run id itself.
func WithRun(ctx context.Context, job string) (context.Context, string) {
	runID := uuid.NewString()
	logger := FromContext(ctx).With("job", job, "run_id", runID)
	return context.WithValue(ctx, ctxKey{}, logger), runID
}

// FromContext returns the context's logger, or the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
