// Package logger configures log/slog for bar runs. Records carry the service
// name, and a logger taken from a run's context also carries its run id.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Options selects the record encoding, minimum level and destination.
// Format "json" selects JSON output; anything else is logfmt text.
// A nil Output writes to stderr.
type Options struct {
	Format string
	Level  slog.Level
	Output io.Writer
}

// Init installs the service logger as the slog default and returns it.
// Plain log.Printf output is routed through it as well.
func Init(service string, o Options) *slog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: o.Level}

	var h slog.Handler = slog.NewTextHandler(out, ho)
	if strings.EqualFold(o.Format, "json") {
		h = slog.NewJSONHandler(out, ho)
	}
	l := slog.New(h).With("service", service)
	slog.SetDefault(l)
	return l
}

type runKey struct{}

// NewRunID names one run by its destination and start time.
func NewRunID(destination string, start time.Time) string {
	return fmt.Sprintf("%s-%d", destination, start.UnixNano())
}

// WithRunID attaches id to ctx; loggers taken from ctx include it.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runKey{}, id)
}

// RunID returns the run id attached to ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runKey{}).(string)
	return id
}

// FromContext returns the default logger, tagged with the run id when ctx
// has one.
func FromContext(ctx context.Context) *slog.Logger {
	if id := RunID(ctx); id != "" {
		return slog.Default().With("run_id", id)
	}
	return slog.Default()
}
