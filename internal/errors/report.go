package errors

import (
	"context"
	"log/slog"
	"sync"
)

// ReportContext is the metadata attached to a reported error.
type ReportContext struct {
	// Indices are the physical indexes the failed operation targeted.
	Indices []string

	// Handles are the logical collections the caller asked for.
	Handles []string

	// Query is the raw query string.
	Query string
}

// Reporter forwards errors to an external error-tracking service.
// Implementations must be safe for concurrent use and must not block the
// caller for long.
type Reporter interface {
	Notify(ctx context.Context, err error, rc ReportContext)
}

// LogReporter reports errors as structured log records.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a reporter that writes to logger, or to the default
// logger when nil.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

// Notify implements Reporter.
func (r *LogReporter) Notify(ctx context.Context, err error, rc ReportContext) {
	if err == nil {
		return
	}

	attrs := []any{
		slog.Any("indices", rc.Indices),
		slog.Any("handles", rc.Handles),
		slog.String("query", rc.Query),
	}
	for k, v := range FormatForLog(err) {
		attrs = append(attrs, slog.Any(k, v))
	}
	r.logger.ErrorContext(ctx, "error_reported", attrs...)
}

// NopReporter discards every report.
type NopReporter struct{}

// Notify implements Reporter.
func (NopReporter) Notify(context.Context, error, ReportContext) {}

// Report is one captured Notify call.
type Report struct {
	Err     error
	Context ReportContext
}

// MemoryReporter keeps reports in memory, for tests and embedding callers
// that inspect failures themselves.
type MemoryReporter struct {
	mu      sync.Mutex
	reports []Report
}

// Notify implements Reporter.
func (r *MemoryReporter) Notify(_ context.Context, err error, rc ReportContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Err: err, Context: rc})
}

// Reports returns a copy of everything reported so far.
func (r *MemoryReporter) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

var (
	_ Reporter = (*LogReporter)(nil)
	_ Reporter = NopReporter{}
	_ Reporter = (*MemoryReporter)(nil)
)
