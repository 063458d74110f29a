package errors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogReporter_Notify(t *testing.T) {
	// Given: a reporter over a JSON logger
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewJSONHandler(&buf, nil)))

	// When: reporting a search failure
	err := SearchError("bleve query failed", errors.New("boom")).WithDetail("index", "docs_v1")
	r.Notify(context.Background(), err, ReportContext{
		Indices: []string{"docs_v1"},
		Handles: []string{"docs"},
		Query:   "passport",
	})

	// Then: one error record carries the context and error fields
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "error_reported", rec["msg"])
	assert.Equal(t, []any{"docs_v1"}, rec["indices"])
	assert.Equal(t, []any{"docs"}, rec["handles"])
	assert.Equal(t, "passport", rec["query"])
	assert.Equal(t, ErrCodeSearchFailed, rec["error_code"])
	assert.Equal(t, "boom", rec["cause"])
	assert.Equal(t, "docs_v1", rec["detail_index"])
}

func TestLogReporter_NilErrorIgnored(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewJSONHandler(&buf, nil)))

	r.Notify(context.Background(), nil, ReportContext{})

	assert.Zero(t, buf.Len())
}

func TestNewLogReporter_NilLoggerUsesDefault(t *testing.T) {
	r := NewLogReporter(nil)

	assert.NotNil(t, r.logger)
}

func TestMemoryReporter(t *testing.T) {
	// Given: a memory reporter
	r := &MemoryReporter{}
	err := errors.New("timeout")

	// When: reporting twice
	r.Notify(context.Background(), err, ReportContext{Query: "a"})
	r.Notify(context.Background(), err, ReportContext{Query: "b"})

	// Then: both reports are kept in order, and the returned slice is a copy
	reports := r.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, "a", reports[0].Context.Query)
	assert.Equal(t, "b", reports[1].Context.Query)
	reports[0].Context.Query = "changed"
	assert.Equal(t, "a", r.Reports()[0].Context.Query)
}

func TestNopReporter(t *testing.T) {
	assert.NotPanics(t, func() {
		NopReporter{}.Notify(context.Background(), errors.New("x"), ReportContext{})
	})
}
