package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// AmanError
// =============================================================================

func TestAmanError_Error(t *testing.T) {
	tests := []struct {
		err  *AmanError
		want string
	}{
		{UnknownCollectionError("docs"), `[ERR_104_UNKNOWN_COLLECTION] unknown collection handle "docs"`},
		{New(ErrCodeInvalidWindow, "invalid pagination window: size=-1 offset=0", nil), "[ERR_407_INVALID_WINDOW] invalid pagination window: size=-1 offset=0"},
		{SearchError("index docs: segment read failed", nil), "[ERR_503_SEARCH_FAILED] index docs: segment read failed"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAmanError_IsMatchesByCode(t *testing.T) {
	// Given: two unknown-collection errors for different handles
	docs := UnknownCollectionError("docs")
	news := UnknownCollectionError("news")

	// Then: they match by code, and not against other codes
	assert.ErrorIs(t, docs, news)
	assert.NotErrorIs(t, docs, SearchError("fault", nil))
}

func TestAmanError_UnwrapReachesEngineCause(t *testing.T) {
	cause := errors.New("bolt: database not open")

	err := SearchError("index docs: search failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestUnknownCollectionError_CarriesHandle(t *testing.T) {
	err := UnknownCollectionError("travel")

	assert.Equal(t, "travel", err.Details["handle"])
	assert.Contains(t, err.Suggestion, "collections")
	assert.Equal(t, CategoryConfig, err.Category)
	assert.False(t, err.Retryable)
}

func TestAmanError_DerivedFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeUnknownCollection, CategoryConfig, SeverityError, false},
		{ErrCodeFilePermission, CategoryIO, SeverityError, false},
		{ErrCodeDiskFull, CategoryIO, SeverityFatal, false},
		{ErrCodeCorruptIndex, CategoryIO, SeverityFatal, false},
		{ErrCodeIndexLocked, CategoryIO, SeverityWarning, true},
		{ErrCodeNetworkTimeout, CategoryNetwork, SeverityWarning, true},
		{ErrCodeNetworkUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeInvalidWindow, CategoryValidation, SeverityError, false},
		{ErrCodeInvalidQuery, CategoryValidation, SeverityError, false},
		{ErrCodeSearchFailed, CategoryInternal, SeverityError, false},
		{"bogus", CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "message", nil)

			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestAmanError_WithDetailAndSuggestionChain(t *testing.T) {
	err := New(ErrCodeIndexLocked, "index docs is being written", nil).
		WithDetail("index", "docs").
		WithDetail("lock", "/data/docs.lock").
		WithSuggestion("Wait for the running 'amansearch index' to finish")

	assert.Equal(t, map[string]string{"index": "docs", "lock": "/data/docs.lock"}, err.Details)
	assert.Contains(t, err.Suggestion, "amansearch index")
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))

	cause := errors.New("mapping has no analyzer en")
	err := Wrap(ErrCodeInternal, cause)
	require.NotNil(t, err)
	assert.Equal(t, cause.Error(), err.Message)
	assert.Same(t, cause, err.Cause)
}

// =============================================================================
// Filesystem classification
// =============================================================================

func TestFileError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"missing", &fs.PathError{Op: "open", Path: "docs.jsonl", Err: syscall.ENOENT}, ErrCodeFileNotFound},
		{"denied", &fs.PathError{Op: "open", Path: "docs.jsonl", Err: syscall.EACCES}, ErrCodeFilePermission},
		{"disk full", fmt.Errorf("write: %w", syscall.ENOSPC), ErrCodeDiskFull},
		{"other", errors.New("is a directory"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FileError("open", "docs.jsonl", tt.err)

			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, "docs.jsonl", err.Details["path"])
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.Nil(t, FileError("open", "docs.jsonl", nil))
}

func TestFileError_FromOpen(t *testing.T) {
	_, openErr := os.Open("/nonexistent/amansearch/docs.jsonl")
	require.Error(t, openErr)

	err := FileError("open", "/nonexistent/amansearch/docs.jsonl", openErr)

	assert.Equal(t, ErrCodeFileNotFound, err.Code)
	assert.Contains(t, err.Message, "failed to open")
}

func TestConfigFileError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"missing", fs.ErrNotExist, ErrCodeConfigNotFound},
		{"denied", fs.ErrPermission, ErrCodeConfigPermission},
		{"other", errors.New("is a directory"), ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ConfigFileError("/etc/amansearch.yaml", tt.err)

			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, CategoryConfig, err.Category)
			assert.Equal(t, "/etc/amansearch.yaml", err.Details["path"])
		})
	}

	assert.Nil(t, ConfigFileError("/etc/amansearch.yaml", nil))
}

// =============================================================================
// Predicates
// =============================================================================

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"engine unavailable", NetworkError("connection refused", nil), true},
		{"wrapped timeout", fmt.Errorf("index docs: %w", New(ErrCodeNetworkTimeout, "timed out", nil)), true},
		{"engine fault", SearchError("fault", nil), false},
		{"validation", ValidationError("size must not be negative", nil), false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "index docs is corrupt", nil)))
	assert.True(t, IsFatal(fmt.Errorf("index: %w", New(ErrCodeDiskFull, "no space", nil))))
	assert.False(t, IsFatal(SearchError("fault", nil)))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestConstructors_Categories(t *testing.T) {
	assert.Equal(t, CategoryConfig, ConfigError("bad yaml", nil).Category)
	assert.Equal(t, CategoryIO, IOError("cannot read", nil).Category)
	assert.Equal(t, CategoryNetwork, NetworkError("down", nil).Category)
	assert.Equal(t, CategoryValidation, ValidationError("bad", nil).Category)
	assert.Equal(t, CategoryInternal, InternalError("bug", nil).Category)
	assert.Equal(t, ErrCodeSearchFailed, SearchError("fault", nil).Code)
}
