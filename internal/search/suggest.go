package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/amansearch/internal/query"
)

// RerunFunc executes the original request again with the query text
// replaced, returning the new parse and its merged result.
type RerunFunc func(ctx context.Context, spec query.QuerySpec) (*CompiledQuery, *ExecResult, error)

// SuggestionResolver handles the zero-result branch: it asks the engine for
// a closer spelling and keeps it only if that spelling finds something.
type SuggestionResolver struct {
	client EngineClient
	logger *slog.Logger
}

// NewSuggestionResolver creates a resolver backed by client.
func NewSuggestionResolver(client EngineClient, logger *slog.Logger) *SuggestionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SuggestionResolver{client: client, logger: logger}
}

// Resolve returns the re-run result and its suggestion, or ok=false when
// there is nothing better to offer. Failures on this branch are logged and
// treated as "no suggestion"; the primary empty result stands.
func (r *SuggestionResolver) Resolve(ctx context.Context, spec query.QuerySpec, language string, indexes []string, rerun RerunFunc) (*CompiledQuery, *ExecResult, *Suggestion, bool) {
	text := spec.FullText()
	if strings.TrimSpace(text) == "" {
		return nil, nil, nil, false
	}

	sug, found, err := r.client.Suggest(ctx, text, language, indexes)
	if err != nil {
		r.logger.WarnContext(ctx, "suggest_failed",
			slog.String("text", text),
			slog.String("error", err.Error()))
		return nil, nil, nil, false
	}
	if !found || sug.Text == "" || strings.EqualFold(sug.Text, text) {
		return nil, nil, nil, false
	}

	// The suggestion replaces the free text; site filters are kept.
	respec := query.QuerySpec{
		Text:    sug.Text,
		Include: spec.Include,
		Exclude: spec.Exclude,
	}

	cq, res, err := rerun(ctx, respec)
	if err != nil {
		r.logger.WarnContext(ctx, "suggest_rerun_failed",
			slog.String("suggestion", sug.Text),
			slog.String("error", err.Error()))
		return nil, nil, nil, false
	}
	if res == nil || res.Total == 0 {
		r.logger.DebugContext(ctx, "suggestion_discarded",
			slog.String("suggestion", sug.Text))
		return nil, nil, nil, false
	}

	if sug.Highlighted == "" {
		sug.Highlighted = sug.Text
	}
	return cq, res, &sug, true
}
