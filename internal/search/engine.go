package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
	"github.com/Aman-CERP/amansearch/internal/query"
	"github.com/Aman-CERP/amansearch/internal/telemetry"
)

// Searcher is the request/response surface callers depend on.
type Searcher interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// Ensure Engine implements Searcher.
var _ Searcher = (*Engine)(nil)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine runs the whole search pipeline: validate, resolve handles, parse,
// compile, execute, normalize, aggregate and, on zero results, suggest.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	resolver   IndexResolver
	client     EngineClient
	config     EngineConfig
	compiler   *Compiler
	executor   *Executor
	normalizer *Normalizer
	aggs       *AggregationBuilder
	suggester  *SuggestionResolver
	logger     *slog.Logger
	reporter   amerrors.Reporter
	metrics    *telemetry.QueryMetrics
	now        func() time.Time
	execOpts   []ExecutorOption
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithLogger sets the logger for pipeline diagnostics.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithReporter sets the error-tracking collaborator notified on engine
// failures.
func WithReporter(r amerrors.Reporter) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithMetrics sets an optional query metrics collector.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock overrides the clock date buckets are computed against.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithExecutorOptions passes options through to the executor, e.g.
// WithCircuitBreaker or WithRetry.
func WithExecutorOptions(opts ...ExecutorOption) EngineOption {
	return func(e *Engine) {
		e.execOpts = append(e.execOpts, opts...)
	}
}

// NewEngine creates a search engine over the given collaborators.
func NewEngine(
	resolver IndexResolver,
	client EngineClient,
	analyzer Analyzer,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if resolver == nil {
		return nil, fmt.Errorf("%w: index resolver is required", ErrNilDependency)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: engine client is required", ErrNilDependency)
	}
	if analyzer == nil {
		return nil, fmt.Errorf("%w: analyzer is required", ErrNilDependency)
	}

	e := &Engine{
		resolver: resolver,
		client:   client,
		config:   config,
		logger:   slog.Default(),
		reporter: amerrors.NopReporter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.compiler = NewCompiler(config, analyzer)
	e.executor = NewExecutor(client, config.Timeout, config.MaxConcurrency, e.execOpts...)
	e.normalizer = NewNormalizer(config)
	e.aggs = NewAggregationBuilder(config.Aggregation)
	e.suggester = NewSuggestionResolver(client, e.logger)
	return e, nil
}

// Search executes req. Validation and configuration problems (empty handles,
// negative window, unknown collection) are returned as errors. Engine
// failures are not: they are logged, reported, and answered with an empty
// response.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	req, err := prepareRequest(req, e.config)
	if err != nil {
		return nil, err
	}

	indexes, err := e.resolve(ctx, req.Handles)
	if err != nil {
		return nil, err
	}

	spec := query.Parse(req.Query)
	now := e.now()
	cq := e.compiler.Compile(req, spec, now)

	res, err := e.executor.Execute(ctx, cq, indexes)
	if err != nil {
		e.fail(ctx, req, cq, indexes, err)
		e.record(req, spec, nil, true, time.Since(start))
		return emptyResponse(), nil
	}

	resp := e.respond(cq, res)

	if res.Total == 0 && spec.HasText() && e.config.Suggest {
		rerun := func(ctx context.Context, respec query.QuerySpec) (*CompiledQuery, *ExecResult, error) {
			cq2 := e.compiler.Compile(req, respec, now)
			res2, err := e.executor.Execute(ctx, cq2, indexes)
			return cq2, res2, err
		}
		if cq2, res2, sug, ok := e.suggester.Resolve(ctx, spec, req.Language, indexes, rerun); ok {
			resp = e.respond(cq2, res2)
			resp.Suggestion = sug
		}
	}

	e.logger.DebugContext(ctx, "search_completed",
		slog.String("query", req.Query),
		slog.Any("indices", indexes),
		slog.Int("total", resp.Total),
		slog.Int("returned", len(resp.Results)),
		slog.Bool("suggested", resp.Suggestion != nil),
		slog.Duration("latency", time.Since(start)))

	e.record(req, spec, resp, false, time.Since(start))
	return resp, nil
}

// resolve maps every handle to its physical indexes, keeping first-seen
// order and dropping duplicates.
func (e *Engine) resolve(ctx context.Context, handles []string) ([]string, error) {
	seen := make(map[string]struct{})
	var indexes []string

	for _, h := range handles {
		resolved, err := e.resolver.Resolve(ctx, h)
		if err != nil {
			var ae *amerrors.AmanError
			if errors.As(err, &ae) {
				return nil, err
			}
			return nil, amerrors.ConfigError(fmt.Sprintf("cannot resolve collection %q", h), err)
		}
		if len(resolved) == 0 {
			return nil, amerrors.UnknownCollectionError(h)
		}
		for _, idx := range resolved {
			if _, ok := seen[idx]; ok {
				continue
			}
			seen[idx] = struct{}{}
			indexes = append(indexes, idx)
		}
	}
	return indexes, nil
}

// respond builds the caller-facing response from a merged result.
func (e *Engine) respond(cq *CompiledQuery, res *ExecResult) *Response {
	resp := &Response{
		Total:   res.Total,
		Results: e.normalizer.NormalizeAll(res.Hits, cq.Fields(), cq.Spec()),
	}
	if cq.Spec().HasText() {
		resp.Aggregations = e.aggs.Buckets(cq.Aggregations(), res.Facets)
	}
	return resp
}

// fail logs the full query and notifies the reporter.
func (e *Engine) fail(ctx context.Context, req Request, cq *CompiledQuery, indexes []string, err error) {
	queryJSON, jerr := json.Marshal(cq)
	if jerr != nil {
		queryJSON = []byte(fmt.Sprintf("%q", req.Query))
	}

	e.logger.ErrorContext(ctx, "search_failed",
		slog.String("error", err.Error()),
		slog.String("code", amerrors.GetCode(err)),
		slog.Any("indices", indexes),
		slog.String("query", string(queryJSON)))

	e.reporter.Notify(ctx, err, amerrors.ReportContext{
		Indices: indexes,
		Handles: req.Handles,
		Query:   req.Query,
	})
}

func (e *Engine) record(req Request, spec query.QuerySpec, resp *Response, failed bool, latency time.Duration) {
	if e.metrics == nil {
		return
	}

	event := telemetry.QueryEvent{
		Query:     req.Query,
		QueryType: telemetry.ClassifyQuery(spec.HasText(), len(spec.Phrases) > 0, len(spec.Include)+len(spec.Exclude) > 0),
		Handles:   req.Handles,
		Failed:    failed,
		Latency:   latency,
		Timestamp: time.Now(),
	}
	if resp != nil {
		event.Total = resp.Total
		event.Suggested = resp.Suggestion != nil
	}
	e.metrics.Record(event)
}
