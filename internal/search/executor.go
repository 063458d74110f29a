package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"golang.org/x/sync/errgroup"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
)

// EngineClient is the full-text engine capability the pipeline runs on.
type EngineClient interface {
	// Search runs one request against one physical index.
	Search(ctx context.Context, index string, req *bleve.SearchRequest) (*bleve.SearchResult, error)

	// Suggest returns the closest spelling of text found in indexes, if any.
	Suggest(ctx context.Context, text, language string, indexes []string) (Suggestion, bool, error)
}

// IndexResolver maps a logical collection handle to physical indexes.
type IndexResolver interface {
	Resolve(ctx context.Context, handle string) ([]string, error)
}

// ExecResult is the merged outcome of one compiled query.
type ExecResult struct {
	// Total is the summed match count across all indexes.
	Total int

	// Hits is the merged, ranked and windowed hit list.
	Hits []Hit

	// Facets holds the summed facet counts.
	Facets FacetCounts
}

// Executor fans a compiled query out to every physical index and gathers
// the results into one ranked list. Any sub-query failure fails the whole
// call; partial results are never returned.
type Executor struct {
	client         EngineClient
	timeout        time.Duration
	maxConcurrency int
	breaker        *amerrors.CircuitBreaker
	retry          amerrors.RetryConfig
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCircuitBreaker guards engine calls with cb.
func WithCircuitBreaker(cb *amerrors.CircuitBreaker) ExecutorOption {
	return func(x *Executor) {
		x.breaker = cb
	}
}

// WithRetry sets the retry policy for retryable engine errors.
func WithRetry(cfg amerrors.RetryConfig) ExecutorOption {
	return func(x *Executor) {
		x.retry = cfg
	}
}

// NewExecutor creates an executor. Timeout and concurrency fall back to the
// DefaultConfig values when not positive.
func NewExecutor(client EngineClient, timeout time.Duration, maxConcurrency int, opts ...ExecutorOption) *Executor {
	defaults := DefaultConfig()
	if timeout <= 0 {
		timeout = defaults.Timeout
	}
	if maxConcurrency <= 0 {
		maxConcurrency = defaults.MaxConcurrency
	}

	x := &Executor{
		client:         client,
		timeout:        timeout,
		maxConcurrency: maxConcurrency,
		retry:          amerrors.RetryConfig{MaxRetries: 0, ShouldRetry: amerrors.IsRetryable},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs cq on every index concurrently and merges the results.
// Returned errors are always *AmanError values classifying the failure.
func (x *Executor) Execute(ctx context.Context, cq *CompiledQuery, indexes []string) (*ExecResult, error) {
	if len(indexes) == 0 {
		return nil, amerrors.New(amerrors.ErrCodeInternal, "no indexes to search", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	results := make([]*bleve.SearchResult, len(indexes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.maxConcurrency)
	for i, index := range indexes {
		g.Go(func() error {
			res, err := x.searchOne(gctx, index, cq.SearchRequest())
			if err != nil {
				return fmt.Errorf("index %s: %w", index, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, classify(err)
	}

	return gather(cq, results), nil
}

func (x *Executor) searchOne(ctx context.Context, index string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return amerrors.RetryWithResult(ctx, x.retry, func() (*bleve.SearchResult, error) {
		if x.breaker == nil {
			return x.search(ctx, index, req)
		}

		var res *bleve.SearchResult
		err := x.breaker.Execute(func() error {
			var searchErr error
			res, searchErr = x.search(ctx, index, req)
			return searchErr
		})
		return res, err
	})
}

// search calls the engine, turning a panic into an engine fault so it takes
// the degrade path and counts against the circuit breaker.
func (x *Executor) search(ctx context.Context, index string, req *bleve.SearchRequest) (res *bleve.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = amerrors.SearchError(fmt.Sprintf("engine panic: %v", r), nil).WithDetail("index", index)
		}
	}()
	return x.client.Search(ctx, index, req)
}

// classify maps a fan-out failure onto the engine error kinds: timeouts and
// an open circuit are "unavailable", everything else is an engine fault.
func classify(err error) error {
	var ae *amerrors.AmanError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return amerrors.New(amerrors.ErrCodeNetworkTimeout, "search engine timed out", err)
	case errors.Is(err, amerrors.ErrCircuitOpen):
		return amerrors.NetworkError("search engine circuit is open", err)
	case errors.As(err, &ae):
		return amerrors.New(ae.Code, err.Error(), err)
	default:
		return amerrors.SearchError(err.Error(), err)
	}
}

// gather merges per-index results in index order.
func gather(cq *CompiledQuery, results []*bleve.SearchResult) *ExecResult {
	out := &ExecResult{Facets: make(FacetCounts)}

	var hits []Hit
	for pos, res := range results {
		if res == nil {
			continue
		}
		out.Total += int(res.Total)
		for rank, dm := range res.Hits {
			h := Hit{DocumentMatch: dm, indexPos: pos, rank: rank}
			if cq.rescore {
				clicks, _ := dm.Fields[FieldClickCount].(float64)
				h.bonus = cq.ranking.ClickBonus(clicks)
			}
			hits = append(hits, h)
		}
		for field, fr := range res.Facets {
			if fr == nil {
				continue
			}
			if fr.Terms != nil {
				for _, tf := range fr.Terms.Terms() {
					out.Facets.Add(field, tf.Term, tf.Count)
				}
			}
			for _, dr := range fr.DateRanges {
				out.Facets.Add(field, dr.Name, dr.Count)
			}
		}
	}

	offset, size := cq.Window()
	out.Hits = paginate(rankHits(hits, cq.SortByDate()), offset, size)
	return out
}
