package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
)

// fakeClient serves canned per-index results.
type fakeClient struct {
	mu       sync.Mutex
	results  map[string]*bleve.SearchResult
	errs     map[string]error
	block    bool
	calls    int32
	requests map[string]*bleve.SearchRequest

	suggestion Suggestion
	suggestOK  bool
	suggestErr error
}

func (f *fakeClient) Search(ctx context.Context, index string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	atomic.AddInt32(&f.calls, 1)

	f.mu.Lock()
	if f.requests == nil {
		f.requests = make(map[string]*bleve.SearchRequest)
	}
	f.requests[index] = req
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.errs[index]; err != nil {
		return nil, err
	}
	if res, ok := f.results[index]; ok {
		return res, nil
	}
	return &bleve.SearchResult{}, nil
}

func (f *fakeClient) Suggest(context.Context, string, string, []string) (Suggestion, bool, error) {
	return f.suggestion, f.suggestOK, f.suggestErr
}

func result(total uint64, hits ...*bsearch.DocumentMatch) *bleve.SearchResult {
	return &bleve.SearchResult{Total: total, Hits: hits}
}

func doc(id string, score float64) *bsearch.DocumentMatch {
	return &bsearch.DocumentMatch{ID: id, Score: score, Fields: map[string]interface{}{FieldTitle: id}}
}

// =============================================================================
// Merge and pagination
// =============================================================================

func TestExecutor_MergesIndexes(t *testing.T) {
	// Given: two indexes with interleaving scores
	client := &fakeClient{results: map[string]*bleve.SearchResult{
		"a": result(3, doc("a1", 3), doc("a2", 1), doc("a3", 0.5)),
		"b": result(2, doc("b1", 2), doc("b2", 0.7)),
	}}
	x := NewExecutor(client, time.Second, 2)
	cq := compileFor(t, Request{Handles: []string{"docs"}, Query: "budget", Size: 3, Offset: 1})

	// When: executing across both
	res, err := x.Execute(context.Background(), cq, []string{"a", "b"})

	// Then: totals are summed and the window applies to the merged ranking
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, []string{"b1", "a2", "b2"}, ids(res.Hits))

	// And: every index was asked for at least the whole window
	assert.Equal(t, DefaultConfig().Ranking.RescoreWindow, client.requests["a"].Size)
	assert.Equal(t, DefaultConfig().Ranking.RescoreWindow, client.requests["b"].Size)
	assert.NotSame(t, client.requests["a"], client.requests["b"])
}

func TestExecutor_FacetsSummed(t *testing.T) {
	resA := result(1, doc("a1", 1))
	resA.Facets = bsearch.FacetResults{
		FieldChanged: {Field: FieldChanged, DateRanges: []*bsearch.DateRangeFacet{{Name: "Last Week", Count: 1}}},
	}
	resB := result(2, doc("b1", 1))
	resB.Facets = bsearch.FacetResults{
		FieldChanged: {Field: FieldChanged, DateRanges: []*bsearch.DateRangeFacet{{Name: "Last Week", Count: 2}, {Name: "Last Year", Count: 0}}},
	}
	client := &fakeClient{results: map[string]*bleve.SearchResult{"a": resA, "b": resB}}
	x := NewExecutor(client, time.Second, 2)

	res, err := x.Execute(context.Background(), compileFor(t, Request{Handles: []string{"docs"}, Query: "x", Size: 10}), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Facets[FieldChanged]["Last Week"])
	assert.NotContains(t, res.Facets[FieldChanged], "Last Year")
}

func TestExecutor_EmptyWindow(t *testing.T) {
	client := &fakeClient{results: map[string]*bleve.SearchResult{"a": result(1, doc("a1", 1))}}
	x := NewExecutor(client, time.Second, 1)

	res, err := x.Execute(context.Background(), compileFor(t, Request{Handles: []string{"docs"}, Size: 10, Offset: 5}), []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Total)
	assert.NotNil(t, res.Hits)
	assert.Empty(t, res.Hits)
}

func TestExecutor_NoIndexes(t *testing.T) {
	x := NewExecutor(&fakeClient{}, time.Second, 1)

	_, err := x.Execute(context.Background(), compileFor(t, Request{Handles: []string{"docs"}}), nil)
	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeInternal, amerrors.GetCode(err))
}

// =============================================================================
// Failure classification
// =============================================================================

func TestExecutor_FailClosed(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"engine fault", errors.New("shard exploded"), amerrors.ErrCodeSearchFailed},
		{"unavailable", amerrors.NetworkError("engine unreachable", nil), amerrors.ErrCodeNetworkUnavailable},
		{"deadline", context.DeadlineExceeded, amerrors.ErrCodeNetworkTimeout},
		{"coded error kept", amerrors.New(amerrors.ErrCodeCorruptIndex, "bad segment", nil), amerrors.ErrCodeCorruptIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: one healthy and one failing index
			client := &fakeClient{
				results: map[string]*bleve.SearchResult{"good": result(1, doc("g1", 1))},
				errs:    map[string]error{"bad": tt.err},
			}
			x := NewExecutor(client, time.Second, 2)

			// When: executing across both
			res, err := x.Execute(context.Background(), compileFor(t, Request{Handles: []string{"docs"}, Query: "x", Size: 10}), []string{"good", "bad"})

			// Then: no partial result, and the error is classified
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.wantCode, amerrors.GetCode(err))
		})
	}
}

func TestExecutor_Timeout(t *testing.T) {
	client := &fakeClient{block: true}
	x := NewExecutor(client, 50*time.Millisecond, 1)

	start := time.Now()
	_, err := x.Execute(context.Background(), compileFor(t, Request{Handles: []string{"docs"}, Query: "x"}), []string{"a"})

	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeNetworkTimeout, amerrors.GetCode(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecutor_CircuitBreakerOpens(t *testing.T) {
	client := &fakeClient{errs: map[string]error{"a": errors.New("boom")}}
	cb := amerrors.NewCircuitBreaker("engine", amerrors.WithMaxFailures(1), amerrors.WithResetTimeout(time.Hour))
	x := NewExecutor(client, time.Second, 1, WithCircuitBreaker(cb))
	cq := compileFor(t, Request{Handles: []string{"docs"}, Query: "x"})

	_, err := x.Execute(context.Background(), cq, []string{"a"})
	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeSearchFailed, amerrors.GetCode(err))

	// Once open, the engine is not called at all
	before := atomic.LoadInt32(&client.calls)
	_, err = x.Execute(context.Background(), cq, []string{"a"})
	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeNetworkUnavailable, amerrors.GetCode(err))
	assert.Equal(t, before, atomic.LoadInt32(&client.calls))
}

// flakyClient fails its first call with a retryable error.
type flakyClient struct {
	fakeClient
	failed atomic.Bool
}

func (f *flakyClient) Search(ctx context.Context, index string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	if f.failed.CompareAndSwap(false, true) {
		return nil, amerrors.NetworkError("connection reset", nil)
	}
	return result(1, doc("ok", 1)), nil
}

func TestExecutor_RetriesRetryableErrors(t *testing.T) {
	client := &flakyClient{}
	retry := amerrors.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, ShouldRetry: amerrors.IsRetryable}
	x := NewExecutor(client, time.Second, 1, WithRetry(retry))

	res, err := x.Execute(context.Background(), compileFor(t, Request{Handles: []string{"docs"}, Query: "x", Size: 5}), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

// panickyClient panics inside the engine call for one index.
type panickyClient struct {
	fakeClient
	index string
}

func (p *panickyClient) Search(ctx context.Context, index string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	if index == p.index {
		atomic.AddInt32(&p.calls, 1)
		panic("runtime error: makeslice: len out of range")
	}
	return p.fakeClient.Search(ctx, index, req)
}

func TestExecutor_EnginePanicBecomesSearchFault(t *testing.T) {
	// Given: an engine that panics on one of two indexes
	client := &panickyClient{
		fakeClient: fakeClient{results: map[string]*bleve.SearchResult{"good": result(1, doc("g1", 1))}},
		index:      "bad",
	}
	x := NewExecutor(client, time.Second, 2)

	// When: executing across both
	res, err := x.Execute(context.Background(), compileFor(t, Request{Handles: []string{"docs"}, Query: "x", Size: 10}), []string{"good", "bad"})

	// Then: the panic is reported as an engine fault instead of crashing
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, amerrors.ErrCodeSearchFailed, amerrors.GetCode(err))
	assert.Contains(t, err.Error(), "engine panic")
	assert.Contains(t, err.Error(), "makeslice")
}

func TestExecutor_EnginePanicCountsAgainstBreaker(t *testing.T) {
	client := &panickyClient{index: "a"}
	cb := amerrors.NewCircuitBreaker("engine", amerrors.WithMaxFailures(2), amerrors.WithResetTimeout(time.Hour))
	x := NewExecutor(client, time.Second, 1, WithCircuitBreaker(cb))
	cq := compileFor(t, Request{Handles: []string{"docs"}, Query: "x"})

	for i := 0; i < 2; i++ {
		_, err := x.Execute(context.Background(), cq, []string{"a"})
		assert.Equal(t, amerrors.ErrCodeSearchFailed, amerrors.GetCode(err))
	}

	assert.Equal(t, amerrors.StateOpen, cb.State())
	_, err := x.Execute(context.Background(), cq, []string{"a"})
	assert.Equal(t, amerrors.ErrCodeNetworkUnavailable, amerrors.GetCode(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.calls))
}

// =============================================================================
// Click bonus
// =============================================================================

func clicked(id string, score float64, clicks int) *bsearch.DocumentMatch {
	dm := doc(id, score)
	dm.Fields[FieldClickCount] = float64(clicks)
	return dm
}

func TestExecutor_ClickBonusReordersCloseScores(t *testing.T) {
	// Given: close engine scores where the lower one is far more popular
	client := &fakeClient{results: map[string]*bleve.SearchResult{
		"a": result(3, clicked("quiet", 1.00, 0), clicked("popular", 0.95, 700), clicked("low", 0.05, 5000)),
	}}
	x := NewExecutor(client, time.Second, 1)

	// When: executing a text query
	res, err := x.Execute(context.Background(), compileFor(t, Request{Handles: []string{"docs"}, Query: "budget", Size: 3}), []string{"a"})

	// Then: the bonus lifts the popular hit, but cannot overturn a wide gap
	require.NoError(t, err)
	assert.Equal(t, []string{"popular", "quiet", "low"}, ids(res.Hits))
}

func TestExecutor_ClickBonusIgnoredWithoutText(t *testing.T) {
	client := &fakeClient{results: map[string]*bleve.SearchResult{
		"a": result(2, clicked("first", 1, 0), clicked("second", 1, 5000)),
	}}
	x := NewExecutor(client, time.Second, 1)

	res, err := x.Execute(context.Background(), compileFor(t, Request{Handles: []string{"docs"}, Size: 2}), []string{"a"})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ids(res.Hits))
}

func TestNewExecutor_Defaults(t *testing.T) {
	x := NewExecutor(&fakeClient{}, 0, -1)
	assert.Equal(t, DefaultConfig().Timeout, x.timeout)
	assert.Equal(t, DefaultConfig().MaxConcurrency, x.maxConcurrency)
}
