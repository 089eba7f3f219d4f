package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/onflow/cachingqueryexecutor/config"
	"github.com/onflow/cachingqueryexecutor/executor/executortest"
	"github.com/onflow/cachingqueryexecutor/tsquery"
)

type harness struct {
	t          *testing.T
	ex         *Executor
	plugin     *executortest.CachePlugin
	downstream *executortest.Downstream
	codec      *executortest.Codec
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()

	plugin := executortest.NewCachePlugin()
	downstream := executortest.NewDownstream()
	codec := &executortest.Codec{}

	reg := executortest.NewRegistry()
	reg.Plugins["mem"] = plugin
	reg.Codecs["cbor"] = codec

	node := &Node{DefaultConfig: cfg, PluginName: "mem", CodecName: "cbor"}

	ex, err := NewExecutor(zerolog.Nop(), NoopCollector{}, node, reg, downstream, &executortest.KeyGenerator{})
	require.NoError(t, err)

	return &harness{t: t, ex: ex, plugin: plugin, downstream: downstream, codec: codec}
}

func waitFuture(t *testing.T, e *Execution) (tsquery.Result, error) {
	t.Helper()
	select {
	case <-e.Future().Done():
	case <-time.After(time.Second):
		t.Fatal("future did not resolve in time")
	}
	return e.Future().Wait()
}

// Scenario 1: cache miss, downstream success (sequential).
func TestExecution_CacheMissDownstreamSuccess(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	h.plugin.ResolveFetch(CacheResult{})
	h.downstream.ResolveQuery(DownstreamResult{Value: executortest.NewResult("r1")})

	result, err := waitFuture(t, e)
	require.NoError(t, err)
	require.Equal(t, executortest.NewResult("r1"), result)
	require.Equal(t, 1, h.downstream.CallCount())
	require.Equal(t, 1, h.plugin.CacheCalls())
	require.False(t, h.plugin.FetchSubscription().Cancelled())
	require.False(t, h.downstream.Subscription().Cancelled())
}

// Scenario 2: cache hit.
func TestExecution_CacheHit(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	h.plugin.ResolveFetch(CacheResult{Value: []byte("r1")})

	result, err := waitFuture(t, e)
	require.NoError(t, err)
	require.Equal(t, executortest.NewResult("r1"), result)
	require.Equal(t, 0, h.downstream.CallCount())
	require.Equal(t, 0, h.plugin.CacheCalls())
}

// Scenario 3: cache miss with expiration=0.
func TestExecution_CacheMissNoExpiration(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(0).MaxExpiration(120000).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	h.plugin.ResolveFetch(CacheResult{})
	h.downstream.ResolveQuery(DownstreamResult{Value: executortest.NewResult("r1")})

	result, err := waitFuture(t, e)
	require.NoError(t, err)
	require.Equal(t, executortest.NewResult("r1"), result)
	require.Equal(t, 0, h.plugin.CacheCalls())
}

// Scenario 4: simultaneous, cache wins.
func TestExecution_Simultaneous_CacheWins(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).Simultaneous(true).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)
	require.Equal(t, 1, h.downstream.CallCount())

	h.plugin.ResolveFetch(CacheResult{Value: []byte("r1")})

	result, err := waitFuture(t, e)
	require.NoError(t, err)
	require.Equal(t, executortest.NewResult("r1"), result)
	require.Equal(t, 0, h.plugin.CacheCalls())
	require.True(t, h.downstream.Subscription().Cancelled())
}

// Scenario 5: simultaneous, downstream wins.
func TestExecution_Simultaneous_DownstreamWins(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).Simultaneous(true).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	h.downstream.ResolveQuery(DownstreamResult{Value: executortest.NewResult("r1")})

	result, err := waitFuture(t, e)
	require.NoError(t, err)
	require.Equal(t, executortest.NewResult("r1"), result)
	require.Equal(t, 1, h.plugin.CacheCalls())
	require.True(t, h.plugin.FetchSubscription().Cancelled())
}

// Scenario 6: cache error, downstream success (sequential).
func TestExecution_CacheErrorDownstreamSuccess(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	h.plugin.ResolveFetch(CacheResult{Err: errors.New("boom")})
	h.downstream.ResolveQuery(DownstreamResult{Value: executortest.NewResult("r1")})

	result, err := waitFuture(t, e)
	require.NoError(t, err)
	require.Equal(t, executortest.NewResult("r1"), result)
	require.Equal(t, 1, h.plugin.CacheCalls())
}

// Scenario 7: cache miss, downstream error.
func TestExecution_CacheMissDownstreamError(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	downstreamErr := errors.New("downstream boom")
	h.plugin.ResolveFetch(CacheResult{})
	h.downstream.ResolveQuery(DownstreamResult{Err: downstreamErr})

	_, err = waitFuture(t, e)
	require.Error(t, err)
	var de *DownstreamError
	require.ErrorAs(t, err, &de)
	require.ErrorIs(t, err, downstreamErr)
	require.Equal(t, 0, h.plugin.CacheCalls())
}

// A cache hit whose bytes fail to decode is treated like a miss: the
// execution falls through to downstream instead of failing outright.
func TestExecution_CacheHitDecodeFailureFallsThroughToDownstream(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Build())
	h.codec.FailDeserialize = true
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	h.plugin.ResolveFetch(CacheResult{Value: []byte("corrupt")})
	h.downstream.ResolveQuery(DownstreamResult{Value: executortest.NewResult("r1")})

	result, err := waitFuture(t, e)
	require.NoError(t, err)
	require.Equal(t, executortest.NewResult("r1"), result)
	require.Equal(t, 1, h.downstream.CallCount())
}

// A downstream result that fails to serialize for cache populate is
// swallowed: the execution still resolves successfully, it just never
// calls Cache.
func TestExecution_PopulateSerializeFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Build())
	h.codec.FailSerialize = true
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	h.plugin.ResolveFetch(CacheResult{})
	h.downstream.ResolveQuery(DownstreamResult{Value: executortest.NewResult("r1")})

	result, err := waitFuture(t, e)
	require.NoError(t, err)
	require.Equal(t, executortest.NewResult("r1"), result)
	require.Equal(t, 0, h.plugin.CacheCalls())
}

// Scenario 8: cancel while awaiting cache.
func TestExecution_CancelWhileAwaitingCache(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	e.Cancel()

	_, err = waitFuture(t, e)
	require.ErrorIs(t, err, ErrCancelled)
	require.True(t, h.plugin.FetchSubscription().Cancelled())
	require.Equal(t, 0, h.downstream.CallCount())
}

// Scenario 9: cancel while awaiting downstream (sequential).
func TestExecution_CancelWhileAwaitingDownstream(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	h.plugin.ResolveFetch(CacheResult{})
	e.Cancel()

	_, err = waitFuture(t, e)
	require.ErrorIs(t, err, ErrCancelled)
	require.True(t, h.downstream.Subscription().Cancelled())
	require.Equal(t, 0, h.plugin.CacheCalls())
}

// TestExecution_IdempotentCancel checks that multiple cancel calls produce
// a single terminal state and a single cancellation error.
func TestExecution_IdempotentCancel(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	e.Cancel()
	e.Cancel()

	_, err = waitFuture(t, e)
	require.ErrorIs(t, err, ErrCancelled)
}

// TestExecution_LateCallbackAfterCompletionIsDiscarded checks that a
// collaborator callback arriving after the execution has already completed
// has no effect on the already-resolved future.
func TestExecution_LateCallbackAfterCompletionIsDiscarded(t *testing.T) {
	h := newHarness(t, config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Simultaneous(true).Build())
	e, err := h.ex.ExecuteQuery(context.Background(), tsquery.NewQuery("q1", 0, 1000, nil), nil)
	require.NoError(t, err)

	h.plugin.ResolveFetch(CacheResult{Value: []byte("r1")})
	result, err := waitFuture(t, e)
	require.NoError(t, err)

	// The cache won, so the downstream query was cancelled; its callback
	// still fires late here and must be discarded. Cancel after completion
	// must also be a safe no-op.
	h.downstream.ResolveQuery(DownstreamResult{Value: executortest.NewResult("r2")})
	e.Cancel()
	resultAfter, errAfter := e.Future().Wait()
	require.Equal(t, result, resultAfter)
	require.Equal(t, err, errAfter)
	require.Equal(t, 0, h.plugin.CacheCalls())
}
