package executor

import (
	"bytes"
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/onflow/cachingqueryexecutor/config"
	"github.com/onflow/cachingqueryexecutor/tsquery"
)

// state is the Execution's internal state machine position. awaitingEither
// only applies in simultaneous mode; sequential mode moves directly from
// awaitingCache to awaitingDownstream.
type state int

const (
	stateAwaitingCache state = iota
	stateAwaitingDownstream
	stateAwaitingEither
	stateCompleted
)

// nowMillis is overridable in tests so TTL computation is deterministic.
var nowMillis = func() int64 { return timeNowUnixMilli() }

// Execution is one in-flight caching-query request. It owns up to two live
// subrequests (a cache fetch and a downstream query) and exposes a single
// Future that resolves exactly once. The state machine is serialized by a
// single mutex guarding completion, subrequest-start, cancellation and the
// owning Executor's outstanding-set removal callback.
type Execution struct {
	id  string
	cfg config.Config
	log zerolog.Logger

	plugin     CachePlugin
	codec      Codec
	downstream Downstream

	query tsquery.Query
	key   []byte

	future *future

	mu            sync.Mutex
	st            state
	cacheSub      Subscription
	downstreamSub Subscription
	completed     bool

	metrics  Collector
	onRemove func(*Execution)
}

// Future returns the caller-visible promise for this execution's result.
func (e *Execution) Future() Future { return e.future }

// start issues the cache fetch (and, in simultaneous mode, the downstream
// query) and attaches their result handlers. Called once, synchronously,
// from within Executor.ExecuteQuery before the Execution is returned to
// the caller.
func (e *Execution) start(ctx context.Context, span Span) {
	e.mu.Lock()
	if e.cfg.Simultaneous {
		e.st = stateAwaitingEither
		e.downstreamSub = e.downstream.ExecuteQuery(ctx, e.query, nil, e.onDownstreamResult(ctx))
	} else {
		e.st = stateAwaitingCache
	}
	e.cacheSub = e.plugin.Fetch(ctx, e.key, span, e.onCacheResult(ctx))
	e.mu.Unlock()
}

// onCacheResult builds the callback CachePlugin.Fetch invokes on this
// execution's cache subrequest. It is safe to invoke from any goroutine,
// including after the execution has already completed; late callbacks are
// discarded silently.
func (e *Execution) onCacheResult(ctx context.Context) func(CacheResult) {
	return func(res CacheResult) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if e.completed {
			return
		}
		e.cacheSub = nil

		switch {
		case res.Err != nil:
			e.metrics.CacheError()
			e.log.Warn().Err(&CacheError{Key: e.key, Err: res.Err}).Msg("cache fetch failed, falling through to downstream")
			e.cacheMissOrErrorLocked(ctx)

		case res.Value == nil:
			e.metrics.CacheMiss()
			e.cacheMissOrErrorLocked(ctx)

		default:
			result, decodeErr := e.codec.Deserialize(bytes.NewReader(res.Value))
			if decodeErr != nil {
				e.log.Warn().Err(&CacheError{Key: e.key, Err: decodeErr}).Msg("cache value failed to decode, treating as miss")
				e.metrics.CacheError()
				e.cacheMissOrErrorLocked(ctx)
				return
			}

			e.metrics.CacheHit()
			if e.downstreamSub != nil {
				// simultaneous mode, cache won: cancel the in-flight downstream
				// and never populate.
				sub := e.downstreamSub
				e.downstreamSub = nil
				e.mu.Unlock()
				sub.Cancel()
				e.mu.Lock()
			}
			e.completeLocked(result, nil)
		}
	}
}

// cacheMissOrErrorLocked handles a cache miss or cache error while mu is
// held: in sequential mode it starts the downstream query; in simultaneous
// mode the downstream query is already running, so this just narrows the
// state to mirror awaitingDownstream.
func (e *Execution) cacheMissOrErrorLocked(ctx context.Context) {
	if e.st == stateAwaitingEither {
		// downstream already in flight; nothing to start.
		return
	}

	e.st = stateAwaitingDownstream
	e.downstreamSub = e.downstream.ExecuteQuery(ctx, e.query, nil, e.onDownstreamResult(ctx))
}

// onDownstreamResult builds the callback Downstream.ExecuteQuery invokes
// on this execution's downstream subrequest.
func (e *Execution) onDownstreamResult(ctx context.Context) func(DownstreamResult) {
	return func(res DownstreamResult) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if e.completed {
			return
		}
		e.downstreamSub = nil

		if res.Err != nil {
			e.metrics.DownstreamError()
			e.completeLocked(nil, &DownstreamError{Err: res.Err})
			return
		}

		e.metrics.DownstreamSuccess()

		if e.cacheSub != nil {
			// simultaneous mode, downstream won: cancel the in-flight cache
			// fetch, then populate.
			sub := e.cacheSub
			e.cacheSub = nil
			e.mu.Unlock()
			sub.Cancel()
			e.mu.Lock()
		}

		e.populateLocked(res.Value)
		e.completeLocked(res.Value, nil)
	}
}

// populateLocked emits at most one plugin.Cache call for this execution,
// when expiration > 0 and serialization succeeds.
func (e *Execution) populateLocked(result tsquery.Result) {
	if e.cfg.Expiration <= 0 {
		return
	}

	ttl := computeTTL(e.cfg, e.query, nowMillis())
	if ttl <= 0 {
		return
	}

	var buf bytes.Buffer
	if err := e.codec.Serialize(&buf, result); err != nil {
		e.log.Warn().Err(err).Msg("failed to serialize result for cache populate, skipping")
		return
	}

	e.metrics.Populate()
	e.plugin.Cache(e.key, buf.Bytes(), ttl)
}

// completeLocked resolves the future and transitions to Completed. Must be
// called with mu held; it releases mu around onRemove since that call takes
// the Executor's lock, and locks are always acquired Executor before
// Execution, never the reverse.
func (e *Execution) completeLocked(result tsquery.Result, err error) {
	if e.completed {
		return
	}
	e.completed = true
	e.st = stateCompleted
	e.cacheSub = nil
	e.downstreamSub = nil

	e.future.complete(result, err)

	onRemove := e.onRemove
	e.mu.Unlock()
	if onRemove != nil {
		onRemove(e)
	}
	e.mu.Lock()
}

// Cancel idempotently terminates the execution: any live subrequests are
// cancelled, the future resolves with ErrCancelled, and the execution is
// removed from its Executor's outstanding set.
func (e *Execution) Cancel() {
	e.mu.Lock()
	if e.completed {
		e.mu.Unlock()
		return
	}

	cacheSub, downstreamSub := e.cacheSub, e.downstreamSub
	e.cacheSub, e.downstreamSub = nil, nil
	e.metrics.Cancelled()
	e.completeLocked(nil, ErrCancelled)
	e.mu.Unlock()

	if cacheSub != nil {
		cacheSub.Cancel()
	}
	if downstreamSub != nil {
		downstreamSub.Cancel()
	}
}
