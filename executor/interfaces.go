package executor

import (
	"context"
	"io"

	"github.com/onflow/cachingqueryexecutor/tsquery"
)

// Span is an opaque tracing handle supplied by the caller. Tracing spans
// are a collaborator of the broader execution graph, not a core concern;
// the executor only ever forwards this value to CachePlugin.Fetch.
type Span any

// Subscription is a handle to an in-flight asynchronous subrequest. Cancel
// is idempotent and must be safe to call after the subrequest has already
// delivered its terminal callback.
type Subscription interface {
	Cancel()
}

// CacheResult is delivered exactly once to the callback passed to
// CachePlugin.Fetch. Err nil and Value nil means "miss". Err non-nil is a
// non-fatal cache failure; the execution falls through to downstream.
type CacheResult struct {
	Value []byte
	Err   error
}

// CachePlugin is the external, pluggable cache backend. Implementations
// fetch and store opaque byte blobs keyed by opaque byte keys. Both
// operations are asynchronous: Fetch invokes cb exactly once, from any
// goroutine, unless the returned Subscription is cancelled first (in which
// case cb may still fire late and must be tolerated by the caller).
type CachePlugin interface {
	// Fetch asynchronously looks up key. cb is invoked exactly once with
	// either a hit (Value set), a miss (Value and Err both nil), or a
	// non-fatal error (Err set).
	Fetch(ctx context.Context, key []byte, span Span, cb func(CacheResult)) Subscription

	// Cache asynchronously stores value under key with the given TTL.
	// Failures are not surfaced to any execution; implementations should
	// log them internally.
	Cache(key []byte, value []byte, ttl int64)
}

// DownstreamResult is delivered exactly once to the callback passed to
// Downstream.ExecuteQuery.
type DownstreamResult struct {
	Value tsquery.Result
	Err   error
}

// Downstream is the next executor in the query execution graph. The core
// never inspects overrideConfig; it always passes nil.
type Downstream interface {
	ExecuteQuery(ctx context.Context, query tsquery.Query, overrideConfig any, cb func(DownstreamResult)) Subscription
}

// Codec serializes and deserializes a tsquery.Result to/from bytes. A
// Codec must round-trip: Deserialize(Serialize(r)) is semantically equal
// to r.
type Codec interface {
	Serialize(w io.Writer, result tsquery.Result) error
	Deserialize(r io.Reader) (tsquery.Result, error)
}

// KeyGenerator deterministically derives a cache key from a query and the
// context it runs in. Equal (query, context-identity) pairs must produce
// equal keys.
type KeyGenerator interface {
	Generate(ctx context.Context, query tsquery.Query) ([]byte, error)
}

// Registry resolves named collaborators at construction time. The caller
// (graph wiring) owns the registry; the executor only reads from it once,
// during NewExecutor.
type Registry interface {
	Plugin(name string) (CachePlugin, bool)
	Codec(name string) (Codec, bool)
}

// loggerFieldExecutorID is the structured-logging field name used across
// this package.
const loggerFieldExecutorID = "executor_id"
