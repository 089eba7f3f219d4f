package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/onflow/cachingqueryexecutor/config"
	"github.com/onflow/cachingqueryexecutor/tsquery"
)

// Node is the subset of the broader execution graph's node descriptor this
// package needs at construction time: a default Config plus the names used
// to resolve this node's plugin and codec from a Registry. The rest of the
// graph node (JSON shape, wiring to siblings, tracing) is a collaborator
// outside this package.
type Node struct {
	DefaultConfig config.Config
	PluginName    string
	CodecName     string
}

// Executor is a factory that constructs per-request Executions, tracks
// outstanding requests, and performs orderly shutdown. It is the
// long-lived object a query execution graph holds one of per caching node.
type Executor struct {
	id         string
	cfg        config.Config
	plugin     CachePlugin
	codec      Codec
	keyGen     KeyGenerator
	downstream Downstream
	log        zerolog.Logger
	metrics    Collector

	mu          sync.Mutex
	closed      bool
	outstanding map[*Execution]struct{}
}

// NewExecutor validates its arguments and returns a ready-to-use Executor.
// Every failure is wrapped in ErrInvalidArgument.
func NewExecutor(
	log zerolog.Logger,
	metrics Collector,
	node *Node,
	registry Registry,
	downstream Downstream,
	keyGen KeyGenerator,
) (*Executor, error) {
	if node == nil {
		return nil, invalidArg("caching query executor node is missing")
	}
	if node.DefaultConfig == (config.Config{}) {
		return nil, invalidArg("caching query executor node has no default config")
	}
	if err := node.DefaultConfig.Validate(); err != nil {
		return nil, invalidArg(err.Error())
	}
	if downstream == nil {
		return nil, invalidArg("downstream executor lookup yielded nothing")
	}
	if registry == nil {
		return nil, invalidArg("collaborator registry is missing")
	}

	plugin, ok := registry.Plugin(node.PluginName)
	if !ok {
		return nil, invalidArg(fmt.Sprintf("cache plugin %q lookup yielded nothing", node.PluginName))
	}
	codec, ok := registry.Codec(node.CodecName)
	if !ok {
		return nil, invalidArg(fmt.Sprintf("codec %q lookup yielded nothing", node.CodecName))
	}
	if keyGen == nil {
		return nil, invalidArg("key generator is missing")
	}
	if metrics == nil {
		metrics = NoopCollector{}
	}

	return &Executor{
		id:          node.DefaultConfig.ExecutorID,
		cfg:         node.DefaultConfig,
		plugin:      plugin,
		codec:       codec,
		keyGen:      keyGen,
		downstream:  downstream,
		log:         log.With().Str("component", "caching_query_executor").Str(loggerFieldExecutorID, node.DefaultConfig.ExecutorID).Logger(),
		metrics:     metrics,
		outstanding: make(map[*Execution]struct{}),
	}, nil
}

// ExecuteQuery begins a new caching-query execution and returns it
// synchronously; its Future is not yet resolved.
func (ex *Executor) ExecuteQuery(ctx context.Context, query tsquery.Query, span Span) (*Execution, error) {
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		return nil, ErrClosed
	}

	key, err := ex.keyGen.Generate(ctx, query)
	if err != nil {
		ex.mu.Unlock()
		return nil, fmt.Errorf("failed to generate cache key: %w", err)
	}

	execID := uuid.NewString()
	e := &Execution{
		id:         execID,
		cfg:        ex.cfg,
		log:        ex.log.With().Str("execution_id", execID).Str("query_id", query.ID()).Logger(),
		plugin:     ex.plugin,
		codec:      ex.codec,
		downstream: ex.downstream,
		query:      query,
		key:        key,
		future:     newFuture(),
		metrics:    ex.metrics,
		onRemove:   ex.remove,
	}

	ex.outstanding[e] = struct{}{}
	ex.mu.Unlock()

	e.start(ctx, span)

	return e, nil
}

// remove drops e from the outstanding set. It is invoked by Execution once
// it has transitioned to Completed, never before, so an execution is in the
// outstanding set for exactly as long as it is incomplete.
func (ex *Executor) remove(e *Execution) {
	ex.mu.Lock()
	delete(ex.outstanding, e)
	ex.mu.Unlock()
}

// Close marks the executor closed, cancels every outstanding execution and
// returns once all of them have completed. Idempotent: calling Close twice
// is safe and the second call returns immediately. The returned error
// aggregates only executions that resolved with an error other than
// ErrCancelled, so it is nil when every execution was simply cancelled.
func (ex *Executor) Close() error {
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		return nil
	}
	ex.closed = true

	// Snapshot before cancelling so we never hold the executor's lock
	// while calling into an Execution's Cancel.
	snapshot := make([]*Execution, 0, len(ex.outstanding))
	for e := range ex.outstanding {
		snapshot = append(snapshot, e)
	}
	ex.mu.Unlock()

	var wg sync.WaitGroup
	var mErr error
	var mErrMu sync.Mutex

	for _, e := range snapshot {
		wg.Add(1)
		go func(e *Execution) {
			defer wg.Done()
			e.Cancel()
			if _, err := e.Future().Wait(); err != nil && !errors.Is(err, ErrCancelled) {
				mErrMu.Lock()
				mErr = multierror.Append(mErr, err)
				mErrMu.Unlock()
			}
		}(e)
	}
	wg.Wait()

	return mErr
}

// Plugin returns the cache plugin this executor was constructed with.
// Used by tests to assert on collaborator interactions.
func (ex *Executor) Plugin() CachePlugin { return ex.plugin }

// Serdes returns the codec this executor was constructed with.
func (ex *Executor) Serdes() Codec { return ex.codec }

// KeyGenerator returns the key generator this executor was constructed
// with.
func (ex *Executor) KeyGenerator() KeyGenerator { return ex.keyGen }

// DownstreamExecutors returns the (single) downstream executor this
// executor forwards queries to. Named in the plural for symmetry with
// OutstandingRequests.
func (ex *Executor) DownstreamExecutors() []Downstream { return []Downstream{ex.downstream} }

// OutstandingRequests returns a snapshot of currently outstanding
// executions.
func (ex *Executor) OutstandingRequests() []*Execution {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	out := make([]*Execution, 0, len(ex.outstanding))
	for e := range ex.outstanding {
		out = append(out, e)
	}
	return out
}
