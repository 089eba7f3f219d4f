package executor

import (
	"sync"

	"github.com/onflow/cachingqueryexecutor/tsquery"
)

// future is a single-completion promise of a tsquery.Result: a channel
// closed exactly once, guarded by a sync.Once so concurrent completers
// never double-close or block each other.
type future struct {
	once sync.Once
	done chan struct{}

	mu     sync.Mutex
	result tsquery.Result
	err    error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

// complete resolves the future exactly once. Subsequent calls are no-ops.
func (f *future) complete(result tsquery.Result, err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.result, f.err = result, err
		f.mu.Unlock()
		close(f.done)
	})
}

// Done returns a channel closed once the future is resolved.
func (f *future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves and returns its outcome.
func (f *future) Wait() (tsquery.Result, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

// Future is the caller-visible view of an in-flight Execution. It exposes
// only observation, never completion.
type Future interface {
	Done() <-chan struct{}
	Wait() (tsquery.Result, error)
}
