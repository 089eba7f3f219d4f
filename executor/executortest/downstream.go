package executortest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/onflow/cachingqueryexecutor/executor"
	"github.com/onflow/cachingqueryexecutor/tsquery"
)

// Downstream is a controllable executor.Downstream double, the counterpart
// of CachePlugin above.
type Downstream struct {
	mock.Mock

	mu    sync.Mutex
	calls []*pendingQuery
}

type pendingQuery struct {
	sub *Subscription
	cb  func(executor.DownstreamResult)
}

func NewDownstream() *Downstream {
	d := &Downstream{}
	d.On("ExecuteQuery", mock.Anything).Return()
	return d
}

func (d *Downstream) ExecuteQuery(_ context.Context, _ tsquery.Query, overrideConfig any, cb func(executor.DownstreamResult)) executor.Subscription {
	d.Called(overrideConfig)

	sub := NewSubscription()
	d.mu.Lock()
	d.calls = append(d.calls, &pendingQuery{sub: sub, cb: cb})
	d.mu.Unlock()
	return sub
}

// ResolveQuery resolves the oldest not-yet-resolved ExecuteQuery call.
func (d *Downstream) ResolveQuery(res executor.DownstreamResult) {
	d.mu.Lock()
	var pending *pendingQuery
	for _, c := range d.calls {
		if c.cb != nil {
			pending = c
			break
		}
	}
	if pending != nil {
		pending.cb = nil
	}
	d.mu.Unlock()

	if pending != nil {
		pending.cb(res)
	}
}

// CallCount returns the number of ExecuteQuery invocations observed.
func (d *Downstream) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// Subscription returns the Subscription handed back by the oldest
// ExecuteQuery call.
func (d *Downstream) Subscription() *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) == 0 {
		return nil
	}
	return d.calls[0].sub
}
