package executortest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/onflow/cachingqueryexecutor/executor"
)

// CachePlugin is a controllable executor.CachePlugin double. Fetch records
// the call and returns a Subscription the test can inspect for
// cancellation; the test resolves the fetch by calling ResolveFetch once
// it has set up whatever assertions it needs about the in-flight state.
type CachePlugin struct {
	mock.Mock

	mu    sync.Mutex
	calls []*pendingFetch
	cache []cacheCall
}

type pendingFetch struct {
	key []byte
	sub *Subscription
	cb  func(executor.CacheResult)
}

type cacheCall struct {
	Key   []byte
	Value []byte
	TTL   int64
}

func NewCachePlugin() *CachePlugin {
	p := &CachePlugin{}
	p.On("Fetch", mock.Anything).Return()
	p.On("Cache", mock.Anything, mock.Anything, mock.Anything).Return()
	return p
}

func (p *CachePlugin) Fetch(_ context.Context, key []byte, _ executor.Span, cb func(executor.CacheResult)) executor.Subscription {
	p.Called(key)

	sub := NewSubscription()
	p.mu.Lock()
	p.calls = append(p.calls, &pendingFetch{key: key, sub: sub, cb: cb})
	p.mu.Unlock()
	return sub
}

func (p *CachePlugin) Cache(key []byte, value []byte, ttl int64) {
	p.Called(key, value, ttl)

	p.mu.Lock()
	p.cache = append(p.cache, cacheCall{Key: key, Value: value, TTL: ttl})
	p.mu.Unlock()
}

// ResolveFetch resolves the oldest not-yet-resolved Fetch call with res.
func (p *CachePlugin) ResolveFetch(res executor.CacheResult) {
	p.mu.Lock()
	var pending *pendingFetch
	for _, c := range p.calls {
		if c.cb != nil {
			pending = c
			break
		}
	}
	if pending != nil {
		pending.cb = nil
	}
	p.mu.Unlock()

	if pending != nil {
		pending.cb(res)
	}
}

// FetchSubscription returns the Subscription handed back by the oldest
// Fetch call, so a test can assert on cancellation.
func (p *CachePlugin) FetchSubscription() *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[0].sub
}

// CacheCalls returns the number of Cache invocations observed so far.
func (p *CachePlugin) CacheCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}
