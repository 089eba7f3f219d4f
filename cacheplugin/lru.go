// Package cacheplugin provides a reference, in-memory executor.CachePlugin
// backed by an LRU cache. It exists to exercise the caching query executor
// core end-to-end in tests and the demo binary; a production deployment
// would implement CachePlugin against a real network-backed cache instead.
package cacheplugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/onflow/cachingqueryexecutor/executor"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// LRUCachePlugin is a bounded, TTL-aware in-memory CachePlugin. Fetch does
// its lookup in a goroutine and delivers the outcome through its callback,
// so callers observe the same asynchronous contract a network-backed plugin
// would present. Cache stores the entry synchronously before it returns.
type LRUCachePlugin struct {
	log zerolog.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, entry]

	sweepOnce sync.Once
	closeCh   chan struct{}
}

// New builds an LRUCachePlugin holding at most size entries. A background
// goroutine sweeps expired entries every 30 seconds, retrying a pass with
// github.com/sethvargo/go-retry's exponential backoff when the sweep loses
// the race for the cache lock against a concurrent Fetch or Cache call.
func New(log zerolog.Logger, size int) (*LRUCachePlugin, error) {
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}

	p := &LRUCachePlugin{
		log:     log.With().Str("component", "lru_cache_plugin").Logger(),
		cache:   c,
		closeCh: make(chan struct{}),
	}
	go p.sweepLoop()
	return p, nil
}

// Close stops the background sweep goroutine. Safe to call more than once.
func (p *LRUCachePlugin) Close() {
	p.sweepOnce.Do(func() { close(p.closeCh) })
}

func (p *LRUCachePlugin) Fetch(ctx context.Context, key []byte, _ executor.Span, cb func(executor.CacheResult)) executor.Subscription {
	sub := newSubscription()

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-sub.cancelled:
			return
		default:
		}

		p.mu.Lock()
		e, ok := p.cache.Get(string(key))
		p.mu.Unlock()

		select {
		case <-sub.cancelled:
			return
		default:
		}

		if !ok || time.Now().After(e.expiresAt) {
			cb(executor.CacheResult{})
			return
		}

		cb(executor.CacheResult{Value: append([]byte(nil), e.value...)})
	}()

	return sub
}

func (p *LRUCachePlugin) Cache(key []byte, value []byte, ttl int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cache.Add(string(key), entry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(time.Duration(ttl) * time.Millisecond),
	})
}

// sweepLoop periodically evicts expired entries so a bounded cache isn't
// wasting slots on stale data between Fetch calls.
func (p *LRUCachePlugin) sweepLoop() {
	for {
		select {
		case <-p.closeCh:
			return
		case <-time.After(30 * time.Second):
		}

		if err := p.sweepWithRetry(context.Background()); err != nil {
			p.log.Warn().Err(err).Msg("failed to sweep expired cache entries")
		}
	}
}

// sweepWithRetry runs sweepExpired, retrying with exponential backoff when
// the sweep loses the lock race against a concurrent Fetch or Cache call.
func (p *LRUCachePlugin) sweepWithRetry(ctx context.Context) error {
	backoff, err := retry.NewExponential(5 * time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to create retry mechanism: %w", err)
	}
	backoff = retry.WithMaxRetries(20, backoff)

	return retry.Do(ctx, backoff, func(context.Context) error {
		return p.sweepExpired()
	})
}

// sweepExpired attempts a single eviction pass. It never blocks on the
// cache lock: if a Fetch or Cache call currently holds it, sweepExpired
// returns a retryable error instead of waiting.
func (p *LRUCachePlugin) sweepExpired() error {
	if !p.mu.TryLock() {
		return retry.RetryableError(fmt.Errorf("lru cache plugin: cache locked by a concurrent call"))
	}
	defer p.mu.Unlock()

	now := time.Now()
	for _, key := range p.cache.Keys() {
		e, ok := p.cache.Peek(key)
		if ok && now.After(e.expiresAt) {
			p.cache.Remove(key)
		}
	}
	return nil
}

type subscription struct {
	once      sync.Once
	cancelled chan struct{}
}

func newSubscription() *subscription {
	return &subscription{cancelled: make(chan struct{})}
}

func (s *subscription) Cancel() {
	s.once.Do(func() { close(s.cancelled) })
}
