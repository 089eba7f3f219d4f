package executor

import (
	"github.com/onflow/cachingqueryexecutor/config"
	"github.com/onflow/cachingqueryexecutor/tsquery"
)

// computeTTL derives the cache-populate TTL for a freshly computed result.
//
// When UseTimestamps is false, the TTL is Expiration verbatim.
//
// When UseTimestamps is true, the TTL is derived from how far the query's
// end-of-data timestamp (query.EndMs) lags "now": a query covering data up
// to the present should be cached for close to the full Expiration window,
// while a query covering old, immutable data can be cached far longer
// without going stale — so the remaining headroom is
// Expiration + (now - EndMs), floored at zero and clamped to
// [0, MaxExpiration]. Age is additive headroom, never subtracted from
// Expiration, so a fresh query is never under-cached relative to the
// non-timestamped case.
func computeTTL(cfg config.Config, query tsquery.Query, nowMs int64) int64 {
	if !cfg.UseTimestamps {
		return cfg.Expiration
	}

	age := nowMs - query.EndMs()
	if age < 0 {
		age = 0
	}

	ttl := cfg.Expiration + age
	if ttl < 0 {
		ttl = 0
	}
	if ttl > cfg.MaxExpiration {
		ttl = cfg.MaxExpiration
	}
	return ttl
}
