package executor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onflow/cachingqueryexecutor/config"
	"github.com/onflow/cachingqueryexecutor/tsquery"
)

func TestComputeTTL(t *testing.T) {
	cfg := config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).Build()

	t.Run("useTimestamps false returns expiration verbatim", func(t *testing.T) {
		q := tsquery.NewQuery("q1", 0, 500000, nil)
		require.Equal(t, int64(60000), computeTTL(cfg, q, 1000000))
	})

	t.Run("useTimestamps true adds headroom for stale queries, clamped to max", func(t *testing.T) {
		cfg := config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).UseTimestamps(true).Build()
		q := tsquery.NewQuery("q1", 0, 900000, nil)
		require.Equal(t, int64(120000), computeTTL(cfg, q, 1000000))
	})

	t.Run("useTimestamps true with query ending in the future floors age at zero", func(t *testing.T) {
		cfg := config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(120000).UseTimestamps(true).Build()
		q := tsquery.NewQuery("q1", 0, 2000000, nil)
		require.Equal(t, int64(60000), computeTTL(cfg, q, 1000000))
	})

	t.Run("maxExpiration zero suppresses populate", func(t *testing.T) {
		cfg := config.NewBuilder("exec-1", "caching-query").Expiration(60000).MaxExpiration(0).UseTimestamps(true).Build()
		q := tsquery.NewQuery("q1", 0, 500000, nil)
		require.Equal(t, int64(0), computeTTL(cfg, q, 1000000))
	})
}
