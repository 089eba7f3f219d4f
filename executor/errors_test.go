package executor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheError_UnwrapsToUnderlyingError(t *testing.T) {
	underlying := errors.New("plugin unavailable")
	err := error(&CacheError{Key: []byte("k1"), Err: underlying})

	require.ErrorIs(t, err, underlying)

	var cacheErr *CacheError
	require.True(t, errors.As(err, &cacheErr))
	require.Equal(t, []byte("k1"), cacheErr.Key)
	require.Contains(t, err.Error(), "plugin unavailable")
}

func TestDownstreamError_UnwrapsToUnderlyingError(t *testing.T) {
	underlying := errors.New("timeout")
	err := error(&DownstreamError{Err: underlying})

	require.ErrorIs(t, err, underlying)

	var downstreamErr *DownstreamError
	require.True(t, errors.As(err, &downstreamErr))
	require.Contains(t, err.Error(), "timeout")
}
