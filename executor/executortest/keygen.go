package executortest

import (
	"context"

	"github.com/onflow/cachingqueryexecutor/tsquery"
)

// KeyGenerator deterministically maps a query's ID to a cache key, for use
// in tests that don't care about real key derivation.
type KeyGenerator struct {
	Err error
}

func (k *KeyGenerator) Generate(_ context.Context, query tsquery.Query) ([]byte, error) {
	if k.Err != nil {
		return nil, k.Err
	}
	return []byte(query.ID()), nil
}
