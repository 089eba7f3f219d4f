// Package keygen implements executor.KeyGenerator using blake2b to hash a
// query's identity into a stable cache key.
package keygen

import (
	"context"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/onflow/cachingqueryexecutor/tsquery"
)

// IdentityFields selects which parts of the request identity feed the hash
// beyond the query itself, e.g. a tenant ID pulled from ctx by the caller's
// own context key. The executor core never inspects ctx; this function is
// the one place a concrete deployment plugs that in.
type IdentityFields func(ctx context.Context) []byte

// BlakeKeyGenerator deterministically derives a cache key from an
// executor's identity, a query's ID and time bounds, and an optional
// caller-supplied identity fields function.
type BlakeKeyGenerator struct {
	executorID string
	identity   IdentityFields
}

// New builds a BlakeKeyGenerator scoped to executorID, so two executors
// configured identically but addressed by different IDs never collide on
// cache keys. identity may be nil.
func New(executorID string, identity IdentityFields) *BlakeKeyGenerator {
	return &BlakeKeyGenerator{executorID: executorID, identity: identity}
}

func (g *BlakeKeyGenerator) Generate(ctx context.Context, query tsquery.Query) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}

	_, _ = h.Write([]byte(g.executorID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(query.ID()))

	var bounds [16]byte
	binary.BigEndian.PutUint64(bounds[0:8], uint64(query.StartMs()))
	binary.BigEndian.PutUint64(bounds[8:16], uint64(query.EndMs()))
	_, _ = h.Write(bounds[:])

	if g.identity != nil {
		_, _ = h.Write(g.identity(ctx))
	}

	return h.Sum(nil), nil
}
