// Package tsquery defines the minimal query and result shapes the caching
// query executor operates on. Parsing, validation and execution of these
// types is the responsibility of collaborators outside this repository.
package tsquery

// Query is an immutable time-series query. The executor only needs enough
// of a query to generate a cache key and, when Config.UseTimestamps is set,
// to derive a TTL; everything else is opaque payload handed to the
// downstream executor verbatim.
type Query struct {
	id       string
	startMs  int64
	endMs    int64
	Payload  any
}

// NewQuery builds a Query. startMs/endMs bound the data the query covers
// and are only consulted for timestamp-derived TTLs.
func NewQuery(id string, startMs, endMs int64, payload any) Query {
	return Query{id: id, startMs: startMs, endMs: endMs, Payload: payload}
}

// ID uniquely identifies this query within a single caller's request graph.
func (q Query) ID() string { return q.id }

// StartMs is the inclusive start of the time range the query covers.
func (q Query) StartMs() int64 { return q.startMs }

// EndMs is the exclusive end of the time range the query covers.
func (q Query) EndMs() int64 { return q.endMs }

// Result is the opaque value produced by the downstream executor and
// (de)serialized by a Codec for cache storage. A nil or Empty() result is
// still a valid result; it is distinct from a cache miss.
type Result interface {
	// Empty reports whether this result carries no data. Empty results are
	// still cached and returned like any other result.
	Empty() bool
}
