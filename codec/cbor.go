// Package codec implements executor.Codec using CBOR, grounded on the
// teacher's own model/encoding/cbor.Codec used to serialize
// ExecutionData for its blob store.
package codec

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/onflow/cachingqueryexecutor/tsquery"
)

// Envelope carries a Result's Empty() bit alongside its encoded payload.
// It does not record the Result's concrete Go type; Deserialize rebuilds
// non-empty results through the caller-supplied decodePayload function and
// empty ones as this package's own emptyResult.
type Envelope struct {
	Empty   bool   `cbor:"empty"`
	Payload []byte `cbor:"payload"`
}

// CBORCodec implements executor.Codec by delegating to an application-
// supplied encode/decode pair for the concrete Result payload, wrapped in
// an Envelope that preserves the Empty() bit across the round trip.
type CBORCodec struct {
	encodePayload func(tsquery.Result) ([]byte, error)
	decodePayload func([]byte) (tsquery.Result, error)
}

// New builds a CBORCodec. encodePayload/decodePayload translate between a
// tsquery.Result and its raw bytes for the non-empty case; they are never
// called for an empty result.
func New(encodePayload func(tsquery.Result) ([]byte, error), decodePayload func([]byte) (tsquery.Result, error)) *CBORCodec {
	return &CBORCodec{encodePayload: encodePayload, decodePayload: decodePayload}
}

func (c *CBORCodec) Serialize(w io.Writer, result tsquery.Result) error {
	env := Envelope{Empty: result == nil || result.Empty()}

	if !env.Empty {
		payload, err := c.encodePayload(result)
		if err != nil {
			return fmt.Errorf("failed to encode result payload: %w", err)
		}
		env.Payload = payload
	}

	buf, err := cbor.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal cbor envelope: %w", err)
	}

	_, err = w.Write(buf)
	return err
}

func (c *CBORCodec) Deserialize(r io.Reader) (tsquery.Result, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read cbor payload: %w", err)
	}

	var env Envelope
	if err := cbor.Unmarshal(buf, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cbor envelope: %w", err)
	}

	if env.Empty {
		return emptyResult{}, nil
	}

	result, err := c.decodePayload(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode result payload: %w", err)
	}
	return result, nil
}

// emptyResult is the canonical empty tsquery.Result this codec produces
// when decoding an Envelope with Empty set.
type emptyResult struct{}

func (emptyResult) Empty() bool { return true }
