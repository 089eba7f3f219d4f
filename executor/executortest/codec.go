package executortest

import (
	"errors"
	"io"

	"github.com/onflow/cachingqueryexecutor/tsquery"
)

// Result is a minimal tsquery.Result used across this package's tests.
type Result struct {
	ID    string
	empty bool
}

func NewResult(id string) Result         { return Result{ID: id} }
func NewEmptyResult() Result             { return Result{empty: true} }
func (r Result) Empty() bool             { return r.empty }

// Codec is a trivial executor.Codec that writes/reads Result.ID as raw
// bytes; an empty ID round-trips to an empty Result. It exists purely to
// exercise serialize/deserialize without pulling in a real wire format in
// unit tests.
type Codec struct {
	FailDeserialize bool
	FailSerialize   bool
}

func (c *Codec) Serialize(w io.Writer, result tsquery.Result) error {
	if c.FailSerialize {
		return errSerialize
	}
	r := result.(Result)
	_, err := w.Write([]byte(r.ID))
	return err
}

func (c *Codec) Deserialize(r io.Reader) (tsquery.Result, error) {
	if c.FailDeserialize {
		return nil, errDeserialize
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return NewEmptyResult(), nil
	}
	return NewResult(string(buf)), nil
}

var (
	errSerialize   = errors.New("executortest: forced serialize failure")
	errDeserialize = errors.New("executortest: forced deserialize failure")
)
