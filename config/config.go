// Package config defines the immutable policy consumed by a caching query
// executor: expiration, scheduling mode and identity. It is built with a
// Builder, validated lazily (validation happens in executor.NewExecutor,
// not here), and is comparable and orderable for use as a map key / in
// sorted collections of executor configs.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config is an immutable value. Build one with NewBuilder.
type Config struct {
	ExecutorID    string `json:"executorId" mapstructure:"executorId" validate:"required"`
	ExecutorType  string `json:"executorType" mapstructure:"executorType" validate:"required"`
	Expiration    int64  `json:"expiration" mapstructure:"expiration" validate:"gte=0"`
	MaxExpiration int64  `json:"maxExpiration" mapstructure:"maxExpiration" validate:"gte=0"`
	Simultaneous  bool   `json:"simultaneous" mapstructure:"simultaneous"`
	UseTimestamps bool   `json:"useTimestamps" mapstructure:"useTimestamps"`
}

// Builder constructs a Config field by field. Unset integer/boolean fields
// default to their zero value.
type Builder struct {
	cfg Config
}

// NewBuilder starts a Builder for the given executor identity. Both
// arguments are required by Validate, but the builder itself never
// validates eagerly.
func NewBuilder(executorID, executorType string) *Builder {
	return &Builder{cfg: Config{ExecutorID: executorID, ExecutorType: executorType}}
}

func (b *Builder) Expiration(ms int64) *Builder {
	b.cfg.Expiration = ms
	return b
}

func (b *Builder) MaxExpiration(ms int64) *Builder {
	b.cfg.MaxExpiration = ms
	return b
}

func (b *Builder) Simultaneous(v bool) *Builder {
	b.cfg.Simultaneous = v
	return b
}

func (b *Builder) UseTimestamps(v bool) *Builder {
	b.cfg.UseTimestamps = v
	return b
}

// Build returns the assembled, immutable Config.
func (b *Builder) Build() Config {
	return b.cfg
}

var validate = validator.New()

// Validate checks the field-level constraints (non-empty identifiers,
// non-negative durations). Construction-time cross-field validation (e.g.
// collaborator lookups) is the responsibility of executor.NewExecutor, not
// Config itself.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid caching query executor config: %w", err)
	}
	return nil
}

// Equal reports whether two configs carry identical field values.
func (c Config) Equal(other Config) bool {
	return c == other
}

// HashCode is consistent with Equal: equal configs produce equal hash
// codes. It is a simple FNV-1a style fold over the tuple used by Compare,
// not a cryptographic hash.
func (c Config) HashCode() uint64 {
	h := uint64(14695981039346656037)
	const prime = 1099511628211

	mix := func(b byte) {
		h ^= uint64(b)
		h *= prime
	}
	mixInt := func(v int64) {
		for i := 0; i < 8; i++ {
			mix(byte(v >> (8 * i)))
		}
	}
	mixBool := func(v bool) {
		if v {
			mix(1)
		} else {
			mix(0)
		}
	}
	mixStr := func(s string) {
		for i := 0; i < len(s); i++ {
			mix(s[i])
		}
	}

	mixInt(c.Expiration)
	mixInt(c.MaxExpiration)
	mixBool(c.Simultaneous)
	mixBool(c.UseTimestamps)
	mixStr(c.ExecutorID)
	mixStr(c.ExecutorType)
	return h
}

// Compare orders two configs lexicographically over the tuple
// (Expiration, MaxExpiration, Simultaneous, UseTimestamps, ExecutorID,
// ExecutorType), with false < true for booleans and natural string order.
// The sign of the result is meaningful; the magnitude is not.
func (c Config) Compare(other Config) int {
	if d := compareInt64(c.Expiration, other.Expiration); d != 0 {
		return d
	}
	if d := compareInt64(c.MaxExpiration, other.MaxExpiration); d != 0 {
		return d
	}
	if d := compareBool(c.Simultaneous, other.Simultaneous); d != 0 {
		return d
	}
	if d := compareBool(c.UseTimestamps, other.UseTimestamps); d != 0 {
		return d
	}
	if d := compareString(c.ExecutorID, other.ExecutorID); d != 0 {
		return d
	}
	return compareString(c.ExecutorType, other.ExecutorType)
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
