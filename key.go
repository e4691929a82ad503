package querycache

import "strings"

// JoinFunc turns a prefix and an optional vary-by value into a cache key.
// hasVaryBy is false when no vary-by value was set.
type JoinFunc func(prefix string, varyBy any, hasVaryBy bool) string

// DefaultJoin returns prefix alone when there is no vary-by value, and otherwise prefix
// followed by the flattened vary-by tokens, all separated by KeySeparator.
//
//	DefaultJoin("Foo", 42, true)                   // "Foo_42"
//	DefaultJoin("Foo", []string{"a", "b"}, true)   // "Foo_a_b"
//	DefaultJoin("Foo", nil, false)                 // "Foo"
func DefaultJoin(prefix string, varyBy any, hasVaryBy bool) string {
	if !hasVaryBy {
		return prefix
	}
	return prefix + KeySeparator + JoinTokens(Flatten(varyBy))
}

// KeyOption configures a CacheKey.
type KeyOption func(*CacheKey)

// WithJoin replaces DefaultJoin for a single key. A nil fn keeps the default.
func WithJoin(fn JoinFunc) KeyOption {
	return func(k *CacheKey) {
		if fn != nil {
			k.join = fn
		}
	}
}

// CacheKey combines a prefix with a vary-by value. Value is computed on first use and
// recomputed after any mutation.
//
// A CacheKey is not safe for concurrent mutation.
type CacheKey struct {
	prefix    string
	varyBy    any
	hasVaryBy bool
	join      JoinFunc

	value string
	valid bool
}

// NewCacheKey returns a key with the given prefix. A blank prefix is rejected.
func NewCacheKey(prefix string, opts ...KeyOption) (*CacheKey, error) {
	k := &CacheKey{join: DefaultJoin}
	for _, opt := range opts {
		opt(k)
	}
	if err := k.SetPrefix(prefix); err != nil {
		return nil, err
	}
	return k, nil
}

// Prefix returns the current prefix.
func (k *CacheKey) Prefix() string { return k.prefix }

// SetPrefix replaces the prefix. A blank prefix leaves the key unchanged and returns an
// *ArgumentError wrapping ErrInvalidPrefix.
func (k *CacheKey) SetPrefix(prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return &ArgumentError{Name: "prefix", Err: ErrInvalidPrefix}
	}
	k.prefix = prefix
	k.valid = false
	return nil
}

// VaryBy returns the vary-by value and whether one is set.
func (k *CacheKey) VaryBy() (any, bool) { return k.varyBy, k.hasVaryBy }

// SetVaryBy sets the value the key varies by. An untyped nil clears it; a typed nil
// (e.g. a nil *Filter) is kept and contributes one empty segment.
func (k *CacheKey) SetVaryBy(v any) {
	if v == nil {
		k.ClearVaryBy()
		return
	}
	k.varyBy = v
	k.hasVaryBy = true
	k.valid = false
}

// ClearVaryBy removes the vary-by value so the key is the bare prefix.
func (k *CacheKey) ClearVaryBy() {
	k.varyBy = nil
	k.hasVaryBy = false
	k.valid = false
}

// Value returns the key string.
func (k *CacheKey) Value() string {
	if !k.valid {
		k.value = k.join(k.prefix, k.varyBy, k.hasVaryBy)
		k.valid = true
	}
	return k.value
}

// String implements fmt.Stringer.
func (k *CacheKey) String() string { return k.Value() }
