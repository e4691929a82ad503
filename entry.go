package querycache

// Entry wraps a cached value so that "a nil was cached" can be told apart from "nothing is
// cached". Stores hand out *Entry[T] on a hit and nothing on a miss; Value may be the zero
// value of T on a hit.
type Entry[T any] struct {
	Value T `json:"value" msgpack:"value" cbor:"value"`
}

// NewEntry wraps v.
func NewEntry[T any](v T) Entry[T] {
	return Entry[T]{Value: v}
}

// Equal reports whether both entries wrap equal values (see Equal).
func (e Entry[T]) Equal(other Entry[T]) bool {
	return Equal(e.Value, other.Value)
}

// Hash returns the hash of the wrapped value (see Hash).
func (e Entry[T]) Hash() uint64 {
	return Hash(e.Value)
}
