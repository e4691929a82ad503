// Package codec provides the serializer plugins used by querycache.DistributedStore.
//
// A Serializer turns a querycache.Entry[T] into bytes and back. Unmarshal receives a
// pointer (*Entry[T]), in the style of encoding/json.
package codec

// Serializer encodes/decodes values to []byte for storage.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}
