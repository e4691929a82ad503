package codec

import "encoding/json"

// JSON serializes with encoding/json. The zero value is ready to use.
type JSON struct{}

var _ Serializer = JSON{}

func (JSON) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSON) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
