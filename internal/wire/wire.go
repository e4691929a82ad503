// Package wire frames serialized entries stored in byte providers.
//
//	magic(4) | ver(1) | fields
//
// fields are protobuf wire-format fields:
//
//	1: varint  written-at, unix nanoseconds
//	2: bytes   payload (the serialized Entry)
//
// Unknown fields are skipped so newer writers stay readable.
package wire

import (
	"bytes"
	"errors"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	version byte = 1

	fieldWrittenAt protowire.Number = 1
	fieldPayload   protowire.Number = 2
)

var (
	ErrCorrupt = errors.New("querycache: corrupt entry")
	magic4     = [...]byte{'Q', 'C', 'E', 'N'}
)

// Frame is a decoded entry envelope.
type Frame struct {
	WrittenAt time.Time
	Payload   []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames payload.
func Encode(payload []byte, writtenAt time.Time) []byte {
	b := make([]byte, 0, 4+1+2*protowire.SizeTag(fieldPayload)+protowire.SizeVarint(uint64(writtenAt.UnixNano()))+protowire.SizeBytes(len(payload)))
	b = append(b, magic4[:]...)
	b = append(b, version)

	b = protowire.AppendTag(b, fieldWrittenAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(writtenAt.UnixNano()))

	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	return b
}

// Decode validates the envelope and returns its contents. The payload aliases b.
func Decode(b []byte) (Frame, error) {
	const hdr = 4 + 1
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return Frame{}, ErrCorrupt
	}

	var (
		f          Frame
		hasPayload bool
	)
	rest := b[hdr:]
	for len(rest) > 0 {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return Frame{}, ErrCorrupt
		}
		rest = rest[n:]

		switch {
		case num == fieldWrittenAt && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(rest)
			if m < 0 {
				return Frame{}, ErrCorrupt
			}
			f.WrittenAt = time.Unix(0, int64(v))
			rest = rest[m:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(rest)
			if m < 0 {
				return Frame{}, ErrCorrupt
			}
			f.Payload = v
			hasPayload = true
			rest = rest[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, rest)
			if m < 0 {
				return Frame{}, ErrCorrupt
			}
			rest = rest[m:]
		}
	}
	if !hasPayload {
		return Frame{}, ErrCorrupt
	}
	return f, nil
}
