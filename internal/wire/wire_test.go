package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

func mustDecode(t *testing.T, b []byte) Frame {
	t.Helper()
	f, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return f
}

func TestRoundTripEmptyAndNonEmpty(t *testing.T) {
	at := time.Unix(1700000000, 123)
	cases := [][]byte{
		nil,
		[]byte("hello"),
		{0, 1, 2, 3, 4},
		bytes.Repeat([]byte("x"), 1<<16),
	}
	for _, payload := range cases {
		f := mustDecode(t, Encode(payload, at))
		if !bytes.Equal(f.Payload, payload) {
			t.Fatalf("payload mismatch: got %x want %x", f.Payload, payload)
		}
		if !f.WrittenAt.Equal(at) {
			t.Fatalf("writtenAt mismatch: got %v want %v", f.WrittenAt, at)
		}
	}
}

func TestDecodeRejectsForeignBytes(t *testing.T) {
	cases := map[string][]byte{
		"empty":      nil,
		"short":      []byte("QC"),
		"bad magic":  []byte("JSON{\"value\":1}"),
		"bad ver":    append(append([]byte{}, magic4[:]...), 99),
		"no payload": append(append([]byte{}, magic4[:]...), version),
	}
	for name, b := range cases {
		if _, err := Decode(b); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	enc := Encode([]byte("abcdef"), time.Now())
	if _, err := Decode(enc[:len(enc)-2]); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt on truncation, got %v", err)
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b := append([]byte{}, magic4[:]...)
	b = append(b, version)
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("p"))

	f := mustDecode(t, b)
	if string(f.Payload) != "p" {
		t.Fatalf("payload = %q, want %q", f.Payload, "p")
	}
	if !f.WrittenAt.IsZero() {
		t.Fatalf("writtenAt should be zero when absent, got %v", f.WrittenAt)
	}
}
