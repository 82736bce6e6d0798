package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format selects an encoding.
type Format uint8

const (
	FormatJSON Format = iota
	FormatMsgpack
)

// ErrSchema is returned when decoding a snapshot of another schema.
var ErrSchema = errors.New("snapshot schema mismatch")

// ParseFormat accepts "json" and "msgpack" (or "mp").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "msgpack", "mp":
		return FormatMsgpack, nil
	}
	return FormatJSON, fmt.Errorf("unknown snapshot format %q", s)
}

func (f Format) String() string {
	if f == FormatMsgpack {
		return "msgpack"
	}
	return "json"
}

// Encode writes s to w.
func (s *Snapshot) Encode(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		// One set of tags for both encodings.
		enc.SetCustomStructTag("json")
		return enc.Encode(s)
	}
	return fmt.Errorf("unknown snapshot format %d", f)
}

// Marshal returns the encoded snapshot.
func (s *Snapshot) Marshal(f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a snapshot and checks its schema.
func Decode(r io.Reader, f Format) (*Snapshot, error) {
	var s Snapshot
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return nil, err
		}
	case FormatMsgpack:
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown snapshot format %d", f)
	}
	if s.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrSchema, s.Schema, SchemaVersion)
	}
	return &s, nil
}
