// Package stream implements ordered, heterogeneous content streams: the list
// of typed blocks (titles, rich text, images, raw HTML, calls to action ...)
// an author composes into a page body or section.
//
// A stream is persisted as a JSON array of {"id", "type", "value"} entries.
// Values are kept as raw JSON so a stream read from storage re-serializes to
// exactly the same bytes.
package stream

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Kind names a block variant.
type Kind string

// ErrIndexOutOfRange is returned by positional stream operations.
var ErrIndexOutOfRange = errors.New("stream index out of range")

// Block is a single stream entry as stored.
type Block struct {
	ID    string          `json:"id,omitempty"`
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value"`
}

// NewBlock encodes v into a block with a fresh id.
func NewBlock(v Value) (Block, error) {
	raw, err := encode(v)
	if err != nil {
		return Block{}, fmt.Errorf("encode %s block: %w", v.Kind(), err)
	}
	return Block{ID: uuid.NewString(), Type: v.Kind(), Value: raw}, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MustBlock is like NewBlock but panics on encoding errors. It is meant for
// fixtures and seed data built from literal values.
func MustBlock(v Value) Block {
	b, err := NewBlock(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode returns the typed value carried by the block.
func (b Block) Decode() (Value, error) {
	s, ok := schemas[b.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, b.Type)
	}
	v, err := s.decode(b.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return v, nil
}

// Stream is an ordered sequence of blocks.
type Stream []Block

// Len returns the number of blocks.
func (s Stream) Len() int {
	return len(s)
}

// Append adds blocks at the end of the stream.
func (s *Stream) Append(blocks ...Block) {
	*s = append(*s, blocks...)
}

// Insert places b at index i, shifting later blocks. i may equal Len().
func (s *Stream) Insert(i int, b Block) error {
	if i < 0 || i > len(*s) {
		return ErrIndexOutOfRange
	}
	*s = slices.Insert(*s, i, b)
	return nil
}

// Remove deletes and returns the block at index i.
func (s *Stream) Remove(i int) (Block, error) {
	if i < 0 || i >= len(*s) {
		return Block{}, ErrIndexOutOfRange
	}
	removed := (*s)[i]
	*s = slices.Delete(*s, i, i+1)
	return removed, nil
}

// Move relocates the block at from so that it ends up at index to.
func (s *Stream) Move(from, to int) error {
	n := len(*s)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}
	b := (*s)[from]
	*s = slices.Delete(*s, from, from+1)
	*s = slices.Insert(*s, to, b)
	return nil
}

// WithIDs returns a copy of s in which every block without an id gets a
// fresh one. Existing ids are kept.
func (s Stream) WithIDs() Stream {
	if s == nil {
		return nil
	}
	out := slices.Clone(s)
	for i := range out {
		if strings.TrimSpace(out[i].ID) == "" {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}

// Index returns the position of the block with the given id, or -1.
func (s Stream) Index(id string) int {
	return slices.IndexFunc(s, func(b Block) bool { return b.ID == id })
}

// Decode returns the typed value of every block, stopping at the first
// block that cannot be decoded.
func (s Stream) Decode() ([]Value, error) {
	values := make([]Value, 0, len(s))
	for i, b := range s {
		v, err := b.Decode()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// MarshalJSON encodes the stream as a compact JSON array. HTML is not escaped
// so raw_html payloads stay readable in storage.
func (s Stream) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("[]"), nil
	}
	return encode([]Block(s))
}

// UnmarshalJSON decodes a JSON array of blocks, keeping every value verbatim.
func (s *Stream) UnmarshalJSON(data []byte) error {
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("decode stream: %w", err)
	}
	*s = blocks
	return nil
}

// Value implements driver.Valuer.
func (s Stream) Value() (driver.Value, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *Stream) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		if len(v) == 0 {
			*s = nil
			return nil
		}
		return s.UnmarshalJSON(v)
	case string:
		if v == "" {
			*s = nil
			return nil
		}
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("stream: cannot scan %T", src)
	}
}

// GormDataType stores streams as text columns.
func (Stream) GormDataType() string {
	return "text"
}
