package blob

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Encoding declares how the bytes of a payload are meant to be read by
// whoever consumes them. The store never acts on it.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingText Encoding = "text"
)

var (
	ErrNotText         = errors.New("payload is not valid utf-8 text")
	ErrUnknownEncoding = errors.New("unknown payload encoding")
)

// Payload is an opaque configuration or telemetry blob. Data is stored and
// returned byte for byte.
type Payload struct {
	Encoding Encoding
	Data     []byte
}

func JSON(data []byte) Payload {
	return Payload{Encoding: EncodingJSON, Data: clone(data)}
}

func Text(s string) Payload {
	return Payload{Encoding: EncodingText, Data: []byte(s)}
}

func (p Payload) IsEmpty() bool {
	return len(p.Data) == 0
}

func (p Payload) String() string {
	return string(p.Data)
}

func (p Payload) Equal(other Payload) bool {
	return bytes.Equal(p.Data, other.Data)
}

// ParseEncoding maps a user supplied label to an Encoding. The empty label
// means text.
func ParseEncoding(raw string) (Encoding, error) {
	switch Encoding(raw) {
	case "", EncodingText:
		return EncodingText, nil
	case EncodingJSON:
		return EncodingJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, raw)
	}
}

// Encode returns the column value for p. The only check is that the bytes
// are valid UTF-8, since blob columns are text.
func Encode(p Payload) (string, error) {
	if p.Encoding != "" {
		if _, err := ParseEncoding(string(p.Encoding)); err != nil {
			return "", err
		}
	}
	if !utf8.Valid(p.Data) {
		return "", ErrNotText
	}
	return string(p.Data), nil
}

// EncodeOptional is Encode for nullable columns.
func EncodeOptional(p *Payload) (*string, error) {
	if p == nil {
		return nil, nil
	}
	value, err := Encode(*p)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// Decode wraps a stored column value. The persisted layout has no encoding
// column, so the caller passes the encoding the column is declared to hold.
func Decode(stored string, declared Encoding) Payload {
	return Payload{Encoding: declared, Data: []byte(stored)}
}

func DecodeOptional(stored *string, declared Encoding) *Payload {
	if stored == nil {
		return nil
	}
	p := Decode(*stored, declared)
	return &p
}

func clone(data []byte) []byte {
	if data == nil {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
