// Package codec provides type-directed string codecs and the registry that
// maps a Go type to its codec. Codecs compose: the codec of a compound type
// delegates to the codecs of its fields and joins them with InnerSeparator.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

// Separator tiers nested inside one frame field. The outer tier, which
// separates the fields of a frame, belongs to the frame grammar.
const (
	// InnerSeparator separates the fields of one encoded object.
	InnerSeparator = "@"
	// CollectionSeparator separates the elements of an encoded list.
	CollectionSeparator = ","
	// ListBegin and ListEnd wrap an encoded list.
	ListBegin = "["
	ListEnd   = "]"
)

var (
	// ErrMapping is returned when a codec cannot rebuild a value from its
	// encoded form: wrong field count, unparsable number, unknown ordinal.
	ErrMapping = errors.New("codec: mapping error")
	// ErrNoCodec is returned when a registry holds no codec for a type.
	ErrNoCodec = errors.New("codec: no codec registered")
)

// Codec converts values of one type to and from their wire string.
type Codec[T any] interface {
	// Encode returns the wire form of v.
	Encode(v T) string
	// Decode rebuilds a value from its wire form. Failures wrap ErrMapping.
	Decode(s string) (T, error)
}

// Funcs adapts a pair of functions into a Codec.
type Funcs[T any] struct {
	EncodeFunc func(T) string
	DecodeFunc func(string) (T, error)
}

// Encode implements Codec.
func (f Funcs[T]) Encode(v T) string {
	return f.EncodeFunc(v)
}

// Decode implements Codec.
func (f Funcs[T]) Decode(s string) (T, error) {
	return f.DecodeFunc(s)
}

// Fields splits an encoded object into exactly n fields on InnerSeparator.
//
// Parameters:
//   - s: The encoded object
//   - n: Number of fields the object must have
//
// Returns:
//   - The fields
//   - An error wrapping ErrMapping when the count differs
func Fields(s string, n int) ([]string, error) {
	parts := strings.Split(s, InnerSeparator)
	if len(parts) != n {
		return nil, mappingError("expected %d fields, got %d", n, len(parts))
	}

	return parts, nil
}

// Join concatenates already-encoded fields with InnerSeparator.
func Join(fields ...string) string {
	return strings.Join(fields, InnerSeparator)
}

func mappingError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMapping, fmt.Sprintf(format, args...))
}
