package codec

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry maps a Go type to its codec. It is built once at startup and
// handed to every component that encodes or decodes, so registration order
// never depends on package initialisation. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[reflect.Type]any
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[reflect.Type]any)}
}

// Register stores c as the codec for T unless T already has one. The first
// registration wins and later calls are no-ops.
//
// Parameters:
//   - r: The registry to update
//   - c: The codec for T
//
// Returns:
//   - true if c was stored, false if T was already registered
func Register[T any](r *Registry, c Codec[T]) bool {
	key := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codecs[key]; ok {
		return false
	}

	r.codecs[key] = c
	return true
}

// Lookup returns the codec registered for T.
//
// Returns:
//   - The codec
//   - An error wrapping ErrNoCodec if none is registered
func Lookup[T any](r *Registry) (Codec[T], error) {
	key := reflect.TypeFor[T]()

	r.mu.RLock()
	c, ok := r.codecs[key]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoCodec, key)
	}

	return c.(Codec[T]), nil
}

// Encode encodes v with the codec registered for T.
func Encode[T any](r *Registry, v T) (string, error) {
	c, err := Lookup[T](r)
	if err != nil {
		return "", err
	}

	return c.Encode(v), nil
}

// Decode decodes s with the codec registered for T. A missing codec is
// reported as a mapping failure as well, since the value cannot be rebuilt.
func Decode[T any](r *Registry, s string) (T, error) {
	c, err := Lookup[T](r)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrMapping, err)
	}

	return c.Decode(s)
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codecs)
}
