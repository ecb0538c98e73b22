// Package idgenerator hands out identifiers: monotonically increasing
// connection ids and unpredictable token keys.
package idgenerator

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// Sequence generates monotonically increasing uint32 ids in a
// concurrency-safe manner. The first Next returns start+1, so a sequence
// started at 0 never hands out 0 and callers may use it as "unset".
type Sequence struct {
	id atomic.Uint32
}

// NewSequence creates a Sequence whose first id is start+1.
//
// Parameters:
//   - start: The value to initialize the counter to
//
// Returns:
//   - A new Sequence
func NewSequence(start uint32) *Sequence {
	s := &Sequence{}
	s.id.Store(start)
	return s
}

// Next returns the next id. It is safe for concurrent use.
func (s *Sequence) Next() uint32 {
	return s.id.Add(1)
}

// Current returns the last id handed out, or the start value if none was.
func (s *Sequence) Current() uint32 {
	return s.id.Load()
}

// RandomKey returns a random, strictly positive int32 read from the
// system CSPRNG. Token keys come from here.
//
// Returns:
//   - The key
//   - An error if the random source failed
func RandomKey() (int32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random key: %w", err)
	}

	k := int32(binary.BigEndian.Uint32(b[:]) & 0x7fffffff)
	if k == 0 {
		k = 1
	}

	return k, nil
}
