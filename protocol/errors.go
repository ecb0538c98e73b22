package protocol

import (
	"errors"

	"github.com/cyberinferno/gamenet/codec"
)

var (
	// ErrMalformedFrame is returned for frames without a numeric command or
	// without the separator that follows it.
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	// ErrMapping is codec.ErrMapping, re-exported so callers of this package
	// can match payload failures without importing codec.
	ErrMapping = codec.ErrMapping
	// ErrCommandMismatch is returned when a frame carries a command other
	// than the one the caller asked to parse.
	ErrCommandMismatch = errors.New("protocol: command mismatch")
	// ErrTransport wraps failures reported by a transport adapter.
	ErrTransport = errors.New("protocol: transport failure")
)
