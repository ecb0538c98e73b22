package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cyberinferno/gamenet/codec"
)

// Framer is anything that can render itself as one wire frame.
type Framer interface {
	Frame() string
}

// Message is the envelope exchanged between peers: a command, the encoded
// payload and the typed value it encodes.
type Message[T any] struct {
	Command Command
	Payload string
	Value   T
}

// Build creates an outbound message by encoding v with c.
//
// Parameters:
//   - v: The value to send
//   - c: Codec for the value type
//   - cmd: Command of the message
//
// Returns:
//   - The message, ready to be framed
func Build[T any](v T, c codec.Codec[T], cmd Command) Message[T] {
	return Message[T]{
		Command: cmd,
		Payload: c.Encode(v),
		Value:   v,
	}
}

// Parse decodes an inbound frame. The caller states which command it
// expects; a different command is a contract violation reported as
// ErrCommandMismatch, not a dispatch decision.
//
// Parameters:
//   - raw: The frame, with or without markers
//   - c: Codec for the payload type
//   - expected: The command the frame must carry
//
// Returns:
//   - The decoded message
//   - An error wrapping ErrMalformedFrame, ErrCommandMismatch or ErrMapping
func Parse[T any](raw string, c codec.Codec[T], expected Command) (Message[T], error) {
	body := stripMarkers(raw)

	head, payload, found := strings.Cut(body, Separator)
	if !found {
		return Message[T]{}, fmt.Errorf("%w: missing separator in %q", ErrMalformedFrame, body)
	}

	n, err := strconv.Atoi(head)
	if err != nil {
		return Message[T]{}, fmt.Errorf("%w: invalid command %q", ErrMalformedFrame, head)
	}

	cmd := Command(n)
	if cmd != expected {
		return Message[T]{}, fmt.Errorf("%w: got %s, expected %s", ErrCommandMismatch, cmd, expected)
	}

	v, err := c.Decode(payload)
	if err != nil {
		return Message[T]{}, fmt.Errorf("decode %s payload: %w", cmd, err)
	}

	return Message[T]{Command: cmd, Payload: payload, Value: v}, nil
}

// Frame implements Framer.
func (m Message[T]) Frame() string {
	return Assemble(m.Command, m.Payload)
}
