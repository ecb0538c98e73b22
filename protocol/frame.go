// Package protocol implements the gamenet wire grammar. A frame is
//
//	BEGIN <command> (SEPARATOR <field>)* END
//
// with BEGIN "&", END "#" and SEPARATOR "_". Field values come from the
// codec package, whose string codec escapes every marker, so the grammar
// itself never escapes.
package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Frame markers.
const (
	Begin     = "&"
	End       = "#"
	Separator = "_"
)

// Split cuts a raw buffer into individual frames. BEGIN markers are removed
// and the rest is split on END, so several concatenated frames from one read
// come back in order. Trailing empty pieces are dropped. An empty buffer
// yields a single empty frame.
//
// Parameters:
//   - buffer: Raw text as read from the transport
//
// Returns:
//   - The frame bodies, without markers
func Split(buffer string) []string {
	s := strings.ReplaceAll(buffer, Begin, "")
	if s == "" {
		return []string{""}
	}

	parts := strings.Split(s, End)
	n := len(parts)
	for n > 0 && parts[n-1] == "" {
		n--
	}

	return parts[:n]
}

// Assemble builds one frame from a command and already encoded fields.
//
// Parameters:
//   - cmd: The command id
//   - fields: Encoded field values, appended in order
//
// Returns:
//   - The frame, including BEGIN and END markers
func Assemble(cmd Command, fields ...string) string {
	var b strings.Builder
	b.WriteString(Begin)
	b.WriteString(strconv.Itoa(int(cmd)))
	for _, f := range fields {
		b.WriteString(Separator)
		b.WriteString(f)
	}
	b.WriteString(End)
	return b.String()
}

// ExtractCommand peeks the command id of a frame without decoding its
// payload. Dispatch by command happens on top of this.
//
// Returns:
//   - The command
//   - An error wrapping ErrMalformedFrame if the first token is not numeric
func ExtractCommand(raw string) (Command, error) {
	body := stripMarkers(raw)
	head, _, _ := strings.Cut(body, Separator)

	v, err := strconv.Atoi(head)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid command %q", ErrMalformedFrame, head)
	}

	return Command(v), nil
}

// ScanFrames is a bufio.SplitFunc that yields one END-terminated frame per
// token, markers included. Stream transports use it to reassemble frames
// that arrive split across reads.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, End[0]); i >= 0 {
		return i + 1, data[:i+1], nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}

func stripMarkers(raw string) string {
	raw = strings.ReplaceAll(raw, Begin, "")
	return strings.ReplaceAll(raw, End, "")
}
