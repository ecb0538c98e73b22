package codec

import (
	"strconv"
	"strings"
)

// Int encodes int32 values in base 10.
type Int struct{}

// Encode implements Codec.
func (Int) Encode(v int32) string {
	return strconv.FormatInt(int64(v), 10)
}

// Decode implements Codec.
func (Int) Decode(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, mappingError("invalid int %q", s)
	}
	return int32(v), nil
}

// Int64 encodes int64 values in base 10.
type Int64 struct{}

// Encode implements Codec.
func (Int64) Encode(v int64) string {
	return strconv.FormatInt(v, 10)
}

// Decode implements Codec.
func (Int64) Decode(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, mappingError("invalid int64 %q", s)
	}
	return v, nil
}

// Bool encodes booleans as "true" and "false".
type Bool struct{}

// Encode implements Codec.
func (Bool) Encode(v bool) string {
	return strconv.FormatBool(v)
}

// Decode implements Codec.
func (Bool) Decode(s string) (bool, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, mappingError("invalid bool %q", s)
	}
	return v, nil
}

var (
	escaper = strings.NewReplacer(
		"%", "%25",
		"&", "%26",
		"#", "%23",
		"_", "%5F",
		"@", "%40",
		",", "%2C",
		"[", "%5B",
		"]", "%5D",
	)
	unescaper = strings.NewReplacer(
		"%25", "%",
		"%26", "&",
		"%23", "#",
		"%5F", "_",
		"%40", "@",
		"%2C", ",",
		"%5B", "[",
		"%5D", "]",
	)
)

// String encodes free text. Every marker and separator of the wire grammar
// is percent-escaped so a value can never split its frame.
type String struct{}

// Encode implements Codec.
func (String) Encode(v string) string {
	return escaper.Replace(v)
}

// Decode implements Codec.
func (String) Decode(s string) (string, error) {
	return unescaper.Replace(s), nil
}

// List encodes a slice as "[e1,e2,...]" using the element codec.
type List[T any] struct {
	Elem Codec[T]
}

// NewList returns a List codec over elem.
func NewList[T any](elem Codec[T]) List[T] {
	return List[T]{Elem: elem}
}

// Encode implements Codec.
func (l List[T]) Encode(v []T) string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = l.Elem.Encode(e)
	}
	return ListBegin + strings.Join(parts, CollectionSeparator) + ListEnd
}

// Decode implements Codec.
func (l List[T]) Decode(s string) ([]T, error) {
	if !strings.HasPrefix(s, ListBegin) || !strings.HasSuffix(s, ListEnd) || len(s) < 2 {
		return nil, mappingError("list %q is not bracketed", s)
	}

	body := s[len(ListBegin) : len(s)-len(ListEnd)]
	if body == "" {
		return []T{}, nil
	}

	parts := strings.Split(body, CollectionSeparator)
	out := make([]T, 0, len(parts))
	for _, p := range parts {
		e, err := l.Elem.Decode(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	return out, nil
}
