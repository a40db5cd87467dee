package codec

import "fmt"

// EncodeError reports a term that cannot be represented on the wire.
// The connection remains usable after one.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string {
	return "codec: encode: " + e.Reason
}

func encodeErrorf(format string, args ...any) error {
	return &EncodeError{Reason: fmt.Sprintf(format, args...)}
}

// DecodeError reports malformed response bytes.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "codec: decode: " + e.Reason
}

func decodeErrorf(format string, args ...any) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}
