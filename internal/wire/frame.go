// Package wire implements the post-handshake framing:
// [8-byte little-endian token][4-byte little-endian length][payload],
// symmetric for requests and responses.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

const HeaderLen = 12

var (
	ErrShortHeader      = errors.New("wire: short frame header")
	ErrTruncatedPayload = errors.New("wire: truncated frame payload")
	ErrPayloadTooLarge  = errors.New("wire: payload too large")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 64 * 1024 * 1024}
}

// WriteFrame emits one complete frame with a single Write call so a
// frame's bytes are never interleaved with another writer's at the
// stream level.
func WriteFrame(w io.Writer, token uint64, payload []byte, limits Limits) error {
	if limits.MaxPayloadBytes > 0 && uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderLen+len(payload))
	binary.LittleEndian.PutUint64(buf[0:8], token)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[HeaderLen:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one complete frame off the stream.
func ReadFrame(r io.Reader, limits Limits) (uint64, []byte, error) {
	var header [HeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, ErrShortHeader
		}
		return 0, nil, err
	}

	token := binary.LittleEndian.Uint64(header[0:8])
	length := binary.LittleEndian.Uint32(header[8:12])
	if limits.MaxPayloadBytes > 0 && length > limits.MaxPayloadBytes {
		return 0, nil, ErrPayloadTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, nil, ErrTruncatedPayload
			}
			return 0, nil, err
		}
	}
	return token, payload, nil
}
