package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/driftdb/driftdb-go/internal/testutil/testlog"
)

func TestFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	payload := []byte(`[1,[16,[[15,["users"]],"id-42"]],{}]`)
	if err := WriteFrame(&buf, 7, payload, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	token, got, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if token != 7 {
		t.Fatalf("token %d, want 7", token)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload %q, want %q", got, payload)
	}
}

func TestFrameHeaderLayoutIsLittleEndian(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, 0x0102030405060708, []byte("{}"), DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	raw := buf.Bytes()
	wantHeader := []byte{
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0x02, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(raw[:HeaderLen], wantHeader) {
		t.Fatalf("header % x, want % x", raw[:HeaderLen], wantHeader)
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	testlog.Start(t)
	_, _, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, 1, []byte(`[2]`), DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-2]
	_, _, err := ReadFrame(bytes.NewReader(truncated), DefaultLimits())
	if !errors.Is(err, ErrTruncatedPayload) {
		t.Fatalf("expected ErrTruncatedPayload, got %v", err)
	}
}

func TestFrameLimits(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxPayloadBytes: 4}

	if err := WriteFrame(&bytes.Buffer{}, 1, []byte("12345"), limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge on write, got %v", err)
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, 1, []byte("12345"), DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if _, _, err := ReadFrame(&buf, limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge on read, got %v", err)
	}
}

func TestReadFrameEmptyPayload(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, 3, nil, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	token, payload, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if token != 3 || len(payload) != 0 {
		t.Fatalf("unexpected frame: token=%d payload=%q", token, payload)
	}
}
