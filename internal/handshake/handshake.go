// Package handshake negotiates protocol version and authenticates the
// client over a raw stream, before any query traffic.
//
// Messages in this phase are null-byte-delimited UTF-8 JSON, not
// length-prefixed; the caller switches to the binary framing once the
// handshake reports Ready.
package handshake

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/driftdb/driftdb-go/internal/scram"
)

// Protocol version magic for V1_0, written little-endian as the first
// four bytes on the stream.
const MagicV1_0 uint32 = 0x34c2bdc3

const (
	subProtocolVersion   = 0
	authenticationMethod = "SCRAM-SHA-256"

	// Null-delimited messages have no length prefix, so cap them.
	maxMessageBytes = 128 * 1024
)

// Handshake phases, reported on failure.
const (
	PhaseVersion   = "version"
	PhaseAuthFirst = "auth-first"
	PhaseAuthFinal = "auth-final"
	PhaseVerify    = "verify"
)

var (
	ErrAuthentication  = errors.New("handshake: authentication failed")
	ErrIntegrity       = errors.New("handshake: server signature mismatch")
	ErrProtocolVersion = errors.New("handshake: protocol version not supported by server")
	ErrMessageTooLarge = errors.New("handshake: server message too large")
	ErrRejected        = errors.New("handshake: rejected by server")
)

// Error wraps a handshake failure with the phase it occurred in.
type Error struct {
	Phase string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("handshake: phase %s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func failed(phase string, err error) (*Result, error) {
	return nil, &Error{Phase: phase, Err: err}
}

// Config carries the credentials for one handshake.
type Config struct {
	User     string
	Password string

	// nonce overrides the random SCRAM nonce in tests.
	nonce string
}

// Result describes the server after a successful handshake.
type Result struct {
	ServerVersion      string
	MinProtocolVersion int64
	MaxProtocolVersion int64
}

type clientFirst struct {
	ProtocolVersion      int64  `json:"protocol_version"`
	AuthenticationMethod string `json:"authentication_method"`
	Authentication       string `json:"authentication"`
}

type clientFinal struct {
	Authentication string `json:"authentication"`
}

// serverReply covers every null-delimited JSON message the server sends
// during the handshake; unused fields stay at their zero value.
type serverReply struct {
	Success            bool   `json:"success"`
	Error              string `json:"error"`
	ErrorCode          int64  `json:"error_code"`
	Authentication     string `json:"authentication"`
	MinProtocolVersion int64  `json:"min_protocol_version"`
	MaxProtocolVersion int64  `json:"max_protocol_version"`
	ServerVersion      string `json:"server_version"`
}

// Do runs the V1_0 handshake over the stream. It never retries and
// never closes the stream; both are the caller's policy. The reader is
// taken rather than a plain io.Reader so no buffered bytes are lost to
// the framing layer that takes over afterwards.
func Do(r *bufio.Reader, w io.Writer, cfg Config) (*Result, error) {
	conv, err := newConversation(cfg)
	if err != nil {
		return failed(PhaseVersion, err)
	}

	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], MagicV1_0)
	if _, err := w.Write(magic[:]); err != nil {
		return failed(PhaseVersion, err)
	}
	first := clientFirst{
		ProtocolVersion:      subProtocolVersion,
		AuthenticationMethod: authenticationMethod,
		Authentication:       conv.FirstMessage(),
	}
	if err := writeMessage(w, first); err != nil {
		return failed(PhaseVersion, err)
	}

	version, err := readReply(r)
	if err != nil {
		return failed(PhaseVersion, err)
	}
	if !version.Success {
		return failed(PhaseVersion, replyError(version))
	}
	if subProtocolVersion < version.MinProtocolVersion || subProtocolVersion > version.MaxProtocolVersion {
		return failed(PhaseVersion, fmt.Errorf("%w: server supports %d..%d",
			ErrProtocolVersion, version.MinProtocolVersion, version.MaxProtocolVersion))
	}
	result := &Result{
		ServerVersion:      version.ServerVersion,
		MinProtocolVersion: version.MinProtocolVersion,
		MaxProtocolVersion: version.MaxProtocolVersion,
	}

	serverFirst, err := readReply(r)
	if err != nil {
		return failed(PhaseAuthFirst, err)
	}
	if !serverFirst.Success {
		return failed(PhaseAuthFirst, replyError(serverFirst))
	}
	finalMessage, err := conv.FinalMessage(serverFirst.Authentication)
	if err != nil {
		return failed(PhaseAuthFirst, err)
	}

	if err := writeMessage(w, clientFinal{Authentication: finalMessage}); err != nil {
		return failed(PhaseAuthFinal, err)
	}
	serverFinal, err := readReply(r)
	if err != nil {
		return failed(PhaseAuthFinal, err)
	}
	if !serverFinal.Success {
		return failed(PhaseAuthFinal, replyError(serverFinal))
	}

	if err := conv.VerifyServerFinal(serverFinal.Authentication); err != nil {
		if errors.Is(err, scram.ErrSignatureMismatch) {
			err = ErrIntegrity
		}
		return failed(PhaseVerify, err)
	}
	return result, nil
}

func newConversation(cfg Config) (*scram.Conversation, error) {
	if cfg.nonce != "" {
		return scram.NewConversationWithNonce(cfg.User, cfg.Password, cfg.nonce), nil
	}
	return scram.NewConversation(cfg.User, cfg.Password)
}

// replyError maps a success=false reply onto the error taxonomy. Error
// codes 10 through 20 are defined by the protocol to be authentication
// failures.
func replyError(reply *serverReply) error {
	if reply.ErrorCode >= 10 && reply.ErrorCode <= 20 {
		return fmt.Errorf("%w: %s", ErrAuthentication, reply.Error)
	}
	if reply.Error != "" {
		return fmt.Errorf("%w: %s", ErrRejected, reply.Error)
	}
	return ErrRejected
}

func writeMessage(w io.Writer, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	payload = append(payload, 0)
	_, err = w.Write(payload)
	return err
}

// readReply reads one null-terminated message, enforcing the size cap
// as it goes so an unterminated flood cannot buffer without bound.
func readReply(r *bufio.Reader) (*serverReply, error) {
	raw := make([]byte, 0, 256)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == 0 {
			break
		}
		if len(raw) >= maxMessageBytes {
			return nil, ErrMessageTooLarge
		}
		raw = append(raw, b)
	}
	var reply serverReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("handshake: malformed server reply: %w", err)
	}
	return &reply, nil
}
