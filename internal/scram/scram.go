// Package scram implements the client side of SCRAM-SHA-256
// (RFC 5802, RFC 7677) as used by the connection handshake.
package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	gs2Header    = "n,,"
	channelBind  = "c=biws"
	nonceEntropy = 18
)

var (
	ErrMalformedMessage  = errors.New("scram: malformed server message")
	ErrServerNonce       = errors.New("scram: server nonce does not extend client nonce")
	ErrIterationCount    = errors.New("scram: invalid iteration count")
	ErrSignatureMismatch = errors.New("scram: server signature mismatch")
)

// ServerError is an e= attribute carried in a server-final message.
type ServerError struct {
	Detail string
}

func (e *ServerError) Error() string {
	return "scram: server rejected authentication: " + e.Detail
}

// Conversation tracks one client authentication exchange. Not safe for
// concurrent use; the handshake drives it sequentially.
type Conversation struct {
	user            string
	password        string
	nonce           string
	clientFirstBare string
	serverSignature []byte
}

// NewConversation starts an exchange with a fresh random nonce.
func NewConversation(user, password string) (*Conversation, error) {
	raw := make([]byte, nonceEntropy)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("scram: nonce: %w", err)
	}
	return newConversation(user, password, base64.RawStdEncoding.EncodeToString(raw)), nil
}

// NewConversationWithNonce starts an exchange with a caller-chosen
// nonce. Intended for deterministic protocol tests and debugging.
func NewConversationWithNonce(user, password, nonce string) *Conversation {
	return newConversation(user, password, nonce)
}

func newConversation(user, password, nonce string) *Conversation {
	c := &Conversation{user: user, password: password, nonce: nonce}
	c.clientFirstBare = "n=" + escapeUsername(user) + ",r=" + nonce
	return c
}

// FirstMessage is the client-first message, including the GS2 header.
func (c *Conversation) FirstMessage() string {
	return gs2Header + c.clientFirstBare
}

// FinalMessage consumes the server-first message and produces the
// client-final message carrying the proof. The expected server
// signature is retained for VerifyServerFinal.
func (c *Conversation) FinalMessage(serverFirst string) (string, error) {
	attrs, err := parseAttributes(serverFirst)
	if err != nil {
		return "", err
	}
	serverNonce, ok := attrs["r"]
	if !ok || !strings.HasPrefix(serverNonce, c.nonce) || serverNonce == c.nonce {
		return "", ErrServerNonce
	}
	saltB64, ok := attrs["s"]
	if !ok {
		return "", fmt.Errorf("%w: missing salt", ErrMalformedMessage)
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return "", fmt.Errorf("%w: salt: %v", ErrMalformedMessage, err)
	}
	iterations, err := strconv.Atoi(attrs["i"])
	if err != nil || iterations <= 0 {
		return "", ErrIterationCount
	}

	salted := pbkdf2.Key([]byte(c.password), salt, iterations, sha256.Size, sha256.New)
	clientKey := hmacSum(salted, "Client Key")
	storedKey := sha256.Sum256(clientKey)

	withoutProof := channelBind + ",r=" + serverNonce
	authMessage := c.clientFirstBare + "," + serverFirst + "," + withoutProof

	clientSignature := hmacSum(storedKey[:], authMessage)
	proof := make([]byte, len(clientKey))
	for i := range clientKey {
		proof[i] = clientKey[i] ^ clientSignature[i]
	}

	serverKey := hmacSum(salted, "Server Key")
	c.serverSignature = hmacSum(serverKey, authMessage)

	return withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof), nil
}

// VerifyServerFinal checks the server's signature against the value
// computed locally. This is the only proof the server holds the shared
// secret, so a mismatch is an authentication-integrity failure.
func (c *Conversation) VerifyServerFinal(serverFinal string) error {
	attrs, err := parseAttributes(serverFinal)
	if err != nil {
		return err
	}
	if detail, ok := attrs["e"]; ok {
		return &ServerError{Detail: detail}
	}
	sigB64, ok := attrs["v"]
	if !ok {
		return fmt.Errorf("%w: missing verifier", ErrMalformedMessage)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("%w: verifier: %v", ErrMalformedMessage, err)
	}
	if len(c.serverSignature) == 0 || !hmac.Equal(sig, c.serverSignature) {
		return ErrSignatureMismatch
	}
	return nil
}

func hmacSum(key []byte, message string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}

func parseAttributes(message string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, part := range strings.Split(message, ",") {
		name, value, found := strings.Cut(part, "=")
		if !found || len(name) != 1 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedMessage, part)
		}
		if _, dup := attrs[name]; !dup {
			attrs[name] = value
		}
	}
	return attrs, nil
}

func escapeUsername(user string) string {
	user = strings.ReplaceAll(user, "=", "=3D")
	return strings.ReplaceAll(user, ",", "=2C")
}
