package scram

import (
	"errors"
	"strings"
	"testing"

	"github.com/driftdb/driftdb-go/internal/testutil/testlog"
)

// Exchange from RFC 7677 section 3.
const (
	rfcUser        = "user"
	rfcPassword    = "pencil"
	rfcNonce       = "rOprNGfwEbeRWgbNEkqO"
	rfcServerFirst = "r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096"
	rfcClientFinal = "c=biws,r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,p=dHzbZapWIk4jUhN+Ute9ytag9zjfMHgsqmmiz7AndVQ="
	rfcServerFinal = "v=6rriTRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4="
)

func TestConversationMatchesRFC7677Vector(t *testing.T) {
	testlog.Start(t)
	conv := NewConversationWithNonce(rfcUser, rfcPassword, rfcNonce)

	if got := conv.FirstMessage(); got != "n,,n=user,r="+rfcNonce {
		t.Fatalf("client first %q", got)
	}
	final, err := conv.FinalMessage(rfcServerFirst)
	if err != nil {
		t.Fatalf("final message: %v", err)
	}
	if final != rfcClientFinal {
		t.Fatalf("client final\n got %q\nwant %q", final, rfcClientFinal)
	}
	if err := conv.VerifyServerFinal(rfcServerFinal); err != nil {
		t.Fatalf("verify server final: %v", err)
	}
}

func TestVerifyServerFinalRejectsForgedSignature(t *testing.T) {
	testlog.Start(t)
	conv := NewConversationWithNonce(rfcUser, rfcPassword, rfcNonce)
	if _, err := conv.FinalMessage(rfcServerFirst); err != nil {
		t.Fatalf("final message: %v", err)
	}
	forged := "v=AAAATRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4="
	if err := conv.VerifyServerFinal(forged); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestVerifyServerFinalSurfacesServerError(t *testing.T) {
	testlog.Start(t)
	conv := NewConversationWithNonce(rfcUser, rfcPassword, rfcNonce)
	if _, err := conv.FinalMessage(rfcServerFirst); err != nil {
		t.Fatalf("final message: %v", err)
	}
	err := conv.VerifyServerFinal("e=invalid-proof")
	var srvErr *ServerError
	if !errors.As(err, &srvErr) || srvErr.Detail != "invalid-proof" {
		t.Fatalf("expected ServerError, got %v", err)
	}
}

func TestFinalMessageRejectsBadServerFirst(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name        string
		serverFirst string
		want        error
	}{
		{"foreign nonce", "r=somebodyElse,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096", ErrServerNonce},
		{"unextended nonce", "r=" + rfcNonce + ",s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096", ErrServerNonce},
		{"missing salt", "r=" + rfcNonce + "ext,i=4096", ErrMalformedMessage},
		{"bad iterations", "r=" + rfcNonce + "ext,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=zero", ErrIterationCount},
		{"negative iterations", "r=" + rfcNonce + "ext,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=-1", ErrIterationCount},
		{"garbage", "not scram at all", ErrMalformedMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conv := NewConversationWithNonce(rfcUser, rfcPassword, rfcNonce)
			if _, err := conv.FinalMessage(tc.serverFirst); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUsernameEscaping(t *testing.T) {
	testlog.Start(t)
	conv := NewConversationWithNonce("a=b,c", "pw", rfcNonce)
	first := conv.FirstMessage()
	if !strings.Contains(first, "n=a=3Db=2Cc,") {
		t.Fatalf("username not escaped: %q", first)
	}
}

func TestNewConversationGeneratesDistinctNonces(t *testing.T) {
	testlog.Start(t)
	a, err := NewConversation(rfcUser, rfcPassword)
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	b, err := NewConversation(rfcUser, rfcPassword)
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	if a.nonce == b.nonce {
		t.Fatalf("nonces collided")
	}
}
