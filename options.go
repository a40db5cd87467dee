package driftdb

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/driftdb/driftdb-go/internal/wire"
)

// SecurityMode selects the transport policy envelope.
type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

var (
	ErrAddressRequired         = errors.New("driftdb: server address required")
	ErrInvalidSecurityMode     = errors.New("driftdb: invalid security mode")
	ErrTLSRequired             = errors.New("driftdb: tls required")
	ErrMTLSRequired            = errors.New("driftdb: mtls required")
	ErrTLSCertFileRequired     = errors.New("driftdb: tls cert file required")
	ErrTLSKeyFileRequired      = errors.New("driftdb: tls key file required")
	ErrTLSCAFileRequired       = errors.New("driftdb: tls ca file required")
	ErrTLSInsecureSkipNotAllow = errors.New("driftdb: insecure skip verify not allowed")
)

// TLSOptions configures the optional TLS wrapping of the transport.
type TLSOptions struct {
	Enabled            bool
	Mutual             bool
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// ConnectOpts configures Connect and NewConnection.
type ConnectOpts struct {
	Address  string
	User     string
	Password string

	// Database, when set, is attached to every query as its default db.
	Database string

	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration

	SecurityMode SecurityMode
	TLS          TLSOptions

	// MaxResponseBytes caps a single response frame payload. Zero means
	// the default limit.
	MaxResponseBytes uint32
}

func (o ConnectOpts) withDefaults() ConnectOpts {
	if o.User == "" {
		o.User = "admin"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 5 * time.Second
	}
	if o.MaxResponseBytes == 0 {
		o.MaxResponseBytes = wire.DefaultLimits().MaxPayloadBytes
	}
	return o
}

func normalizeSecurityMode(mode SecurityMode) SecurityMode {
	if strings.TrimSpace(string(mode)) == "" {
		return SecurityModeDevelopment
	}
	return SecurityMode(strings.ToLower(strings.TrimSpace(string(mode))))
}

// ValidateTransport checks the transport security settings before any
// dial. Production mode refuses plaintext and one-way TLS.
func (o ConnectOpts) ValidateTransport() error {
	mode := normalizeSecurityMode(o.SecurityMode)
	switch mode {
	case SecurityModeDevelopment, SecurityModeProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSecurityMode, o.SecurityMode)
	}

	if mode == SecurityModeProduction {
		if !o.TLS.Enabled {
			return ErrTLSRequired
		}
		if !o.TLS.Mutual {
			return ErrMTLSRequired
		}
		if o.TLS.InsecureSkipVerify {
			return ErrTLSInsecureSkipNotAllow
		}
	}
	if o.TLS.Mutual && !o.TLS.Enabled {
		return ErrTLSRequired
	}
	if o.TLS.Enabled && strings.TrimSpace(o.TLS.CAFile) == "" && !o.TLS.InsecureSkipVerify {
		return ErrTLSCAFileRequired
	}
	if o.TLS.Mutual {
		if strings.TrimSpace(o.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(o.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	return nil
}

// RunOpts is the per-query options bag. Every field is passed through
// to the server verbatim; the driver attaches no meaning to any of
// them. Batch sizing in particular is server-controlled.
type RunOpts struct {
	// Noreply sends the query without registering for a response.
	Noreply bool

	Durability   string
	Profile      bool
	MaxBatchRows int

	// Extra carries any option not covered by a named field.
	Extra map[string]any
}

func (o RunOpts) toMap() map[string]any {
	out := make(map[string]any, len(o.Extra)+4)
	for k, v := range o.Extra {
		out[k] = v
	}
	if o.Noreply {
		out["noreply"] = true
	}
	if o.Durability != "" {
		out["durability"] = o.Durability
	}
	if o.Profile {
		out["profile"] = true
	}
	if o.MaxBatchRows > 0 {
		out["max_batch_rows"] = o.MaxBatchRows
	}
	return out
}
