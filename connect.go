package driftdb

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/driftdb/driftdb-go/internal/handshake"
)

// Connect dials the server, performs the handshake, and returns a live
// connection with its reader running.
func Connect(ctx context.Context, opts ConnectOpts) (*Connection, error) {
	opts = opts.withDefaults()
	if strings.TrimSpace(opts.Address) == "" {
		return nil, ErrAddressRequired
	}
	if err := opts.ValidateTransport(); err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, fmt.Errorf("driftdb: dial %s: %w", opts.Address, err)
	}

	stream := net.Conn(rawConn)
	if opts.TLS.Enabled {
		tlsCfg, err := clientTLSConfig(opts)
		if err != nil {
			_ = rawConn.Close()
			return nil, err
		}
		tlsConn := tls.Client(rawConn, tlsCfg)
		tlsCtx, cancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
		defer cancel()
		if err := tlsConn.HandshakeContext(tlsCtx); err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("driftdb: tls handshake: %w", err)
		}
		stream = tlsConn
	}

	return NewConnection(ctx, stream, opts)
}

// NewConnection runs the protocol handshake over a caller-supplied
// stream and, on success, hands the stream to the multiplexer. The
// stream is closed on handshake failure.
func NewConnection(ctx context.Context, stream io.ReadWriteCloser, opts ConnectOpts) (*Connection, error) {
	opts = opts.withDefaults()

	if conn, ok := stream.(net.Conn); ok {
		deadline := time.Now().Add(opts.HandshakeTimeout)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		_ = conn.SetDeadline(deadline)
		defer func() { _ = conn.SetDeadline(time.Time{}) }()
	}

	c := newConnection(stream, opts)
	result, err := handshake.Do(c.reader, stream, handshake.Config{
		User:     opts.User,
		Password: opts.Password,
	})
	if err != nil {
		_ = stream.Close()
		return nil, err
	}
	c.serverVersion = result.ServerVersion

	c.start()
	return c, nil
}

// clientTLSConfig builds the TLS client setup from the connect options.
func clientTLSConfig(opts ConnectOpts) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.TLS.InsecureSkipVerify,
	}

	serverName := strings.TrimSpace(opts.TLS.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(opts.Address)
		if err != nil {
			return nil, fmt.Errorf("driftdb: server name from address: %w", err)
		}
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(opts.TLS.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("driftdb: read tls ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("driftdb: parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}

	if opts.TLS.Mutual {
		cert, err := tls.LoadX509KeyPair(opts.TLS.CertFile, opts.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("driftdb: load client keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
