package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	driftdb "github.com/driftdb/driftdb-go"
)

func TestLoadConnectOptsOverrides(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "driftctl.toml")
	content := `
addr = "db.internal:28015"
user = "svc-reporting"
password = "hunter2"
database = "reports"
connect_timeout = "3s"
handshake_timeout = "1500ms"
security_mode = "production"
tls_enabled = true
tls_mutual = true
tls_cert_file = "/etc/driftdb/client.crt"
tls_key_file = "/etc/driftdb/client.key"
tls_ca_file = "/etc/driftdb/ca.crt"
tls_server_name = "db.internal"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	opts, err := loadConnectOpts(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if opts.Address != "db.internal:28015" {
		t.Fatalf("unexpected address: %q", opts.Address)
	}
	if opts.User != "svc-reporting" || opts.Password != "hunter2" {
		t.Fatalf("unexpected credentials: %q/%q", opts.User, opts.Password)
	}
	if opts.Database != "reports" {
		t.Fatalf("unexpected database: %q", opts.Database)
	}
	if opts.ConnectTimeout != 3*time.Second {
		t.Fatalf("unexpected connect timeout: %v", opts.ConnectTimeout)
	}
	if opts.HandshakeTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected handshake timeout: %v", opts.HandshakeTimeout)
	}
	if opts.SecurityMode != driftdb.SecurityModeProduction {
		t.Fatalf("unexpected security mode: %q", opts.SecurityMode)
	}
	if !opts.TLS.Enabled || !opts.TLS.Mutual {
		t.Fatalf("tls settings not applied: %+v", opts.TLS)
	}
	if opts.TLS.ServerName != "db.internal" {
		t.Fatalf("unexpected tls server name: %q", opts.TLS.ServerName)
	}
	if err := opts.ValidateTransport(); err != nil {
		t.Fatalf("loaded config fails transport validation: %v", err)
	}
}

func TestLoadConnectOptsUndefinedKeysStayZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftctl.toml")
	if err := os.WriteFile(path, []byte(`
addr = "localhost:28015"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	opts, err := loadConnectOpts(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if opts.Address != "localhost:28015" {
		t.Fatalf("unexpected address: %q", opts.Address)
	}
	if opts.User != "" || opts.Database != "" {
		t.Fatalf("undefined keys were set: %+v", opts)
	}
	if opts.ConnectTimeout != 0 || opts.TLS.Enabled {
		t.Fatalf("undefined keys were set: %+v", opts)
	}
}

func TestLoadConnectOptsRejectsBadTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftctl.toml")
	if err := os.WriteFile(path, []byte(`
connect_timeout = "soon"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := loadConnectOpts(path); err == nil {
		t.Fatalf("expected timeout parse error")
	}
}

func TestResolveConnectOptsPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftctl.toml")
	if err := os.WriteFile(path, []byte(`
addr = "file.internal:28015"
user = "file-user"
database = "filedb"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DRIFTDB_ADDR", "env.internal:28015")
	t.Setenv("DRIFTDB_USER", "")
	t.Setenv("DRIFTDB_PASSWORD", "")

	flags.configPath = path
	flags.addr = ""
	flags.user = "flag-user"
	flags.password = ""
	flags.database = ""
	t.Cleanup(func() { flags.configPath, flags.user = "", "" })

	opts, err := resolveConnectOpts()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if opts.Address != "env.internal:28015" {
		t.Fatalf("env address not applied: %q", opts.Address)
	}
	if opts.User != "flag-user" {
		t.Fatalf("flag user not applied: %q", opts.User)
	}
	if opts.Database != "filedb" {
		t.Fatalf("file database lost: %q", opts.Database)
	}
}
