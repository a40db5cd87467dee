package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	driftdb "github.com/driftdb/driftdb-go"
)

// driftctl.toml key mapping to connection settings.
type fileConfig struct {
	Addr             string `toml:"addr"`
	User             string `toml:"user"`
	Password         string `toml:"password"`
	Database         string `toml:"database"`
	ConnectTimeout   string `toml:"connect_timeout"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	SecurityMode     string `toml:"security_mode"`
	TLSEnabled       bool   `toml:"tls_enabled"`
	TLSMutual        bool   `toml:"tls_mutual"`
	TLSCertFile      string `toml:"tls_cert_file"`
	TLSKeyFile       string `toml:"tls_key_file"`
	TLSCAFile        string `toml:"tls_ca_file"`
	TLSServerName    string `toml:"tls_server_name"`
}

// loadConnectOpts reads a driftctl.toml and overlays only the keys the
// file actually defines, so absent keys keep their defaults.
func loadConnectOpts(path string) (driftdb.ConnectOpts, error) {
	var opts driftdb.ConnectOpts

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return driftdb.ConnectOpts{}, fmt.Errorf("load driftctl config: %w", err)
	}

	if meta.IsDefined("addr") {
		opts.Address = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("user") {
		opts.User = strings.TrimSpace(raw.User)
	}
	if meta.IsDefined("password") {
		opts.Password = raw.Password
	}
	if meta.IsDefined("database") {
		opts.Database = strings.TrimSpace(raw.Database)
	}
	if meta.IsDefined("connect_timeout") {
		d, err := parseTimeout(raw.ConnectTimeout)
		if err != nil {
			return driftdb.ConnectOpts{}, fmt.Errorf("load driftctl config: connect_timeout: %w", err)
		}
		opts.ConnectTimeout = d
	}
	if meta.IsDefined("handshake_timeout") {
		d, err := parseTimeout(raw.HandshakeTimeout)
		if err != nil {
			return driftdb.ConnectOpts{}, fmt.Errorf("load driftctl config: handshake_timeout: %w", err)
		}
		opts.HandshakeTimeout = d
	}
	if meta.IsDefined("security_mode") {
		opts.SecurityMode = driftdb.SecurityMode(strings.TrimSpace(raw.SecurityMode))
	}
	if meta.IsDefined("tls_enabled") {
		opts.TLS.Enabled = raw.TLSEnabled
	}
	if meta.IsDefined("tls_mutual") {
		opts.TLS.Mutual = raw.TLSMutual
	}
	if meta.IsDefined("tls_cert_file") {
		opts.TLS.CertFile = strings.TrimSpace(raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		opts.TLS.KeyFile = strings.TrimSpace(raw.TLSKeyFile)
	}
	if meta.IsDefined("tls_ca_file") {
		opts.TLS.CAFile = strings.TrimSpace(raw.TLSCAFile)
	}
	if meta.IsDefined("tls_server_name") {
		opts.TLS.ServerName = strings.TrimSpace(raw.TLSServerName)
	}

	return opts, nil
}

func parseTimeout(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

// resolveConnectOpts layers the connection settings: config file first,
// then the DRIFTDB_ADDR / DRIFTDB_USER / DRIFTDB_PASSWORD environment,
// then explicit flags.
func resolveConnectOpts() (driftdb.ConnectOpts, error) {
	var opts driftdb.ConnectOpts
	if flags.configPath != "" {
		loaded, err := loadConnectOpts(flags.configPath)
		if err != nil {
			return driftdb.ConnectOpts{}, err
		}
		opts = loaded
	}

	if addr := strings.TrimSpace(os.Getenv("DRIFTDB_ADDR")); addr != "" {
		opts.Address = addr
	}
	if user := strings.TrimSpace(os.Getenv("DRIFTDB_USER")); user != "" {
		opts.User = user
	}
	if password := os.Getenv("DRIFTDB_PASSWORD"); password != "" {
		opts.Password = password
	}

	if flags.addr != "" {
		opts.Address = flags.addr
	}
	if flags.user != "" {
		opts.User = flags.user
	}
	if flags.password != "" {
		opts.Password = flags.password
	}
	if flags.database != "" {
		opts.Database = flags.database
	}
	return opts, nil
}
