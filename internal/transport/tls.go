package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig describes how to wrap a connection in TLS before the memcached
// binary protocol starts flowing. It is deliberately a client-dialer
// subset of the reference application's server-facing TLSConfig (no
// self-signed-certificate generation, no client-CA verification — those
// are server concerns) adapted to what a cache client actually needs:
// verifying the server, and optionally presenting a client certificate.
type TLSConfig struct {
	// ServerName overrides the SNI/verification name; defaults to the
	// dialed host when empty.
	ServerName string

	// CAFile, if set, is used instead of the system trust store.
	CAFile string

	// CertFile/KeyFile present a client certificate, for servers that
	// require mutual TLS.
	CertFile string
	KeyFile  string

	// InsecureSkipVerify disables server certificate verification. Only
	// ever meant for tests against a local, unverifiable server.
	InsecureSkipVerify bool

	MinVersion uint16
	MaxVersion uint16
}

// Build constructs a *tls.Config ready to pass to transport.Dial.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if c == nil {
		return nil, nil
	}

	cfg := &tls.Config{
		ServerName:         c.ServerName,
		InsecureSkipVerify: c.InsecureSkipVerify,
		MinVersion:         c.MinVersion,
		MaxVersion:         c.MaxVersion,
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}

	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("transport: read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("transport: parse CA file %s", c.CAFile)
		}
		cfg.RootCAs = pool
	}

	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}
