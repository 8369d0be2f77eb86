// Package transport provides the stream-socket primitives the connection
// state machine builds on: dialing TCP or Unix sockets, optional TLS,
// per-call timeouts, and a read-exactly-n-bytes helper.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"
)

// DefaultSocketTimeout matches the spec's default of 3 seconds; 0 disables
// the timeout entirely.
const DefaultSocketTimeout = 3 * time.Second

// Conn wraps a dialed net.Conn (TCP or Unix) with the framing-level helpers
// the engine needs. It is not safe for concurrent use — exactly one
// goroutine may be sending or reading on it at a time; internal/engine
// enforces this with a call-scoped mutex around every operation.
type Conn struct {
	nc      net.Conn
	timeout time.Duration
}

// Dial opens network/address (as returned by ParseAddr) and, if tlsConfig
// is non-nil, performs the TLS handshake on top of the raw socket. The
// dial itself honors ctx's deadline; the resulting Conn then applies
// timeout to every subsequent Read/Write via SetDeadline.
func Dial(ctx context.Context, network, address string, timeout time.Duration, tlsConfig *tls.Config) (*Conn, error) {
	d := net.Dialer{}
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s %s: %w", network, address, err)
	}

	if tlsConfig != nil {
		tc := tls.Client(nc, tlsConfig)
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = nc.Close()
			return nil, fmt.Errorf("transport: tls handshake: %w", err)
		}
		nc = tc
	}

	return &Conn{nc: nc, timeout: timeout}, nil
}

func (c *Conn) deadline() time.Time {
	if c.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.timeout)
}

// SendAll writes the whole of b, applying the configured socket timeout.
func (c *Conn) SendAll(b []byte) error {
	if err := c.nc.SetWriteDeadline(c.deadline()); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if _, err := c.nc.Write(b); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// ReadExact reads exactly n bytes, looping until satisfied. A short read —
// the peer closing mid-frame — surfaces as an error the caller treats as a
// disconnect.
func (c *Conn) ReadExact(n int) ([]byte, error) {
	if err := c.nc.SetReadDeadline(c.deadline()); err != nil {
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.nc, buf); err != nil {
		return nil, fmt.Errorf("transport: read %d bytes: %w", n, err)
	}
	return buf, nil
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.nc.Close()
}
