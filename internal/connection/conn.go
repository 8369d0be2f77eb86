package connection

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jaysonsantos/gobmemcached/internal/metrics"
	"github.com/jaysonsantos/gobmemcached/internal/protocol"
	"github.com/jaysonsantos/gobmemcached/internal/transport"
)

// defaultRetryDelayTCP is armed when a TCP connect attempt fails.
// Unix-socket endpoints default to zero delay, since a local socket
// failing to accept is almost always a configuration error an operator
// wants surfaced immediately on the next try, not hidden behind a timer.
const defaultRetryDelayTCP = 5 * time.Second

// Conn owns one socket's worth of state for one endpoint: the dial, the
// optional SASL PLAIN handshake, and the connect/broken/deferred state
// machine described in state.go. Acquire itself is safe to call
// concurrently (state transitions are mutex-guarded), but the
// *transport.Conn it returns is not — callers must serialize their own
// send/recv pairs against it. internal/engine does this with a call-scoped
// mutex so only one request is ever in flight on this Conn's socket.
type Conn struct {
	network string
	address string
	label   string // metrics/log label, defaults to the endpoint string

	timeout   time.Duration
	tlsConfig *transport.TLSConfig

	username string
	password string
	hasCreds bool

	retryDelay     time.Duration
	retryEnabled   bool
	deferredUntil  time.Time
	state          State
	underlying     *transport.Conn
	mu             sync.Mutex
	log            *zap.Logger
}

// Option configures a Conn at construction time.
type Option func(*Conn)

// WithCredentials enables the SASL PLAIN handshake on connect.
func WithCredentials(username, password string) Option {
	return func(c *Conn) {
		c.username = username
		c.password = password
		c.hasCreds = true
	}
}

// WithTLS wraps the socket in TLS using cfg.
func WithTLS(cfg *transport.TLSConfig) Option {
	return func(c *Conn) { c.tlsConfig = cfg }
}

// WithSocketTimeout overrides transport.DefaultSocketTimeout.
func WithSocketTimeout(d time.Duration) Option {
	return func(c *Conn) { c.timeout = d }
}

// WithRetryDelay sets an explicit retry-delay duration, overriding the
// TCP/unix default. Exists mainly for tests that need deterministic, short
// windows; production callers should prefer WithRetryDelayEnabled.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Conn) { c.retryDelay = d }
}

// WithRetryDelayEnabled toggles the retry-delay window on or off, mirroring
// the public enable_retry_delay(bool) surface: true restores the 5s/0s
// per-network default, false forces zero (every deferred request retries
// immediately).
func WithRetryDelayEnabled(enabled bool) Option {
	return func(c *Conn) { c.retryEnabled = enabled }
}

// WithLogger injects a *zap.Logger; nil falls back to zap.NewNop(), the
// same default every other component in this codebase uses for an
// unconfigured logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Conn) {
		if log != nil {
			c.log = log
		}
	}
}

// WithLabel overrides the metrics/log label (defaults to the parsed
// endpoint address).
func WithLabel(label string) Option {
	return func(c *Conn) { c.label = label }
}

// New parses endpoint per internal/transport.ParseAddr and returns an
// unconnected Conn in state Idle. No socket is opened until the first
// Acquire.
func New(endpoint string, opts ...Option) *Conn {
	network, address := transport.ParseAddr(endpoint)

	c := &Conn{
		network:      network,
		address:      address,
		label:        endpoint,
		timeout:      transport.DefaultSocketTimeout,
		retryEnabled: true,
		state:        Idle,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retryDelay = c.effectiveRetryDelay()
	return c
}

func (c *Conn) effectiveRetryDelay() time.Duration {
	if !c.retryEnabled {
		return 0
	}
	if c.retryDelay != 0 {
		return c.retryDelay
	}
	if c.network == "unix" {
		return 0
	}
	return defaultRetryDelayTCP
}

// State returns the connection's current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	metrics.ConnectionState.WithLabelValues(c.label, c.state.String()).Set(0)
	c.state = s
	metrics.ConnectionState.WithLabelValues(c.label, s.String()).Set(1)
}

// Acquire returns a live, authenticated *transport.Conn for the caller to
// issue one request (or one pipelined batch) against. It drives the state
// machine: Idle/Deferred-past-deadline attempt a fresh connect (and SASL
// handshake if credentials are configured); Broken retries immediately,
// bypassing the deferral window; Deferred-before-deadline fails fast with
// ErrServerDisconnected without touching the network; Ready returns the
// existing socket.
func (c *Conn) Acquire(ctx context.Context) (*transport.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Ready:
		return c.underlying, nil
	case Deferred:
		if time.Now().Before(c.deferredUntil) {
			return nil, ErrServerDisconnected
		}
		// Deadline passed: fall through to a fresh connect attempt.
	case Broken:
		// Asymmetry: a mid-session break never arms the deferral window.
		// The very next request retries immediately.
	case Idle:
	default:
		// Connecting/Authenticating should never be observed at rest
		// since Acquire runs to completion synchronously; treat as Idle.
	}

	if c.underlying != nil {
		c.underlying.Close()
		c.underlying = nil
	}

	return c.connectLocked(ctx)
}

func (c *Conn) connectLocked(ctx context.Context) (*transport.Conn, error) {
	c.setState(Connecting)

	cfg, err := c.buildTLS()
	if err != nil {
		return nil, fmt.Errorf("connection: build tls config: %w", err)
	}

	nc, err := transport.Dial(ctx, c.network, c.address, c.timeout, cfg)
	if err != nil {
		c.deferredUntil = time.Now().Add(c.retryDelay)
		c.setState(Deferred)
		metrics.RetriesTotal.WithLabelValues(c.label, "failure").Inc()
		c.log.Warn("connect failed",
			zap.String("endpoint", c.label),
			zap.Duration("retry_delay", c.retryDelay),
			zap.Error(err))
		return nil, ErrServerDisconnected
	}
	metrics.RetriesTotal.WithLabelValues(c.label, "success").Inc()
	c.underlying = nc

	if c.hasCreds {
		c.setState(Authenticating)
		if err := c.authenticateLocked(ctx); err != nil {
			c.underlying.Close()
			c.underlying = nil
			c.setState(Idle)
			return nil, err
		}
	}

	c.setState(Ready)
	c.log.Debug("connection ready", zap.String("endpoint", c.label))
	return c.underlying, nil
}

// MarkBroken transitions a Ready connection to Broken after a mid-session
// I/O error observed by the engine. Per the state machine's asymmetry, this
// never arms the deferral window — the next Acquire retries immediately.
func (c *Conn) MarkBroken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.underlying != nil {
		c.underlying.Close()
		c.underlying = nil
	}
	c.setState(Broken)
	c.log.Debug("connection broken", zap.String("endpoint", c.label))
}

// Close releases the socket and resets to Idle. Used by the façade's
// DisconnectAll.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.underlying != nil {
		err = c.underlying.Close()
		c.underlying = nil
	}
	c.setState(Idle)
	return err
}

func (c *Conn) authenticateLocked(ctx context.Context) error {
	listHeader, listBody, err := c.roundTrip(ctx, protocol.OpSaslList, nil, nil, nil, 0)
	if err != nil {
		return err
	}
	if listHeader.Status == protocol.StatusUnknownCommand {
		metrics.AuthOutcomes.WithLabelValues(c.label, "not_required").Inc()
		return nil
	}
	if listHeader.Status != protocol.StatusSuccess {
		metrics.AuthOutcomes.WithLabelValues(c.label, "error").Inc()
		return &protocol.MemcachedError{Status: listHeader.Status, Message: string(listBody)}
	}

	mechanisms := strings.Fields(string(listBody))
	if !containsPlain(mechanisms) {
		metrics.AuthOutcomes.WithLabelValues(c.label, "unsupported").Inc()
		return ErrAuthenticationNotSupported
	}

	authValue := []byte("\x00" + c.username + "\x00" + c.password)
	authHeader, authBody, err := c.roundTrip(ctx, protocol.OpSaslAuth, []byte("PLAIN"), nil, authValue, 0)
	if err != nil {
		return err
	}

	switch authHeader.Status {
	case protocol.StatusSuccess:
		metrics.AuthOutcomes.WithLabelValues(c.label, "success").Inc()
		return nil
	case protocol.StatusAuthError:
		metrics.AuthOutcomes.WithLabelValues(c.label, "invalid_credentials").Inc()
		return ErrInvalidCredentials
	default:
		metrics.AuthOutcomes.WithLabelValues(c.label, "error").Inc()
		return &protocol.MemcachedError{Status: authHeader.Status, Message: string(authBody)}
	}
}

// roundTrip sends one request frame and reads its response header + body.
// Used only by the SASL handshake, which is never pipelined.
func (c *Conn) roundTrip(ctx context.Context, opcode protocol.Opcode, key, extras, value []byte, cas uint64) (protocol.Header, []byte, error) {
	frame := protocol.Encode(opcode, key, extras, value, cas, 0)
	if err := c.underlying.SendAll(frame); err != nil {
		return protocol.Header{}, nil, err
	}
	headerBytes, err := c.underlying.ReadExact(protocol.HeaderLen)
	if err != nil {
		return protocol.Header{}, nil, err
	}
	header, err := protocol.DecodeHeader(headerBytes)
	if err != nil {
		return protocol.Header{}, nil, err
	}
	body, err := c.underlying.ReadExact(int(header.BodyLen))
	if err != nil {
		return protocol.Header{}, nil, err
	}
	return header, body, nil
}

func (c *Conn) buildTLS() (*tls.Config, error) {
	if c.tlsConfig == nil {
		return nil, nil
	}
	return c.tlsConfig.Build()
}

func containsPlain(mechanisms []string) bool {
	for _, m := range mechanisms {
		if strings.EqualFold(m, "PLAIN") {
			return true
		}
	}
	return false
}
