// Package engine implements the per-endpoint protocol engine: it turns the
// typed storage/counter/admin operations into binary-protocol frames,
// drives the pipelining and response-draining rules of the wire format, and
// folds a disconnected server into the neutral per-operation results the
// router and façade expect rather than raising an error for every dropped
// connection.
//
// The shape — an Engine wrapping one internal/connection.Conn, with
// optional rate limiting and promauto metrics — is grounded on the
// reference application's internal/drivers package, which wraps a backend
// client in the same way (retry policy, circuit breaker, metrics) without
// mixing that plumbing into the backend calls themselves.
package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jaysonsantos/gobmemcached/internal/connection"
	"github.com/jaysonsantos/gobmemcached/internal/metrics"
	"github.com/jaysonsantos/gobmemcached/internal/protocol"
	"github.com/jaysonsantos/gobmemcached/internal/transport"
	"github.com/jaysonsantos/gobmemcached/internal/valuecodec"
)

// Item is one successfully fetched value and its CAS token.
type Item struct {
	Value any
	Cas   uint64
}

// Engine is the protocol driver for one memcached endpoint. It owns exactly
// one socket; callMu serializes every operation (acquire through the last
// byte of the response) onto that socket so concurrent callers queue for
// their turn instead of interleaving frames on the same connection.
type Engine struct {
	conn    *connection.Conn
	codec   *valuecodec.Codec
	limiter *rate.Limiter
	log     *zap.Logger
	label   string

	compressLevel int

	callMu sync.Mutex
}

// Option configures an Engine at construction.
type Option func(*engineConfig)

type engineConfig struct {
	connOpts      []connection.Option
	codec         *valuecodec.Codec
	limiter       *rate.Limiter
	log           *zap.Logger
	label         string
	compressLevel int
}

// WithCredentials enables the SASL PLAIN handshake on the underlying
// connection.
func WithCredentials(username, password string) Option {
	return func(c *engineConfig) {
		c.connOpts = append(c.connOpts, connection.WithCredentials(username, password))
	}
}

// WithTLS wraps the underlying socket in TLS.
func WithTLS(cfg *transport.TLSConfig) Option {
	return func(c *engineConfig) {
		c.connOpts = append(c.connOpts, connection.WithTLS(cfg))
	}
}

// WithSocketTimeout overrides the connection's socket timeout.
func WithSocketTimeout(d time.Duration) Option {
	return func(c *engineConfig) {
		c.connOpts = append(c.connOpts, connection.WithSocketTimeout(d))
	}
}

// WithCodec overrides the default deflate+gob value codec.
func WithCodec(codec *valuecodec.Codec) Option {
	return func(c *engineConfig) { c.codec = codec }
}

// WithCompressLevel sets the compressLevel passed to the codec on every
// Encode call: -1 default, 0 disabled, 1..9 quality.
func WithCompressLevel(level int) Option {
	return func(c *engineConfig) { c.compressLevel = level }
}

// WithRateLimit bounds outbound requests to rps with the given burst,
// generalizing the reference application's internal/ratelimit.BurstLimiter
// token bucket from HTTP requests to memcached frames. Every frame in a
// pipelined batch consumes one token.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *engineConfig) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithLogger injects a *zap.Logger, propagated to the underlying
// connection as well.
func WithLogger(log *zap.Logger) Option {
	return func(c *engineConfig) {
		if log != nil {
			c.log = log
			c.connOpts = append(c.connOpts, connection.WithLogger(log))
		}
	}
}

// WithRetryDelayEnabled toggles the connection's retry-delay window.
func WithRetryDelayEnabled(enabled bool) Option {
	return func(c *engineConfig) {
		c.connOpts = append(c.connOpts, connection.WithRetryDelayEnabled(enabled))
	}
}

// WithLabel overrides the metrics/log label for this endpoint.
func WithLabel(label string) Option {
	return func(c *engineConfig) {
		c.label = label
		c.connOpts = append(c.connOpts, connection.WithLabel(label))
	}
}

// New builds an Engine for a single endpoint string (see
// internal/transport.ParseAddr for the accepted grammar).
func New(endpoint string, opts ...Option) *Engine {
	cfg := &engineConfig{
		codec:         valuecodec.New(),
		compressLevel: -1,
		log:           zap.NewNop(),
		label:         endpoint,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Engine{
		conn:          connection.New(endpoint, cfg.connOpts...),
		codec:         cfg.codec,
		limiter:       cfg.limiter,
		log:           cfg.log,
		label:         cfg.label,
		compressLevel: cfg.compressLevel,
	}
}

// Close releases the endpoint's socket, if any.
func (e *Engine) Close() error { return e.conn.Close() }

// State exposes the underlying connection's lifecycle state.
func (e *Engine) State() connection.State { return e.conn.State() }

// acquire obtains the endpoint's connection for one operation. disconnected
// is true when the server is unreachable or deferred — callers translate
// that into their operation's neutral result. A non-nil err is always
// permanent (auth failure, bad TLS config) and must propagate to the
// caller.
func (e *Engine) acquire(ctx context.Context) (tc *transport.Conn, disconnected bool, err error) {
	tc, err = e.conn.Acquire(ctx)
	if err != nil {
		if errors.Is(err, connection.ErrServerDisconnected) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return tc, false, nil
}

// send writes one frame, waiting on the rate limiter first if configured.
func (e *Engine) send(ctx context.Context, tc *transport.Conn, frame []byte) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return tc.SendAll(frame)
}

// recv reads one response header and its body.
func (e *Engine) recv(tc *transport.Conn) (protocol.Header, []byte, error) {
	headerBytes, err := tc.ReadExact(protocol.HeaderLen)
	if err != nil {
		return protocol.Header{}, nil, err
	}
	header, err := protocol.DecodeHeader(headerBytes)
	if err != nil {
		return protocol.Header{}, nil, err
	}
	body, err := tc.ReadExact(int(header.BodyLen))
	if err != nil {
		return protocol.Header{}, nil, err
	}
	return header, body, nil
}

// roundTrip sends one request frame and reads its one response. Used by
// every non-pipelined operation.
func (e *Engine) roundTrip(ctx context.Context, tc *transport.Conn, opcode protocol.Opcode, key, extras, value []byte, cas uint64) (protocol.Header, []byte, error) {
	frame := protocol.Encode(opcode, key, extras, value, cas, 0)
	if err := e.send(ctx, tc, frame); err != nil {
		return protocol.Header{}, nil, err
	}
	return e.recv(tc)
}

// recordOp increments the per-endpoint, per-opcode, per-status operation
// counter.
func (e *Engine) recordOp(opcode protocol.Opcode, status protocol.Status) {
	metrics.OpsTotal.WithLabelValues(e.label, opcode.String(), status.String()).Inc()
}

// breakOnIOError drops the connection and marks it Broken so the very next
// operation retries immediately, per the state machine's asymmetry between
// a failed connect and a mid-session break.
func (e *Engine) breakOnIOError(err error) {
	if err == nil {
		return
	}
	e.conn.MarkBroken()
	e.log.Debug("engine operation failed, connection marked broken", zap.String("endpoint", e.label), zap.Error(err))
}

func putExtrasUint32x2(a, b uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], a)
	binary.BigEndian.PutUint32(buf[4:8], b)
	return buf
}

func putIncrDecrExtras(delta, initial uint64, expiration uint32) []byte {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint64(buf[0:8], delta)
	binary.BigEndian.PutUint64(buf[8:16], initial)
	binary.BigEndian.PutUint32(buf[16:20], expiration)
	return buf
}

func putFlushExtras(delay uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, delay)
	return buf
}

// errUnexpectedStatus builds a MemcachedError for a status the caller's
// operation does not special-case.
func errUnexpectedStatus(opcode protocol.Opcode, status protocol.Status, body []byte) error {
	return &protocol.MemcachedError{Status: status, Message: fmt.Sprintf("%s: %s", opcode, string(body))}
}
