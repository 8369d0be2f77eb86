package bmemcached

import (
	"time"

	"go.uber.org/zap"

	"github.com/jaysonsantos/gobmemcached/internal/engine"
	"github.com/jaysonsantos/gobmemcached/internal/transport"
	"github.com/jaysonsantos/gobmemcached/internal/valuecodec"
)

// clientConfig accumulates Option values before New builds one Engine per
// server and wraps them in the selected Router.
type clientConfig struct {
	username, password string
	hasCreds            bool
	tls                 *transport.TLSConfig
	engineOpts          []engine.Option
	codec               *valuecodec.Codec
	compressLevel       int
	routing             string // "replicating" | "hashring"
	rateRPS             float64
	rateBurst           int
	hasRateLimit        bool
	log                 *zap.Logger
	retryDelayEnabled   *bool
}

// Option configures a Client at construction.
type Option func(*clientConfig)

// WithAuth enables the SASL PLAIN handshake on every engine.
func WithAuth(username, password string) Option {
	return func(c *clientConfig) {
		c.username, c.password = username, password
		c.hasCreds = true
	}
}

// WithTLS wraps every engine's socket in TLS.
func WithTLS(cfg *transport.TLSConfig) Option {
	return func(c *clientConfig) { c.tls = cfg }
}

// WithSocketTimeout overrides every engine's socket timeout.
func WithSocketTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.engineOpts = append(c.engineOpts, engine.WithSocketTimeout(d))
	}
}

// WithSerializer overrides the default gob serializer used for values that
// are not bytes, strings, or integers (bools included).
func WithSerializer(s valuecodec.Serializer) Option {
	return func(c *clientConfig) {
		if c.codec == nil {
			c.codec = valuecodec.New()
		}
		c.codec.Serializer = s
	}
}

// WithCompressor overrides the default deflate compressor.
func WithCompressor(comp valuecodec.Compressor) Option {
	return func(c *clientConfig) {
		if c.codec == nil {
			c.codec = valuecodec.New()
		}
		c.codec.Compressor = comp
	}
}

// WithCompressLevel sets the compression level passed to the codec for
// every stored value: -1 default, 0 disabled, 1..9 quality.
func WithCompressLevel(level int) Option {
	return func(c *clientConfig) { c.compressLevel = level }
}

// WithRouting selects "replicating" (the default) or "hashring".
func WithRouting(strategy string) Option {
	return func(c *clientConfig) { c.routing = strategy }
}

// WithRetryDelayEnabled toggles the reconnect deferral window every engine
// arms after a failed connect.
func WithRetryDelayEnabled(enabled bool) Option {
	return func(c *clientConfig) { c.retryDelayEnabled = &enabled }
}

// WithRateLimit bounds every engine's outbound frame rate.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *clientConfig) {
		c.rateRPS, c.rateBurst = requestsPerSecond, burst
		c.hasRateLimit = true
	}
}

// WithLogger injects a *zap.Logger shared by every engine and connection.
func WithLogger(log *zap.Logger) Option {
	return func(c *clientConfig) { c.log = log }
}
