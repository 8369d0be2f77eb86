// Package config loads layered client configuration: YAML file, then
// environment overrides. The struct shape (yaml-tagged sections, with
// ApplyDefaults filling unset fields) is carried over from
// the reference application's internal/config/config.go, generalized from
// a storage gateway's server/engine/cache sections to a memcached client's
// server list, auth, compression, and TLS sections.
package config

import "time"

// Config is the root configuration document.
type Config struct {
	Servers       []string          `yaml:"servers"`
	Username      string            `yaml:"username"`
	Password      string            `yaml:"password"`
	SocketTimeout time.Duration     `yaml:"socket_timeout"`
	LogLevel      string            `yaml:"log_level"`
	Routing       string            `yaml:"routing"` // "replicating" | "hashring"
	Compression   CompressionConfig `yaml:"compression"`
	TLS           *TLSConfig        `yaml:"tls,omitempty"`
	RateLimit     *RateLimitConfig  `yaml:"rate_limit,omitempty"`
}

// CompressionConfig selects and tunes the value codec's compressor.
//
// Level is a pointer so ApplyDefaults can distinguish "unset in YAML" from
// an explicit "0" (compression disabled) — a plain int would conflate the
// two since both are the zero value.
type CompressionConfig struct {
	Algorithm string `yaml:"algorithm"` // "deflate" | "snappy" | "none"
	Level     *int   `yaml:"level"`     // nil -> default (-1), 0 -> disabled, 1..9 -> quality
}

// TLSConfig mirrors internal/transport.TLSConfig's fields so the YAML file
// can drive it directly.
type TLSConfig struct {
	ServerName         string `yaml:"server_name"`
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// RateLimitConfig bounds outbound request rate per engine.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ApplyDefaults fills in zero-valued fields with the spec's defaults.
func (c *Config) ApplyDefaults() {
	if c.SocketTimeout == 0 {
		c.SocketTimeout = 3 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Routing == "" {
		c.Routing = "replicating"
	}
	if c.Compression.Algorithm == "" {
		c.Compression.Algorithm = "deflate"
	}
	if c.Compression.Level == nil {
		def := -1
		c.Compression.Level = &def
	}
}

// CompressLevel returns the effective compression level, resolving the
// unset case the same way ApplyDefaults would without mutating the config.
func (c *Config) CompressLevel() int {
	if c.Compression.Level == nil {
		return -1
	}
	return *c.Compression.Level
}
