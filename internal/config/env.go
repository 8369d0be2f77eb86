package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnv applies BMEMCACHED_* overrides on top of whatever was loaded
// from YAML, mirroring the reference application's VAULTAIRE_* convention.
func LoadFromEnv(cfg *Config) {
	if servers := os.Getenv("BMEMCACHED_SERVERS"); servers != "" {
		cfg.Servers = splitAndTrim(servers)
	}
	if username := os.Getenv("BMEMCACHED_USERNAME"); username != "" {
		cfg.Username = username
	}
	if password := os.Getenv("BMEMCACHED_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if logLevel := os.Getenv("BMEMCACHED_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if timeout := os.Getenv("BMEMCACHED_SOCKET_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.SocketTimeout = d
		}
	}
	if routing := os.Getenv("BMEMCACHED_ROUTING"); routing != "" {
		cfg.Routing = routing
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetEnvOrDefault returns the environment variable's value, or defaultValue
// if it is unset or empty.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ParseInt is a small env-parsing helper for integer overrides kept outside
// this package's own fields; nothing in this module calls it.
func ParseInt(s string, fallback int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return fallback
}
