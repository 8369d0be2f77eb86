package bmemcached

import (
	"github.com/jaysonsantos/gobmemcached/internal/connection"
	"github.com/jaysonsantos/gobmemcached/internal/engine"
	"github.com/jaysonsantos/gobmemcached/internal/protocol"
)

// Re-exported so callers never need to import the internal packages
// directly to type-switch or errors.Is against these.
var (
	// ErrAuthenticationNotSupported is returned when the server has no
	// PLAIN SASL mechanism but credentials were configured.
	ErrAuthenticationNotSupported = connection.ErrAuthenticationNotSupported

	// ErrInvalidCredentials is returned when the server rejects the SASL
	// PLAIN handshake.
	ErrInvalidCredentials = connection.ErrInvalidCredentials

	// ErrCasRequired is returned by Cas when expectedCas is zero.
	ErrCasRequired = engine.ErrCasRequired
)

// MemcachedError wraps a non-success, non-special-cased status the server
// returned for an operation. Callers that need the raw status code can
// type-assert to *MemcachedError.
type MemcachedError = protocol.MemcachedError
