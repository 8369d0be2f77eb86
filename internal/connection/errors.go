package connection

import "errors"

// ErrAuthenticationNotSupported is returned when the configured credentials
// cannot be used because the server's SASL mechanism list does not offer
// PLAIN. It is permanent: retrying the same endpoint will not help.
var ErrAuthenticationNotSupported = errors.New("connection: server does not support PLAIN authentication")

// ErrInvalidCredentials is returned when the server rejects a SASL PLAIN
// handshake with AuthError. It is permanent.
var ErrInvalidCredentials = errors.New("connection: invalid username or password")

// ErrServerDisconnected is the transient-I/O sentinel. Callers in
// internal/engine translate it into the neutral per-operation result
// defined by the disconnect-neutrality invariant; it is never returned to
// the bmemcached façade's callers as a Go error.
var ErrServerDisconnected = errors.New("connection: server disconnected")
