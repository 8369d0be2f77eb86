package protocol

import "fmt"

// MemcachedError wraps any server-returned status that does not fit the
// neutral "disconnected" or well-known success/miss outcomes a caller
// already handles through return values (e.g. UnknownCommand on a data
// op, or an out-of-range delta on incr/decr).
type MemcachedError struct {
	Status  Status
	Message string
}

func (e *MemcachedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("memcached: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("memcached: %s", e.Status)
}
