package engine

import (
	"context"
	"encoding/binary"

	"github.com/jaysonsantos/gobmemcached/internal/protocol"
)

// incrDecr issues the shared incr/decr wire format: extras =
// delta|initial|expiration, no key body beyond the key itself, response
// body = u64 counter. On a disconnected server this returns 0, matching
// the disconnect-neutrality invariant for counters.
func (e *Engine) incrDecr(ctx context.Context, opcode protocol.Opcode, key string, delta, initial uint64, expiration uint32) (uint64, error) {
	e.callMu.Lock()
	defer e.callMu.Unlock()

	tc, disconnected, err := e.acquire(ctx)
	if err != nil {
		return 0, err
	}
	if disconnected {
		return 0, nil
	}

	extras := putIncrDecrExtras(delta, initial, expiration)
	header, body, ioErr := e.roundTrip(ctx, tc, opcode, []byte(key), extras, nil, 0)
	if ioErr != nil {
		e.breakOnIOError(ioErr)
		return 0, nil
	}
	e.recordOp(opcode, header.Status)

	switch header.Status {
	case protocol.StatusSuccess:
		if len(body) < 8 {
			return 0, errUnexpectedStatus(opcode, header.Status, body)
		}
		return binary.BigEndian.Uint64(body[:8]), nil
	case protocol.StatusKeyNotFound:
		// Only reachable when the caller passed expiration = 0xFFFFFFFF
		// (the "fail rather than create" sentinel); the engine's own
		// default callers always pass a finite expiration so missing
		// keys get created with initial instead.
		return 0, nil
	default:
		return 0, errUnexpectedStatus(opcode, header.Status, body)
	}
}

// Incr adds delta to key's counter value, creating it with initial if
// absent. Passing expiration = 0xFFFFFFFF selects the server's "fail if
// missing" behavior instead, and a missing key then yields 0.
func (e *Engine) Incr(ctx context.Context, key string, delta, initial uint64, expiration uint32) (uint64, error) {
	return e.incrDecr(ctx, protocol.OpIncr, key, delta, initial, expiration)
}

// Decr subtracts delta from key's counter value; the server never lets the
// result go below zero.
func (e *Engine) Decr(ctx context.Context, key string, delta, initial uint64, expiration uint32) (uint64, error) {
	return e.incrDecr(ctx, protocol.OpDecr, key, delta, initial, expiration)
}
