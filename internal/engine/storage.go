package engine

import (
	"context"

	"github.com/jaysonsantos/gobmemcached/internal/protocol"
)

// Get fetches key. ok is false on a miss or a disconnected server; err is
// only set for a protocol-level error the caller must not swallow.
func (e *Engine) Get(ctx context.Context, key string) (value any, cas uint64, ok bool, err error) {
	e.callMu.Lock()
	defer e.callMu.Unlock()

	tc, disconnected, err := e.acquire(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	if disconnected {
		return nil, 0, false, nil
	}

	header, body, ioErr := e.roundTrip(ctx, tc, protocol.OpGet, []byte(key), nil, nil, 0)
	if ioErr != nil {
		e.breakOnIOError(ioErr)
		return nil, 0, false, nil
	}
	e.recordOp(protocol.OpGet, header.Status)

	switch header.Status {
	case protocol.StatusSuccess:
		flags, data := splitFlagsValue(body)
		v, decErr := e.codec.Decode(flags, data)
		if decErr != nil {
			return nil, 0, false, decErr
		}
		return v, header.CAS, true, nil
	case protocol.StatusKeyNotFound:
		return nil, 0, false, nil
	default:
		return nil, 0, false, errUnexpectedStatus(protocol.OpGet, header.Status, body)
	}
}

// GetMulti fetches many keys in one pipelined round trip: N-1 quiet GetKQ
// frames followed by a terminating GetK. The drain stops at the GetK
// reply, per the multi-op framing invariant.
func (e *Engine) GetMulti(ctx context.Context, keys []string) (map[string]Item, error) {
	result := make(map[string]Item, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	e.callMu.Lock()
	defer e.callMu.Unlock()

	tc, disconnected, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if disconnected {
		return result, nil
	}

	for _, k := range keys[:len(keys)-1] {
		frame := protocol.Encode(protocol.OpGetKQ, []byte(k), nil, nil, 0, 0)
		if sendErr := e.send(ctx, tc, frame); sendErr != nil {
			e.breakOnIOError(sendErr)
			return result, nil
		}
	}
	lastKey := keys[len(keys)-1]
	finalFrame := protocol.Encode(protocol.OpGetK, []byte(lastKey), nil, nil, 0, 0)
	if sendErr := e.send(ctx, tc, finalFrame); sendErr != nil {
		e.breakOnIOError(sendErr)
		return result, nil
	}

	for {
		header, body, recvErr := e.recv(tc)
		if recvErr != nil {
			e.breakOnIOError(recvErr)
			return result, nil
		}
		e.recordOp(header.Opcode, header.Status)

		if header.Status == protocol.StatusSuccess {
			key, flags, data := splitKeyFlagsValue(body, int(header.KeyLen))
			v, decErr := e.codec.Decode(flags, data)
			if decErr == nil {
				result[key] = Item{Value: v, Cas: header.CAS}
			}
		}
		if header.Opcode == protocol.OpGetK {
			return result, nil
		}
	}
}

// storageOp issues the shared set/add/replace wire format: extras =
// flags|expiration, key, value. cas carries the header CAS field (0 for a
// plain set).
func (e *Engine) storageOp(ctx context.Context, opcode protocol.Opcode, key string, value any, expiration uint32, cas uint64) (ok bool, newCas uint64, err error) {
	e.callMu.Lock()
	defer e.callMu.Unlock()

	tc, disconnected, err := e.acquire(ctx)
	if err != nil {
		return false, 0, err
	}
	if disconnected {
		return false, 0, nil
	}

	flags, data, encErr := e.codec.Encode(value, e.compressLevel)
	if encErr != nil {
		return false, 0, encErr
	}
	extras := putExtrasUint32x2(flags, expiration)

	header, body, ioErr := e.roundTrip(ctx, tc, opcode, []byte(key), extras, data, cas)
	if ioErr != nil {
		e.breakOnIOError(ioErr)
		return false, 0, nil
	}
	e.recordOp(opcode, header.Status)

	switch header.Status {
	case protocol.StatusSuccess:
		return true, header.CAS, nil
	case protocol.StatusKeyExists, protocol.StatusKeyNotFound:
		return false, 0, nil
	default:
		return false, 0, errUnexpectedStatus(opcode, header.Status, body)
	}
}

// Set unconditionally stores key/value.
func (e *Engine) Set(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error) {
	return e.storageOp(ctx, protocol.OpSet, key, value, expiration, 0)
}

// Add stores key/value only if key is absent; returns false (not an error)
// if the key already exists.
func (e *Engine) Add(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error) {
	return e.storageOp(ctx, protocol.OpAdd, key, value, expiration, 0)
}

// Replace stores key/value only if key is present; returns false if it was
// absent.
func (e *Engine) Replace(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error) {
	return e.storageOp(ctx, protocol.OpReplace, key, value, expiration, 0)
}

// ErrCasRequired is returned by Cas when expectedCas is zero, which would
// otherwise silently degrade into an unconditional set.
var ErrCasRequired = &protocol.MemcachedError{Status: protocol.StatusKeyExists, Message: "cas: expected_cas must be non-zero"}

// Cas stores key/value only if its current CAS token equals expectedCas.
// expectedCas == 0 is rejected outright — callers wanting "store only if
// absent" semantics should use Add.
func (e *Engine) Cas(ctx context.Context, key string, value any, expectedCas uint64, expiration uint32) (bool, uint64, error) {
	if expectedCas == 0 {
		return false, 0, ErrCasRequired
	}
	return e.storageOp(ctx, protocol.OpSet, key, value, expiration, expectedCas)
}

// Delete removes key. Per the idempotent-delete invariant, a miss is not
// an error: Delete on an absent key returns true just like a hit.
func (e *Engine) Delete(ctx context.Context, key string) (bool, error) {
	e.callMu.Lock()
	defer e.callMu.Unlock()

	tc, disconnected, err := e.acquire(ctx)
	if err != nil {
		return false, err
	}
	if disconnected {
		return false, nil
	}

	header, body, ioErr := e.roundTrip(ctx, tc, protocol.OpDelete, []byte(key), nil, nil, 0)
	if ioErr != nil {
		e.breakOnIOError(ioErr)
		return false, nil
	}
	e.recordOp(protocol.OpDelete, header.Status)

	switch header.Status {
	case protocol.StatusSuccess, protocol.StatusKeyNotFound:
		return true, nil
	default:
		return false, errUnexpectedStatus(protocol.OpDelete, header.Status, body)
	}
}

// SetItem is one entry of a SetMulti batch: cas == 0 emits an AddQ frame
// for that key (store-only-if-absent), mirroring single-key Cas/Add
// semantics; any other cas emits SetQ with that expected CAS.
type SetItem struct {
	Value      any
	Cas        uint64
	Expiration uint32
}

// SetMulti stores many keys in one pipelined round trip, terminated by a
// Noop frame. It returns the exact subset of keys whose store failed
// (non-nil iff at least one did); the router's replicating policy treats a
// fully empty failure slice as success. Quiet SetQ/AddQ frames only
// respond on error and never echo the key, so each frame's opaque field is
// set to its index in the batch's key order — the same index an error
// response's opaque names is used to look the failing key back up,
// avoiding the "fail the whole batch on any single key's error" shortcut a
// naive implementation would take.
func (e *Engine) SetMulti(ctx context.Context, items map[string]SetItem) (failed []string, err error) {
	if len(items) == 0 {
		return nil, nil
	}

	e.callMu.Lock()
	defer e.callMu.Unlock()

	tc, disconnected, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if disconnected {
		return keysOf(items), nil
	}

	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}

	for i, key := range keys {
		item := items[key]
		flags, data, encErr := e.codec.Encode(item.Value, e.compressLevel)
		if encErr != nil {
			return nil, encErr
		}
		extras := putExtrasUint32x2(flags, item.Expiration)
		opcode := protocol.OpSetQ
		if item.Cas == 0 {
			opcode = protocol.OpAddQ
		}
		frame := protocol.Encode(opcode, []byte(key), extras, data, item.Cas, uint32(i))
		if sendErr := e.send(ctx, tc, frame); sendErr != nil {
			e.breakOnIOError(sendErr)
			return keys, nil
		}
	}
	noopFrame := protocol.Encode(protocol.OpNoop, nil, nil, nil, 0, uint32(len(keys)))
	if sendErr := e.send(ctx, tc, noopFrame); sendErr != nil {
		e.breakOnIOError(sendErr)
		return keys, nil
	}

	var failedKeys []string
	for {
		header, _, recvErr := e.recv(tc)
		if recvErr != nil {
			e.breakOnIOError(recvErr)
			return keys, nil
		}
		e.recordOp(header.Opcode, header.Status)
		if header.Opcode == protocol.OpNoop {
			break
		}
		if header.Status != protocol.StatusSuccess {
			if idx := int(header.Opaque); idx >= 0 && idx < len(keys) {
				failedKeys = append(failedKeys, keys[idx])
			} else {
				// Opaque didn't round-trip as expected (a non-conformant
				// server); fail safe by reporting the whole batch rather
				// than under-reporting failures.
				return keys, nil
			}
		}
	}
	return failedKeys, nil
}

// DeleteMulti deletes many keys, pipelining a Delete frame per key followed
// by a terminating Noop, and drains responses until the Noop reply — the
// same non-quiet pipelining the original client uses for delete_multi
// (unlike get_multi/set_multi, Delete has no quiet opcode on the wire).
// The aggregate result is true only if every key's delete succeeded or was
// already absent.
func (e *Engine) DeleteMulti(ctx context.Context, keys []string) (bool, error) {
	if len(keys) == 0 {
		return true, nil
	}

	e.callMu.Lock()
	defer e.callMu.Unlock()

	tc, disconnected, err := e.acquire(ctx)
	if err != nil {
		return false, err
	}
	if disconnected {
		return false, nil
	}

	for _, key := range keys {
		frame := protocol.Encode(protocol.OpDelete, []byte(key), nil, nil, 0, 0)
		if sendErr := e.send(ctx, tc, frame); sendErr != nil {
			e.breakOnIOError(sendErr)
			return false, nil
		}
	}
	noopFrame := protocol.Encode(protocol.OpNoop, nil, nil, nil, 0, 0)
	if sendErr := e.send(ctx, tc, noopFrame); sendErr != nil {
		e.breakOnIOError(sendErr)
		return false, nil
	}

	ok := true
	for {
		header, _, recvErr := e.recv(tc)
		if recvErr != nil {
			e.breakOnIOError(recvErr)
			return false, nil
		}
		e.recordOp(header.Opcode, header.Status)
		if header.Opcode == protocol.OpNoop {
			break
		}
		if header.Status != protocol.StatusSuccess && header.Status != protocol.StatusKeyNotFound {
			ok = false
		}
	}
	return ok, nil
}

func keysOf(items map[string]SetItem) []string {
	out := make([]string, 0, len(items))
	for k := range items {
		out = append(out, k)
	}
	return out
}

func splitFlagsValue(body []byte) (flags uint32, value []byte) {
	if len(body) < 4 {
		return 0, nil
	}
	flags = beUint32(body[:4])
	return flags, body[4:]
}

func splitKeyFlagsValue(body []byte, keyLen int) (key string, flags uint32, value []byte) {
	if len(body) < 4+keyLen {
		return "", 0, nil
	}
	flags = beUint32(body[:4])
	key = string(body[4 : 4+keyLen])
	value = body[4+keyLen:]
	return key, flags, value
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
