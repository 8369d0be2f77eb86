package engine

import (
	"context"

	"github.com/jaysonsantos/gobmemcached/internal/protocol"
)

// FlushAll tells the server to invalidate all keys after delay seconds
// (0 invalidates immediately). A disconnected server reports true, per the
// disconnect-neutrality invariant — a flush against a server that is not
// there is vacuously satisfied.
func (e *Engine) FlushAll(ctx context.Context, delay uint32) (bool, error) {
	e.callMu.Lock()
	defer e.callMu.Unlock()

	tc, disconnected, err := e.acquire(ctx)
	if err != nil {
		return false, err
	}
	if disconnected {
		return true, nil
	}

	extras := putFlushExtras(delay)
	header, body, ioErr := e.roundTrip(ctx, tc, protocol.OpFlush, nil, extras, nil, 0)
	if ioErr != nil {
		e.breakOnIOError(ioErr)
		return true, nil
	}
	e.recordOp(protocol.OpFlush, header.Status)

	if header.Status != protocol.StatusSuccess {
		return false, errUnexpectedStatus(protocol.OpFlush, header.Status, body)
	}
	return true, nil
}

// Stats streams the server's stat frames into a map. subcommand is passed
// through unconditionally as the request key (empty key when subcommand is
// ""), matching the original client's stats(key=None) — it does not
// special-case any sub-command. The stream always terminates with a frame
// whose key_len and body_len are both zero, regardless of sub-command. A
// disconnected server reports an empty map.
func (e *Engine) Stats(ctx context.Context, subcommand string) (map[string]string, error) {
	result := make(map[string]string)

	e.callMu.Lock()
	defer e.callMu.Unlock()

	tc, disconnected, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if disconnected {
		return result, nil
	}

	var key []byte
	if subcommand != "" {
		key = []byte(subcommand)
	}
	frame := protocol.Encode(protocol.OpStat, key, nil, nil, 0, 0)
	if sendErr := e.send(ctx, tc, frame); sendErr != nil {
		e.breakOnIOError(sendErr)
		return result, nil
	}

	for {
		header, body, recvErr := e.recv(tc)
		if recvErr != nil {
			e.breakOnIOError(recvErr)
			return result, nil
		}
		e.recordOp(protocol.OpStat, header.Status)

		if header.KeyLen == 0 && header.BodyLen == 0 {
			return result, nil
		}
		if header.Status != protocol.StatusSuccess {
			return result, errUnexpectedStatus(protocol.OpStat, header.Status, body)
		}
		statKey := string(body[:header.KeyLen])
		statValue := string(body[header.KeyLen:])
		result[statKey] = statValue
	}
}
