package router

import (
	"context"

	"github.com/jaysonsantos/gobmemcached/internal/engine"
)

// ReplicatingRouter applies stores to every engine and reads from the
// first one that has the key, mirroring the distilled spec's replicating
// policy: OR over successes for writes, first-hit for reads, first-engine
// only for counters.
type ReplicatingRouter struct {
	endpoints []Endpoint
}

// NewReplicatingRouter builds a ReplicatingRouter over the given engines.
func NewReplicatingRouter(endpoints []Endpoint) *ReplicatingRouter {
	return &ReplicatingRouter{endpoints: endpoints}
}

func (r *ReplicatingRouter) Close() error { return closeAll(r.endpoints) }

// Get tries engines in configured order and returns the first hit.
func (r *ReplicatingRouter) Get(ctx context.Context, key string) (any, uint64, bool, error) {
	for _, ep := range r.endpoints {
		v, cas, found, err := ep.Engine.Get(ctx, key)
		if err != nil {
			return nil, 0, false, err
		}
		if found {
			return v, cas, true, nil
		}
	}
	return nil, 0, false, nil
}

// GetMulti accumulates results engine by engine, stopping early once every
// key has been satisfied.
func (r *ReplicatingRouter) GetMulti(ctx context.Context, keys []string) (map[string]engine.Item, error) {
	result := make(map[string]engine.Item, len(keys))
	remaining := make([]string, len(keys))
	copy(remaining, keys)

	for _, ep := range r.endpoints {
		if len(remaining) == 0 {
			break
		}
		items, err := ep.Engine.GetMulti(ctx, remaining)
		if err != nil {
			return nil, err
		}
		next := remaining[:0]
		for _, k := range remaining {
			if item, ok := items[k]; ok {
				result[k] = item
			} else {
				next = append(next, k)
			}
		}
		remaining = next
	}
	return result, nil
}

// storeAll applies fn to every engine and ORs the successes; the first
// permanent error (not ServerDisconnected — engines already fold that into
// a neutral false) aborts and propagates.
func (r *ReplicatingRouter) storeAll(fn func(*engine.Engine) (bool, uint64, error)) (bool, uint64, error) {
	ok := false
	var cas uint64
	for _, ep := range r.endpoints {
		success, c, err := fn(ep.Engine)
		if err != nil {
			return false, 0, err
		}
		if success {
			ok = true
			cas = c
		}
	}
	return ok, cas, nil
}

func (r *ReplicatingRouter) Set(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error) {
	return r.storeAll(func(e *engine.Engine) (bool, uint64, error) { return e.Set(ctx, key, value, expiration) })
}

func (r *ReplicatingRouter) Add(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error) {
	return r.storeAll(func(e *engine.Engine) (bool, uint64, error) { return e.Add(ctx, key, value, expiration) })
}

func (r *ReplicatingRouter) Replace(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error) {
	return r.storeAll(func(e *engine.Engine) (bool, uint64, error) { return e.Replace(ctx, key, value, expiration) })
}

func (r *ReplicatingRouter) Cas(ctx context.Context, key string, value any, expectedCas uint64, expiration uint32) (bool, uint64, error) {
	return r.storeAll(func(e *engine.Engine) (bool, uint64, error) {
		return e.Cas(ctx, key, value, expectedCas, expiration)
	})
}

func (r *ReplicatingRouter) FlushAll(ctx context.Context, delay uint32) (bool, error) {
	ok, _, err := r.storeAll(func(e *engine.Engine) (bool, uint64, error) {
		flushed, ferr := e.FlushAll(ctx, delay)
		return flushed, 0, ferr
	})
	return ok, err
}

// SetMulti replicates the batch to every engine; the result is true iff
// every engine reports every key stored.
func (r *ReplicatingRouter) SetMulti(ctx context.Context, items map[string]engine.SetItem) (bool, error) {
	ok := true
	for _, ep := range r.endpoints {
		failed, err := ep.Engine.SetMulti(ctx, items)
		if err != nil {
			return false, err
		}
		if len(failed) > 0 {
			ok = false
		}
	}
	return ok, nil
}

// Delete propagates to every engine; the result is true if any engine
// reports success (OR), matching the policy for single-key delete.
func (r *ReplicatingRouter) Delete(ctx context.Context, key string) (bool, error) {
	anySucceeded := false
	for _, ep := range r.endpoints {
		ok, err := ep.Engine.Delete(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			anySucceeded = true
		}
	}
	return anySucceeded, nil
}

// DeleteMulti propagates to every engine; the result is true only if every
// engine reports success (AND), matching the distilled spec's delete_multi
// replicating policy.
func (r *ReplicatingRouter) DeleteMulti(ctx context.Context, keys []string) (bool, error) {
	all := true
	for _, ep := range r.endpoints {
		ok, err := ep.Engine.DeleteMulti(ctx, keys)
		if err != nil {
			return false, err
		}
		if !ok {
			all = false
		}
	}
	return all, nil
}

// Incr/Decr use the first engine only — a documented compromise, since
// counters do not replicate consistently across independent servers.
func (r *ReplicatingRouter) Incr(ctx context.Context, key string, delta, initial uint64, expiration uint32) (uint64, error) {
	if len(r.endpoints) == 0 {
		return 0, nil
	}
	return r.endpoints[0].Engine.Incr(ctx, key, delta, initial, expiration)
}

func (r *ReplicatingRouter) Decr(ctx context.Context, key string, delta, initial uint64, expiration uint32) (uint64, error) {
	if len(r.endpoints) == 0 {
		return 0, nil
	}
	return r.endpoints[0].Engine.Decr(ctx, key, delta, initial, expiration)
}

// Stats returns a mapping endpoint label -> that engine's stats dict.
func (r *ReplicatingRouter) Stats(ctx context.Context, subcommand string) (map[string]map[string]string, error) {
	result := make(map[string]map[string]string, len(r.endpoints))
	for _, ep := range r.endpoints {
		stats, err := ep.Engine.Stats(ctx, subcommand)
		if err != nil {
			return nil, err
		}
		result[ep.Label] = stats
	}
	return result, nil
}
