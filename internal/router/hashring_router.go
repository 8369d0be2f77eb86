package router

import (
	"context"

	"github.com/jaysonsantos/gobmemcached/internal/engine"
)

// HashRingRouter maps each key to exactly one engine via a stable
// consistent-hash ring. Multi-key operations group their keys by target
// engine and issue one batched request per group, preserving the
// semantics of their single-engine counterparts. flush and stats still
// fan out to every engine. The router never re-routes a key away from its
// ring owner on failure — consistent hashing must stay stable under
// transient failure, so a down engine's keys simply surface the
// disconnect-neutral defaults rather than landing on a different server.
type HashRingRouter struct {
	endpoints []Endpoint
	ring      *ring
}

// NewHashRingRouter builds a HashRingRouter over the given engines. The
// ring is immutable after construction: the same server list always
// produces the same key->engine assignment (scenario S6).
func NewHashRingRouter(endpoints []Endpoint) *HashRingRouter {
	labels := make([]string, len(endpoints))
	for i, ep := range endpoints {
		labels[i] = ep.Label
	}
	return &HashRingRouter{endpoints: endpoints, ring: newRing(labels)}
}

func (r *HashRingRouter) Close() error { return closeAll(r.endpoints) }

// RouteFor returns the label of the engine that owns key on the ring.
func (r *HashRingRouter) RouteFor(key string) string {
	idx := r.ring.endpointFor(key)
	if idx < 0 {
		return ""
	}
	return r.endpoints[idx].Label
}

func (r *HashRingRouter) engineFor(key string) *engine.Engine {
	idx := r.ring.endpointFor(key)
	if idx < 0 {
		return nil
	}
	return r.endpoints[idx].Engine
}

// groupByEngine partitions keys by the engine index that owns them on the
// ring, preserving per-group key order.
func (r *HashRingRouter) groupByEngine(keys []string) map[int][]string {
	groups := make(map[int][]string)
	for _, k := range keys {
		idx := r.ring.endpointFor(k)
		groups[idx] = append(groups[idx], k)
	}
	return groups
}

func (r *HashRingRouter) Get(ctx context.Context, key string) (any, uint64, bool, error) {
	e := r.engineFor(key)
	if e == nil {
		return nil, 0, false, nil
	}
	return e.Get(ctx, key)
}

func (r *HashRingRouter) GetMulti(ctx context.Context, keys []string) (map[string]engine.Item, error) {
	result := make(map[string]engine.Item, len(keys))
	for idx, group := range r.groupByEngine(keys) {
		items, err := r.endpoints[idx].Engine.GetMulti(ctx, group)
		if err != nil {
			return nil, err
		}
		for k, v := range items {
			result[k] = v
		}
	}
	return result, nil
}

func (r *HashRingRouter) Set(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error) {
	e := r.engineFor(key)
	if e == nil {
		return false, 0, nil
	}
	return e.Set(ctx, key, value, expiration)
}

func (r *HashRingRouter) Add(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error) {
	e := r.engineFor(key)
	if e == nil {
		return false, 0, nil
	}
	return e.Add(ctx, key, value, expiration)
}

func (r *HashRingRouter) Replace(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error) {
	e := r.engineFor(key)
	if e == nil {
		return false, 0, nil
	}
	return e.Replace(ctx, key, value, expiration)
}

func (r *HashRingRouter) Cas(ctx context.Context, key string, value any, expectedCas uint64, expiration uint32) (bool, uint64, error) {
	e := r.engineFor(key)
	if e == nil {
		return false, 0, nil
	}
	return e.Cas(ctx, key, value, expectedCas, expiration)
}

// SetMulti groups the batch by ring owner and issues one pipelined
// SetMulti per engine; the aggregate result is true iff every key in every
// group stored successfully.
func (r *HashRingRouter) SetMulti(ctx context.Context, items map[string]engine.SetItem) (bool, error) {
	byEngine := make(map[int]map[string]engine.SetItem)
	for key, item := range items {
		idx := r.ring.endpointFor(key)
		group, ok := byEngine[idx]
		if !ok {
			group = make(map[string]engine.SetItem)
			byEngine[idx] = group
		}
		group[key] = item
	}

	ok := true
	for idx, group := range byEngine {
		failed, err := r.endpoints[idx].Engine.SetMulti(ctx, group)
		if err != nil {
			return false, err
		}
		if len(failed) > 0 {
			ok = false
		}
	}
	return ok, nil
}

func (r *HashRingRouter) Delete(ctx context.Context, key string) (bool, error) {
	e := r.engineFor(key)
	if e == nil {
		return false, nil
	}
	return e.Delete(ctx, key)
}

// DeleteMulti groups keys by ring owner and issues one pipelined delete
// batch per engine; the aggregate result is true iff every group succeeded.
func (r *HashRingRouter) DeleteMulti(ctx context.Context, keys []string) (bool, error) {
	ok := true
	for idx, group := range r.groupByEngine(keys) {
		success, err := r.endpoints[idx].Engine.DeleteMulti(ctx, group)
		if err != nil {
			return false, err
		}
		if !success {
			ok = false
		}
	}
	return ok, nil
}

func (r *HashRingRouter) Incr(ctx context.Context, key string, delta, initial uint64, expiration uint32) (uint64, error) {
	e := r.engineFor(key)
	if e == nil {
		return 0, nil
	}
	return e.Incr(ctx, key, delta, initial, expiration)
}

func (r *HashRingRouter) Decr(ctx context.Context, key string, delta, initial uint64, expiration uint32) (uint64, error) {
	e := r.engineFor(key)
	if e == nil {
		return 0, nil
	}
	return e.Decr(ctx, key, delta, initial, expiration)
}

// FlushAll fans out to every engine regardless of ring ownership.
func (r *HashRingRouter) FlushAll(ctx context.Context, delay uint32) (bool, error) {
	ok := true
	for _, ep := range r.endpoints {
		flushed, err := ep.Engine.FlushAll(ctx, delay)
		if err != nil {
			return false, err
		}
		if !flushed {
			ok = false
		}
	}
	return ok, nil
}

// Stats fans out to every engine regardless of ring ownership.
func (r *HashRingRouter) Stats(ctx context.Context, subcommand string) (map[string]map[string]string, error) {
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
