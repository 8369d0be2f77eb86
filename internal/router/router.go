// Package router aggregates multiple internal/engine.Engine instances
// behind the two fan-out policies the client supports: replicating
// (write-all, read-first-hit) and consistent-hash (one key, one engine).
// Connection, authentication, and framing are entirely owned by each
// Engine — the router only decides which engine(s) see a given operation.
//
// The shape generalizes the reference application's internal/global
// (multi-backend load balancing) and internal/cache/consistency.go
// patterns: both distribute operations across a fixed backend set without
// owning the per-backend connection lifecycle themselves.
package router

import (
	"context"

	"github.com/jaysonsantos/gobmemcached/internal/engine"
)

// Router is the multi-engine front the public façade drives. Every method
// mirrors the corresponding engine.Engine method, fanned out per policy.
type Router interface {
	Get(ctx context.Context, key string) (value any, cas uint64, found bool, err error)
	GetMulti(ctx context.Context, keys []string) (map[string]engine.Item, error)
	Set(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error)
	Add(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error)
	Replace(ctx context.Context, key string, value any, expiration uint32) (bool, uint64, error)
	Cas(ctx context.Context, key string, value any, expectedCas uint64, expiration uint32) (bool, uint64, error)
	SetMulti(ctx context.Context, items map[string]engine.SetItem) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	DeleteMulti(ctx context.Context, keys []string) (bool, error)
	Incr(ctx context.Context, key string, delta, initial uint64, expiration uint32) (uint64, error)
	Decr(ctx context.Context, key string, delta, initial uint64, expiration uint32) (uint64, error)
	FlushAll(ctx context.Context, delay uint32) (bool, error)
	Stats(ctx context.Context, subcommand string) (map[string]map[string]string, error)
	Close() error
}

// Endpoint pairs a configured server string with the engine built for it,
// so routers can report stats and route decisions by label.
type Endpoint struct {
	Label  string
	Engine *engine.Engine
}

func closeAll(endpoints []Endpoint) error {
	var firstErr error
	for _, ep := range endpoints {
		if err := ep.Engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
