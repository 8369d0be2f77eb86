// Package bmemcached is a memcached binary-protocol client: per-endpoint
// connection management with SASL PLAIN auth and a reconnect deferral
// window, a flag-tagged value codec with pluggable compression and
// serialization, and a router that fans operations out across a server
// list either by replication or by consistent hashing.
//
// The package layout — a thin root façade over internal/connection,
// internal/engine, and internal/router — mirrors the reference
// application's pattern of keeping the public surface small and pushing
// the protocol and transport mechanics into internal packages.
package bmemcached

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jaysonsantos/gobmemcached/internal/engine"
	"github.com/jaysonsantos/gobmemcached/internal/router"
	"github.com/jaysonsantos/gobmemcached/internal/valuecodec"
)

// Item is one value fetched alongside its CAS token, returned by
// GetMultiWithCas.
type Item = engine.Item

// SetItem is one entry of a SetMulti batch, keyed by the map key passed to
// SetMulti: Cas == 0 means store-only-if-absent (Add semantics); any other
// value means store-only-if-matching (Cas semantics).
type SetItem = engine.SetItem

// Client is a memcached client over one or more servers.
type Client struct {
	r   router.Router
	log *zap.Logger
}

// New builds a Client against the given server list (endpoint grammar per
// internal/transport.ParseAddr: "<host>:<port>" | "<host>" | "/<path>").
// At least one server is required.
func New(servers []string, opts ...Option) (*Client, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("bmemcached: at least one server is required")
	}

	cfg := &clientConfig{compressLevel: -1, routing: "replicating", log: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	engineOpts := append([]engine.Option(nil), cfg.engineOpts...)
	if cfg.hasCreds {
		engineOpts = append(engineOpts, engine.WithCredentials(cfg.username, cfg.password))
	}
	if cfg.tls != nil {
		engineOpts = append(engineOpts, engine.WithTLS(cfg.tls))
	}
	if cfg.codec != nil {
		engineOpts = append(engineOpts, engine.WithCodec(cfg.codec))
	} else {
		engineOpts = append(engineOpts, engine.WithCodec(valuecodec.New()))
	}
	engineOpts = append(engineOpts, engine.WithCompressLevel(cfg.compressLevel))
	if cfg.hasRateLimit {
		engineOpts = append(engineOpts, engine.WithRateLimit(cfg.rateRPS, cfg.rateBurst))
	}
	if cfg.retryDelayEnabled != nil {
		engineOpts = append(engineOpts, engine.WithRetryDelayEnabled(*cfg.retryDelayEnabled))
	}
	engineOpts = append(engineOpts, engine.WithLogger(cfg.log))

	endpoints := make([]router.Endpoint, len(servers))
	for i, server := range servers {
		perServerOpts := append([]engine.Option(nil), engineOpts...)
		perServerOpts = append(perServerOpts, engine.WithLabel(server))
		endpoints[i] = router.Endpoint{Label: server, Engine: engine.New(server, perServerOpts...)}
	}

	var r router.Router
	switch cfg.routing {
	case "hashring":
		r = router.NewHashRingRouter(endpoints)
	case "replicating", "":
		r = router.NewReplicatingRouter(endpoints)
	default:
		return nil, fmt.Errorf("bmemcached: unknown routing strategy %q", cfg.routing)
	}

	return &Client{r: r, log: cfg.log}, nil
}

// DisconnectAll closes every engine's underlying socket.
func (c *Client) DisconnectAll() error { return c.r.Close() }

// Get fetches key's value. found is false on a miss or when every relevant
// engine is disconnected.
func (c *Client) Get(ctx context.Context, key string) (value any, found bool, err error) {
	v, _, found, err := c.r.Get(ctx, key)
	return v, found, err
}

// Gets fetches key's value together with its CAS token, for a later Cas
// call.
func (c *Client) Gets(ctx context.Context, key string) (value any, cas uint64, found bool, err error) {
	return c.r.Get(ctx, key)
}

// GetMulti fetches many keys at once, returning only the ones present.
func (c *Client) GetMulti(ctx context.Context, keys []string) (map[string]any, error) {
	items, err := c.r.GetMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	result := make(map[string]any, len(items))
	for k, item := range items {
		result[k] = item.Value
	}
	return result, nil
}

// GetMultiWithCas is GetMulti but retains each key's CAS token.
func (c *Client) GetMultiWithCas(ctx context.Context, keys []string) (map[string]Item, error) {
	return c.r.GetMulti(ctx, keys)
}

// Set unconditionally stores key/value, expiring after expiration seconds
// (0 means never).
func (c *Client) Set(ctx context.Context, key string, value any, expiration uint32) (bool, error) {
	ok, _, err := c.r.Set(ctx, key, value, expiration)
	return ok, err
}

// Add stores key/value only if key is currently absent.
func (c *Client) Add(ctx context.Context, key string, value any, expiration uint32) (bool, error) {
	ok, _, err := c.r.Add(ctx, key, value, expiration)
	return ok, err
}

// Replace stores key/value only if key is currently present.
func (c *Client) Replace(ctx context.Context, key string, value any, expiration uint32) (bool, error) {
	ok, _, err := c.r.Replace(ctx, key, value, expiration)
	return ok, err
}

// Cas stores key/value only if its current CAS token equals expectedCas.
// expectedCas == 0 is rejected with ErrCasRequired.
func (c *Client) Cas(ctx context.Context, key string, value any, expectedCas uint64, expiration uint32) (bool, error) {
	ok, _, err := c.r.Cas(ctx, key, value, expectedCas, expiration)
	return ok, err
}

// SetMulti stores many keys at once; the result is true iff every key in
// every targeted engine stored successfully.
func (c *Client) SetMulti(ctx context.Context, items map[string]SetItem) (bool, error) {
	return c.r.SetMulti(ctx, items)
}

// Delete removes key. A miss is not an error: Delete on an absent key
// returns true.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	return c.r.Delete(ctx, key)
}

// DeleteMulti removes many keys at once.
func (c *Client) DeleteMulti(ctx context.Context, keys []string) (bool, error) {
	return c.r.DeleteMulti(ctx, keys)
}

// Incr adds delta to key's counter, creating it with initial if absent.
func (c *Client) Incr(ctx context.Context, key string, delta, initial uint64, expiration uint32) (uint64, error) {
	return c.r.Incr(ctx, key, delta, initial, expiration)
}

// Decr subtracts delta from key's counter; the server never lets the
// result go below zero.
func (c *Client) Decr(ctx context.Context, key string, delta, initial uint64, expiration uint32) (uint64, error) {
	return c.r.Decr(ctx, key, delta, initial, expiration)
}

// FlushAll invalidates every key after delay seconds (0 invalidates
// immediately).
func (c *Client) FlushAll(ctx context.Context, delay uint32) (bool, error) {
	return c.r.FlushAll(ctx, delay)
}

// Stats returns each server's stat dictionary, keyed by the server string
// passed to New. subcommand, when non-empty, is forwarded as the stats
// request's sub-command key.
func (c *Client) Stats(ctx context.Context, subcommand string) (map[string]map[string]string, error) {
	return c.r.Stats(ctx, subcommand)
}
