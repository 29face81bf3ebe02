// Package entityid caches display id to entity id resolutions in front of the
// catalog. The mapping never changes for a dataset, so entries leave only by
// eviction or expiry, or when a caller asks for a refresh through Forget.
package entityid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/scene-catalog/internal/cache/keys"
	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
	"github.com/mohammed-shakir/scene-catalog/internal/logger"
)

const (
	tierLRU   = "lru"
	tierRedis = "redis"

	defaultSize      = 10_000
	defaultTTL       = 24 * time.Hour
	defaultOpTimeout = 250 * time.Millisecond
)

// Resolver is the catalog side of the cache.
type Resolver interface {
	ResolveEntityIDs(ctx context.Context, displayIDs []string, dataset string) ([]string, error)
}

// Store is the shared tier; *redisstore.Client implements it.
type Store interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MSetWithTTL(ctx context.Context, kv map[string][]byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Option func(*Cache)

func WithSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithStore enables the shared tier. Entries written there expire after ttl.
func WithStore(s Store, ttl time.Duration) Option {
	return func(c *Cache) {
		c.store = s
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithOpTimeout bounds each shared tier round trip.
func WithOpTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

type Cache struct {
	next      Resolver
	local     *lru.Cache[string, string]
	store     Store
	size      int
	ttl       time.Duration
	opTimeout time.Duration
	log       *slog.Logger
}

func New(next Resolver, opts ...Option) (*Cache, error) {
	if next == nil {
		return nil, fmt.Errorf("entityid: resolver is required")
	}
	c := &Cache{
		next:      next,
		size:      defaultSize,
		ttl:       defaultTTL,
		opTimeout: defaultOpTimeout,
		log:       logger.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	local, err := lru.New[string, string](c.size)
	if err != nil {
		return nil, fmt.Errorf("entityid: lru: %w", err)
	}
	c.local = local
	return c, nil
}

func (c *Cache) ResolveEntityID(ctx context.Context, displayID, dataset string) (string, error) {
	ids, err := c.ResolveEntityIDs(ctx, []string{displayID}, dataset)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// ResolveEntityIDs answers from the local LRU, then the shared store, and asks
// the catalog only for what is still missing. Output order and length follow
// displayIDs.
func (c *Cache) ResolveEntityIDs(ctx context.Context, displayIDs []string, dataset string) ([]string, error) {
	if len(displayIDs) == 0 {
		return []string{}, nil
	}
	ctx = logger.WithDataset(logger.WithComponent(ctx, "entityid"), dataset)

	ks := keys.EntityIDs(dataset, displayIDs)
	out := make([]string, len(displayIDs))

	missing := make([]int, 0, len(ks))
	for i, k := range ks {
		if v, ok := c.local.Get(k); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}
	observability.ObserveEntityCache(tierLRU, "hit", len(ks)-len(missing))
	observability.ObserveEntityCache(tierLRU, "miss", len(missing))
	if len(missing) == 0 {
		return out, nil
	}

	if c.store != nil {
		missing = c.fromStore(ctx, ks, missing, out)
		if len(missing) == 0 {
			return out, nil
		}
	}

	if err := c.fromCatalog(ctx, dataset, displayIDs, ks, missing, out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromStore fills out from the shared tier and returns the indexes still
// missing. Store failures degrade to misses.
func (c *Cache) fromStore(ctx context.Context, ks []string, missing []int, out []string) []int {
	want := make([]string, len(missing))
	for j, i := range missing {
		want[j] = ks[i]
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	found, err := c.store.MGet(opCtx, want)
	cancel()
	if err != nil {
		c.log.WarnContext(ctx, "entity id store lookup failed", "keys", len(want), "err", err)
		observability.ObserveEntityCache(tierRedis, "miss", len(missing))
		return missing
	}

	still := missing[:0]
	for _, i := range missing {
		if v, ok := found[ks[i]]; ok && len(v) > 0 {
			out[i] = string(v)
			c.local.Add(ks[i], out[i])
			continue
		}
		still = append(still, i)
	}
	observability.ObserveEntityCache(tierRedis, "hit", len(missing)-len(still))
	observability.ObserveEntityCache(tierRedis, "miss", len(still))
	return still
}

func (c *Cache) fromCatalog(ctx context.Context, dataset string, displayIDs, ks []string, missing []int, out []string) error {
	// one catalog lookup per distinct key
	var uniq []string
	positions := make(map[string][]int, len(missing))
	for _, i := range missing {
		if _, seen := positions[ks[i]]; !seen {
			uniq = append(uniq, strings.TrimSpace(displayIDs[i]))
		}
		positions[ks[i]] = append(positions[ks[i]], i)
	}

	ids, err := c.next.ResolveEntityIDs(ctx, uniq, dataset)
	if err != nil {
		return err
	}
	if len(ids) != len(uniq) {
		return fmt.Errorf("entityid: catalog returned %d ids for %d display ids", len(ids), len(uniq))
	}

	fill := make(map[string][]byte, len(uniq))
	for j, d := range uniq {
		k := keys.EntityID(dataset, d)
		for _, i := range positions[k] {
			out[i] = ids[j]
		}
		c.local.Add(k, ids[j])
		fill[k] = []byte(ids[j])
	}

	if c.store != nil {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
		if err := c.store.MSetWithTTL(opCtx, fill, c.ttl); err != nil {
			c.log.WarnContext(ctx, "entity id store fill failed", "keys", len(fill), "err", err)
		}
	}
	return nil
}

// Seed stores pairs (display id to entity id) learned elsewhere, such as
// search results seen by another instance. Store failures are logged.
func (c *Cache) Seed(ctx context.Context, dataset string, pairs map[string]string) {
	if len(pairs) == 0 {
		return
	}
	fill := make(map[string][]byte, len(pairs))
	for displayID, entityID := range pairs {
		if displayID == "" || entityID == "" {
			continue
		}
		k := keys.EntityID(dataset, displayID)
		c.local.Add(k, entityID)
		fill[k] = []byte(entityID)
	}
	if c.store == nil || len(fill) == 0 {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.store.MSetWithTTL(opCtx, fill, c.ttl); err != nil {
		c.log.WarnContext(ctx, "entity id store seed failed", "keys", len(fill), "err", err)
	}
}

// Forget drops displayIDs of dataset from both tiers, so the next lookup goes
// to the catalog.
func (c *Cache) Forget(ctx context.Context, dataset string, displayIDs ...string) error {
	ks := keys.EntityIDs(dataset, displayIDs)
	for _, k := range ks {
		c.local.Remove(k)
	}
	if c.store == nil || len(ks) == 0 {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.store.Del(opCtx, ks...); err != nil {
		return fmt.Errorf("entityid: forget %d keys: %w", len(ks), err)
	}
	return nil
}

// Len is the number of entries in the local tier.
func (c *Cache) Len() int { return c.local.Len() }
