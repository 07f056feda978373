// Package roadnet provides the road-distance oracle consumed by the planner.
//
// The oracle is an explicit handle: per-query memoization in front, an
// optional process-wide second-level cache behind, and the haversine×1.3
// fallback at the bottom. Oracle failures degrade silently to the fallback;
// callers are never notified.
package roadnet

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/geo"
)

// Oracle answers road distance queries in meters.
type Oracle interface {
	RoadDistance(a, b geo.Point) float64
}

// detourFactor approximates road distance from the great-circle distance when
// no road graph is available.
const detourFactor = 1.3

// Fallback is the haversine×1.3 oracle. Stateless and safe for concurrent use.
type Fallback struct{}

func (Fallback) RoadDistance(a, b geo.Point) float64 {
	return detourFactor * geo.HaversineM(a, b)
}

// quantScale quantizes coordinates to ~5 m so repeated lookups within a query
// hit the memo. 1e-4 deg latitude ≈ 11 m; half of that per step.
const quantScale = 22000.0

type pairKey struct {
	aLat, aLon, bLat, bLon int32
}

func keyOf(a, b geo.Point) pairKey {
	// Normalize the pair so (a,b) and (b,a) share an entry.
	ka := [2]int32{int32(a.Lat * quantScale), int32(a.Lon * quantScale)}
	kb := [2]int32{int32(b.Lat * quantScale), int32(b.Lon * quantScale)}
	if ka[0] > kb[0] || (ka[0] == kb[0] && ka[1] > kb[1]) {
		ka, kb = kb, ka
	}
	return pairKey{aLat: ka[0], aLon: ka[1], bLat: kb[0], bLon: kb[1]}
}

// Memo wraps an oracle with a per-query memo table. Owned by a single query;
// not safe for concurrent use. An optional SecondLevel backs it process-wide.
type Memo struct {
	base Oracle
	l2   SecondLevel
	m    map[pairKey]float64
}

// SecondLevel is an optional shared cache behind per-query memos.
type SecondLevel interface {
	Get(k pairKey) (float64, bool)
	Put(k pairKey, meters float64)
}

func NewMemo(base Oracle, l2 SecondLevel) *Memo {
	if base == nil {
		base = Fallback{}
	}
	return &Memo{base: base, l2: l2, m: make(map[pairKey]float64)}
}

func (c *Memo) RoadDistance(a, b geo.Point) float64 {
	k := keyOf(a, b)
	if m, ok := c.m[k]; ok {
		return m
	}
	if c.l2 != nil {
		if m, ok := c.l2.Get(k); ok {
			c.m[k] = m
			return m
		}
	}
	m := c.base.RoadDistance(a, b)
	c.m[k] = m
	if c.l2 != nil {
		c.l2.Put(k, m)
	}
	return m
}

// RedisCache is the process-wide second level, capacity bounded by TTL on the
// Redis side. All failures are silent degrades.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (r *RedisCache) key(k pairKey) string {
	return fmt.Sprintf("roaddist:%d:%d:%d:%d", k.aLat, k.aLon, k.bLat, k.bLon)
}

func (r *RedisCache) Get(k pairKey) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	v, err := r.rdb.Get(ctx, r.key(k)).Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}

func (r *RedisCache) Put(k pairKey, meters float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = r.rdb.Set(ctx, r.key(k), meters, r.ttl).Err()
}
