// Package cache implements the Cache Coordinator: a keyed, TTL'd mapping
// from query fingerprint to materialized response, a global version token,
// per-entity version tokens, and pattern/cascade invalidation. Entries live
// in an in-memory tier bounded by entry count (oldest-insertion eviction).
// A Redis backend type is provided and can be handed to New, but the
// Coordinator does not read from or write to it.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kestrel-labs/workspacegraph/internal/metrics"
)

// Key formatting is data, not ad-hoc concatenation — this is the only
// place collection/entity/graph keys are assembled, and the only place the
// matching glob patterns used by invalidation are derived from them.

func CollectionKey(kind, limit, cursor string) string {
	return kind + ":" + limit + ":" + cursor
}

func EntityKey(kind, id, limit, cursor string) string {
	return kind + "_" + id + ":" + limit + ":" + cursor
}

const GraphCompleteKey = "graph_complete"

func collectionPattern(kind string) string {
	return kind + ":*"
}

// CollectionKeyPrefix is the exported glob pattern matching every
// collection-key cache entry for a kind, used by callers invalidating a
// kind's list cache directly (e.g. after Create, before any entity id is
// known).
func CollectionKeyPrefix(kind string) string {
	return collectionPattern(kind)
}

func entityPattern(kind, id string) string {
	return kind + "_" + id + ":*"
}

// entry is one cached value with its insertion time for TTL and eviction.
type entry struct {
	value     interface{}
	insertedAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.insertedAt) > e.ttl
}

// InvalidationEvent records one invalidation for the bounded history (a
// slice trimmed to the newest HistorySize events), useful for debugging
// cascades.
type InvalidationEvent struct {
	Pattern   string
	At        time.Time
	NewVersion string
}

// RelatedInvalidation is one {kind, ids} group passed to InvalidateRelated
// for cascading across the designated inverse-relation pairs.
type RelatedInvalidation struct {
	Kind string
	IDs  []string
}

// Backend is the interface of an optional secondary store (Redis). The
// Coordinator keeps the Backend it is constructed with, but Get, Set and the
// invalidation methods work on the in-memory tier only and never call it;
// a nil Backend behaves the same.
type Backend interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, prefix string) ([]string, error)
}

// Config controls bounds and defaults.
type Config struct {
	MaxEntries     int
	DefaultTTL     time.Duration
	HistorySize    int
}

func DefaultConfig() Config {
	return Config{MaxEntries: 1000, DefaultTTL: 5 * time.Minute, HistorySize: 200}
}

// Coordinator is the Cache Coordinator. Reads (Get) are lock-free relative
// to each other; Set/Invalidate serialize per key via the single mutex (O3
// — a coarse-grained mutex satisfies "serialized per key" without the
// complexity of per-key locks, since the cache is not the system's
// bottleneck — the Gateway's rate limit is).
type Coordinator struct {
	mu             sync.RWMutex
	entries        map[string]entry
	insertionOrder []string // oldest first, for bounded eviction
	globalVersion  uint64
	entityVersions map[string]uint64
	history        []InvalidationEvent
	cfg            Config
	backend        Backend
}

func New(cfg Config, backend Backend) *Coordinator {
	return &Coordinator{
		entries:        make(map[string]entry),
		entityVersions: make(map[string]uint64),
		cfg:            cfg,
		backend:        backend,
	}
}

// Get returns the cached value for key if present and unexpired. Expired
// entries behave as absent but stay in the map until they are overwritten,
// invalidated, or dropped by the entry-count bound; there is no background
// sweep.
func (c *Coordinator) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expired(time.Now()) {
		metrics.CacheHits.WithLabelValues(keyKind(key), "miss").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(keyKind(key), "hit").Inc()
	return e.value, true
}

// keyKind extracts the leading kind segment from a cache key (up to the
// first ":" or "_") for use as a metrics label, without pulling the cache
// package into a dependency on entity.Kind.
func keyKind(key string) string {
	if i := strings.IndexAny(key, ":_"); i >= 0 {
		return key[:i]
	}
	return key
}

// Set stores value under key with the default TTL, evicting the oldest
// entry by insertion time if the bound is exceeded.
func (c *Coordinator) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, c.cfg.DefaultTTL)
}

func (c *Coordinator) setLocked(key string, value interface{}, ttl time.Duration) {
	if _, exists := c.entries[key]; !exists {
		c.insertionOrder = append(c.insertionOrder, key)
	}
	c.entries[key] = entry{value: value, insertedAt: time.Now(), ttl: ttl}
	c.evictOldestLocked()
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// evictOldestLocked scans insertion order for the oldest live entry and
// removes it once the bound is exceeded, mirroring the reference state
// manager's bounded-map discipline.
func (c *Coordinator) evictOldestLocked() {
	for len(c.entries) > c.cfg.MaxEntries && len(c.insertionOrder) > 0 {
		oldest := c.insertionOrder[0]
		c.insertionOrder = c.insertionOrder[1:]
		delete(c.entries, oldest)
	}
}

// GlobalVersion returns the current global version token.
func (c *Coordinator) GlobalVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.globalVersion
}

// EntityVersion returns the current version token for a specific entity id.
func (c *Coordinator) EntityVersion(id string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entityVersions[id]
}

// InvalidateEntity deletes both the single-entity and collection key
// patterns for (kind, id), bumps the global version, and stamps a fresh
// version on the entity — all under one lock so O4 (version bump atomic
// with invalidation) holds.
func (c *Coordinator) InvalidateEntity(kind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidatePatternLocked(entityPattern(kind, id))
	c.invalidatePatternLocked(collectionPattern(kind))
	c.invalidatePatternLocked(GraphCompleteKey + "*")
	c.globalVersion++
	c.entityVersions[id]++
	c.recordLocked(entityPattern(kind, id))
}

// InvalidateRelated cascades InvalidateEntity across every related kind/id
// group, used after inverse-relation maintenance touches other entities.
func (c *Coordinator) InvalidateRelated(kind, id string, related []RelatedInvalidation) {
	c.InvalidateEntity(kind, id)
	for _, group := range related {
		for _, relID := range group.IDs {
			c.InvalidateEntity(group.Kind, relID)
		}
	}
}

// InvalidatePattern removes every key matching a simple glob: a leading
// "*", a trailing "*", or an exact "prefix_id:..." match.
func (c *Coordinator) InvalidatePattern(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidatePatternLocked(pattern)
	c.globalVersion++
	c.recordLocked(pattern)
}

func (c *Coordinator) invalidatePatternLocked(pattern string) {
	matched := matchGlob(pattern)
	remaining := c.insertionOrder[:0:0]
	for _, key := range c.insertionOrder {
		if matched(key) {
			delete(c.entries, key)
			continue
		}
		remaining = append(remaining, key)
	}
	c.insertionOrder = remaining
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

func matchGlob(pattern string) func(string) bool {
	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		middle := pattern[1 : len(pattern)-1]
		return func(key string) bool { return strings.Contains(key, middle) }
	case strings.HasSuffix(pattern, "*"):
		prefix := strings.TrimSuffix(pattern, "*")
		return func(key string) bool { return strings.HasPrefix(key, prefix) }
	case strings.HasPrefix(pattern, "*"):
		suffix := strings.TrimPrefix(pattern, "*")
		return func(key string) bool { return strings.HasSuffix(key, suffix) }
	default:
		return func(key string) bool { return key == pattern }
	}
}

func (c *Coordinator) recordLocked(pattern string) {
	c.history = append(c.history, InvalidationEvent{
		Pattern:    pattern,
		At:         time.Now(),
		NewVersion: versionString(c.globalVersion),
	})
	if len(c.history) > c.cfg.HistorySize {
		c.history = c.history[len(c.history)-c.cfg.HistorySize:]
	}
}

// History returns a copy of the bounded invalidation event log.
func (c *Coordinator) History() []InvalidationEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]InvalidationEvent(nil), c.history...)
}

// ClearAll drops every cached entry and bumps the global version.
func (c *Coordinator) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.insertionOrder = nil
	c.globalVersion++
	c.recordLocked("*")
	metrics.CacheEntries.Set(0)
}

func versionString(v uint64) string {
	const hex = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = hex[v%16]
		v /= 16
	}
	return string(buf[i:])
}
