// Package cache provides the operation result cache. Entries are keyed
// by a digest of the operation kind and its fully materialised inputs,
// so two operations with the same inputs share a result regardless of
// which workflow they appear in.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flowgate/flowgate/pkg/datamodel"
	"github.com/flowgate/flowgate/pkg/domain"
)

// ResultCache is an LRU cache with per-kind TTLs. A kind whose TTL is
// zero is never cached.
type ResultCache struct {
	mu       sync.Mutex
	settings domain.CacheSettings
	entries  map[string]*list.Element
	order    *list.List
	now      func() time.Time

	hits      int64
	misses    int64
	evictions int64
}

type entry struct {
	key       string
	kind      string
	value     any
	expiresAt time.Time
}

// New creates a cache with the given settings.
func New(settings domain.CacheSettings) *ResultCache {
	if settings.MaxSize <= 0 {
		settings.MaxSize = 1000
	}
	return &ResultCache{
		settings: settings,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// TTLFor returns the effective TTL for an operation kind. Zero means the
// kind is uncacheable.
func (c *ResultCache) TTLFor(kind string) time.Duration {
	if !c.settings.Enabled {
		return 0
	}
	if sec, ok := c.settings.PerKindTTLSec[kind]; ok {
		return time.Duration(sec) * time.Second
	}
	return time.Duration(c.settings.DefaultTTLSec) * time.Second
}

// Key derives the cache key for an operation: a sha256 hex digest of the
// kind and the canonical JSON encoding of its materialised arguments.
func Key(kind string, args map[string]any) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte('\n')
	writeCanonical(&b, args)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// writeCanonical emits a deterministic JSON-like encoding with object
// keys sorted.
func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	default:
		data, err := json.Marshal(val)
		if err != nil {
			fmt.Fprintf(b, "%q", fmt.Sprint(val))
			return
		}
		b.Write(data)
	}
}

// Get returns a deep copy of the cached value for key if present and
// unexpired, so callers never alias the stored entry across executions.
func (c *ResultCache) Get(key string) (any, bool) {
	if !c.settings.Enabled {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.removeLocked(el)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return datamodel.Copy(e.value), true
}

// Put stores a value under key with the kind's TTL. Uncacheable kinds
// are silently dropped. The least recently used entry is evicted when
// the cache is full.
func (c *ResultCache) Put(key, kind string, value any) {
	ttl := c.TTLFor(kind)
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = c.now().Add(ttl)
		c.order.MoveToFront(el)
		return
	}

	for len(c.entries) >= c.settings.MaxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evictions++
	}

	el := c.order.PushFront(&entry{
		key:       key,
		kind:      kind,
		value:     value,
		expiresAt: c.now().Add(ttl),
	})
	c.entries[key] = el
}

// Invalidate removes entries for the given kind, or all entries when
// kind is empty.
func (c *ResultCache) Invalidate(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if kind == "" || el.Value.(*entry).kind == kind {
			c.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

func (c *ResultCache) removeLocked(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry).key)
}

// Stats reports cache usage counters.
type Stats struct {
	Size      int   `json:"size"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Stats returns current counters.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.entries), Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}
