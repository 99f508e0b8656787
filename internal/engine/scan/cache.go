// Package scan provides the reference-counted cache for expensive classpath
// introspection results. Unrelated project scopes with structurally equal
// classpaths share one scan result; an entry lives until its last holder
// releases it.
package scan

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"gls/internal/shared/observability"
)

// ScanFunc performs the expensive classpath introspection, returning the
// class names visible on the given entries.
type ScanFunc func(ctx context.Context, entries []string) ([]string, error)

// Result is a shared scan result. It has no single owner; the cache tracks
// holders by reference count.
type Result struct {
	fingerprint uint64
	Classes     []string
}

// Fingerprint returns the canonical classpath fingerprint the result is
// cached under.
func (r *Result) Fingerprint() uint64 {
	if r == nil {
		return 0
	}
	return r.fingerprint
}

type entry struct {
	result *Result
	refs   int
}

type Cache struct {
	mu      sync.Mutex
	entries map[uint64]*entry
	group   singleflight.Group
	scan    ScanFunc
}

func NewCache(scan ScanFunc) *Cache {
	return &Cache{
		entries: make(map[uint64]*entry),
		scan:    scan,
	}
}

// Fingerprint computes the canonical fingerprint for a set of classpath
// entries. The classpath is set-semantic: ordering and duplicates do not
// change the fingerprint, and structurally equal classpaths built from
// independent slices hash identically.
func Fingerprint(entries []string) uint64 {
	unique := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e != "" {
			unique[e] = true
		}
	}
	sorted := make([]string, 0, len(unique))
	for e := range unique {
		sorted = append(sorted, e)
	}
	sort.Strings(sorted)

	h := xxhash.New()
	for _, e := range sorted {
		_, _ = h.WriteString(e)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Acquire returns the shared result for the classpath, scanning at most once
// per fingerprint even under concurrent first acquires. Every successful
// Acquire increments the refcount and must be paired with a Release.
func (c *Cache) Acquire(ctx context.Context, entries []string) (*Result, error) {
	fp := Fingerprint(entries)

	c.mu.Lock()
	if e, ok := c.entries[fp]; ok {
		e.refs++
		c.mu.Unlock()
		observability.ScanCacheHitsTotal.Inc()
		return e.result, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(strconv.FormatUint(fp, 16), func() (interface{}, error) {
		classes, err := c.scan(ctx, entries)
		if err != nil {
			return nil, err
		}
		return classes, nil
	})
	if err != nil {
		return nil, err
	}
	classes := v.([]string)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another holder may have registered the entry while the scan ran.
	if e, ok := c.entries[fp]; ok {
		e.refs++
		observability.ScanCacheHitsTotal.Inc()
		return e.result, nil
	}
	res := &Result{fingerprint: fp, Classes: classes}
	c.entries[fp] = &entry{result: res, refs: 1}
	observability.ScanCacheMissesTotal.Inc()
	observability.ScanCacheEntries.Set(float64(len(c.entries)))
	return res, nil
}

// Release decrements the refcount for the result's entry and evicts the entry
// when the count reaches zero. Releasing nil or a result the cache no longer
// tracks is a no-op; the count never goes negative.
func (c *Cache) Release(result *Result) {
	if result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[result.fingerprint]
	if !ok || e.result != result {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(c.entries, result.fingerprint)
	}
	observability.ScanCacheEntries.Set(float64(len(c.entries)))
}

// RefCount reports the current reference count, or -1 for nil or untracked
// results.
func (c *Cache) RefCount(result *Result) int {
	if result == nil {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[result.fingerprint]
	if !ok || e.result != result {
		return -1
	}
	return e.refs
}

// Clear evicts everything regardless of outstanding refcounts. Used for full
// teardown; outstanding results simply become untracked.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*entry)
	observability.ScanCacheEntries.Set(0)
}

func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
