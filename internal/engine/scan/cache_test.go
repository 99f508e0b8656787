package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func countingScan(calls *atomic.Int64) ScanFunc {
	return func(ctx context.Context, entries []string) ([]string, error) {
		calls.Add(1)
		classes := make([]string, 0, len(entries))
		for _, e := range entries {
			classes = append(classes, "class-from-"+e)
		}
		return classes, nil
	}
}

func TestFingerprint_OrderInsensitive(t *testing.T) {
	a := Fingerprint([]string{"/libs/a.jar", "/libs/b.jar"})
	b := Fingerprint([]string{"/libs/b.jar", "/libs/a.jar"})
	if a != b {
		t.Fatalf("fingerprints differ for reordered classpath: %x vs %x", a, b)
	}

	c := Fingerprint([]string{"/libs/a.jar", "/libs/b.jar", "/libs/a.jar"})
	if a != c {
		t.Fatalf("duplicate entry changed fingerprint: %x vs %x", a, c)
	}

	d := Fingerprint([]string{"/libs/a.jar"})
	if a == d {
		t.Fatal("distinct classpaths share a fingerprint")
	}
}

func TestCache_AcquireSharesStructurallyEqualClasspaths(t *testing.T) {
	var calls atomic.Int64
	c := NewCache(countingScan(&calls))
	ctx := context.Background()

	// Independently constructed, differently ordered, same set.
	first, err := c.Acquire(ctx, []string{"/libs/a.jar", "/libs/b.jar"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Acquire(ctx, []string{"/libs/b.jar", "/libs/a.jar"})
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Fatal("expected the same shared result identity")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 scan, got %d", calls.Load())
	}
	if got := c.RefCount(first); got != 2 {
		t.Fatalf("expected refcount 2, got %d", got)
	}
}

func TestCache_ReleaseToZeroEvicts(t *testing.T) {
	var calls atomic.Int64
	c := NewCache(countingScan(&calls))
	ctx := context.Background()

	res, err := c.Acquire(ctx, []string{"/libs/a.jar"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Acquire(ctx, []string{"/libs/a.jar"}); err != nil {
		t.Fatal(err)
	}

	c.Release(res)
	if got := c.RefCount(res); got != 1 {
		t.Fatalf("expected refcount 1, got %d", got)
	}

	c.Release(res)
	if got := c.RefCount(res); got != -1 {
		t.Fatalf("expected evicted result to report -1, got %d", got)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Size())
	}

	// Releasing an already-evicted result is benign.
	c.Release(res)
	if c.Size() != 0 {
		t.Fatal("release of untracked result changed cache size")
	}
}

func TestCache_ReleaseNilAndUntracked(t *testing.T) {
	var calls atomic.Int64
	c := NewCache(countingScan(&calls))

	c.Release(nil)
	if got := c.RefCount(nil); got != -1 {
		t.Fatalf("expected -1 for nil, got %d", got)
	}

	untracked := &Result{fingerprint: 42}
	c.Release(untracked)
	if got := c.RefCount(untracked); got != -1 {
		t.Fatalf("expected -1 for untracked, got %d", got)
	}
	if c.Size() != 0 {
		t.Fatal("untracked release changed cache size")
	}
}

func TestCache_ClearEvictsUnconditionally(t *testing.T) {
	var calls atomic.Int64
	c := NewCache(countingScan(&calls))
	ctx := context.Background()

	res, err := c.Acquire(ctx, []string{"/libs/a.jar"})
	if err != nil {
		t.Fatal(err)
	}

	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Size())
	}
	if got := c.RefCount(res); got != -1 {
		t.Fatalf("expected cleared result to be untracked, got %d", got)
	}
}

func TestCache_ConcurrentAcquireRelease(t *testing.T) {
	var calls atomic.Int64
	c := NewCache(countingScan(&calls))
	ctx := context.Background()
	classpath := []string{"/libs/a.jar", "/libs/b.jar"}

	const holders = 32
	results := make([]*Result, holders)
	var wg sync.WaitGroup
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Acquire(ctx, classpath)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	if got := c.RefCount(results[0]); got != holders {
		t.Fatalf("expected refcount %d, got %d", holders, got)
	}
	for _, res := range results {
		if res != results[0] {
			t.Fatal("holders observed different result identities")
		}
	}

	wg = sync.WaitGroup{}
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Release(results[i])
		}(i)
	}
	wg.Wait()

	if c.Size() != 0 {
		t.Fatalf("expected cache drained, got %d entries", c.Size())
	}
}
