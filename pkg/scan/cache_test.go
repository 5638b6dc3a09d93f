package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"ultrascan/pkg/media"
	"ultrascan/pkg/shield"
)

func sampleVerdict(scanID string) *Verdict {
	return &Verdict{
		ScanID:      scanID,
		MediaType:   media.MediaTypeImage,
		Verdict:     shield.VerdictLikelyFake,
		TrustScore:  0.22,
		Confidence:  0.8,
		ThreatLevel: shield.ThreatHigh,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestContentKeyStable(t *testing.T) {
	a := ContentKey([]byte("same bytes"))
	b := ContentKey([]byte("same bytes"))
	c := ContentKey([]byte("different bytes"))
	if a != b {
		t.Fatalf("identical content must key identically: %s vs %s", a, b)
	}
	if a == c {
		t.Fatal("different content must not collide")
	}
}

func TestCacheComputesOnceThenServesCached(t *testing.T) {
	c := NewCache("", time.Minute)
	defer c.Close()

	var calls int
	compute := func() (*Verdict, error) {
		calls++
		return sampleVerdict("scn_cache000001"), nil
	}

	key := ContentKey([]byte("payload"))
	v1, cached, err := c.GetOrCompute(context.Background(), key, compute)
	if err != nil {
		t.Fatalf("first compute failed: %v", err)
	}
	if cached {
		t.Fatal("first call cannot be a cache hit")
	}

	v2, cached, err := c.GetOrCompute(context.Background(), key, compute)
	if err != nil {
		t.Fatalf("second lookup failed: %v", err)
	}
	if !cached {
		t.Fatal("second call must hit the cache")
	}
	if calls != 1 {
		t.Fatalf("compute ran %d times, want 1", calls)
	}
	if v1.ScanID != v2.ScanID {
		t.Fatalf("cache returned a different verdict: %s vs %s", v1.ScanID, v2.ScanID)
	}
}

func TestCacheErrorsAreNotCached(t *testing.T) {
	c := NewCache("", time.Minute)
	defer c.Close()

	key := ContentKey([]byte("flaky"))
	boom := errors.New("pipeline exploded")

	_, _, err := c.GetOrCompute(context.Background(), key, func() (*Verdict, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("compute error must propagate, got %v", err)
	}

	// The failure must not poison the key: the next compute runs.
	v, cached, err := c.GetOrCompute(context.Background(), key, func() (*Verdict, error) {
		return sampleVerdict("scn_retry0000001"), nil
	})
	if err != nil || cached || v == nil {
		t.Fatalf("retry after error should compute fresh: v=%v cached=%v err=%v", v, cached, err)
	}
}

func TestCacheSingleflightCollapsesConcurrentScans(t *testing.T) {
	c := NewCache("", time.Minute)
	defer c.Close()

	var calls atomic.Int64
	release := make(chan struct{})
	compute := func() (*Verdict, error) {
		calls.Add(1)
		<-release
		return sampleVerdict("scn_flight000001"), nil
	}

	key := ContentKey([]byte("hot content"))
	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrCompute(context.Background(), key, compute); err != nil {
				t.Errorf("concurrent lookup failed: %v", err)
			}
		}()
	}

	// Give the flight time to coalesce, then let the single compute finish.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("concurrent identical scans ran compute %d times, want 1", got)
	}
}

func TestCacheSharesVerdictsThroughRedis(t *testing.T) {
	srv := miniredis.RunT(t)

	// First replica computes and writes through to Redis.
	first := NewCache(srv.Addr(), time.Minute)
	defer first.Close()

	key := ContentKey([]byte("shared media"))
	want := sampleVerdict("scn_shared000001")
	_, cached, err := first.GetOrCompute(context.Background(), key, func() (*Verdict, error) {
		return want, nil
	})
	if err != nil || cached {
		t.Fatalf("seed compute failed: cached=%v err=%v", cached, err)
	}

	// Second replica has a cold local cache but must find the verdict in
	// Redis without recomputing.
	second := NewCache(srv.Addr(), time.Minute)
	defer second.Close()

	got, cached, err := second.GetOrCompute(context.Background(), key, func() (*Verdict, error) {
		t.Error("replica with Redis hit must not recompute")
		return nil, errors.New("unreachable")
	})
	if err != nil {
		t.Fatalf("replica lookup failed: %v", err)
	}
	if !cached {
		t.Fatal("replica lookup must be a cache hit")
	}
	if got.ScanID != want.ScanID || got.Verdict != want.Verdict || got.ThreatLevel != want.ThreatLevel {
		t.Fatalf("replica verdict differs: %+v vs %+v", got, want)
	}
}

func TestCacheExpiredRedisEntryRecomputes(t *testing.T) {
	srv := miniredis.RunT(t)
	c := NewCache(srv.Addr(), time.Minute)
	defer c.Close()

	key := ContentKey([]byte("expiring"))
	_, _, err := c.GetOrCompute(context.Background(), key, func() (*Verdict, error) {
		return sampleVerdict("scn_expire000001"), nil
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// Evict everywhere: fast-forward Redis past the TTL and drop the
	// local layer.
	srv.FastForward(2 * time.Minute)
	c.local.Flush()

	var recomputed bool
	_, cached, err := c.GetOrCompute(context.Background(), key, func() (*Verdict, error) {
		recomputed = true
		return sampleVerdict("scn_expire000002"), nil
	})
	if err != nil {
		t.Fatalf("post-expiry lookup failed: %v", err)
	}
	if cached || !recomputed {
		t.Fatalf("expired entry must recompute: cached=%v recomputed=%v", cached, recomputed)
	}
}
