package cache

import (
	"fmt"
	"testing"
)

func TestCacheGetPut(t *testing.T) {
	c := New()

	if _, ok := c.Get("0/0/0"); ok {
		t.Fatal("empty cache returned a hit")
	}
	c.Put("0/0/0", "root", 128)
	v, ok := c.Get("0/0/0")
	if !ok || v.(string) != "root" {
		t.Fatalf("Get(0/0/0) = %v, %v; want root, true", v, ok)
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats hits=%d misses=%d; want 1, 1", st.Hits, st.Misses)
	}
	if st.Bytes != 128 {
		t.Errorf("bytes = %d; want 128", st.Bytes)
	}
}

func TestCachePutReplace(t *testing.T) {
	c := New()
	c.Put("1/0/0", "a", 100)
	c.Put("1/0/0", "b", 40)

	if c.Len() != 1 {
		t.Fatalf("len = %d; want 1", c.Len())
	}
	if v, _ := c.Get("1/0/0"); v.(string) != "b" {
		t.Errorf("payload = %v; want b", v)
	}
	if st := c.Stats(); st.Bytes != 40 {
		t.Errorf("bytes = %d; want 40", st.Bytes)
	}
}

func TestTrimEvictsLRUOrder(t *testing.T) {
	c := New()
	var evicted []string
	c.OnEvict = func(e Entry) { evicted = append(evicted, e.Key) }

	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("2/%d/0", i), i, 10)
	}
	// Recency now 2/4/0 .. 2/0/0; touching the oldest moves it to the front.
	c.Touch("2/0/0")

	c.Trim(3, 0, nil)

	want := []string{"2/1/0", "2/2/0"}
	if len(evicted) != len(want) {
		t.Fatalf("evicted %v; want %v", evicted, want)
	}
	for i := range want {
		if evicted[i] != want[i] {
			t.Errorf("evicted[%d] = %s; want %s", i, evicted[i], want[i])
		}
	}
	if !c.Has("2/0/0") {
		t.Error("touched entry was evicted")
	}
}

func TestTrimByteBudget(t *testing.T) {
	c := New()
	c.Put("3/0/0", nil, 400)
	c.Put("3/1/0", nil, 400)
	c.Put("3/2/0", nil, 400)

	c.Trim(0, 1000, nil)

	if c.Has("3/0/0") {
		t.Error("oldest entry survived byte trim")
	}
	if st := c.Stats(); st.Bytes != 800 || st.Evictions != 1 {
		t.Errorf("bytes=%d evictions=%d; want 800, 1", st.Bytes, st.Evictions)
	}
}

func TestTrimNeverEvictsProtected(t *testing.T) {
	c := New()
	protected := make(map[string]struct{})
	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("4/%d/0", i)
		c.Put(key, nil, 10)
		protected[key] = struct{}{}
	}

	c.Trim(2, 0, protected)

	// Everything is on screen, so the cache stays over budget.
	if c.Len() != 4 {
		t.Fatalf("len = %d; want 4 (protected entries must survive)", c.Len())
	}
	if st := c.Stats(); st.Evictions != 0 {
		t.Errorf("evictions = %d; want 0", st.Evictions)
	}
}

func TestTrimSkipsProtectedEvictsRest(t *testing.T) {
	c := New()
	for i := 0; i < 4; i++ {
		c.Put(fmt.Sprintf("5/%d/0", i), nil, 10)
	}
	protected := map[string]struct{}{"5/0/0": {}} // the LRU entry

	c.Trim(2, 0, protected)

	if !c.Has("5/0/0") {
		t.Error("protected LRU entry was evicted")
	}
	if c.Has("5/1/0") || c.Has("5/2/0") {
		t.Error("unprotected entries past budget were not evicted")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d; want 2", c.Len())
	}
}

func TestRemove(t *testing.T) {
	c := New()
	var evicted int
	c.OnEvict = func(Entry) { evicted++ }

	c.Put("6/0/0", nil, 50)
	c.Remove("6/0/0")
	c.Remove("6/0/0") // absent keys are a no-op

	if c.Len() != 0 || c.Stats().Bytes != 0 {
		t.Errorf("len=%d bytes=%d after remove; want 0, 0", c.Len(), c.Stats().Bytes)
	}
	if evicted != 1 {
		t.Errorf("OnEvict fired %d times; want 1", evicted)
	}
}
