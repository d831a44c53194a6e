package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func drainAll(t *testing.T, s *Scheduler, want int) []Result {
	t.Helper()
	var out []Result
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < want {
		if time.Now().After(deadline) {
			t.Fatalf("drained %d results, want %d", len(out), want)
		}
		out = append(out, s.Drain()...)
		time.Sleep(time.Millisecond)
	}
	return out
}

func TestRequestDelivers(t *testing.T) {
	s := NewScheduler(2, 16)
	defer s.Close()

	s.Request("3/4/3", func(ctx context.Context, key string) ([]byte, error) {
		return []byte("payload:" + key), nil
	})

	got := drainAll(t, s, 1)
	if got[0].Key != "3/4/3" || string(got[0].Data) != "payload:3/4/3" {
		t.Fatalf("result = %+v", got[0])
	}
	if s.Requested() != 1 || s.Succeeded() != 1 {
		t.Errorf("requested=%d succeeded=%d; want 1, 1", s.Requested(), s.Succeeded())
	}
	if s.Pending() != 0 {
		t.Errorf("pending = %d after drain; want 0", s.Pending())
	}
}

func TestDuplicateKeyCoalesces(t *testing.T) {
	s := NewScheduler(4, 16)
	defer s.Close()

	var calls int64
	release := make(chan struct{})
	fn := func(ctx context.Context, key string) ([]byte, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return []byte("ok"), nil
	}

	j1 := s.Request("3/4/3", fn)
	j2 := s.Request("3/4/3", fn)
	if j1 != j2 {
		t.Fatal("duplicate request did not return the in-flight job")
	}
	close(release)

	got := drainAll(t, s, 1)
	if got[0].Key != "3/4/3" {
		t.Fatalf("result key = %s", got[0].Key)
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("fetch ran %d times; want 1", n)
	}
	if s.Requested() != 1 {
		t.Errorf("requested = %d; want 1", s.Requested())
	}
}

func TestKeyReleasedAfterDrain(t *testing.T) {
	s := NewScheduler(2, 16)
	defer s.Close()

	var calls int64
	fn := func(ctx context.Context, key string) ([]byte, error) {
		atomic.AddInt64(&calls, 1)
		return nil, errors.New("unreachable")
	}

	s.Request("5/1/2", fn)
	drainAll(t, s, 1)
	s.Request("5/1/2", fn) // retry after the failure was drained
	drainAll(t, s, 1)

	if n := atomic.LoadInt64(&calls); n != 2 {
		t.Errorf("fetch ran %d times; want 2", n)
	}
}

func TestFailureResolvesNil(t *testing.T) {
	s := NewScheduler(2, 16)
	defer s.Close()

	job := s.Request("7/0/0", func(ctx context.Context, key string) ([]byte, error) {
		return nil, errors.New("503")
	})
	if data := job.Wait(); data != nil {
		t.Fatalf("failed fetch returned data %q", data)
	}

	got := drainAll(t, s, 1)
	if got[0].Data != nil {
		t.Error("drained failure carries a payload")
	}
	if s.Succeeded() != 0 {
		t.Errorf("succeeded = %d; want 0", s.Succeeded())
	}
}

func TestConcurrencyBound(t *testing.T) {
	const cap = 3
	s := NewScheduler(cap, 64)
	defer s.Close()

	var mu sync.Mutex
	active, peak := 0, 0
	fn := func(ctx context.Context, key string) ([]byte, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return []byte{0}, nil
	}

	keys := []string{"4/0/0", "4/1/0", "4/2/0", "4/3/0", "4/0/1", "4/1/1", "4/2/1", "4/3/1"}
	for _, k := range keys {
		s.Request(k, fn)
	}
	drainAll(t, s, len(keys))

	mu.Lock()
	defer mu.Unlock()
	if peak > cap {
		t.Errorf("peak concurrency %d exceeds cap %d", peak, cap)
	}
}

func TestDrainNonBlocking(t *testing.T) {
	s := NewScheduler(1, 4)
	defer s.Close()

	if got := s.Drain(); len(got) != 0 {
		t.Fatalf("Drain on idle scheduler returned %v", got)
	}
}
