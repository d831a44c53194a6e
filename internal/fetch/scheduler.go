// Package fetch runs tile downloads on a bounded worker budget with
// per-key request coalescing.
package fetch

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/handaome/three-earth/internal/logger"
	"github.com/handaome/three-earth/internal/metrics"
)

// FetchFunc retrieves the payload for one tile key.
type FetchFunc func(ctx context.Context, key string) ([]byte, error)

// Result is a finished fetch. Data is nil when the fetch failed; errors are
// logged here and never surfaced to the consumer.
type Result struct {
	Key  string
	Data []byte
}

// Job is an in-flight fetch. A second Request for the same key returns the
// original Job rather than starting another download.
type Job struct {
	Key  string
	done chan struct{}

	data []byte
}

// Wait blocks until the job finishes and returns its payload (nil on
// failure).
func (j *Job) Wait() []byte {
	<-j.done
	return j.data
}

// Scheduler bounds concurrent fetches and deduplicates by key. Completions
// accumulate on an internal channel until the owner drains them; the
// pending set therefore keeps a key reserved from Request until Drain
// observes its Result.
type Scheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	sem     *semaphore.Weighted
	results chan Result

	mu      sync.Mutex
	pending map[string]*Job

	requested int64
	succeeded int64
}

// NewScheduler creates a scheduler running at most maxConcurrent fetches
// at once. buffer sizes the completion channel and bounds how many results
// a single Drain can hand back.
func NewScheduler(maxConcurrent int64, buffer int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		sem:     semaphore.NewWeighted(maxConcurrent),
		results: make(chan Result, buffer),
		pending: make(map[string]*Job),
	}
}

// Request starts a fetch for key, or returns the in-flight Job when one
// exists. The worker blocks on the concurrency semaphore, not the caller.
func (s *Scheduler) Request(key string, fn FetchFunc) *Job {
	s.mu.Lock()
	if job, ok := s.pending[key]; ok {
		s.mu.Unlock()
		return job
	}
	job := &Job{Key: key, done: make(chan struct{})}
	s.pending[key] = job
	s.requested++
	s.mu.Unlock()

	metrics.TilesRequested.Inc()
	metrics.PendingRequests.Inc()

	go s.run(job, fn)
	return job
}

func (s *Scheduler) run(job *Job, fn FetchFunc) {
	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		s.finish(job, nil)
		return
	}
	data, err := fn(s.ctx, job.Key)
	s.sem.Release(1)

	if err != nil {
		logger.Warn("tile fetch failed", zap.String("tile", job.Key), zap.Error(err))
		data = nil
	}
	s.finish(job, data)
}

func (s *Scheduler) finish(job *Job, data []byte) {
	job.data = data
	close(job.done)

	if data != nil {
		s.mu.Lock()
		s.succeeded++
		s.mu.Unlock()
		metrics.TilesSucceeded.Inc()
	} else {
		metrics.TilesFailed.Inc()
	}

	// The pending entry is cleared by Drain so a duplicate Request issued
	// before the result is consumed still coalesces.
	s.results <- Result{Key: job.Key, Data: data}
}

// Drain returns all completions available right now without blocking.
// Every drained key is released from the pending set, so a later Request
// for it starts a fresh fetch.
func (s *Scheduler) Drain() []Result {
	var out []Result
	for {
		select {
		case r := <-s.results:
			s.mu.Lock()
			delete(s.pending, r.Key)
			s.mu.Unlock()
			metrics.PendingRequests.Dec()
			out = append(out, r)
		default:
			return out
		}
	}
}

// Pending returns the number of fetches not yet drained.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Requested returns the total number of fetches started.
func (s *Scheduler) Requested() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// Succeeded returns the total number of fetches that produced a payload.
func (s *Scheduler) Succeeded() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded
}

// Close cancels in-flight fetches.
func (s *Scheduler) Close() {
	s.cancel()
}
