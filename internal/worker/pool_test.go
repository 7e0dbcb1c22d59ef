package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type testJob struct {
	id      int
	delay   time.Duration
	fail    bool
	counter *int32
}

type testResult struct {
	id  int
	err error
}

func (r *testResult) GetError() error { return r.err }

func (j *testJob) Execute(ctx context.Context) Result {
	if j.delay > 0 {
		select {
		case <-time.After(j.delay):
		case <-ctx.Done():
			return &testResult{id: j.id, err: ctx.Err()}
		}
	}
	if j.counter != nil {
		atomic.AddInt32(j.counter, 1)
	}
	if j.fail {
		return &testResult{id: j.id, err: fmt.Errorf("job %d failed", j.id)}
	}
	return &testResult{id: j.id}
}

func TestPool_RunsAllJobs(t *testing.T) {
	var counter int32
	pool := NewPool(3)
	pool.Start()

	for i := 0; i < 10; i++ {
		pool.Submit(&testJob{id: i, counter: &counter})
	}

	results := pool.Wait()
	if len(results) != 10 {
		t.Errorf("expected 10 results, got %d", len(results))
	}
	if atomic.LoadInt32(&counter) != 10 {
		t.Errorf("expected 10 executions, got %d", counter)
	}
}

func TestPool_BatchMuchLargerThanWorkers(t *testing.T) {
	// Every job must be accepted up front, well past the queue and result
	// buffers, without the submitter blocking on an undrained result channel.
	const jobs = 40

	var counter int32
	pool := NewPool(2)
	pool.Start()

	done := make(chan []Result, 1)
	go func() {
		for i := 0; i < jobs; i++ {
			pool.Submit(&testJob{id: i, counter: &counter})
		}
		done <- pool.Wait()
	}()

	select {
	case results := <-done:
		if len(results) != jobs {
			t.Errorf("expected %d results, got %d", jobs, len(results))
		}
		if atomic.LoadInt32(&counter) != jobs {
			t.Errorf("expected %d executions, got %d", jobs, counter)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool deadlocked with jobs exceeding buffer capacity")
	}
}

func TestPool_CollectsErrors(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	pool.Submit(&testJob{id: 1})
	pool.Submit(&testJob{id: 2, fail: true})
	pool.Submit(&testJob{id: 3})

	results := pool.Wait()
	failures := 0
	for _, r := range results {
		if r.GetError() != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
}

func TestPool_ZeroWorkersDefaultsToOne(t *testing.T) {
	pool := NewPool(0)
	pool.Start()
	pool.Submit(&testJob{id: 1})

	results := pool.Wait()
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestPool_ShutdownStopsWorkers(t *testing.T) {
	pool := NewPool(1)
	pool.Start()
	pool.Submit(&testJob{id: 1, delay: 50 * time.Millisecond})
	pool.Shutdown()

	// Submissions after shutdown are dropped instead of blocking.
	done := make(chan struct{})
	go func() {
		pool.Submit(&testJob{id: 2})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked after Shutdown")
	}
}
