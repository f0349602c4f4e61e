package pool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/blueragesoftware/backend/pkg/pool"
)

type testLogger struct{}

func (testLogger) Infof(format string, args ...interface{})  {}
func (testLogger) Errorf(format string, args ...interface{}) {}

func TestPool_AllJobsHandled(t *testing.T) {
	var handled int64
	done := make(chan struct{}, 100)

	p := pool.New(context.Background(), pool.Config{
		Name:           "test",
		MaxParallelism: 4,
	}, func(ctx context.Context, job int) error {
		atomic.AddInt64(&handled, 1)
		done <- struct{}{}
		return nil
	}, testLogger{})
	p.Start()
	defer p.Stop()

	for i := 0; i < 100; i++ {
		p.Enqueue(i)
	}
	for i := 0; i < 100; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}
	assert.Equal(t, int64(100), atomic.LoadInt64(&handled))
}

func TestPool_ConcurrencyBound(t *testing.T) {
	const maxParallelism = 3
	const jobs = 20

	var running, peak int64
	done := make(chan struct{}, jobs)

	p := pool.New(context.Background(), pool.Config{
		Name:           "bound",
		MaxParallelism: maxParallelism,
	}, func(ctx context.Context, job int) error {
		current := atomic.AddInt64(&running, 1)
		for {
			observed := atomic.LoadInt64(&peak)
			if current <= observed || atomic.CompareAndSwapInt64(&peak, observed, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&running, -1)
		done <- struct{}{}
		return nil
	}, testLogger{})
	p.Start()
	defer p.Stop()

	for i := 0; i < jobs; i++ {
		p.Enqueue(i)
	}
	for i := 0; i < jobs; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(maxParallelism))
	assert.Greater(t, atomic.LoadInt64(&peak), int64(0))
}

func TestPool_RetriesUntilSuccess(t *testing.T) {
	var attempts int64
	done := make(chan struct{})

	p := pool.New(context.Background(), pool.Config{
		Name:           "retry",
		MaxParallelism: 1,
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Millisecond,
		BackoffBase:    2,
	}, func(ctx context.Context, job string) error {
		if atomic.AddInt64(&attempts, 1) < 3 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	}, testLogger{})
	p.Start()
	defer p.Stop()

	p.Enqueue("job")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, int64(3), atomic.LoadInt64(&attempts))
}

func TestPool_RetryBudgetExhausted(t *testing.T) {
	var attempts int64

	p := pool.New(context.Background(), pool.Config{
		Name:           "exhaust",
		MaxParallelism: 1,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}, func(ctx context.Context, job string) error {
		atomic.AddInt64(&attempts, 1)
		return errors.New("permanent failure")
	}, testLogger{})
	p.Start()

	p.Enqueue("job")
	// Stop drains in-flight work before returning.
	time.Sleep(100 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int64(3), atomic.LoadInt64(&attempts))
}

func TestPool_EnqueueDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	p := pool.New(context.Background(), pool.Config{
		Name:           "nonblocking",
		MaxParallelism: 1,
		QueueSize:      1,
	}, func(ctx context.Context, job int) error {
		<-release
		return nil
	}, testLogger{})
	p.Start()
	defer func() {
		close(release)
		p.Stop()
	}()

	start := time.Now()
	for i := 0; i < 50; i++ {
		p.Enqueue(i)
	}
	assert.Less(t, time.Since(start), time.Second, "Enqueue must return immediately even with a full queue")
}

func TestPool_MinIntervalSpacing(t *testing.T) {
	var mu sync.Mutex
	var timestamps []time.Time
	done := make(chan struct{}, 3)

	p := pool.New(context.Background(), pool.Config{
		Name:           "spaced",
		MaxParallelism: 1,
		MinInterval:    50 * time.Millisecond,
	}, func(ctx context.Context, job int) error {
		mu.Lock()
		timestamps = append(timestamps, time.Now())
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, testLogger{})
	p.Start()
	defer p.Stop()

	for i := 0; i < 3; i++ {
		p.Enqueue(i)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for spaced jobs")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		assert.GreaterOrEqual(t, gap, 40*time.Millisecond, "dispatch %d too close to %d", i, i-1)
	}
}

func TestPool_StopWithOverflowSendersInFlight(t *testing.T) {
	gate := make(chan struct{})
	var handled int64

	p := pool.New(context.Background(), pool.Config{
		Name:           "overflow",
		MaxParallelism: 1,
		QueueSize:      1,
	}, func(ctx context.Context, job int) error {
		<-gate
		atomic.AddInt64(&handled, 1)
		return nil
	}, testLogger{})
	p.Start()

	// With the worker held on the gate and a one-slot queue, most of these
	// land on the async overflow path.
	for i := 0; i < 10; i++ {
		p.Enqueue(i)
	}
	time.Sleep(20 * time.Millisecond)

	close(gate)
	// Stop must wait out the in-flight senders instead of closing the
	// channel underneath them.
	p.Stop()

	assert.Equal(t, int64(10), atomic.LoadInt64(&handled))
}

func TestPool_EnqueueRacingStopDoesNotPanic(t *testing.T) {
	for round := 0; round < 20; round++ {
		p := pool.New(context.Background(), pool.Config{
			Name:           "race",
			MaxParallelism: 2,
			QueueSize:      1,
		}, func(ctx context.Context, job int) error {
			time.Sleep(time.Millisecond)
			return nil
		}, testLogger{})
		p.Start()

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					p.Enqueue(i)
				}
			}()
		}
		p.Stop()
		wg.Wait()

		// Late enqueues are dropped, never sent on the closed channel.
		p.Enqueue(-1)
	}
}

func TestPool_HandlerPanicDoesNotKillWorker(t *testing.T) {
	done := make(chan struct{})

	p := pool.New(context.Background(), pool.Config{
		Name:           "panicky",
		MaxParallelism: 1,
	}, func(ctx context.Context, job int) error {
		if job == 0 {
			panic("boom")
		}
		close(done)
		return nil
	}, testLogger{})
	p.Start()
	defer p.Stop()

	p.Enqueue(0)
	p.Enqueue(1)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker died after a handler panic")
	}
}
