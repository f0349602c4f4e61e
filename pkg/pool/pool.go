package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultQueueSize   = 256
	DefaultBackoffBase = 2.0
)

// Logger defines the logging interface for the pool.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Handler processes one job. A nil return consumes the job; an error return
// consumes one attempt and the job is redelivered until the attempt budget
// is exhausted.
type Handler[T any] func(ctx context.Context, job T) error

// Config holds per-pool settings. Independent pools with different
// parallelism caps and retry policies can coexist in one process.
type Config struct {
	// Name identifies the pool in logs.
	Name string
	// MaxParallelism bounds the number of concurrently running handler
	// invocations.
	MaxParallelism int
	// MaxAttempts is the total attempt budget per job, including the first
	// delivery. Zero or one means no retries.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// BackoffBase is the exponential multiplier applied per retry.
	BackoffBase float64
	// MinInterval, when set, enforces a minimum spacing between handler
	// invocations across the whole pool.
	MinInterval time.Duration
	// QueueSize is the buffered queue capacity before Enqueue falls back to
	// handing the job off asynchronously.
	QueueSize int
}

// Pool is a bounded-concurrency retrying work queue. Delivery is
// at-least-once: a worker that dies mid-handler, or a handler error with
// attempts remaining, leads to the job being run again. Handlers must
// tolerate re-entry.
type Pool[T any] struct {
	cfg     Config
	handler Handler[T]
	logger  Logger
	jobs    chan T
	limiter *rate.Limiter
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	// mu guards stopped and orders every send on jobs before the close in
	// Stop. Senders hold the read side for the duration of the send.
	mu      sync.RWMutex
	stopped bool
}

func New[T any](ctx context.Context, cfg Config, handler Handler[T], logger Logger) *Pool[T] {
	if cfg.MaxParallelism <= 0 {
		cfg.MaxParallelism = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	poolCtx, cancel := context.WithCancel(ctx)
	var limiter *rate.Limiter
	if cfg.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return &Pool[T]{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		jobs:    make(chan T, cfg.QueueSize),
		limiter: limiter,
		ctx:     poolCtx,
		cancel:  cancel,
	}
}

// SetHandler installs the handler. Call it before Start; it exists so the
// queue can be constructed before the services that both feed and serve it.
func (p *Pool[T]) SetHandler(handler Handler[T]) {
	p.handler = handler
}

// Start launches the worker goroutines.
func (p *Pool[T]) Start() {
	for i := 0; i < p.cfg.MaxParallelism; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop drains no further work and waits for in-flight handlers to finish.
// Jobs still queued are dropped; durable state, not the queue, is the source
// of truth for outcomes.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

// Enqueue hands a job to the pool and returns immediately. It guarantees an
// eventual attempt, not immediate execution. Enqueue after Stop is a no-op.
func (p *Pool[T]) Enqueue(job T) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.logger.Errorf("pool %s: dropping job enqueued after stop", p.cfg.Name)
		return
	}

	select {
	case p.jobs <- job:
	default:
		// Queue is full; keep the caller non-blocking and hand off async.
		go func() {
			p.mu.RLock()
			defer p.mu.RUnlock()
			if p.stopped {
				p.logger.Errorf("pool %s: dropping job enqueued during stop", p.cfg.Name)
				return
			}
			select {
			case p.jobs <- job:
			case <-p.ctx.Done():
			}
		}()
	}
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		if p.ctx.Err() != nil {
			return
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(p.ctx); err != nil {
				return
			}
		}
		p.run(job)
	}
}

func (p *Pool[T]) run(job T) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("pool %s: handler panicked: %v", p.cfg.Name, r)
		}
	}()

	var err error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		err = p.handler(p.ctx, job)
		if err == nil {
			return
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}
		delay := p.backoff(attempt)
		p.logger.Infof("pool %s: attempt %d/%d failed, retrying in %s: %v",
			p.cfg.Name, attempt, p.cfg.MaxAttempts, delay, err)
		select {
		case <-time.After(delay):
		case <-p.ctx.Done():
			return
		}
	}
	p.logger.Errorf("pool %s: job failed after %d attempts: %v", p.cfg.Name, p.cfg.MaxAttempts, err)
}

func (p *Pool[T]) backoff(attempt int) time.Duration {
	delay := p.cfg.InitialBackoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.cfg.BackoffBase)
	}
	return delay
}
