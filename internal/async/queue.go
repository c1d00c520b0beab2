package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Job is one invoice waiting to be processed.
type Job struct {
	Path        string
	Hash        string
	SubmittedAt time.Time
}

// Handler processes a single job.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

var ErrQueueClosed = errors.New("queue is shutting down")

// Queue feeds jobs to a single worker, so invoices are processed one at a
// time in arrival order.
type Queue struct {
	handler Handler
	logger  *slog.Logger
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	// pending has its own lock: Enqueue may block on a full channel while
	// holding mu.
	pmu     sync.Mutex
	pending map[string]bool
}

type Option func(*Queue)

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(h Handler, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		handler: h,
		logger:  logger,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		pending: map[string]bool{},
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.logger.Info("worker started")

			for job := range q.ch {
				q.pmu.Lock()
				delete(q.pending, job.Path)
				q.pmu.Unlock()

				ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
				err := q.handler.Handle(ctx, job)
				cancel()

				if err != nil {
					q.logger.Error("processing failed", "path", job.Path, "error", err)
				} else {
					q.logger.Info("processed invoice", "path", job.Path, "wait_ms", time.Since(job.SubmittedAt).Milliseconds())
				}
			}

			q.logger.Info("worker stopped")
		}()
	})
}

// Enqueue adds job unless the same path is already waiting. It blocks while
// the queue is full.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	q.pmu.Lock()
	if q.pending[job.Path] {
		q.pmu.Unlock()
		q.logger.Debug("already queued", "path", job.Path)
		return nil
	}
	q.pending[job.Path] = true
	q.pmu.Unlock()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "path", job.Path)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			q.pmu.Lock()
			delete(q.pending, job.Path)
			q.pmu.Unlock()
			return ctx.Err()
		}
	}
	q.logger.Info("queued invoice for processing", "path", job.Path)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
