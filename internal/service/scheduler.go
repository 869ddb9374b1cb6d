package service

import (
	"context"
	"log/slog"
	"sync"
)

// Task is a unit of background work.
type Task func(ctx context.Context)

// Scheduler submits background tasks for asynchronous execution. Submit
// reports whether the task was enqueued; a false return means the task was
// dropped and will never run. The in-process implementation below is
// best-effort: queued tasks do not survive a restart. The interface exists so
// a durable queue can be substituted without touching the ingestor or the
// completion worker.
type Scheduler interface {
	Submit(task Task) bool
}

// WorkerPool runs submitted tasks on a fixed set of goroutines fed by a
// bounded queue.
type WorkerPool struct {
	logger    *slog.Logger
	tasks     chan Task
	wg        sync.WaitGroup
	baseCtx   context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewWorkerPool starts workers goroutines consuming a queue of queueSize.
func NewWorkerPool(logger *slog.Logger, workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		logger:  logger,
		tasks:   make(chan Task, queueSize),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task(p.baseCtx)
	}
}

// Submit enqueues the task, or drops it when the queue is full.
func (p *WorkerPool) Submit(task Task) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		p.logger.Warn("task queue full, dropping task")
		return false
	}
}

// Drain stops accepting tasks and waits for in-flight work until ctx expires,
// after which remaining tasks are abandoned.
func (p *WorkerPool) Drain(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.tasks) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Error("drain timed out, abandoning in-flight tasks")
		return ctx.Err()
	}
}
