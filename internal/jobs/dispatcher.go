// Package jobs completes pending reviews in the background.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sevigo/codezen/internal/core"
)

// ErrQueueFull is returned by Dispatch when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full, cannot accept new review job")

// ErrStopped is returned by Dispatch after Stop.
var ErrStopped = errors.New("dispatcher is stopped")

// dispatcher implements core.ReviewDispatcher with a pool of worker
// goroutines reading review ids from a buffered queue.
type dispatcher struct {
	job        core.Job
	jobQueue   chan int64
	maxWorkers int
	wg         sync.WaitGroup
	logger     *slog.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher initializes a dispatcher with a worker pool.
// Non-positive maxWorkers or queueSize default to 1.
func NewDispatcher(job core.Job, maxWorkers, queueSize int, logger *slog.Logger) core.ReviewDispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &dispatcher{
		job:        job,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan int64, queueSize),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

func (d *dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

// startWorker processes review ids until the queue is closed.
func (d *dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("starting review worker", "id", workerID)

	for reviewID := range d.jobQueue {
		d.process(workerID, reviewID)
	}

	d.logger.Debug("shutting down review worker", "id", workerID)
}

func (d *dispatcher) process(workerID int, reviewID int64) {
	d.logger.Info("worker processing review", "worker_id", workerID, "review_id", reviewID)

	if err := d.job.Run(context.Background(), reviewID); err != nil {
		d.logger.Error("review completion job failed", "review_id", reviewID, "error", err)
	}
}

// Dispatch queues a review id without blocking.
func (d *dispatcher) Dispatch(_ context.Context, reviewID int64) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.jobQueue <- reviewID:
		d.logger.Debug("queued review for completion", "review_id", reviewID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits until every queued review is processed.
func (d *dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobQueue)
	d.mu.Unlock()

	d.logger.Info("stopping dispatcher and waiting for jobs to finish")
	d.wg.Wait()
	d.logger.Info("all review jobs have finished")
}
