package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

type ProcessFunc[T any] func(ctx context.Context, job T) error

// ErrorFunc is called from the worker goroutine for every failed job.
type ErrorFunc[T any] func(job T, err error)

type WorkerPool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	onError    ErrorFunc[T]
	wg         sync.WaitGroup

	succeeded atomic.Int64
	failed    atomic.Int64
}

func NewWorkerPool[T any](numWorkers int, bufferSize int, processor ProcessFunc[T]) *WorkerPool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &WorkerPool[T]{
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

// OnError registers a failure hook. It must be set before Start.
func (wp *WorkerPool[T]) OnError(fn ErrorFunc[T]) {
	wp.onError = fn
}

func (wp *WorkerPool[T]) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool[T]) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			if err := wp.processor(ctx, job); err != nil {
				wp.failed.Add(1)
				if wp.onError != nil {
					wp.onError(job, err)
				}
				continue
			}
			wp.succeeded.Add(1)
		}
	}
}

// Submit queues a job, blocking while the buffer is full. It gives up when
// ctx is cancelled.
func (wp *WorkerPool[T]) Submit(ctx context.Context, job T) error {
	select {
	case wp.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue and waits for the workers. Jobs still buffered when
// the context was cancelled are dropped.
func (wp *WorkerPool[T]) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
}

func (wp *WorkerPool[T]) Succeeded() int64 {
	return wp.succeeded.Load()
}

func (wp *WorkerPool[T]) Failed() int64 {
	return wp.failed.Load()
}
