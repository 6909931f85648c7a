package consumer

import (
	"sync"
)

// WorkerPool bounds how many OTP emails are in flight at once. The broker's
// prefetch already caps unacked deliveries; the pool keeps SMTP connections
// from piling up behind a slow provider.
type WorkerPool struct {
	workers    int
	jobs       chan func()
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopSignal chan struct{}
}

func NewWorkerPool(workers int) *WorkerPool {
	wp := &WorkerPool{
		workers:    workers,
		jobs:       make(chan func(), workers*2),
		stopSignal: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for {
		select {
		case <-wp.stopSignal:
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			job()
		}
	}
}

// Submit hands a job to the pool. Jobs submitted after shutdown began are
// silently dropped; their deliveries stay unacked and the broker redelivers.
func (wp *WorkerPool) Submit(job func()) {
	select {
	case <-wp.stopSignal:
		return
	default:
		select {
		case <-wp.stopSignal:
			return
		case wp.jobs <- job:
		}
	}
}

// Wait stops intake and blocks until running workers finish.
func (wp *WorkerPool) Wait() {
	wp.stopOnce.Do(func() {
		close(wp.stopSignal)
		close(wp.jobs)
	})
	wp.wg.Wait()
}

// Stop is Wait under the name main defers.
func (wp *WorkerPool) Stop() {
	wp.Wait()
}
