// Package workerpool is a fixed set of goroutines fed by a bounded queue.
//
// Folder renames and moves on disks without native directory renames fan
// their per-key copies out through Each:
//
//	pool := workerpool.New(4)
//	defer pool.Shutdown()
//
//	errs := pool.Each(ctx, len(keys), func(i int) error {
//	    return disk.Copy(keys[i], dst[i])
//	})
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrPoolFull is returned by Submit when the queue has no free slot.
	ErrPoolFull = errors.New("workerpool: pool is full")
	// ErrPoolClosed is returned once Shutdown has been called.
	ErrPoolClosed = errors.New("workerpool: pool is closed")
)

// Pool runs tasks on a fixed number of workers. The queue holds twice as
// many tasks as there are workers.
type Pool struct {
	size  int
	queue chan func()

	// gate is held for reading while enqueueing and for writing by
	// Shutdown, so the queue is never closed under a sender.
	gate    sync.RWMutex
	closed  bool
	workers sync.WaitGroup
}

// New starts size workers; size below 1 means 1.
func New(size int) *Pool {
	size = max(size, 1)
	p := &Pool{size: size, queue: make(chan func(), 2*size)}
	p.workers.Add(size)
	for range size {
		go p.work()
	}
	return p
}

// Size is the number of workers.
func (p *Pool) Size() int { return p.size }

// Submit queues task or fails fast with ErrPoolFull.
func (p *Pool) Submit(task func()) error {
	return p.enqueue(nil, task)
}

// SubmitWait queues task, waiting for a free slot until ctx is done.
func (p *Pool) SubmitWait(ctx context.Context, task func()) error {
	return p.enqueue(ctx, task)
}

// enqueue blocks on a full queue only when ctx is non-nil.
func (p *Pool) enqueue(ctx context.Context, task func()) error {
	p.gate.RLock()
	defer p.gate.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	if ctx == nil {
		select {
		case p.queue <- task:
			return nil
		default:
			return ErrPoolFull
		}
	}
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Each calls fn(i) for every i in [0, n) on the pool and returns once all
// calls are done. errs[i] is fn's result for i: ctx.Err() when ctx ended
// before i started, or an error describing a panic.
func (p *Pool) Each(ctx context.Context, n int, fn func(i int) error) (errs []error) {
	errs = make([]error, n)
	var pending sync.WaitGroup
	for i := range n {
		pending.Add(1)
		job := func() {
			defer pending.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("workerpool: task %d panicked: %v", i, r)
				}
			}()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			errs[i] = fn(i)
		}
		if err := p.SubmitWait(ctx, job); err != nil {
			errs[i] = err
			pending.Done()
		}
	}
	pending.Wait()
	return errs
}

// Shutdown stops intake, runs what is already queued and waits for the
// workers to exit. Further calls are no-ops.
func (p *Pool) Shutdown() {
	p.gate.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.gate.Unlock()
	p.workers.Wait()
}

func (p *Pool) work() {
	defer p.workers.Done()
	for task := range p.queue {
		run(task)
	}
}

// run keeps a panicking task from taking its worker down.
func run(task func()) {
	defer func() { _ = recover() }()
	task()
}
