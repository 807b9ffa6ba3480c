package sched

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a pool of goroutines that run device work with no ordering
// between items. Ordering, when needed, is expressed by the caller with
// fences before an item is submitted.
//
// The pool distributes work items across multiple workers, each with their own
// queue. Workers can steal work from other workers when their own queue is empty.
// When every queue is full, items go to an unbounded backlog that idle workers
// drain, so Submit never blocks.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	// workers is the number of worker goroutines.
	workers int

	// workQueues holds per-worker work queues.
	// Each worker primarily pulls from its own queue but can steal from others.
	workQueues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool

	// submitMu keeps Close from closing done while a Submit is sending.
	submitMu sync.RWMutex

	// backlog holds items submitted while every queue was full.
	backlogMu sync.Mutex
	backlog   []func()

	// wake is signaled when the backlog gains an item.
	wake chan struct{}
}

// NewPool creates a new pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately and workers begin waiting for work.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &Pool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
		wake:       make(chan struct{}, 1),
	}

	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}

	return p
}

// worker is the main loop for each worker goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			p.drainBacklog()
			return

		case work := <-myQueue:
			if work != nil {
				work()
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			if work := p.popBacklog(); work != nil {
				work()
				continue
			}
			// No work available anywhere, block on own queue
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				p.drainBacklog()
				return
			case work := <-myQueue:
				if work != nil {
					work()
				}
			case <-p.wake:
			}
		}
	}
}

// popBacklog removes the oldest backlog item. It passes the wake signal on
// while items remain so that other idle workers join in.
func (p *Pool) popBacklog() func() {
	p.backlogMu.Lock()
	defer p.backlogMu.Unlock()

	if len(p.backlog) == 0 {
		return nil
	}
	work := p.backlog[0]
	p.backlog[0] = nil
	p.backlog = p.backlog[1:]
	if len(p.backlog) > 0 {
		p.signal()
	}
	return work
}

// drainBacklog runs backlog items until none are left.
func (p *Pool) drainBacklog() {
	for {
		work := p.popBacklog()
		if work == nil {
			return
		}
		work()
	}
}

func (p *Pool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// drainQueue executes all remaining work in a queue.
func (p *Pool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			if work != nil {
				work()
			}
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
// Returns nil if no work is available.
func (p *Pool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}

		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// Submit sends a single work item to the worker with the shortest queue, or
// to the backlog when every queue is full. It never blocks. It returns false,
// without running fn, if the pool is closed.
func (p *Pool) Submit(fn func()) bool {
	if fn == nil {
		return false
	}

	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if !p.running.Load() {
		return false
	}

	minLen := len(p.workQueues[0])
	minIdx := 0

	for i := 1; i < p.workers; i++ {
		qLen := len(p.workQueues[i])
		if qLen < minLen {
			minLen = qLen
			minIdx = i
		}
	}

	select {
	case p.workQueues[minIdx] <- fn:
		return true
	default:
	}

	p.backlogMu.Lock()
	p.backlog = append(p.backlog, fn)
	p.backlogMu.Unlock()
	p.signal()
	return true
}

// Close gracefully shuts down the pool.
// It stops accepting new work, waits for all queued work to complete,
// and then stops all workers.
// Close is safe to call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	p.submitMu.Lock()
	close(p.done)
	p.submitMu.Unlock()

	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

// QueuedWork returns the total number of work items currently queued.
// This is an approximation as queues can change while iterating.
func (p *Pool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	p.backlogMu.Lock()
	total += len(p.backlog)
	p.backlogMu.Unlock()
	return total
}
