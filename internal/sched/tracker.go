package sched

import "sync"

// Tracker counts in-flight operations so that an owner can wait for all of
// them. It remembers the first failure reported since the last Wait.
type Tracker struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    int
	err  error
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Add registers one in-flight operation.
func (t *Tracker) Add() {
	t.mu.Lock()
	t.n++
	t.mu.Unlock()
}

// Done retires one operation that ended with err.
func (t *Tracker) Done(err error) {
	t.mu.Lock()
	t.n--
	if err != nil && t.err == nil {
		t.err = err
	}
	if t.n == 0 {
		t.cond.Broadcast()
	}
	t.mu.Unlock()
}

// InFlight returns the number of operations not yet retired.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// Wait blocks until no operation is in flight, then returns and clears the
// first failure seen since the previous Wait.
func (t *Tracker) Wait() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.n > 0 {
		t.cond.Wait()
	}
	err := t.err
	t.err = nil
	return err
}
