// Package sched provides the execution primitives shared by the device
// backends. Completions are one-shot fences. Pool runs unordered work,
// Serial runs functions in FIFO order, and Timeline builds ordered device
// queues with waits and sticky faults on top of Serial. Tracker counts
// in-flight operations for device-wide synchronization.
package sched

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPanic is wrapped by the error Run returns when the operation panics.
var ErrPanic = errors.New("sched: operation panicked")

// Fence is a point on a device timeline. Done is closed once the point is
// reached; Err reports how the work behind the point ended and is only
// meaningful after Done is closed.
type Fence interface {
	Done() <-chan struct{}
	Err() error
}

// Completion is a Fence that is signaled exactly once by its owner.
type Completion struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewCompletion returns an unsignaled completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Completed returns a completion that is already signaled with err.
func Completed(err error) *Completion {
	c := NewCompletion()
	c.Complete(err)
	return c
}

// Complete signals c with err. Only the first call has an effect; it
// reports whether this call was the one that signaled.
func (c *Completion) Complete(err error) bool {
	fired := false
	c.once.Do(func() {
		c.err = err
		close(c.done)
		fired = true
	})
	return fired
}

// Done returns a channel that is closed once c is signaled.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err returns the error c was signaled with, or nil while c is unsignaled.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// IsDone reports whether f has been reached without blocking.
// A nil fence counts as reached.
func IsDone(f Fence) bool {
	if f == nil {
		return true
	}
	select {
	case <-f.Done():
		return true
	default:
		return false
	}
}

// Wait blocks until every non-nil fence is reached and returns the first
// error in argument order.
func Wait(fences ...Fence) error {
	var first error
	for _, f := range fences {
		if f == nil {
			continue
		}
		<-f.Done()
		if err := f.Err(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Join returns a fence that is reached once all of fences are reached.
// Its error is the first error among them in argument order.
func Join(fences ...Fence) Fence {
	live := make([]Fence, 0, len(fences))
	for _, f := range fences {
		if f != nil {
			live = append(live, f)
		}
	}
	switch len(live) {
	case 0:
		return Completed(nil)
	case 1:
		return live[0]
	}

	allDone := true
	for _, f := range live {
		if !IsDone(f) {
			allDone = false
			break
		}
	}
	if allDone {
		return Completed(Wait(live...))
	}

	c := NewCompletion()
	go func() { c.Complete(Wait(live...)) }()
	return c
}

// Run calls fn and converts a panic into an error wrapping ErrPanic.
func Run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}

// After calls fn with the error of deps once deps is reached. fn runs on
// the calling goroutine when deps is already reached, otherwise on a new
// goroutine.
func After(deps Fence, fn func(error)) {
	if IsDone(deps) {
		fn(errOf(deps))
		return
	}
	go func() {
		<-deps.Done()
		fn(deps.Err())
	}()
}

func errOf(f Fence) error {
	if f == nil {
		return nil
	}
	return f.Err()
}
