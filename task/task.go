// Package task provides a single-assignment, memoized computation result.
//
// A Task settles exactly once to a value or an error. Any number of goroutines
// may wait on it; waiting with a context bounds the wait, not the computation.
package task

import (
	"context"
	"fmt"
	"sync"
)

// Task is a memoized computation shared by every caller that attaches to it.
type Task struct {
	val  any
	err  error
	done chan struct{}
	once sync.Once
}

// New creates an unsettled task.
func New() *Task {
	return &Task{done: make(chan struct{})}
}

// Resolved returns a task already settled to v.
func Resolved(v any) *Task {
	t := New()
	t.Settle(v, nil)
	return t
}

// Settle stores the result. Only the first call has any effect; it reports
// whether this call settled the task.
func (t *Task) Settle(v any, err error) bool {
	settled := false
	t.once.Do(func() {
		t.val, t.err = v, err
		close(t.done)
		settled = true
	})
	return settled
}

// Done is closed once the task has settled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Settled reports whether the task has a result.
func (t *Task) Settled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Result returns the settled result. ok is false while the task is pending.
func (t *Task) Result() (v any, err error, ok bool) {
	if !t.Settled() {
		return nil, nil, false
	}
	return t.val, t.err, true
}

// Await blocks until the task settles or ctx is done.
func (t *Task) Await(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run calls fn, converting a panic into an error.
func Run(fn func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("task panicked: %w", e)
			} else {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}
	}()
	return fn()
}

// AwaitAll waits for every task in order and returns their values in the
// same order. It stops at the first error.
func AwaitAll(ctx context.Context, tasks []*Task) ([]any, error) {
	out := make([]any, len(tasks))
	for i, t := range tasks {
		if t == nil {
			continue
		}
		v, err := t.Await(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
