package workshop

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// FaultError is a panic recovered from inside a submitted unit of work.
type FaultError struct {
	Value interface{}
	Stack []byte
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("unhandled fault: %v", e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *FaultError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Task is one asynchronous batch run.
type Task struct {
	done   chan struct{}
	result bool
	err    error
}

// Submit starts fn on its own goroutine. A panic inside fn completes the task
// with a *FaultError.
func Submit(ctx context.Context, fn func(context.Context) (bool, error)) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.result = false
				t.err = &FaultError{Value: r, Stack: debug.Stack()}
			}
		}()
		t.result, t.err = fn(ctx)
	}()
	return t
}

// Wait blocks up to timeout and reports whether the task has finished.
func (t *Task) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-t.done:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.done:
		return true
	case <-timer.C:
		return false
	}
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the task finished and returns its outcome.
func (t *Task) Result() (bool, error) {
	<-t.done
	return t.result, t.err
}

// Poll waits for t in steps of interval. Between steps it services pump and
// then calls onTick, both on the calling goroutine.
func Poll(t *Task, interval time.Duration, pump Pump, onTick func()) (bool, error) {
	for !t.Wait(interval) {
		if pump != nil {
			pump.RunCallbacks()
		}
		if onTick != nil {
			onTick()
		}
	}
	return t.Result()
}
