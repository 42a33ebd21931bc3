package api

import "sync"

// CallbackQueue holds completion callbacks of in-flight calls until the owner
// of the event pump runs them. Posting never blocks.
type CallbackQueue struct {
	mu      sync.Mutex
	pending []func()
}

func NewCallbackQueue() *CallbackQueue {
	return &CallbackQueue{}
}

func (q *CallbackQueue) post(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// RunCallbacks runs every callback queued so far on the calling goroutine and
// returns how many ran. Callbacks queued while it runs wait for the next call.
func (q *CallbackQueue) RunCallbacks() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Pending reports the number of queued callbacks.
func (q *CallbackQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
