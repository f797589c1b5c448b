package engine

import "sync"

// ingress is the cross-thread request deque: a FIFO of work items mutated
// by caller goroutines (submit, append-right) and the loop goroutine
// (popLeft, repostLeft push-left). A plain mutex + slice is deliberate
// here: this client serves tens of concurrent callers, not the millions of
// microtasks/sec the teacher's chunked, lock-free ingress was built for, so
// that machinery would buy nothing but complexity.
type ingress struct {
	mu    sync.Mutex
	items []*Work
}

func (q *ingress) submit(w *Work) {
	q.mu.Lock()
	q.items = append(q.items, w)
	q.mu.Unlock()
}

// popLeft removes and returns the leftmost item, if any.
func (q *ingress) popLeft() (*Work, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	w := q.items[0]
	q.items = q.items[1:]
	return w, true
}

// repostLeft pushes w back to the head of the deque, ahead of anything a
// caller submitted concurrently with this drain cycle.
func (q *ingress) repostLeft(w *Work) {
	q.mu.Lock()
	q.items = append([]*Work{w}, q.items...)
	q.mu.Unlock()
}

// drainAll removes every queued item, in FIFO order. Used only during
// shutdown to fail every item still waiting with a StoppedError.
func (q *ingress) drainAll() []*Work {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}
