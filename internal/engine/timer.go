package engine

import "time"

// timerTask is one entry in the timer heap, adapted from the teacher's
// timer/timerHeap pair in loop.go: a deadline plus the function to run
// once it elapses.
type timerTask struct {
	when time.Time
	fn   func()
}

// timerHeap is a container/heap min-heap ordered by deadline. This client
// only ever schedules one timer (the constructor's 10s check watchdog),
// but the heap shape is kept rather than special-cased so a second timer
// need not reinvent it.
type timerHeap []timerTask

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(timerTask))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
