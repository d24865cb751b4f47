// Package queue implements the priority task queue (spec component C1):
// an insertion-ordered priority container of work items keyed by
// (priority, sequence), backed by container/heap the way
// joeycumines/go-utilpkg's eventloop.timerHeap wraps a raw heap behind
// typed methods.
package queue

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Action is the opaque zero-argument callable carried by a work item.
type Action func()

// Item is a unit of work submitted to the dispatcher.
type Item struct {
	// ID is a diagnostic identifier, not used for ordering.
	ID uuid.UUID
	// Priority: larger runs earlier.
	Priority int
	// seq is assigned by the queue at push time and strictly decreases,
	// so that the comparator (priority desc, seq desc) yields FIFO
	// within a priority band.
	seq    int64
	Action Action
}

// heapItems implements container/heap.Interface over []*Item.
type heapItems []*Item

func (h heapItems) Len() int { return len(h) }

func (h heapItems) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq > h[j].seq
}

func (h heapItems) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *heapItems) Push(x any) {
	*h = append(*h, x.(*Item))
}

func (h *heapItems) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// Queue is a thread-safe priority task queue. The zero value is not
// usable; construct with New.
type Queue struct {
	mu      sync.Mutex
	items   heapItems
	nextSeq int64
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{nextSeq: -1}
	heap.Init(&q.items)
	return q
}

// Push inserts action at the given priority and returns the Item
// created for it. Safe for concurrent use.
func (q *Queue) Push(priority int, action Action) *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	it := &Item{
		ID:       uuid.New(),
		Priority: priority,
		seq:      q.nextSeq,
		Action:   action,
	}
	q.nextSeq--
	heap.Push(&q.items, it)
	return it
}

// Pop removes and returns the highest-priority item (ties broken FIFO),
// and whether one was available.
func (q *Queue) Pop() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	it := heap.Pop(&q.items).(*Item)
	return it, true
}

// ExecuteHighest pops the maximum item and invokes its action, returning
// the item that ran (nil if the queue was empty) and whether the queue
// remained non-empty afterwards. A panic raised by the action is
// recovered, re-packaged, and returned to the caller only after the
// item has already been removed from the queue — matching spec.md C1's
// "propagate after removal" contract without losing the Go idiom of
// treating dispatcher-caught faults as errors, not crashes. The
// returned item lets the caller log its ID against the outcome.
func (q *Queue) ExecuteHighest() (item *Item, more bool, err error) {
	it, ok := q.Pop()
	if !ok {
		return nil, false, nil
	}
	err = q.safeRun(it.Action)
	return it, q.Len() > 0, err
}

func (q *Queue) safeRun(action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	action()
	return nil
}

// Clear drops all pending items without invoking them.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PanicError wraps a recovered panic value raised by a work item's action.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("queue: action panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
