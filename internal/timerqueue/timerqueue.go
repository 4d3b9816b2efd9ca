// Package timerqueue is a min-heap priority queue of (deadline, key)
// entries, giving the actor runtime a way to ask "what's due" and "how
// long until something is".
package timerqueue

import (
	"container/heap"
	"time"
)

// entry is one scheduled timer. Ties on Deadline are broken by insertion
// order (via the seq counter compared in Less), which
// satisfies the spec's "stable within a single pop_expired call" rule —
// we never need cross-call ordering guarantees beyond that.
type entry[K any] struct {
	deadline time.Time
	key      K
	seq      int64
}

type entryHeap[K any] []*entry[K]

func (h entryHeap[K]) Len() int { return len(h) }
func (h entryHeap[K]) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h entryHeap[K]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap[K]) Push(x any)   { *h = append(*h, x.(*entry[K])) }
func (h *entryHeap[K]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is a binary-heap timer wheel. It is not safe for concurrent use;
// the actor runtime owns it from its single event-loop thread.
type Queue[K any] struct {
	h    entryHeap[K]
	next int64
}

// New returns an empty timer queue.
func New[K any]() *Queue[K] {
	return &Queue[K]{}
}

// Add inserts a (deadline, key) entry. O(log n).
func (q *Queue[K]) Add(deadline time.Time, key K) {
	heap.Push(&q.h, &entry[K]{deadline: deadline, key: key, seq: q.next})
	q.next++
}

// PopExpired removes and returns, in deadline order, every key whose
// deadline is at or before now.
func (q *Queue[K]) PopExpired(now time.Time) []K {
	var expired []K
	for q.h.Len() > 0 && !q.h[0].deadline.After(now) {
		item := heap.Pop(&q.h).(*entry[K])
		expired = append(expired, item.key)
	}
	return expired
}

// DelayUntilNext returns the time from now until the earliest deadline,
// clamped to 0 if that deadline has already passed, and true. An empty
// queue returns (0, false); callers combine this with their own floor,
// see internal/actor.
func (q *Queue[K]) DelayUntilNext(now time.Time) (time.Duration, bool) {
	if q.h.Len() == 0 {
		return 0, false
	}
	d := q.h[0].deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Len reports the number of pending timers, for metrics/diagnostics.
func (q *Queue[K]) Len() int {
	return q.h.Len()
}

// PeekMin returns the earliest (deadline, key) entry without removing it.
// The same Record{deadline, key} shape the spec assigns to (B) is reused
// here by the broadcast engine's batch queue, keyed by enqueue time
// instead of a fire deadline — see spec §3, "Timed record".
func (q *Queue[K]) PeekMin() (time.Time, K, bool) {
	var zero K
	if q.h.Len() == 0 {
		return time.Time{}, zero, false
	}
	return q.h[0].deadline, q.h[0].key, true
}

// PopAll removes and returns every pending entry in deadline order,
// regardless of whether it has expired. Used by the broadcast engine to
// drain its batch queue unconditionally on release.
func (q *Queue[K]) PopAll() []K {
	all := make([]K, 0, q.h.Len())
	for q.h.Len() > 0 {
		item := heap.Pop(&q.h).(*entry[K])
		all = append(all, item.key)
	}
	return all
}
