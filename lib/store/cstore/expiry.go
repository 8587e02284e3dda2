package cstore

import (
	"container/heap"
)

// expiryItem is one cached customer id with the unix nano time it expires at
type expiryItem struct {
	key      uint32
	deadline int64
	index    int // maintained by the heap package
}

// expiryQueue is a min-heap of deadlines with O(1) access by customer id.
// It is not thread-safe, the store guards it with its own mutex.
type expiryQueue struct {
	items []*expiryItem
	byKey map[uint32]*expiryItem
}

func newExpiryQueue() *expiryQueue {
	return &expiryQueue{
		items: make([]*expiryItem, 0),
		byKey: make(map[uint32]*expiryItem),
	}
}

// Len is part of heap.Interface
func (q *expiryQueue) Len() int { return len(q.items) }

// Less is part of heap.Interface, earliest deadline first
func (q *expiryQueue) Less(i, j int) bool {
	return q.items[i].deadline < q.items[j].deadline
}

// Swap is part of heap.Interface
func (q *expiryQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

// Push is part of heap.Interface
func (q *expiryQueue) Push(x any) {
	it := x.(*expiryItem)
	it.index = len(q.items)
	q.items = append(q.items, it)
	q.byKey[it.key] = it
}

// Pop is part of heap.Interface
func (q *expiryQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	q.items = old[:n-1]
	delete(q.byKey, it.key)
	return it
}

// set adds key or moves it to a new deadline
func (q *expiryQueue) set(key uint32, deadline int64) {
	if it, ok := q.byKey[key]; ok {
		it.deadline = deadline
		heap.Fix(q, it.index)
		return
	}
	heap.Push(q, &expiryItem{key: key, deadline: deadline})
}

// remove drops key and reports whether it was queued
func (q *expiryQueue) remove(key uint32) bool {
	it, ok := q.byKey[key]
	if !ok {
		return false
	}
	heap.Remove(q, it.index)
	return true
}

// popDue removes and returns every key whose deadline is not after now
func (q *expiryQueue) popDue(now int64) []uint32 {
	var due []uint32
	for len(q.items) > 0 && q.items[0].deadline <= now {
		due = append(due, heap.Pop(q).(*expiryItem).key)
	}
	return due
}

// popOldest removes the key with the earliest deadline
func (q *expiryQueue) popOldest() (uint32, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return heap.Pop(q).(*expiryItem).key, true
}

// reset drops every key
func (q *expiryQueue) reset() {
	q.items = q.items[:0]
	q.byKey = make(map[uint32]*expiryItem)
}
