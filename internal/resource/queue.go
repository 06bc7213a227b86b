package resource

import "sync"

// Queue is an unbounded FIFO of images waiting to be loaded.
// Push never blocks; Pop blocks until an item arrives or the queue is closed.
//
// Queue is safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Image
	closed bool
}

// NewQueue creates an empty open queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends img and wakes one waiting Pop.
// It returns false if the queue is already closed.
func (q *Queue) Push(img *Image) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, img)
	q.cond.Signal()
	return true
}

// Pop removes the oldest item. It returns false once the queue is closed,
// even if items remain; those are handed back by Close.
func (q *Queue) Pop() (*Image, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}

	img := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return img, true
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue and returns the items that were never popped.
// Calling Close again returns nil.
func (q *Queue) Close() []*Image {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	left := q.items
	q.items = nil
	q.cond.Broadcast()
	return left
}
