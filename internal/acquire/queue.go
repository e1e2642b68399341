// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"sync"

	"github.com/pdiddy/fulltext/pkg/types"
)

// postEntry is an entry of the post-processing queue. An entry with end
// set carries no item and marks the end of the stream.
type postEntry struct {
	item *types.AcquisitionItem
	end  bool
}

// postQueue is an unbounded FIFO. Conversion must never block on
// post-processing, so put always succeeds.
type postQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries []postEntry
}

func newPostQueue() *postQueue {
	q := &postQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *postQueue) put(e postEntry) {
	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.mu.Unlock()
	q.cond.Signal()
}

// get blocks until an entry is available.
func (q *postQueue) get() postEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.entries) == 0 {
		q.cond.Wait()
	}
	return q.pop()
}

// tryGet returns the next entry without blocking.
func (q *postQueue) tryGet() (postEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return postEntry{}, false
	}
	return q.pop(), true
}

func (q *postQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// pop requires q.mu.
func (q *postQueue) pop() postEntry {
	e := q.entries[0]
	q.entries[0] = postEntry{}
	q.entries = q.entries[1:]
	return e
}
