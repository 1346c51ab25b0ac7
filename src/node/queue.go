package node

import (
	"sort"
	"sync"

	"github.com/mosaicnetworks/tangle/src/model"
)

// broadcastQueue holds the transactions waiting to be broadcast, heaviest
// first. When it holds more than size transactions the lightest one is
// dropped.
type broadcastQueue struct {
	mu     sync.Mutex
	size   int
	items  []*model.Transaction
	hashes map[model.Hash]struct{}
}

func newBroadcastQueue(size int) *broadcastQueue {
	return &broadcastQueue{
		size:   size,
		hashes: make(map[model.Hash]struct{}),
	}
}

// heavier orders by weight magnitude, then by hash.
func heavier(a, b *model.Transaction) bool {
	if a.WeightMagnitude != b.WeightMagnitude {
		return a.WeightMagnitude > b.WeightMagnitude
	}
	return a.Hash.Less(b.Hash)
}

// Push reports false if tx is already queued or was dropped right away.
func (q *broadcastQueue) Push(tx *model.Transaction) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size <= 0 {
		return false
	}
	if _, ok := q.hashes[tx.Hash]; ok {
		return false
	}

	i := sort.Search(len(q.items), func(i int) bool {
		return heavier(tx, q.items[i])
	})
	if i == q.size {
		return false
	}

	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = tx
	q.hashes[tx.Hash] = struct{}{}

	if len(q.items) > q.size {
		last := q.items[len(q.items)-1]
		delete(q.hashes, last.Hash)
		q.items = q.items[:len(q.items)-1]
	}
	return true
}

// Pop removes the heaviest transaction, or returns nil.
func (q *broadcastQueue) Pop() *model.Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	tx := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	delete(q.hashes, tx.Hash)
	return tx
}

// Len ...
func (q *broadcastQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
