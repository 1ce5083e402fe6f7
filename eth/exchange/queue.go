package exchange

import (
	"time"

	"github.com/ezkerrox/chainsync/core/types"
)

// ResultQueue is the FIFO, multi-producer/single-consumer channel of
// downloaded block batches described in spec.md §3. Ownership of a batch
// transfers to the driver on Pop.
type ResultQueue struct {
	ch chan []*types.Block
}

// NewResultQueue builds a queue with the given buffer depth. The contract
// is unbounded-by-spec; implementations may cap it, as this one does.
func NewResultQueue(buffer int) *ResultQueue {
	return &ResultQueue{ch: make(chan []*types.Block, buffer)}
}

// Push enqueues a batch. Safe for concurrent use by multiple producers.
func (q *ResultQueue) Push(batch []*types.Block) {
	q.ch <- batch
}

// Pop blocks for up to timeout waiting for a batch. It returns (nil, false)
// on timeout, which is not an error: the driver's forward loop simply
// continues.
func (q *ResultQueue) Pop(timeout time.Duration) ([]*types.Block, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case batch := <-q.ch:
		return batch, true
	case <-timer.C:
		return nil, false
	}
}

// Drain empties the queue without blocking, best-effort, for shutdown.
func (q *ResultQueue) Drain() [][]*types.Block {
	var batches [][]*types.Block
	for {
		select {
		case batch := <-q.ch:
			batches = append(batches, batch)
		default:
			return batches
		}
	}
}
