package exchange

import (
	"sync"

	"github.com/ezkerrox/chainsync/core/types"
)

// MemoryBackend is an in-process Backend: one of the three valid
// realizations the engine side documents too (in-process calls, channels,
// RPC), standing in for the real peer-to-peer downloader state machine that
// spec.md §1 puts out of scope. It manufactures batches synchronously via
// Produce (or accepts them directly via Enqueue) instead of fetching them
// from peers, which makes it useful for the CLI demo entrypoint and for
// driver tests that need deterministic block delivery.
type MemoryBackend struct {
	mu sync.Mutex

	queue       *ResultQueue
	height      uint64
	inSync      bool
	downloading bool

	// Produce, if set, is called synchronously by DownloadBlocks to
	// manufacture the batch a real downloader would have fetched from peers
	// above from. A nil Produce means "nothing more to fetch": DownloadBlocks
	// just marks the backend caught up at from.
	Produce func(from uint64, tracking TargetTracking) []*types.Block
}

// NewMemoryBackend builds a backend with no result queue bound yet; call
// BindQueue with the Exchange's own queue (obtained after NewExchange
// constructs it) before the first DownloadBlocks call.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// BindQueue attaches the queue batches are pushed to. The real downloader
// and its Exchange wrapper are handed the same queue by construction, but
// MemoryBackend stands in for the downloader after the Exchange already
// built its own, so callers wire them together explicitly:
//
//	ex := exchange.NewExchange(backend, 256)
//	backend.BindQueue(ex.ResultQueue())
func (b *MemoryBackend) BindQueue(q *ResultQueue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = q
}

// InitialState is a no-op: there are no peers to bootstrap against
// in-process.
func (b *MemoryBackend) InitialState(headers []*types.BlockHeader) {}

// DownloadBlocks manufactures (or, with no Produce hook, simply
// acknowledges) the batch above from and pushes it to the result queue.
func (b *MemoryBackend) DownloadBlocks(from uint64, tracking TargetTracking) {
	b.mu.Lock()
	b.downloading = true
	produce := b.Produce
	b.mu.Unlock()

	if produce == nil {
		b.mu.Lock()
		b.height = from
		b.inSync = true
		b.mu.Unlock()
		return
	}

	batch := produce(from, tracking)
	b.Enqueue(batch)

	b.mu.Lock()
	b.inSync = true
	b.mu.Unlock()
}

// Enqueue pushes a batch directly onto the result queue and advances the
// backend's reported height, bypassing Produce. Useful for tests that want
// to drip-feed blocks mid-cycle (e.g. simulating blocks arriving after the
// downloader already reported InSync).
func (b *MemoryBackend) Enqueue(batch []*types.Block) {
	if len(batch) == 0 {
		return
	}
	b.queue.Push(batch)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, blk := range batch {
		if blk.Number() > b.height {
			b.height = blk.Number()
		}
	}
}

// InSync reports whether the backend considers itself caught up.
func (b *MemoryBackend) InSync() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inSync
}

// CurrentHeight reports the highest block number handed to the queue so
// far, or, after a DownloadBlocks call with no Produce hook, that call's
// from.
func (b *MemoryBackend) CurrentHeight() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.height
}

// StopDownloading cooperatively stops the backend; already-queued batches
// remain drainable.
func (b *MemoryBackend) StopDownloading() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloading = false
	b.inSync = false
}
