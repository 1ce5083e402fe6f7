// Package engine is the typed facade over the external execution engine:
// last-fork-choice, block-progress, insert, validate, update-fork-choice,
// get-block-number and get-last-headers. Every call is a blocking
// request/response from the driver's goroutine; Backend may be satisfied by
// in-process calls, channels to another goroutine, or RPC — the call-out
// pattern here (context.WithCancel around each request) is grounded on
// consensus/parlia's way of calling out to the embedded API.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ezkerrox/chainsync/common"
	"github.com/ezkerrox/chainsync/core/types"
	"github.com/ezkerrox/chainsync/log"
	"github.com/ezkerrox/chainsync/metrics"
)

// Backend is the capability surface a concrete execution engine must
// provide. It is a narrow capability surface, not an inheritance tree:
// any two implementations meeting this contract are interchangeable from
// the driver's point of view.
type Backend interface {
	LastForkChoice(ctx context.Context) (types.ChainHead, error)
	BlockProgress(ctx context.Context) (uint64, error)
	// GetLastHeaders returns up to n canonical headers ending at the
	// canonical head, oldest first.
	GetLastHeaders(ctx context.Context, n int) ([]*types.BlockHeader, error)
	InsertBlocks(ctx context.Context, blocks []*types.Block) error
	ValidateChain(ctx context.Context, target common.Hash) (Verdict, error)
	UpdateForkChoice(ctx context.Context, head common.Hash) error
	GetBlockNum(ctx context.Context, hash common.Hash) (uint64, bool, error)
}

// Adapter wraps a Backend with the driver-facing request/response contract
// plus latency tracking for the potentially-long ValidateChain call.
type Adapter struct {
	backend Backend

	validateCalls   metrics.Counter
	validateLatency metrics.Timer
	insertedBlocks  metrics.Counter
}

// NewAdapter builds an Adapter around backend.
func NewAdapter(backend Backend) *Adapter {
	return &Adapter{
		backend:         backend,
		validateCalls:   metrics.NewRegisteredCounter("chainsync/engine/validate/calls", nil),
		validateLatency: metrics.GetOrRegisterTimer("chainsync/engine/validate/latency", nil),
		insertedBlocks:  metrics.NewRegisteredCounter("chainsync/engine/inserted", nil),
	}
}

// LastForkChoice returns the engine's persisted canonical head.
func (a *Adapter) LastForkChoice(ctx context.Context) (types.ChainHead, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	head, err := a.backend.LastForkChoice(ctx)
	if err != nil {
		log.Error("engine: last_fork_choice failed", "err", err)
		return types.ChainHead{}, fmt.Errorf("last_fork_choice: %w", err)
	}
	return head, nil
}

// BlockProgress returns the highest inserted block number, canonical or not.
func (a *Adapter) BlockProgress(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	progress, err := a.backend.BlockProgress(ctx)
	if err != nil {
		log.Error("engine: block_progress failed", "err", err)
		return 0, fmt.Errorf("block_progress: %w", err)
	}
	return progress, nil
}

// GetLastHeaders returns the newest n canonical headers, in the order the
// backend documents (spec.md §4.3: must be documented; the fork-choice view
// consumes them in arrival order).
func (a *Adapter) GetLastHeaders(ctx context.Context, n int) ([]*types.BlockHeader, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	headers, err := a.backend.GetLastHeaders(ctx, n)
	if err != nil {
		log.Error("engine: get_last_headers failed", "n", n, "err", err)
		return nil, fmt.Errorf("get_last_headers: %w", err)
	}
	return headers, nil
}

// InsertBlocks hands a batch to the engine. Idempotent in hash:
// re-insertion of known blocks is a no-op.
func (a *Adapter) InsertBlocks(ctx context.Context, blocks []*types.Block) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := a.backend.InsertBlocks(ctx, blocks); err != nil {
		log.Error("engine: insert_blocks failed", "count", len(blocks), "err", err)
		return fmt.Errorf("insert_blocks: %w", err)
	}
	a.insertedBlocks.Inc(int64(len(blocks)))
	return nil
}

// ValidateChain runs the (potentially long) state-transition verification
// along the ancestry to target and returns the resulting Verdict.
func (a *Adapter) ValidateChain(ctx context.Context, target common.Hash) (Verdict, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.validateCalls.Inc(1)
	start := time.Now()
	verdict, err := a.backend.ValidateChain(ctx, target)
	a.validateLatency.UpdateSince(start)
	if err != nil {
		log.Error("engine: validate_chain failed", "target", target, "err", err)
		return Verdict{}, fmt.Errorf("validate_chain: %w", err)
	}
	return verdict, nil
}

// UpdateForkChoice installs head as the engine's canonical pointer. The
// engine must already have the block.
func (a *Adapter) UpdateForkChoice(ctx context.Context, head common.Hash) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := a.backend.UpdateForkChoice(ctx, head); err != nil {
		log.Error("engine: update_fork_choice failed", "head", head, "err", err)
		return fmt.Errorf("update_fork_choice: %w", err)
	}
	return nil
}

// GetBlockNum translates a hash into its block number, used to resolve
// InvalidChain.LatestValidHead into a height.
func (a *Adapter) GetBlockNum(ctx context.Context, hash common.Hash) (uint64, bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	number, ok, err := a.backend.GetBlockNum(ctx, hash)
	if err != nil {
		log.Error("engine: get_block_num failed", "hash", hash, "err", err)
		return 0, false, fmt.Errorf("get_block_num: %w", err)
	}
	return number, ok, nil
}
