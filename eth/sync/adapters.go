package sync

import (
	"context"

	"github.com/ezkerrox/chainsync/common"
	"github.com/ezkerrox/chainsync/core/types"
	"github.com/ezkerrox/chainsync/eth/engine"
	"github.com/ezkerrox/chainsync/eth/exchange"
)

// EngineAdapter is the narrow surface the driver needs from the execution
// engine facade (spec.md §4.3). *engine.Adapter satisfies it.
type EngineAdapter interface {
	LastForkChoice(ctx context.Context) (types.ChainHead, error)
	BlockProgress(ctx context.Context) (uint64, error)
	GetLastHeaders(ctx context.Context, n int) ([]*types.BlockHeader, error)
	InsertBlocks(ctx context.Context, blocks []*types.Block) error
	ValidateChain(ctx context.Context, target common.Hash) (engine.Verdict, error)
	UpdateForkChoice(ctx context.Context, head common.Hash) error
	GetBlockNum(ctx context.Context, hash common.Hash) (uint64, bool, error)
}

// ExchangeAdapter is the narrow surface the driver needs from the block
// exchange facade (spec.md §4.2). *exchange.Exchange satisfies it.
type ExchangeAdapter interface {
	InitialState(headers []*types.BlockHeader)
	DownloadBlocks(from uint64, tracking exchange.TargetTracking)
	ResultQueue() *exchange.ResultQueue
	InSync() bool
	CurrentHeight() uint64
	StopDownloading()
	Accept(msg exchange.Message) *exchange.Handle
}

// NewHeight is what forwardAndInsert hands to verify: the fork-choice
// view's head at the moment downloading caught up.
type NewHeight struct {
	Number uint64
	Hash   common.Hash
}

// UnwindPoint is the head the engine should roll back to after an
// InvalidChain verdict.
type UnwindPoint struct {
	Head   common.Hash
	Number uint64
}
