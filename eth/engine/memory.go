package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/ezkerrox/chainsync/common"
	"github.com/ezkerrox/chainsync/core/types"
)

// MemoryBackend is an in-process Backend implementation: one of the three
// valid realizations spec.md §4.3 calls out (in-process calls, channels,
// RPC). It keeps headers in a map and trusts every chain it's asked to
// validate, since EVM execution and state-transition validation are out of
// scope (spec.md §1) — a real backend plugs its own verifier in here.
// Useful standalone for the CLI demo entrypoint and for driver tests.
type MemoryBackend struct {
	mu sync.Mutex

	headers   map[common.Hash]*types.BlockHeader
	inserted  map[common.Hash]struct{}
	totalDiff map[common.Hash]*uint256.Int
	canonical types.ChainHead
	progress  uint64

	// Validate, if set, overrides the trust-all default so tests can exercise
	// InvalidChain/ValidationError verdicts.
	Validate func(target common.Hash) Verdict
}

// NewMemoryBackend builds a backend seeded at genesis (number 0, the zero
// hash, zero difficulty).
func NewMemoryBackend() *MemoryBackend {
	genesis := &types.BlockHeader{Number: 0, Difficulty: uint256.NewInt(0)}
	genesis.SetHash(common.Hash{})
	b := &MemoryBackend{
		headers:   map[common.Hash]*types.BlockHeader{{}: genesis},
		inserted:  map[common.Hash]struct{}{{}: {}},
		totalDiff: map[common.Hash]*uint256.Int{{}: uint256.NewInt(0)},
		canonical: types.ChainHead{
			BlockID:         types.BlockID{Number: 0, Hash: common.Hash{}},
			TotalDifficulty: uint256.NewInt(0),
		},
	}
	return b
}

func (b *MemoryBackend) LastForkChoice(ctx context.Context) (types.ChainHead, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canonical, nil
}

func (b *MemoryBackend) BlockProgress(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress, nil
}

func (b *MemoryBackend) GetLastHeaders(ctx context.Context, n int) ([]*types.BlockHeader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Oldest-first: walk back from the canonical head by parent hash, then
	// reverse. Documented per spec.md §4.3's requirement that the ordering
	// be fixed by the engine contract.
	var chain []*types.BlockHeader
	hash := b.canonical.Hash
	for i := 0; i < n; i++ {
		h, ok := b.headers[hash]
		if !ok {
			break
		}
		chain = append(chain, h)
		if h.Number == 0 {
			break
		}
		hash = h.ParentHash
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (b *MemoryBackend) InsertBlocks(ctx context.Context, blocks []*types.Block) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, blk := range blocks {
		hash := blk.Hash()
		if _, ok := b.inserted[hash]; ok {
			continue // idempotent in hash
		}
		b.headers[hash] = blk.Header
		b.inserted[hash] = struct{}{}
		td := blk.TotalDifficulty
		if td == nil {
			td = blk.Header.Difficulty
		}
		b.totalDiff[hash] = td
		if blk.Number() > b.progress {
			b.progress = blk.Number()
		}
	}
	return nil
}

func (b *MemoryBackend) ValidateChain(ctx context.Context, target common.Hash) (Verdict, error) {
	b.mu.Lock()
	fn := b.Validate
	_, known := b.inserted[target]
	b.mu.Unlock()
	if !known {
		return Verdict{}, fmt.Errorf("validate_chain: unknown target %s", target)
	}
	if fn != nil {
		return fn(target), nil
	}
	return Verdict{ValidChain: &ValidChain{CurrentHead: target}}, nil
}

func (b *MemoryBackend) UpdateForkChoice(ctx context.Context, head common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.headers[head]
	if !ok {
		return fmt.Errorf("update_fork_choice: unknown head %s", head)
	}
	td, ok := b.totalDiff[head]
	if !ok {
		td = h.Difficulty
	}
	b.canonical = types.ChainHead{BlockID: types.BlockID{Number: h.Number, Hash: head}, TotalDifficulty: td}
	return nil
}

func (b *MemoryBackend) GetBlockNum(ctx context.Context, hash common.Hash) (uint64, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.headers[hash]
	if !ok {
		return 0, false, nil
	}
	return h.Number, true, nil
}
