package engine

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezkerrox/chainsync/common"
	"github.com/ezkerrox/chainsync/core/types"
)

func TestVerdictKind(t *testing.T) {
	assert.Equal(t, "ValidChain", Verdict{ValidChain: &ValidChain{}}.Kind())
	assert.Equal(t, "InvalidChain", Verdict{InvalidChain: &InvalidChain{}}.Kind())
	assert.Equal(t, "ValidationError", Verdict{ValidationError: &ValidationError{}}.Kind())
	assert.Equal(t, "unknown", Verdict{}.Kind())
}

func TestMemoryBackendStartsAtGenesis(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	head, err := b.LastForkChoice(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), head.Number)
	assert.Equal(t, common.Hash{}, head.Hash)
	assert.Equal(t, uint256.NewInt(0), head.TotalDifficulty)

	progress, err := b.BlockProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), progress)
}

func TestMemoryBackendInsertThenUpdateForkChoice(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	h := &types.BlockHeader{Number: 1, Difficulty: uint256.NewInt(5)}
	h.SetHash(common.HexToHash("0x01"))
	blk := &types.Block{Header: h, TotalDifficulty: uint256.NewInt(5)}

	require.NoError(t, b.InsertBlocks(ctx, []*types.Block{blk}))

	progress, err := b.BlockProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), progress)

	require.NoError(t, b.UpdateForkChoice(ctx, h.Hash()))
	head, err := b.LastForkChoice(ctx)
	require.NoError(t, err)
	assert.Equal(t, h.Hash(), head.Hash)
	assert.Equal(t, uint256.NewInt(5), head.TotalDifficulty)
}

func TestMemoryBackendInsertBlocksIsIdempotent(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	h := &types.BlockHeader{Number: 1, Difficulty: uint256.NewInt(5)}
	h.SetHash(common.HexToHash("0x01"))
	blk := &types.Block{Header: h, TotalDifficulty: uint256.NewInt(5)}

	require.NoError(t, b.InsertBlocks(ctx, []*types.Block{blk}))
	require.NoError(t, b.InsertBlocks(ctx, []*types.Block{blk}))

	progress, err := b.BlockProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), progress)
}

func TestMemoryBackendValidateChainUnknownTarget(t *testing.T) {
	b := NewMemoryBackend()
	_, err := b.ValidateChain(context.Background(), common.HexToHash("0xdead"))
	assert.Error(t, err)
}

func TestMemoryBackendValidateChainDefaultsToTrustAll(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	h := &types.BlockHeader{Number: 1, Difficulty: uint256.NewInt(1)}
	h.SetHash(common.HexToHash("0x01"))
	require.NoError(t, b.InsertBlocks(ctx, []*types.Block{{Header: h, TotalDifficulty: uint256.NewInt(1)}}))

	verdict, err := b.ValidateChain(ctx, h.Hash())
	require.NoError(t, err)
	require.NotNil(t, verdict.ValidChain)
	assert.Equal(t, h.Hash(), verdict.ValidChain.CurrentHead)
}

func TestMemoryBackendGetLastHeadersOldestFirst(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	parent := common.Hash{}
	var blocks []*types.Block
	for i := uint64(1); i <= 3; i++ {
		h := &types.BlockHeader{ParentHash: parent, Number: i, Difficulty: uint256.NewInt(1)}
		h.SetHash(common.BytesToHash([]byte{byte(i)}))
		blocks = append(blocks, &types.Block{Header: h, TotalDifficulty: uint256.NewInt(i)})
		parent = h.Hash()
	}
	require.NoError(t, b.InsertBlocks(ctx, blocks))
	require.NoError(t, b.UpdateForkChoice(ctx, blocks[2].Hash()))

	headers, err := b.GetLastHeaders(ctx, 2)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, uint64(2), headers[0].Number, "oldest of the requested window first")
	assert.Equal(t, uint64(3), headers[1].Number)
}

func TestMemoryBackendGetBlockNum(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	h := &types.BlockHeader{Number: 9, Difficulty: uint256.NewInt(1)}
	h.SetHash(common.HexToHash("0x09"))
	require.NoError(t, b.InsertBlocks(ctx, []*types.Block{{Header: h, TotalDifficulty: uint256.NewInt(1)}}))

	num, ok, err := b.GetBlockNum(ctx, h.Hash())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), num)

	_, ok, err = b.GetBlockNum(ctx, common.HexToHash("0xbeef"))
	require.NoError(t, err)
	assert.False(t, ok)
}
