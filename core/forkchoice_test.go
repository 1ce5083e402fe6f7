package core

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezkerrox/chainsync/common"
	"github.com/ezkerrox/chainsync/common/syncwindow"
	"github.com/ezkerrox/chainsync/core/types"
)

func header(parent common.Hash, number uint64, difficulty uint64, id uint64) *types.BlockHeader {
	h := &types.BlockHeader{ParentHash: parent, Number: number, Difficulty: uint256.NewInt(difficulty)}
	var hh common.Hash
	for i := 0; i < 8; i++ {
		hh[common.HashLength-1-i] = byte(id >> (8 * i))
	}
	h.SetHash(hh)
	return h
}

func TestForkChoiceViewResetHeadSeedsAnchorAsBest(t *testing.T) {
	v := NewForkChoiceView()
	head := types.ChainHead{
		BlockID:         types.BlockID{Number: 10, Hash: common.HexToHash("0x01")},
		TotalDifficulty: uint256.NewInt(1000),
	}
	v.ResetHead(head)

	gotHeader, gotTD := v.Head()
	require.NotNil(t, gotHeader)
	assert.Equal(t, head.Hash, gotHeader.Hash())
	assert.Equal(t, uint256.NewInt(1000), gotTD)
	assert.Equal(t, 1, v.Len())
}

func TestForkChoiceViewHigherTotalDifficultyWins(t *testing.T) {
	v := NewForkChoiceView()
	v.ResetHead(types.ChainHead{BlockID: types.BlockID{Number: 0, Hash: common.Hash{}}, TotalDifficulty: uint256.NewInt(0)})

	light := header(common.Hash{}, 1, 100, 0xA)
	heavy := header(common.Hash{}, 1, 200, 0xB)

	v.Add(light)
	v.Add(heavy)

	h, td := v.Head()
	assert.Equal(t, heavy.Hash(), h.Hash())
	assert.Equal(t, uint256.NewInt(200), td)
}

func TestForkChoiceViewTieBreaksByLowerNumberThenHash(t *testing.T) {
	v := NewForkChoiceView()
	v.ResetHead(types.ChainHead{BlockID: types.BlockID{Number: 0, Hash: common.Hash{}}, TotalDifficulty: uint256.NewInt(0)})

	// Same cumulative difficulty (100), same number (1): lexicographically
	// smaller hash must win regardless of arrival order.
	a := header(common.Hash{}, 1, 100, 0xF0)
	b := header(common.Hash{}, 1, 100, 0x01)

	v.Add(a)
	v.Add(b)

	h, _ := v.Head()
	assert.Equal(t, b.Hash(), h.Hash(), "lexicographically smaller hash should win the tie")
}

func TestForkChoiceViewTieBreaksByShorterChainOverHash(t *testing.T) {
	v := NewForkChoiceView()
	v.ResetHead(types.ChainHead{BlockID: types.BlockID{Number: 0, Hash: common.Hash{}}, TotalDifficulty: uint256.NewInt(0)})

	shorter := header(common.Hash{}, 1, 100, 0xFF) // worse hash, shorter chain
	longer := header(common.Hash{}, 2, 100, 0x01)  // better hash, but a taller chain

	v.Add(shorter)
	v.Add(longer)

	h, _ := v.Head()
	assert.Equal(t, shorter.Hash(), h.Hash(), "equal total difficulty must prefer the shorter chain over hash")
}

func TestForkChoiceViewParksUnknownParentThenRelinksOnArrival(t *testing.T) {
	v := NewForkChoiceView()
	v.ResetHead(types.ChainHead{BlockID: types.BlockID{Number: 0, Hash: common.Hash{}}, TotalDifficulty: uint256.NewInt(0)})

	var parentHash common.Hash
	parentHash[common.HashLength-1] = 0x01
	child := header(parentHash, 2, 50, 0x02)

	// child arrives before its parent is known: it must not become best.
	v.Add(child)
	h, _ := v.Head()
	assert.Equal(t, common.Hash{}, h.Hash(), "unlinked header must not become best")

	parent := header(common.Hash{}, 1, 100, 0x01)
	v.Add(parent)

	h, td := v.Head()
	assert.Equal(t, child.Hash(), h.Hash(), "child should relink and become best once its parent links")
	assert.Equal(t, uint256.NewInt(150), td)
}

func TestForkChoiceViewAddIsIdempotentByHash(t *testing.T) {
	v := NewForkChoiceView()
	v.ResetHead(types.ChainHead{BlockID: types.BlockID{Number: 0, Hash: common.Hash{}}, TotalDifficulty: uint256.NewInt(0)})

	h := header(common.Hash{}, 1, 100, 0x01)
	td1 := v.Add(h)
	td2 := v.Add(h)

	assert.Equal(t, td1, td2)
	assert.Equal(t, 2, v.Len()) // anchor + the one header, not duplicated
}

func TestForkChoiceViewPruneNeverEvictsBest(t *testing.T) {
	v := NewForkChoiceView()
	v.ResetHead(types.ChainHead{BlockID: types.BlockID{Number: 0, Hash: common.Hash{}}, TotalDifficulty: uint256.NewInt(0)})

	parent := common.Hash{}
	var last *types.BlockHeader
	for i := uint64(1); i <= 300; i++ {
		h := header(parent, i, 10, i)
		v.Add(h)
		parent = h.Hash()
		last = h
	}

	pruned := v.Prune(last.Number, syncwindow.MinWindow)
	assert.Greater(t, pruned, 0)

	h, _ := v.Head()
	assert.Equal(t, last.Number, h.Number, "best entry must survive a prune")
}

func TestForkChoiceViewSurvivesCacheEvictionWithoutPruning(t *testing.T) {
	v := NewForkChoiceView()
	v.ResetHead(types.ChainHead{BlockID: types.BlockID{Number: 0, Hash: common.Hash{}}, TotalDifficulty: uint256.NewInt(0)})

	// Push well past defaultCacheSize headers in a single unbroken chain,
	// the way a long initial-sync forwardAndInsert cycle would, without ever
	// calling Prune. The LRU alone would otherwise evict the running best
	// out from under bestHash and leave Head() dangling.
	parent := common.Hash{}
	var last *types.BlockHeader
	for i := uint64(1); i <= defaultCacheSize*2; i++ {
		h := header(parent, i, 10, i)
		v.Add(h)
		parent = h.Hash()
		last = h
	}

	gotHeader, gotTD := v.Head()
	require.NotNil(t, gotHeader, "best entry must never be evicted out of the cache")
	assert.Equal(t, last.Hash(), gotHeader.Hash())
	assert.Equal(t, uint256.NewInt(10*uint64(defaultCacheSize*2)), gotTD)
}

func TestForkChoiceViewPruneRespectsWindowFloor(t *testing.T) {
	v := NewForkChoiceView()
	v.ResetHead(types.ChainHead{BlockID: types.BlockID{Number: 0, Hash: common.Hash{}}, TotalDifficulty: uint256.NewInt(0)})

	parent := common.Hash{}
	var mid *types.BlockHeader
	for i := uint64(1); i <= 300; i++ {
		h := header(parent, i, 10, i)
		v.Add(h)
		parent = h.Hash()
		if i == 100 {
			mid = h
		}
	}

	// window of 128: floor = 300-128 = 172, so header 100 should be pruned.
	v.Prune(300, 128)
	_, ok := v.get(mid.Hash())
	assert.False(t, ok, "headers below the floor should be pruned")
}
