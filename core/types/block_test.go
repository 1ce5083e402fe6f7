package types

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezkerrox/chainsync/common"
)

func TestBlockIDLessOrdersByNumberThenHash(t *testing.T) {
	low := BlockID{Number: 1, Hash: common.HexToHash("0xff")}
	high := BlockID{Number: 2, Hash: common.HexToHash("0x00")}
	assert.True(t, low.Less(high), "lower number must sort first regardless of hash")
	assert.False(t, high.Less(low))

	a := BlockID{Number: 5, Hash: common.HexToHash("0x01")}
	b := BlockID{Number: 5, Hash: common.HexToHash("0x02")}
	assert.True(t, a.Less(b), "equal number falls back to hash ordering")
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestBlockHeaderHashRoundTrip(t *testing.T) {
	h := &BlockHeader{Number: 7}
	want := common.HexToHash("0xdeadbeef")
	h.SetHash(want)
	assert.Equal(t, want, h.Hash())
	assert.Equal(t, BlockID{Number: 7, Hash: want}, h.ID())
}

func TestBlockAccessorsDelegateToHeader(t *testing.T) {
	header := &BlockHeader{Number: 42}
	header.SetHash(common.HexToHash("0x1234"))
	b := &Block{Header: header, Body: []byte("payload")}
	assert.Equal(t, uint64(42), b.Number())
	assert.Equal(t, header.Hash(), b.Hash())
}
