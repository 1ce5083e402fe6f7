package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezkerrox/chainsync/common"
	"github.com/ezkerrox/chainsync/core/types"
)

func TestResultQueuePopTimesOutOnEmptyQueue(t *testing.T) {
	q := NewResultQueue(1)
	batch, ok := q.Pop(10 * time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, batch)
}

func TestResultQueuePopReturnsPushedBatch(t *testing.T) {
	q := NewResultQueue(1)
	want := []*types.Block{{Header: &types.BlockHeader{Number: 1}}}
	q.Push(want)

	got, ok := q.Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestResultQueueDrainIsNonBlocking(t *testing.T) {
	q := NewResultQueue(4)
	q.Push([]*types.Block{{Header: &types.BlockHeader{Number: 1}}})
	q.Push([]*types.Block{{Header: &types.BlockHeader{Number: 2}}})

	batches := q.Drain()
	assert.Len(t, batches, 2)
	assert.Empty(t, q.Drain())
}

func TestExchangeBadHeadersAreIdempotent(t *testing.T) {
	backend := NewMemoryBackend()
	ex := NewExchange(backend, 8)
	defer ex.Close()
	backend.BindQueue(ex.ResultQueue())

	bad := common.HexToHash("0xdead")

	h1 := ex.Accept(BadHeaders{Hashes: []common.Hash{bad}})
	<-h1.Done()
	assert.True(t, ex.IsBadHeader(bad))

	// Submitting the same hash again must not duplicate or error.
	h2 := ex.Accept(BadHeaders{Hashes: []common.Hash{bad}})
	<-h2.Done()
	assert.True(t, ex.IsBadHeader(bad))
}

func TestExchangeAcceptDeliversOutboundMessages(t *testing.T) {
	backend := NewMemoryBackend()
	ex := NewExchange(backend, 8)
	defer ex.Close()
	backend.BindQueue(ex.ResultQueue())

	ch := make(chan any, 4)
	sub := ex.SubscribeOutbound(ch)
	defer sub.Unsubscribe()

	handle := ex.Accept(OutboundNewBlockHashes{Number: 5, Hash: common.HexToHash("0x05")})
	<-handle.Done()

	select {
	case msg := <-ch:
		got, ok := msg.(OutboundNewBlockHashes)
		require.True(t, ok)
		assert.Equal(t, uint64(5), got.Number)
	case <-time.After(time.Second):
		t.Fatal("expected outbound message to be delivered")
	}
}

func TestMemoryBackendDownloadBlocksReportsInSync(t *testing.T) {
	backend := NewMemoryBackend()
	ex := NewExchange(backend, 8)
	defer ex.Close()
	backend.BindQueue(ex.ResultQueue())

	assert.False(t, backend.InSync())
	ex.DownloadBlocks(0, ByAnnouncements)
	assert.True(t, backend.InSync())
	assert.Equal(t, uint64(0), backend.CurrentHeight())
}

func TestMemoryBackendProduceFeedsResultQueue(t *testing.T) {
	backend := NewMemoryBackend()
	ex := NewExchange(backend, 8)
	defer ex.Close()
	backend.BindQueue(ex.ResultQueue())

	backend.Produce = func(from uint64, tracking TargetTracking) []*types.Block {
		return []*types.Block{{Header: &types.BlockHeader{Number: from + 1}}}
	}
	ex.DownloadBlocks(0, ByAnnouncements)

	batch, ok := ex.ResultQueue().Pop(time.Second)
	require.True(t, ok)
	require.Len(t, batch, 1)
	assert.Equal(t, uint64(1), batch[0].Number())
	assert.Equal(t, uint64(1), backend.CurrentHeight())
}
