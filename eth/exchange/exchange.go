// Package exchange is the typed facade over the external downloader: result
// queue consumption, outbound-message acceptance, and control signals. Its
// loop (dispatch channel, bad-header set, graceful shutdown) is grounded on
// core/vote/vote_pool.go's event loop, swapping the vote pool's mapset of
// seen vote hashes for a mapset of bad header hashes, and its votesCh/loop
// plumbing for the Accept dispatch below.
package exchange

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/time/rate"

	"github.com/ezkerrox/chainsync/common"
	"github.com/ezkerrox/chainsync/core/types"
	"github.com/ezkerrox/chainsync/event"
	"github.com/ezkerrox/chainsync/log"
	"github.com/ezkerrox/chainsync/metrics"
)

// messageChanSize bounds the Accept dispatch channel; Accept blocks once
// full rather than dropping, since every message must eventually land.
const messageChanSize = 256

// restartBurst/restartInterval throttle DownloadBlocks restarts so a driver
// spinning through verify failures can't hammer the downloader.
const (
	restartBurst    = 4
	restartInterval = 500 * time.Millisecond
)

// TargetTracking selects how the downloader decides what to fetch next.
type TargetTracking int

const (
	ByAnnouncements TargetTracking = iota
	ByNewPeers
)

// Backend is the real downloader machinery the Exchange wraps: the state
// machine that actually talks to peers. Out of scope per spec.md §1; the
// Exchange only needs this narrow surface from it.
type Backend interface {
	InitialState(headers []*types.BlockHeader)
	DownloadBlocks(from uint64, tracking TargetTracking)
	InSync() bool
	CurrentHeight() uint64
	StopDownloading()
}

// Handle lets an Accept caller observe completion of a queued message
// without blocking on it; discarding the handle is fine (fire-and-forget).
type Handle struct {
	done chan struct{}
}

// Done returns a channel closed once the message has been processed.
func (h *Handle) Done() <-chan struct{} { return h.done }

type envelope struct {
	msg  Message
	done chan struct{}
}

// Exchange implements the BlockExchangeAdapter contract of spec.md §4.2.
type Exchange struct {
	backend Backend
	queue   *ResultQueue

	badHeaders mapset.Set[common.Hash]

	messages chan envelope
	quit     chan struct{}
	closeFn  sync.Once

	restartLimiter *rate.Limiter
	outboundFeed   event.Feed
	scope          event.SubscriptionScope

	badHeaderCounter metrics.Counter
	outboundCounter  metrics.Counter
}

// NewExchange builds an Exchange wrapping backend, with a result queue of
// the given buffer depth, and starts its dispatch loop.
func NewExchange(backend Backend, queueBuffer int) *Exchange {
	e := &Exchange{
		backend:          backend,
		queue:            NewResultQueue(queueBuffer),
		badHeaders:       mapset.NewSet[common.Hash](),
		messages:         make(chan envelope, messageChanSize),
		quit:             make(chan struct{}),
		restartLimiter:   rate.NewLimiter(rate.Every(restartInterval), restartBurst),
		badHeaderCounter: metrics.NewRegisteredCounter("chainsync/exchange/badheaders", nil),
		outboundCounter:  metrics.NewRegisteredCounter("chainsync/exchange/outbound", nil),
	}
	go e.loop()
	return e
}

// loop is the exchange's own event loop: it serializes Accept dispatch
// exactly the way vote_pool.go's loop serializes vote/event handling.
func (e *Exchange) loop() {
	for {
		select {
		case <-e.quit:
			return
		case env := <-e.messages:
			e.dispatch(env.msg)
			close(env.done)
		}
	}
}

func (e *Exchange) dispatch(msg Message) {
	switch m := msg.(type) {
	case BadHeaders:
		for _, h := range m.Hashes {
			e.badHeaders.Add(h)
		}
		e.badHeaderCounter.Inc(int64(len(m.Hashes)))
		log.Debug("exchange: rejecting bad headers", "count", len(m.Hashes))
	case OutboundNewBlock:
		e.outboundCounter.Inc(1)
		e.outboundFeed.Send(m)
		log.Trace("exchange: outbound new block", "count", len(m.Blocks), "firstSync", m.IsFirstSync)
	case OutboundNewBlockHashes:
		e.outboundCounter.Inc(1)
		e.outboundFeed.Send(m)
		log.Trace("exchange: outbound new block hashes", "number", m.Number, "firstSync", m.IsFirstSync)
	default:
		log.Error("exchange: unknown message type dispatched", "type", msg)
	}
}

// InitialState hands the downloader a bootstrap window so it can locate
// peers' positions relative to the local chain.
func (e *Exchange) InitialState(headers []*types.BlockHeader) {
	e.backend.InitialState(headers)
}

// DownloadBlocks starts or resumes downloading above from, rate-limited so
// repeated restarts (e.g. across consecutive unwinds) don't thrash the
// downloader.
func (e *Exchange) DownloadBlocks(from uint64, tracking TargetTracking) {
	if !e.restartLimiter.Allow() {
		log.Debug("exchange: download restart throttled", "from", from)
		return
	}
	e.backend.DownloadBlocks(from, tracking)
}

// ResultQueue returns the FIFO channel of downloaded block batches.
func (e *Exchange) ResultQueue() *ResultQueue { return e.queue }

// InSync reports the downloader's view of whether it has caught up.
func (e *Exchange) InSync() bool { return e.backend.InSync() }

// CurrentHeight reports the downloader's view of how far it has progressed.
func (e *Exchange) CurrentHeight() uint64 { return e.backend.CurrentHeight() }

// StopDownloading cooperatively stops the downloader; in-flight batches
// remain drainable from the result queue.
func (e *Exchange) StopDownloading() { e.backend.StopDownloading() }

// Accept queues either an outbound-announcement message or the internal
// bad-headers message for processing on the exchange's own loop, returning
// a Handle the caller may await or discard.
func (e *Exchange) Accept(msg Message) *Handle {
	done := make(chan struct{})
	select {
	case e.messages <- envelope{msg: msg, done: done}:
	case <-e.quit:
		close(done)
	}
	return &Handle{done: done}
}

// IsBadHeader reports whether hash has been submitted via a BadHeaders
// message. Safe for concurrent use; the downloader consults this before
// re-requesting a header it was already told to reject.
func (e *Exchange) IsBadHeader(hash common.Hash) bool {
	return e.badHeaders.Contains(hash)
}

// SubscribeOutbound lets diagnostics (metrics, tests) observe outbound
// messages as they're dispatched, mirroring vote_pool.go's votesFeed
// subscription surface.
func (e *Exchange) SubscribeOutbound(ch chan any) event.Subscription {
	return e.scope.Track(e.outboundFeed.Subscribe(ch))
}

// Close stops the dispatch loop and unsubscribes all outbound listeners.
func (e *Exchange) Close() {
	e.closeFn.Do(func() {
		close(e.quit)
		e.scope.Close()
	})
}
