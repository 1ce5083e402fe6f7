package sync

import (
	"github.com/ezkerrox/chainsync/eth/exchange"
	"github.com/ezkerrox/chainsync/log"
)

// AnnouncementEmitter packages block/hash payloads with the isFirstSync
// flag and hands them to the exchange; the exchange, not the emitter,
// decides which peers receive which announcement and applies eth/67
// suppression rules (spec.md §4.5).
type AnnouncementEmitter struct {
	exchange ExchangeAdapter
}

// NewAnnouncementEmitter builds an emitter bound to exchange.
func NewAnnouncementEmitter(exchange ExchangeAdapter) *AnnouncementEmitter {
	return &AnnouncementEmitter{exchange: exchange}
}

// AnnounceNewBlock emits OutboundNewBlock for blocks, after insertion and
// before verification. Accept returns no error, so emission never aborts
// the main cycle; it can wait while the exchange's dispatch channel is full.
func (e *AnnouncementEmitter) AnnounceNewBlock(blocks []exchange.BlockAnnouncement, isFirstSync bool) {
	if len(blocks) == 0 {
		return
	}
	e.exchange.Accept(exchange.OutboundNewBlock{Blocks: blocks, IsFirstSync: isFirstSync})
	log.Debug("emitter: announced new block", "count", len(blocks), "firstSync", isFirstSync)
}

// AnnounceNewBlockHashes emits OutboundNewBlockHashes for a verified head,
// after the corresponding update_fork_choice.
func (e *AnnouncementEmitter) AnnounceNewBlockHashes(head NewHeight, isFirstSync bool) {
	e.exchange.Accept(exchange.OutboundNewBlockHashes{Number: head.Number, Hash: head.Hash, IsFirstSync: isFirstSync})
	log.Debug("emitter: announced new block hashes", "number", head.Number, "firstSync", isFirstSync)
}
