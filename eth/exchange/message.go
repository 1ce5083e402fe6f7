package exchange

import "github.com/ezkerrox/chainsync/common"

// Message is the sum of everything Accept can dispatch: outbound
// announcements bound for peers, and the internal bad-headers mutation.
// Exhaustive dispatch over this type happens in Exchange.loop.
type Message interface{ isExchangeMessage() }

// OutboundNewBlock carries full blocks, emitted after insertion and before
// verification (eth/67: peers get the block body before it's proven sound).
type OutboundNewBlock struct {
	Blocks      []BlockAnnouncement
	IsFirstSync bool
}

// OutboundNewBlockHashes carries just the verified head's identity, emitted
// after successful verification (eth/67: a lighter-weight notice once the
// chain is known good).
type OutboundNewBlockHashes struct {
	Number      uint64
	Hash        common.Hash
	IsFirstSync bool
}

// BadHeaders is the internal deferred mutation: a set of header hashes to
// union into the exchange's reject set so it stops re-serving them.
type BadHeaders struct {
	Hashes []common.Hash
}

func (OutboundNewBlock) isExchangeMessage()       {}
func (OutboundNewBlockHashes) isExchangeMessage() {}
func (BadHeaders) isExchangeMessage()             {}

// BlockAnnouncement is the minimal per-block payload an outbound new-block
// message carries; the core doesn't interpret the body, only forwards it.
type BlockAnnouncement struct {
	Number uint64
	Hash   common.Hash
	Body   []byte
}
