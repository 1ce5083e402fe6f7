// Package types defines the data model shared by the fork-choice view, the
// engine adapter and the exchange adapter: block identity, headers, blocks
// and chain heads. The core never interprets body payloads or header
// "extra" bytes beyond what's specified here.
package types

import (
	"github.com/holiman/uint256"

	"github.com/ezkerrox/chainsync/common"
)

// BlockID pairs a block number with its hash. Total order is inherited from
// Number; Hash disambiguates siblings at the same height.
type BlockID struct {
	Number uint64
	Hash   common.Hash
}

// Less orders two BlockIDs by Number first, then by Hash.
func (id BlockID) Less(other BlockID) bool {
	if id.Number != other.Number {
		return id.Number < other.Number
	}
	return id.Hash.Cmp(other.Hash) < 0
}

// BlockHeader is the portion of a header the fork-choice view and engine
// adapter need: parent linkage, identity, and declared difficulty. Extra
// carries whatever else a real header holds; the core treats it as opaque.
type BlockHeader struct {
	ParentHash common.Hash
	Number     uint64
	Difficulty *uint256.Int
	Extra      []byte

	hash common.Hash
}

// Hash returns the header's own hash. Real implementations derive it from
// an RLP/keccak encoding of the header fields; since the wire codec is out
// of scope here, the hash is whatever the adapter that decoded this header
// off the wire stamped via SetHash.
func (h *BlockHeader) Hash() common.Hash {
	return h.hash
}

// SetHash lets an adapter stamp the header's canonical hash once it is
// known (e.g. decoded off the wire).
func (h *BlockHeader) SetHash(hash common.Hash) {
	h.hash = hash
}

// ID returns the BlockID identifying this header.
func (h *BlockHeader) ID() BlockID {
	return BlockID{Number: h.Number, Hash: h.Hash()}
}

// Block owns a header and an opaque body payload, plus the two
// core-visible mutable fields: TotalDifficulty (computed by the
// fork-choice view on insertion) and ToAnnounce (set by the exchange when
// the block should be gossiped).
type Block struct {
	Header *BlockHeader
	Body   []byte

	TotalDifficulty *uint256.Int
	ToAnnounce      bool
}

// Number returns the block's height.
func (b *Block) Number() uint64 { return b.Header.Number }

// Hash returns the block's hash (that of its header).
func (b *Block) Hash() common.Hash { return b.Header.Hash() }

// ChainHead is a snapshot of the currently preferred head: its identity
// plus the cumulative total difficulty backing that preference.
type ChainHead struct {
	BlockID
	TotalDifficulty *uint256.Int
}
