// Copyright 2021 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package core holds the fork-choice view: the in-memory structure that
// tracks candidate headers across branches and selects the current best
// head by total-difficulty ordering with deterministic tie-breaks. It is
// the direct descendant of go-ethereum's ForkChoice (core/forkchoice.go),
// generalized from a single reorg decision into a standing, queryable view
// over a bounded window of recent headers.
package core

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"

	"github.com/ezkerrox/chainsync/common"
	"github.com/ezkerrox/chainsync/common/syncwindow"
	"github.com/ezkerrox/chainsync/core/types"
	"github.com/ezkerrox/chainsync/log"
)

// defaultCacheSize bounds the LRU-backed store independently of the
// explicit Prune window, so an unlucky caller who never prunes still can't
// grow the view without bound.
const defaultCacheSize = 8192

// fcEntry is what the view stores per known header hash.
type fcEntry struct {
	header               *types.BlockHeader
	cumulativeDifficulty *uint256.Int
	linked               bool // false until an ancestry chain to the anchor is known
}

// ForkChoiceView tracks candidate headers by parent and exposes the best
// head under the rule: highest cumulative total difficulty wins; ties
// break by lower number (shorter chain), then by lexicographically smaller
// hash. See spec.md §3/§4.1 for the full invariant list.
type ForkChoiceView struct {
	entries *lru.Cache // common.Hash -> *fcEntry
	orphans map[common.Hash][]common.Hash

	anchor   types.BlockID
	bestHash common.Hash
	bestTD   *uint256.Int

	// evictedBest holds the entry for bestHash if onEvict just saw the LRU
	// try to evict it; put() re-inserts it immediately afterwards so the
	// current best is never actually lost.
	evictedBest *fcEntry
}

// NewForkChoiceView constructs an empty view. Call ResetHead before using
// it; an unseeded view has no head.
func NewForkChoiceView() *ForkChoiceView {
	v := &ForkChoiceView{
		orphans: make(map[common.Hash][]common.Hash),
	}
	cache, err := lru.NewWithEvict(defaultCacheSize, v.onEvict)
	if err != nil {
		// Only fails for a non-positive size, which defaultCacheSize never is.
		log.Crit("failed to allocate fork-choice cache", "err", err)
	}
	v.entries = cache
	return v
}

// onEvict is the LRU's eviction callback. If the entry being evicted is the
// current best, it is stashed so put() can put it straight back in,
// guaranteeing the best pointer never dangles.
func (v *ForkChoiceView) onEvict(key, value any) {
	if hash, ok := key.(common.Hash); ok && hash == v.bestHash {
		v.evictedBest = value.(*fcEntry)
	}
}

// put adds entry to the LRU and, if that add evicted the current best
// (which it tracks by the bestHash in effect at call time), immediately
// re-inserts it so the best entry is always resident.
func (v *ForkChoiceView) put(hash common.Hash, entry *fcEntry) {
	v.entries.Add(hash, entry)
	for v.evictedBest != nil {
		protected := v.evictedBest
		v.evictedBest = nil
		v.entries.Add(v.bestHash, protected)
	}
}

// ResetHead clears the view and installs head as the sole anchor, with the
// best pointer set to it.
func (v *ForkChoiceView) ResetHead(head types.ChainHead) {
	v.bestHash = common.Hash{}
	v.bestTD = nil
	v.evictedBest = nil
	v.entries.Purge()
	v.orphans = make(map[common.Hash][]common.Hash)

	anchorHeader := &types.BlockHeader{
		Number:     head.Number,
		Difficulty: head.TotalDifficulty,
	}
	anchorHeader.SetHash(head.Hash)

	v.put(head.Hash, &fcEntry{
		header:               anchorHeader,
		cumulativeDifficulty: head.TotalDifficulty,
		linked:               true,
	})
	v.anchor = head.BlockID
	v.bestHash = head.Hash
	v.bestTD = head.TotalDifficulty
}

// Add records header's cumulative total difficulty and updates the best
// pointer if warranted, returning the computed cumulative difficulty so
// the caller can back-annotate its Block. Add never fails: a header whose
// parent is not yet known is parked (linked=false) and is not eligible to
// become best until its ancestry resolves to the anchor.
func (v *ForkChoiceView) Add(header *types.BlockHeader) *uint256.Int {
	hash := header.Hash()
	if existing, ok := v.get(hash); ok {
		return existing.cumulativeDifficulty
	}

	parent, parentKnown := v.get(header.ParentHash)
	entry := &fcEntry{header: header}

	if parentKnown && parent.linked {
		entry.cumulativeDifficulty = new(uint256.Int).Add(parent.cumulativeDifficulty, header.Difficulty)
		entry.linked = true
	} else {
		// Parked: no known ancestry to the anchor yet. The cumulative
		// difficulty is undefined for tie-break purposes, but callers still
		// need a value to stamp onto their Block, so report the header's own
		// declared difficulty as a provisional figure.
		entry.cumulativeDifficulty = header.Difficulty.Clone()
		entry.linked = false
		v.orphans[header.ParentHash] = append(v.orphans[header.ParentHash], hash)
	}

	v.put(hash, entry)

	if entry.linked {
		v.considerBest(hash, entry)
		v.relinkOrphans(hash, entry)
	}
	return entry.cumulativeDifficulty
}

// relinkOrphans walks the orphan index for headers that were parked
// waiting on parentHash, now that parentEntry has arrived and is linked.
func (v *ForkChoiceView) relinkOrphans(parentHash common.Hash, parentEntry *fcEntry) {
	children := v.orphans[parentHash]
	if len(children) == 0 {
		return
	}
	delete(v.orphans, parentHash)
	for _, childHash := range children {
		child, ok := v.get(childHash)
		if !ok || child.linked {
			continue
		}
		child.cumulativeDifficulty = new(uint256.Int).Add(parentEntry.cumulativeDifficulty, child.header.Difficulty)
		child.linked = true
		v.put(childHash, child)
		v.considerBest(childHash, child)
		v.relinkOrphans(childHash, child)
	}
}

// considerBest updates the best pointer if candidate beats the incumbent
// under the tie-break rule.
func (v *ForkChoiceView) considerBest(hash common.Hash, entry *fcEntry) {
	if v.bestTD == nil || isBetter(entry.cumulativeDifficulty, entry.header.Number, hash, v.bestTD, v.bestHeight(), v.bestHash) {
		v.bestHash = hash
		v.bestTD = entry.cumulativeDifficulty
	}
}

// isBetter reports whether the candidate (td, number, hash) beats the
// incumbent best under: higher td wins; ties go to the lower number
// (shorter chain); remaining ties go to the lexicographically smaller hash.
func isBetter(candTD *uint256.Int, candNum uint64, candHash common.Hash, bestTD *uint256.Int, bestNum uint64, bestHash common.Hash) bool {
	if cmp := candTD.Cmp(bestTD); cmp != 0 {
		return cmp > 0
	}
	if candNum != bestNum {
		return candNum < bestNum
	}
	return candHash.Cmp(bestHash) < 0
}

func (v *ForkChoiceView) bestHeight() uint64 {
	if e, ok := v.get(v.bestHash); ok {
		return e.header.Number
	}
	return 0
}

func (v *ForkChoiceView) get(hash common.Hash) (*fcEntry, bool) {
	value, ok := v.entries.Get(hash)
	if !ok {
		return nil, false
	}
	return value.(*fcEntry), true
}

// Head returns the current best header and its cumulative total difficulty.
func (v *ForkChoiceView) Head() (*types.BlockHeader, *uint256.Int) {
	e, ok := v.get(v.bestHash)
	if !ok {
		return nil, nil
	}
	return e.header, e.cumulativeDifficulty
}

// HeadHeight is a convenience accessor for Head's header number.
func (v *ForkChoiceView) HeadHeight() uint64 {
	if h, _ := v.Head(); h != nil {
		return h.Number
	}
	return 0
}

// HeadHash is a convenience accessor for Head's header hash.
func (v *ForkChoiceView) HeadHash() common.Hash {
	return v.bestHash
}

// Prune discards any stored entry whose number is below confirmedHead minus
// the sliding window (floored at syncwindow.MinWindow), except the current
// best entry, which is never evicted. It is meant to be called once the
// engine has confirmed a new canonical head via update_fork_choice.
func (v *ForkChoiceView) Prune(confirmedHead uint64, window uint64) int {
	floor := syncwindow.PruneFloor(confirmedHead, window)
	pruned := 0
	for _, key := range v.entries.Keys() {
		hash := key.(common.Hash)
		if hash == v.bestHash {
			continue
		}
		entry, ok := v.get(hash)
		if !ok || entry.header.Number >= floor {
			continue
		}
		v.entries.Remove(hash)
		pruned++
	}
	return pruned
}

// Len reports how many headers are currently stored.
func (v *ForkChoiceView) Len() int {
	return v.entries.Len()
}
