package engine

import "github.com/ezkerrox/chainsync/common"

// Verdict is the tagged sum returned by ValidateChain. Exactly one of
// ValidChain, InvalidChain or ValidationError is set; exhaustive matching
// on it at every call site is a correctness requirement (spec.md §9).
type Verdict struct {
	ValidChain      *ValidChain
	InvalidChain    *InvalidChain
	ValidationError *ValidationError
}

// ValidChain means validate_chain found the full ancestry to the requested
// target sound; CurrentHead is the engine's resulting canonical candidate.
type ValidChain struct {
	CurrentHead common.Hash
}

// InvalidChain means validate_chain found a bad branch. LatestValidHead is
// the newest header still known-good; BadBlock, if set, identifies the
// first bad block; BadHeaders lists every header hash the exchange must
// refuse to re-serve.
type InvalidChain struct {
	LatestValidHead common.Hash
	BadBlock        *common.Hash
	BadHeaders      []common.Hash
}

// ValidationError means the engine could not reach a verdict (e.g. a
// missing ancestor). Fatal to the driver.
type ValidationError struct {
	LatestValidHead common.Hash
	MissingBlock    common.Hash
}

// Kind identifies which arm of the sum is populated, for logging/metrics.
func (v Verdict) Kind() string {
	switch {
	case v.ValidChain != nil:
		return "ValidChain"
	case v.InvalidChain != nil:
		return "InvalidChain"
	case v.ValidationError != nil:
		return "ValidationError"
	default:
		return "unknown"
	}
}
