// Package common holds the small value types shared by every chainsync
// package: a fixed-size hash used to key headers and blocks.
package common

import (
	"encoding/hex"
	"fmt"
)

// HashLength is the expected length of a keccak-style digest in bytes.
const HashLength = 32

// Hash represents a 32-byte digest, typically the keccak256 hash of an
// RLP-encoded header or block body. The zero Hash is a valid sentinel for
// "no hash" and is never a real digest in practice.
type Hash [HashLength]byte

// BytesToHash sets the rightmost HashLength bytes of b into a Hash, left
// truncating if b is longer.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HexToHash parses a hex string (with or without the 0x prefix) into a Hash.
func HexToHash(s string) Hash {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, _ := hex.DecodeString(s)
	return BytesToHash(b)
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the 0x-prefixed hex encoding of the hash.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// Cmp does a byte-wise lexicographic comparison of two hashes, returning -1,
// 0 or 1. It backs the fork-choice tie-break rule's final, hash-based leg.
func (h Hash) Cmp(other Hash) int {
	for i := range h {
		if h[i] != other[i] {
			if h[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Format implements fmt.Formatter so a Hash prints sensibly with %v/%s/%x.
func (h Hash) Format(s fmt.State, c rune) {
	switch c {
	case 'x', 'X':
		fmt.Fprintf(s, "%"+string(c), h[:])
	default:
		fmt.Fprint(s, h.Hex())
	}
}
