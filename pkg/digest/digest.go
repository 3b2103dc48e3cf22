// Package digest provides the fixed-width content-addressing hash used to
// identify prolly tree nodes.
package digest

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Size is the width, in bytes, of a Digest. Nodes are addressed by the
// SHA3-256 hash of their canonical serialization.
const Size = 32

// Digest is a fixed-width content address. Equality of bytes is equality of
// referenced content.
type Digest [Size]byte

// Zero is the all-zero Digest (the zero value of the type). It is not the
// digest of any encoded node, the empty tree's root included.
var Zero Digest

// IsZero reports whether d is the all-zero sentinel.
func (d Digest) IsZero() bool { return d == Zero }

// String returns the lowercase hex encoding of d.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Bytes returns a copy of the underlying bytes.
func (d Digest) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, d[:])
	return b
}

// FromBytes builds a Digest from a byte slice of exactly Size bytes.
func FromBytes(b []byte) (Digest, bool) {
	var d Digest
	if len(b) != Size {
		return d, false
	}
	copy(d[:], b)
	return d, true
}

// Sum computes the Digest of the concatenation of data.
func Sum(data ...[]byte) Digest {
	h := sha3.New256()
	for _, b := range data {
		h.Write(b)
	}
	var d Digest
	h.Sum(d[:0])
	return d
}
