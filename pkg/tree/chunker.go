package tree

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// chunk groups a flat entry sequence into node-sized slices. Both policies
// are pure functions of (entries, cfg): given the same inputs they always
// produce the same grouping, which is what makes the resulting tree shape
// a deterministic function of content rather than of mutation history.
func chunk(entries []Entry, leaf bool, cfg Config) [][]Entry {
	if len(entries) == 0 {
		return nil
	}
	switch cfg.Chunker {
	case ChunkerRollingHash:
		return chunkRollingHash(entries, leaf, cfg)
	default:
		return chunkMaxEntries(entries, leaf, cfg)
	}
}

// chunkMaxEntries implements Policy A: a node closes at position i if
// i == MaxEntries, or i >= MinEntries and the fingerprint of the entry at
// position i, ANDed with PatternMask, equals PatternValue.
func chunkMaxEntries(entries []Entry, leaf bool, cfg Config) [][]Entry {
	var groups [][]Entry
	start := 0
	for i := range entries {
		count := i - start + 1
		boundary := count == cfg.MaxEntries
		if !boundary && count >= cfg.MinEntries {
			fp := fingerprint(cfg.Seed, entries[i], leaf)
			if uint32(fp)&cfg.PatternMask == cfg.PatternValue {
				boundary = true
			}
		}
		if boundary {
			groups = append(groups, entries[start:i+1])
			start = i + 1
		}
	}
	if start < len(entries) {
		groups = append(groups, entries[start:])
	}
	return groups
}

// chunkRollingHash implements Policy B: a rolling hash over the serialized
// entry stream places a boundary when the rolling hash, ANDed with
// RollingPattern, equals RollingValue, subject to min/max chunk sizes. The
// hash state is reset at each boundary, so the decision is a pure function
// of the entries seen since the last boundary (content-defined chunking,
// analogous to rsync/Rabin fingerprinting).
func chunkRollingHash(entries []Entry, leaf bool, cfg Config) [][]Entry {
	var groups [][]Entry
	start := 0
	var acc uint64
	for i := range entries {
		count := i - start + 1
		fp := fingerprint(cfg.Seed, entries[i], leaf)
		acc = acc*cfg.RollingBase + fp
		if cfg.RollingModulus != 0 {
			acc %= cfg.RollingModulus
		}

		boundary := count == cfg.MaxChunkSize
		if !boundary && count >= cfg.MinChunkSize {
			if acc&cfg.RollingPattern == cfg.RollingValue {
				boundary = true
			}
		}
		if boundary {
			groups = append(groups, entries[start:i+1])
			start = i + 1
			acc = 0
		}
	}
	if start < len(entries) {
		groups = append(groups, entries[start:])
	}
	return groups
}

// fingerprint computes the fast, non-cryptographic hash used for
// chunk-boundary gating under both policies. It is keyed by cfg.Seed and
// is deliberately distinct from the cryptographic digest used for node
// identity (pkg/digest), since boundary decisions run far more often than
// node hashing and do not need collision resistance.
func fingerprint(seed uint64, e Entry, leaf bool) uint64 {
	var seedBuf [8]byte
	binary.LittleEndian.PutUint64(seedBuf[:], seed)

	h := xxhash.New()
	h.Write(seedBuf[:])
	h.Write(e.Key)
	if leaf {
		h.Write(e.Value)
	} else {
		h.Write(e.Child[:])
	}
	return h.Sum64()
}
