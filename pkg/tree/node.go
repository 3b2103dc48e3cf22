package tree

import (
	"bytes"

	"github.com/prollytree/prollytree/pkg/digest"
)

// Entry is one (key, value) pair in a leaf node, or one (separator_key,
// child_digest) pair in an internal node. Only the fields relevant to the
// node's kind are populated.
type Entry struct {
	Key   []byte
	Value []byte        // leaf only
	Child digest.Digest // internal only
}

// nodeFlag memoizes a node's digest. Nodes in this package are immutable
// once constructed — every mutation builds a fresh Node via newLeaf/
// newInternal rather than editing Entries in place — so the cache, once
// populated by the first digestOf call, never needs to be invalidated for
// the lifetime of the Node value.
type nodeFlag struct {
	hash  digest.Digest
	valid bool
}

// Node is the unit of both in-memory representation and on-disk
// persistence. A leaf node (Level == 0) carries ordered (key, value)
// pairs; an internal node (Level >= 1) carries ordered (separator_key,
// child_digest) pairs whose separator_key equals the smallest key in the
// referenced subtree.
type Node struct {
	Level   uint32
	Leaf    bool
	Entries []Entry

	flags nodeFlag
}

// newLeaf builds a new, unhashed leaf node.
func newLeaf(entries []Entry) *Node {
	return &Node{Level: 0, Leaf: true, Entries: entries}
}

// newInternal builds a new, unhashed internal node at the given level.
func newInternal(level uint32, entries []Entry) *Node {
	return &Node{Level: level, Leaf: false, Entries: entries}
}

// firstKey returns the smallest key in this node (the separator_key an
// enclosing internal node would use to reference it).
func (n *Node) firstKey() []byte {
	if len(n.Entries) == 0 {
		return nil
	}
	return n.Entries[0].Key
}

// isEmptyRoot reports whether n represents the canonical empty tree: a
// leaf with zero entries.
func (n *Node) isEmptyRoot() bool {
	return n.Leaf && len(n.Entries) == 0
}

// search returns the index of the entry whose key equals target, or else
// the index at which target would be inserted (the first entry whose key
// is greater than target), via binary search over the strictly increasing
// key sequence. ok reports whether an exact match was found. For internal
// nodes, childIndexFor turns this into a child index.
func (n *Node) search(target []byte) (idx int, ok bool) {
	lo, hi := 0, len(n.Entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(n.Entries[mid].Key, target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(n.Entries) && bytes.Equal(n.Entries[lo].Key, target) {
		return lo, true
	}
	return lo, false
}

// childIndexFor returns the index of the child entry whose subtree would
// contain target, for an internal node: the last entry whose separator_key
// is <= target (or 0 if target is smaller than every separator).
func (n *Node) childIndexFor(target []byte) int {
	idx, exact := n.search(target)
	if exact {
		return idx
	}
	if idx == 0 {
		return 0
	}
	return idx - 1
}
