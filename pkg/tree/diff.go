package tree

import (
	"bytes"

	"golang.org/x/sync/errgroup"

	"github.com/prollytree/prollytree/pkg/digest"
)

// ChangeKind discriminates the three kinds of difference Diff can report.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Modified
)

// Change is one difference between two trees' key spaces.
type Change struct {
	Kind     ChangeKind
	Key      []byte
	OldValue []byte // Removed, Modified
	NewValue []byte // Added, Modified
}

// Diff compares two trees built under the same Config and yields every key
// whose presence or value differs between them. It exploits the
// subtree-equality shortcut: whenever two internal (or leaf) nodes being
// compared have identical digests, the entire subtree is known to be
// identical and is skipped without being fetched from storage, bounding
// backend Get calls to O(|symmetric difference| * depth).
//
// a and b must share the same Config; Diff returns KindInvalidArgument
// otherwise, per the spec's resolution of cross-Config diff being out of
// scope (subtree-equality is unsound once chunking differs).
func Diff(a, b *Tree, fn func(Change) bool) error {
	const op = "Diff"
	if !a.cfg.Equal(b.cfg) {
		return newErr(op, KindInvalidArgument, "Diff requires both trees to share the same Config")
	}
	if a.RootDigest() == b.RootDigest() {
		return nil
	}
	_, err := diffNodes(a, a.root, b, b.root, fn)
	return err
}

// diffNodes recurses over two same-shaped-in-principle subtrees (possibly
// at different levels, e.g. one side has split where the other has not).
// cont reports whether the caller's fn wants to keep receiving changes.
func diffNodes(ta *Tree, na *Node, tb *Tree, nb *Node, fn func(Change) bool) (cont bool, err error) {
	if digestOf(na) == digestOf(nb) {
		return true, nil // subtree-equality shortcut
	}

	switch {
	case na.Leaf && nb.Leaf:
		return diffLeaves(na, nb, fn)
	case na.Leaf != nb.Leaf:
		// One side descended further than the other (different chunking
		// under the same Config can still yield different tree heights
		// along a path). Flatten the deeper side to its leaf key space
		// and merge-walk against the shallow side's single leaf.
		return diffMixedLevels(ta, na, tb, nb, fn)
	default:
		return diffInternals(ta, na, tb, nb, fn)
	}
}

// diffLeaves merge-walks two leaves' (key, value) sequences by key.
func diffLeaves(na, nb *Node, fn func(Change) bool) (bool, error) {
	i, j := 0, 0
	for i < len(na.Entries) && j < len(nb.Entries) {
		ea, eb := na.Entries[i], nb.Entries[j]
		switch c := bytes.Compare(ea.Key, eb.Key); {
		case c < 0:
			if !fn(Change{Kind: Removed, Key: ea.Key, OldValue: ea.Value}) {
				return false, nil
			}
			i++
		case c > 0:
			if !fn(Change{Kind: Added, Key: eb.Key, NewValue: eb.Value}) {
				return false, nil
			}
			j++
		default:
			if !bytes.Equal(ea.Value, eb.Value) {
				if !fn(Change{Kind: Modified, Key: ea.Key, OldValue: ea.Value, NewValue: eb.Value}) {
					return false, nil
				}
			}
			i++
			j++
		}
	}
	for ; i < len(na.Entries); i++ {
		if !fn(Change{Kind: Removed, Key: na.Entries[i].Key, OldValue: na.Entries[i].Value}) {
			return false, nil
		}
	}
	for ; j < len(nb.Entries); j++ {
		if !fn(Change{Kind: Added, Key: nb.Entries[j].Key, NewValue: nb.Entries[j].Value}) {
			return false, nil
		}
	}
	return true, nil
}

// diffInternals merge-walks two internal nodes' separator_key sequences,
// recursing into children whose digests differ and skipping (via the
// subtree-equality check at the top of diffNodes) those that match.
func diffInternals(ta *Tree, na *Node, tb *Tree, nb *Node, fn func(Change) bool) (bool, error) {
	i, j := 0, 0
	for i < len(na.Entries) && j < len(nb.Entries) {
		ea, eb := na.Entries[i], nb.Entries[j]
		switch c := bytes.Compare(ea.Key, eb.Key); {
		case c < 0:
			child, err := ta.fetchNode(ea.Child)
			if err != nil {
				return false, err
			}
			if cont, err := emitSubtreeRemoved(ta, child, fn); err != nil || !cont {
				return cont, err
			}
			i++
		case c > 0:
			child, err := tb.fetchNode(eb.Child)
			if err != nil {
				return false, err
			}
			if cont, err := emitSubtreeAdded(tb, child, fn); err != nil || !cont {
				return cont, err
			}
			j++
		default:
			if ea.Child != eb.Child {
				childA, childB, err := fetchChildrenConcurrently(ta, ea.Child, tb, eb.Child)
				if err != nil {
					return false, err
				}
				cont, err := diffNodes(ta, childA, tb, childB, fn)
				if err != nil || !cont {
					return cont, err
				}
			}
			i++
			j++
		}
	}
	for ; i < len(na.Entries); i++ {
		child, err := ta.fetchNode(na.Entries[i].Child)
		if err != nil {
			return false, err
		}
		if cont, err := emitSubtreeRemoved(ta, child, fn); err != nil || !cont {
			return cont, err
		}
	}
	for ; j < len(nb.Entries); j++ {
		child, err := tb.fetchNode(nb.Entries[j].Child)
		if err != nil {
			return false, err
		}
		if cont, err := emitSubtreeAdded(tb, child, fn); err != nil || !cont {
			return cont, err
		}
	}
	return true, nil
}

// fetchChildrenConcurrently fetches the two sides of a differing child
// pointer at once. The two backends are independent resources (each Tree
// owns its own), so the two Gets carry no shared state and run as one
// errgroup rather than two sequential round trips.
func fetchChildrenConcurrently(ta *Tree, da digest.Digest, tb *Tree, db digest.Digest) (*Node, *Node, error) {
	var childA, childB *Node
	var g errgroup.Group
	g.Go(func() error {
		n, err := ta.fetchNode(da)
		if err != nil {
			return err
		}
		childA = n
		return nil
	})
	g.Go(func() error {
		n, err := tb.fetchNode(db)
		if err != nil {
			return err
		}
		childB = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return childA, childB, nil
}

// diffMixedLevels handles a path where one side's chunking produced a
// leaf while the other still has an internal node, by flattening the
// internal side down to its leaf entries and merge-walking as leaves.
func diffMixedLevels(ta *Tree, na *Node, tb *Tree, nb *Node, fn func(Change) bool) (bool, error) {
	var leafA, leafB *Node
	var err error
	if na.Leaf {
		leafA = na
	} else {
		leafA, err = flattenToLeaf(ta, na)
		if err != nil {
			return false, err
		}
	}
	if nb.Leaf {
		leafB = nb
	} else {
		leafB, err = flattenToLeaf(tb, nb)
		if err != nil {
			return false, err
		}
	}
	return diffLeaves(leafA, leafB, fn)
}

// flattenToLeaf materializes every (key, value) pair under n into a single
// synthetic leaf node, for comparison purposes only (never persisted).
func flattenToLeaf(t *Tree, n *Node) (*Node, error) {
	if n.Leaf {
		return n, nil
	}
	var all []Entry
	for _, e := range n.Entries {
		child, err := t.fetchNode(e.Child)
		if err != nil {
			return nil, err
		}
		flat, err := flattenToLeaf(t, child)
		if err != nil {
			return nil, err
		}
		all = append(all, flat.Entries...)
	}
	return &Node{Level: 0, Leaf: true, Entries: all}, nil
}

func emitSubtreeRemoved(t *Tree, n *Node, fn func(Change) bool) (bool, error) {
	flat, err := flattenToLeaf(t, n)
	if err != nil {
		return false, err
	}
	for _, e := range flat.Entries {
		if !fn(Change{Kind: Removed, Key: e.Key, OldValue: e.Value}) {
			return false, nil
		}
	}
	return true, nil
}

func emitSubtreeAdded(t *Tree, n *Node, fn func(Change) bool) (bool, error) {
	flat, err := flattenToLeaf(t, n)
	if err != nil {
		return false, err
	}
	for _, e := range flat.Entries {
		if !fn(Change{Kind: Added, Key: e.Key, NewValue: e.Value}) {
			return false, nil
		}
	}
	return true, nil
}

// DiffTracker accumulates Diff's stream into one Changes slice, with
// per-kind summary counts available from Summary, for callers that want
// the whole result set rather than a streaming callback.
type DiffTracker struct {
	Changes []Change
}

// NewDiffTracker returns an empty DiffTracker.
func NewDiffTracker() *DiffTracker {
	return &DiffTracker{}
}

// Record is passed as Diff's callback: DiffTracker's accumulate method.
func (dt *DiffTracker) Record(c Change) bool {
	dt.Changes = append(dt.Changes, c)
	return true
}

// DiffSummary reports aggregate counts over a DiffTracker's accumulated
// changes.
type DiffSummary struct {
	Added    int
	Removed  int
	Modified int
}

// Summary computes aggregate counts over the accumulated changes.
func (dt *DiffTracker) Summary() DiffSummary {
	var s DiffSummary
	for _, c := range dt.Changes {
		switch c.Kind {
		case Added:
			s.Added++
		case Removed:
			s.Removed++
		case Modified:
			s.Modified++
		}
	}
	return s
}
