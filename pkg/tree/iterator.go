package tree

import (
	"bytes"

	"github.com/prollytree/prollytree/pkg/digest"
)

// iterFrame tracks descent progress through one node during a stack-based
// depth-first traversal: which node, and which child/entry index to visit
// next.
type iterFrame struct {
	node *Node
	idx  int
}

// Cursor is a resumable, seekable forward/backward iterator over a tree's
// key space, built on a stack-based depth-first descent to the leaf level.
type Cursor struct {
	t     *Tree
	stack []iterFrame
	key   []byte
	value []byte
	valid bool
	err   error
}

// NewCursor returns a Cursor positioned before the first entry; call First
// or Seek to position it.
func (t *Tree) NewCursor() *Cursor {
	return &Cursor{t: t}
}

// First positions the cursor at the smallest key.
func (c *Cursor) First() bool {
	c.stack = c.stack[:0]
	c.pushLeftSpine(c.t.root)
	return c.advance()
}

// Last positions the cursor at the largest key.
func (c *Cursor) Last() bool {
	c.stack = c.stack[:0]
	c.pushRightSpine(c.t.root)
	return c.retreat()
}

// Seek positions the cursor at the smallest key >= target.
func (c *Cursor) Seek(target []byte) bool {
	c.stack = c.stack[:0]
	c.err = nil
	n := c.t.root
	for {
		if n.Leaf {
			idx, _ := n.search(target)
			c.stack = append(c.stack, iterFrame{node: n, idx: idx})
			return c.advance()
		}
		if len(n.Entries) == 0 {
			c.valid = false
			return false
		}
		idx := n.childIndexFor(target)
		c.stack = append(c.stack, iterFrame{node: n, idx: idx + 1})
		child, err := c.t.fetchNode(n.Entries[idx].Child)
		if err != nil {
			c.err = err
			c.valid = false
			return false
		}
		n = child
	}
}

// Next advances the cursor to the next key in ascending order.
func (c *Cursor) Next() bool {
	if !c.valid {
		return false
	}
	// After a backward step each frame's idx sits one before its current
	// position; move every frame one past it before stepping forward.
	if top := c.stack[len(c.stack)-1]; top.idx+1 >= 0 && top.idx+1 < len(top.node.Entries) && bytes.Equal(top.node.Entries[top.idx+1].Key, c.key) {
		for i := range c.stack {
			c.stack[i].idx += 2
		}
	}
	return c.advance()
}

// Prev moves the cursor to the previous key in ascending order.
func (c *Cursor) Prev() bool {
	if !c.valid {
		return false
	}
	// After a forward step each frame's idx sits one past its current
	// position; move every frame one before it before stepping backward.
	if top := c.stack[len(c.stack)-1]; top.idx-1 >= 0 && top.idx-1 < len(top.node.Entries) && bytes.Equal(top.node.Entries[top.idx-1].Key, c.key) {
		for i := range c.stack {
			c.stack[i].idx -= 2
		}
	}
	return c.retreat()
}

// Valid reports whether the cursor currently references an entry.
func (c *Cursor) Valid() bool { return c.valid }

// Key returns the current entry's key. Only valid when Valid() is true.
func (c *Cursor) Key() []byte { return c.key }

// Value returns the current entry's value. Only valid when Valid() is true.
func (c *Cursor) Value() []byte { return c.value }

// Err returns the first error encountered while iterating, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases any resources held by the cursor (currently none; present
// for interface symmetry with storage-backed cursors).
func (c *Cursor) Close() error { return nil }

func (c *Cursor) pushLeftSpine(n *Node) {
	for {
		if n.Leaf || len(n.Entries) == 0 {
			c.stack = append(c.stack, iterFrame{node: n, idx: 0})
			return
		}
		// Child 0 is descended into right here, so the frame resumes at 1.
		c.stack = append(c.stack, iterFrame{node: n, idx: 1})
		child, err := c.t.fetchNode(n.Entries[0].Child)
		if err != nil {
			c.err = err
			return
		}
		n = child
	}
}

func (c *Cursor) pushRightSpine(n *Node) {
	for {
		if n.Leaf || len(n.Entries) == 0 {
			c.stack = append(c.stack, iterFrame{node: n, idx: len(n.Entries) - 1})
			return
		}
		// The last child is descended into right here, so the frame resumes
		// one before it.
		c.stack = append(c.stack, iterFrame{node: n, idx: len(n.Entries) - 2})
		child, err := c.t.fetchNode(n.Entries[len(n.Entries)-1].Child)
		if err != nil {
			c.err = err
			return
		}
		n = child
	}
}

// advance walks the stack forward until it lands on the next leaf entry,
// or exhausts the tree.
func (c *Cursor) advance() bool {
	if c.err != nil {
		c.valid = false
		return false
	}
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		if top.node.Leaf {
			if top.idx >= len(top.node.Entries) {
				c.stack = c.stack[:len(c.stack)-1]
				continue
			}
			e := top.node.Entries[top.idx]
			top.idx++
			c.key, c.value = e.Key, e.Value
			c.valid = true
			return true
		}
		if top.idx >= len(top.node.Entries) {
			c.stack = c.stack[:len(c.stack)-1]
			continue
		}
		child, err := c.t.fetchNode(top.node.Entries[top.idx].Child)
		top.idx++
		if err != nil {
			c.err = err
			c.valid = false
			return false
		}
		c.stack = append(c.stack, iterFrame{node: child, idx: 0})
	}
	c.valid = false
	return false
}

// retreat walks the stack backward until it lands on the previous leaf
// entry, or exhausts the tree. It assumes the stack was primed via
// pushRightSpine, with each frame's idx pointing at the entry to emit.
func (c *Cursor) retreat() bool {
	if c.err != nil {
		c.valid = false
		return false
	}
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		if top.node.Leaf {
			if top.idx < 0 {
				c.stack = c.stack[:len(c.stack)-1]
				continue
			}
			e := top.node.Entries[top.idx]
			top.idx--
			c.key, c.value = e.Key, e.Value
			c.valid = true
			return true
		}
		if top.idx < 0 {
			c.stack = c.stack[:len(c.stack)-1]
			continue
		}
		childDigest := top.node.Entries[top.idx].Child
		top.idx--
		child, err := c.t.fetchNode(childDigest)
		if err != nil {
			c.err = err
			c.valid = false
			return false
		}
		c.pushRightSpine(child)
	}
	c.valid = false
	return false
}

// Traverse visits every (key, value) pair in strictly increasing
// byte-lexicographic order, stopping early if fn returns false.
func (t *Tree) Traverse(fn func(key, value []byte) bool) error {
	c := t.NewCursor()
	for ok := c.First(); ok; ok = c.Next() {
		if !fn(c.Key(), c.Value()) {
			break
		}
	}
	return c.Err()
}

// Range visits every (key, value) pair with start <= key < end, in
// ascending order. A nil end means "no upper bound"; a nil start means
// "from the smallest key".
func (t *Tree) Range(start, end []byte, fn func(key, value []byte) bool) error {
	c := t.NewCursor()
	var ok bool
	if start == nil {
		ok = c.First()
	} else {
		ok = c.Seek(start)
	}
	for ; ok; ok = c.Next() {
		if end != nil && bytes.Compare(c.Key(), end) >= 0 {
			break
		}
		if !fn(c.Key(), c.Value()) {
			break
		}
	}
	return c.Err()
}

// Snapshot is a read-only handle pinned to the root digest observed at
// Snapshot() call time. Because nodes are immutable and content-addressed,
// a Snapshot remains valid and consistent even as the originating Tree
// continues to mutate.
type Snapshot struct {
	t    *Tree
	root *Node
}

// Snapshot captures the tree's current root for later read-only use.
func (t *Tree) Snapshot() *Snapshot {
	return &Snapshot{t: t, root: t.root}
}

// RootDigest returns the digest the snapshot is pinned to.
func (s *Snapshot) RootDigest() digest.Digest {
	return digestOf(s.root)
}

// Get reads key against the pinned root, independent of subsequent
// mutation on the originating Tree handle.
func (s *Snapshot) Get(key []byte) ([]byte, error) {
	const op = "Snapshot.Get"
	if len(key) == 0 {
		return nil, newErr(op, KindInvalidArgument, "empty key")
	}
	n := s.root
	for {
		if n.Leaf {
			idx, ok := n.search(key)
			if !ok {
				return nil, newErr(op, KindNotFound, "key not bound")
			}
			return cloneBytes(n.Entries[idx].Value), nil
		}
		if len(n.Entries) == 0 {
			return nil, newErr(op, KindNotFound, "key not bound")
		}
		idx := n.childIndexFor(key)
		child, err := s.t.fetchNode(n.Entries[idx].Child)
		if err != nil {
			return nil, err
		}
		n = child
	}
}
