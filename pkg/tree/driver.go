// Package tree implements the prolly tree driver: an ordered,
// content-addressed key-value index whose shape is a deterministic
// function of its contents under a fixed chunking policy, combining
// B-tree fan-out with Merkle verifiability.
package tree

import (
	"bytes"

	"github.com/prollytree/prollytree/pkg/digest"
	"github.com/prollytree/prollytree/pkg/log"
	"github.com/prollytree/prollytree/pkg/metrics"
	"github.com/prollytree/prollytree/pkg/storage"
)

const configKeyTreeConfig = "tree_config"
const configKeyRoot = "root"

// Stats is a point-in-time snapshot of a tree handle's counters, the way
// the object this package is modeled after exposes its own mutation
// counters for diagnostics.
type Stats struct {
	KeyCount    int64
	Depth       uint32
	InsertCount int64
	UpdateCount int64
	DeleteCount int64
	GetCount    int64
	SplitCount  int64
	BackendGets int64
	BackendPuts int64
}

// Tree is a handle onto a prolly tree: the current root node, the backend
// it is persisted against, and the Config fixed at creation time. A Tree
// is not safe for concurrent mutation: a handle owns its root exclusively,
// and concurrent calls that mutate the same handle are not synchronized.
type Tree struct {
	backend storage.Backend
	cfg     Config
	root    *Node
	logger  *log.Logger
	metrics *metrics.TreeMetrics

	keyCount    int64
	insertCount int64
	updateCount int64
	deleteCount int64
	getCount    int64
	splitCount  int64
	backendGets int64
	backendPuts int64

	poisoned error
}

// Option configures optional dependencies on a Tree.
type Option func(*Tree)

// WithLogger attaches a structured logger. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Tree) { t.logger = l }
}

// WithMetrics attaches a TreeMetrics instance, e.g. one obtained from a
// shared metrics.Registry via Registry.Tree(name). Defaults to a private,
// unregistered TreeMetrics.
func WithMetrics(m *metrics.TreeMetrics) Option {
	return func(t *Tree) { t.metrics = m }
}

func newTree(backend storage.Backend, cfg Config, opts ...Option) *Tree {
	t := &Tree{
		backend: backend,
		cfg:     cfg,
		logger:  log.Nop(),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create initializes a new, empty tree against backend under cfg, and
// persists cfg to the backend's config side-channel. It is an error to
// Create against a backend that already holds a persisted tree_config.
func Create(backend storage.Backend, cfg Config, opts ...Option) (*Tree, error) {
	const op = "Create"
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, err := backend.GetConfig(configKeyTreeConfig); err == nil {
		return nil, newErr(op, KindInvalidArgument, "backend already holds a tree_config; use Open")
	}

	t := newTree(backend, cfg, opts...)
	empty := newLeaf(nil)
	if _, err := t.persistNode(empty); err != nil {
		return nil, wrapErr(op, KindIO, "persisting empty root", err)
	}
	t.root = empty

	encoded, err := cfg.Marshal()
	if err != nil {
		return nil, wrapErr(op, KindInvalidArgument, "marshaling config", err)
	}
	if err := backend.PutConfig(configKeyTreeConfig, encoded); err != nil {
		return nil, wrapErr(op, KindIO, "persisting config", err)
	}
	if err := t.persistRootPointer(); err != nil {
		return nil, err
	}
	t.logger.Info("tree created", "digest", t.RootDigest().String())
	return t, nil
}

// Open loads an existing tree from backend. It refuses to open if the
// persisted Config does not match cfg byte-for-byte (spec's resolved open
// question: mismatched Config is a hard error, not silently accepted).
func Open(backend storage.Backend, cfg Config, opts ...Option) (*Tree, error) {
	const op = "Open"
	persisted, err := backend.GetConfig(configKeyTreeConfig)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, newErr(op, KindNotFound, "no tree_config in backend")
		}
		return nil, wrapErr(op, KindIO, "reading config", err)
	}
	persistedCfg, err := UnmarshalConfig(persisted)
	if err != nil {
		return nil, wrapErr(op, KindCorrupted, "parsing persisted config", err)
	}
	if !persistedCfg.Equal(cfg) {
		return nil, newErr(op, KindInvalidArgument, "runtime Config does not match persisted Config")
	}

	rootHex, err := backend.GetConfig(configKeyRoot)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, newErr(op, KindNotFound, "no root pointer in backend")
		}
		return nil, wrapErr(op, KindIO, "reading root pointer", err)
	}
	rootDigest, ok := digest.FromBytes(rootHex)
	if !ok {
		return nil, newErr(op, KindCorrupted, "malformed root pointer")
	}

	t := newTree(backend, persistedCfg, opts...)
	root, err := t.fetchNode(rootDigest)
	if err != nil {
		return nil, err
	}
	t.root = root
	t.keyCount = t.countKeys(root)
	t.logger.Info("tree opened", "digest", rootDigest.String())
	return t, nil
}

// Close releases the underlying backend resources.
func (t *Tree) Close() error {
	return t.backend.Close()
}

// RootDigest returns the current root's content-addressed digest.
func (t *Tree) RootDigest() digest.Digest {
	return digestOf(t.root)
}

// Size returns the number of keys currently bound in the tree.
func (t *Tree) Size() int64 {
	return t.keyCount
}

// Depth returns the level of the current root (0 for an empty or
// single-leaf tree).
func (t *Tree) Depth() uint32 {
	return t.root.Level
}

// Config returns the tree's fixed configuration.
func (t *Tree) Config() Config {
	return t.cfg
}

// Stats returns a point-in-time snapshot of mutation and access counters.
func (t *Tree) Stats() Stats {
	return Stats{
		KeyCount:    t.keyCount,
		Depth:       t.root.Level,
		InsertCount: t.insertCount,
		UpdateCount: t.updateCount,
		DeleteCount: t.deleteCount,
		GetCount:    t.getCount,
		SplitCount:  t.splitCount,
		BackendGets: t.backendGets,
		BackendPuts: t.backendPuts,
	}
}

func (t *Tree) checkHealthy(op string) error {
	if t.poisoned != nil {
		return newErr(op, KindInvariant, "tree handle poisoned by a prior invariant violation")
	}
	return nil
}

func (t *Tree) poison(err error) error {
	t.poisoned = err
	t.logger.ErrorErr("tree handle poisoned", err)
	return err
}

// Get returns the value bound to key, or an *Error with Kind=KindNotFound
// (errors.Is(err, ErrNotFound) holds) if key is not bound.
func (t *Tree) Get(key []byte) ([]byte, error) {
	const op = "Get"
	if err := t.checkHealthy(op); err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, newErr(op, KindInvalidArgument, "empty key")
	}
	t.getCount++
	t.metrics.IncGet()

	n := t.root
	for {
		if n.Leaf {
			idx, ok := n.search(key)
			if !ok {
				return nil, newErr(op, KindNotFound, "key not bound")
			}
			v := n.Entries[idx].Value
			cp := make([]byte, len(v))
			copy(cp, v)
			return cp, nil
		}
		if len(n.Entries) == 0 {
			return nil, newErr(op, KindNotFound, "key not bound")
		}
		idx := n.childIndexFor(key)
		child, err := t.fetchNode(n.Entries[idx].Child)
		if err != nil {
			return nil, err
		}
		n = child
	}
}

type mutationKind int

const (
	mutationInsert mutationKind = iota
	mutationDelete
)

// Insert binds key to value, overwriting any existing binding. Insert is
// idempotent when value equals the existing binding: the resulting root
// digest is unchanged.
func (t *Tree) Insert(key, value []byte) error {
	const op = "Insert"
	if err := t.checkHealthy(op); err != nil {
		return err
	}
	if len(key) == 0 {
		return newErr(op, KindInvalidArgument, "empty key")
	}
	changed, err := t.mutate(op, key, value, mutationInsert)
	if err != nil {
		return err
	}
	if changed {
		t.insertCount++
		t.metrics.IncInsert()
		t.metrics.SetKeyCount(t.keyCount)
	}
	return nil
}

// Update rebinds an existing key to a new value. It behaves identically to
// Insert (both are total functions over the key space; this package does
// not distinguish "must already exist" semantics at this layer).
func (t *Tree) Update(key, value []byte) error {
	const op = "Update"
	if err := t.checkHealthy(op); err != nil {
		return err
	}
	if len(key) == 0 {
		return newErr(op, KindInvalidArgument, "empty key")
	}
	changed, err := t.mutate(op, key, value, mutationInsert)
	if err != nil {
		return err
	}
	if changed {
		t.updateCount++
		t.metrics.IncUpdate()
		t.metrics.SetKeyCount(t.keyCount)
	}
	return nil
}

// Delete removes key's binding, if present. Deleting an unbound key is a
// no-op (root digest unchanged).
func (t *Tree) Delete(key []byte) error {
	const op = "Delete"
	if err := t.checkHealthy(op); err != nil {
		return err
	}
	if len(key) == 0 {
		return newErr(op, KindInvalidArgument, "empty key")
	}
	changed, err := t.mutate(op, key, nil, mutationDelete)
	if err != nil {
		return err
	}
	if changed {
		t.deleteCount++
		t.metrics.IncDelete()
		t.metrics.SetKeyCount(t.keyCount)
	}
	return nil
}

// BatchOp is one operation within InsertBatch/DeleteBatch.
type BatchOp struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// BatchError reports the index of the first operation that failed within a
// batch and its Kind. Operations before Index were applied; Index and
// everything after it were not (prefix-atomic semantics).
type BatchError struct {
	Index int
	Kind  Kind
	Err   error
}

func (e *BatchError) Error() string {
	return e.Err.Error()
}

func (e *BatchError) Unwrap() error { return e.Err }

// InsertBatch applies a sequence of insert/delete operations as if applied
// sequentially. On the first failing operation, it stops and returns a
// *BatchError identifying it; no operation at or after that index is
// applied.
func (t *Tree) InsertBatch(ops []BatchOp) error {
	const op = "InsertBatch"
	if err := t.checkHealthy(op); err != nil {
		return err
	}
	for i, o := range ops {
		var err error
		if o.Delete {
			err = t.Delete(o.Key)
		} else {
			err = t.Insert(o.Key, o.Value)
		}
		if err != nil {
			kind, _ := KindOf(err)
			return &BatchError{Index: i, Kind: kind, Err: err}
		}
	}
	return nil
}

// DeleteBatch removes a set of keys as if by sequential Delete calls, with
// the same prefix-atomic failure semantics as InsertBatch.
func (t *Tree) DeleteBatch(keys [][]byte) error {
	ops := make([]BatchOp, len(keys))
	for i, k := range keys {
		ops[i] = BatchOp{Key: k, Delete: true}
	}
	return t.InsertBatch(ops)
}

// mutate performs the descend/rebuild/propagate algorithm described in the
// tree driver's contract. It returns whether the key set or its bound
// value actually changed (false for a same-value Insert or a Delete of an
// unbound key).
func (t *Tree) mutate(op string, key, value []byte, kind mutationKind) (bool, error) {
	before := t.RootDigest()
	newTopEntries, err := t.mutateNode(t.root, key, value, kind)
	if err != nil {
		return false, err
	}

	newRoot, err := t.settleRoot(newTopEntries, t.root.Level)
	if err != nil {
		return false, err
	}
	t.root = newRoot
	if err := t.persistRootPointer(); err != nil {
		return false, err
	}
	return t.RootDigest() != before, nil
}

// settleRoot implements step 5 of the mutation contract: wrap multiple
// top-level siblings in a new, higher-level root, or collapse a
// single-child internal root down to its child, repeating until stable.
func (t *Tree) settleRoot(entries []Entry, level uint32) (*Node, error) {
	for {
		switch len(entries) {
		case 0:
			return newLeaf(nil), nil
		case 1:
			child, err := t.fetchNode(entries[0].Child)
			if err != nil {
				return nil, err
			}
			if child.Leaf || len(child.Entries) != 1 {
				return child, nil
			}
			// Root is internal with exactly one entry: keep collapsing.
			entries = child.Entries
			level = child.Level
			continue
		default:
			t.splitCount++
			t.metrics.IncSplit()
			level++
			wrapped, err := t.rebuild(level, false, entries)
			if err != nil {
				return nil, err
			}
			entries = wrapped
		}
	}
}

// mutateNode descends to the leaf containing key, applies the mutation,
// and rebuilds each level on the way back up. It returns the entries that
// should appear in n's parent (or, for the root call, the entries settled
// by settleRoot).
func (t *Tree) mutateNode(n *Node, key, value []byte, kind mutationKind) ([]Entry, error) {
	if n.Leaf {
		newEntries, delta := applyLeafMutation(n.Entries, key, value, kind)
		t.keyCount += int64(delta)
		return t.rebuild(0, true, newEntries)
	}

	if len(n.Entries) == 0 {
		return nil, t.poison(newErr("mutate", KindInvariant, "internal node with zero entries"))
	}
	idx := n.childIndexFor(key)
	child, err := t.fetchNode(n.Entries[idx].Child)
	if err != nil {
		return nil, err
	}
	newChildEntries, err := t.mutateNode(child, key, value, kind)
	if err != nil {
		return nil, err
	}

	combined := make([]Entry, 0, len(n.Entries)-1+len(newChildEntries))
	combined = append(combined, n.Entries[:idx]...)
	combined = append(combined, newChildEntries...)
	combined = append(combined, n.Entries[idx+1:]...)
	return t.rebuild(n.Level, false, combined)
}

// applyLeafMutation returns a new entries slice reflecting the mutation,
// and the signed change in key count (+1 insert-of-new-key, -1
// delete-of-existing-key, 0 otherwise).
func applyLeafMutation(entries []Entry, key, value []byte, kind mutationKind) ([]Entry, int) {
	idx, exact := searchEntries(entries, key)
	switch kind {
	case mutationDelete:
		if !exact {
			return entries, 0
		}
		out := make([]Entry, 0, len(entries)-1)
		out = append(out, entries[:idx]...)
		out = append(out, entries[idx+1:]...)
		return out, -1
	default: // mutationInsert (covers both Insert and Update)
		if exact {
			if bytes.Equal(entries[idx].Value, value) {
				return entries, 0
			}
			out := make([]Entry, len(entries))
			copy(out, entries)
			out[idx] = Entry{Key: cloneBytes(key), Value: cloneBytes(value)}
			return out, 0
		}
		out := make([]Entry, 0, len(entries)+1)
		out = append(out, entries[:idx]...)
		out = append(out, Entry{Key: cloneBytes(key), Value: cloneBytes(value)})
		out = append(out, entries[idx:]...)
		return out, 1
	}
}

func searchEntries(entries []Entry, target []byte) (int, bool) {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(entries[mid].Key, target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(entries) && bytes.Equal(entries[lo].Key, target) {
		return lo, true
	}
	return lo, false
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

// rebuild runs the chunker over entries and persists one node per
// resulting group, returning the (separator_key, child_digest) entries
// that reference them for inclusion in the next level up.
func (t *Tree) rebuild(level uint32, leaf bool, entries []Entry) ([]Entry, error) {
	groups := chunk(entries, leaf, t.cfg)
	parentEntries := make([]Entry, 0, len(groups))
	for _, g := range groups {
		var node *Node
		if leaf {
			node = newLeaf(g)
		} else {
			node = newInternal(level, g)
		}
		d, err := t.persistNode(node)
		if err != nil {
			return nil, err
		}
		parentEntries = append(parentEntries, Entry{Key: cloneBytes(g[0].Key), Child: d})
	}
	return parentEntries, nil
}

func (t *Tree) persistNode(n *Node) (digest.Digest, error) {
	d := digestOf(n)
	if err := t.backend.Put(d.String(), encodeNode(n)); err != nil {
		return digest.Zero, wrapErr("persistNode", KindIO, "backend put", err)
	}
	t.backendPuts++
	t.metrics.IncBackendPut()
	return d, nil
}

func (t *Tree) fetchNode(d digest.Digest) (*Node, error) {
	data, err := t.backend.Get(d.String())
	if err != nil {
		if err == storage.ErrNotFound {
			notFound := newErr("fetchNode", KindCorrupted, "referenced child digest not found in storage")
			t.logger.WarnErr("child digest missing from storage", notFound, "digest", d.String())
			return nil, notFound
		}
		ioErr := wrapErr("fetchNode", KindIO, "backend get", err)
		t.logger.WarnErr("backend get failed", ioErr, "digest", d.String())
		return nil, ioErr
	}
	t.backendGets++
	t.metrics.IncBackendGet()
	n, err := decodeNode(data)
	if err != nil {
		return nil, err
	}
	if digestOf(n) != d {
		mismatch := newErr("fetchNode", KindCorrupted, "stored bytes do not hash to the requested digest")
		t.logger.WarnErr("digest mismatch on fetch", mismatch, "digest", d.String())
		return nil, mismatch
	}
	return n, nil
}

func (t *Tree) persistRootPointer() error {
	d := t.RootDigest()
	if err := t.backend.PutConfig(configKeyRoot, d.Bytes()); err != nil {
		return wrapErr("persistRootPointer", KindIO, "backend put_config", err)
	}
	return nil
}

func (t *Tree) countKeys(n *Node) int64 {
	if n.Leaf {
		return int64(len(n.Entries))
	}
	var total int64
	for _, e := range n.Entries {
		child, err := t.fetchNode(e.Child)
		if err != nil {
			continue
		}
		total += t.countKeys(child)
	}
	return total
}
