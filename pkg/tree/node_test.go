package tree

import "testing"

func leafWithKeys(keys ...string) *Node {
	entries := make([]Entry, len(keys))
	for i, k := range keys {
		entries[i] = Entry{Key: []byte(k), Value: []byte(k)}
	}
	return newLeaf(entries)
}

func TestSearchExactAndMissing(t *testing.T) {
	n := leafWithKeys("b", "d", "f")

	if idx, ok := n.search([]byte("d")); !ok || idx != 1 {
		t.Fatalf("expected exact match at 1, got idx=%d ok=%v", idx, ok)
	}
	if idx, ok := n.search([]byte("a")); ok || idx != 0 {
		t.Fatalf("expected insertion point 0 for key before all entries, got idx=%d ok=%v", idx, ok)
	}
	if idx, ok := n.search([]byte("z")); ok || idx != 3 {
		t.Fatalf("expected insertion point 3 for key after all entries, got idx=%d ok=%v", idx, ok)
	}
	if idx, ok := n.search([]byte("c")); ok || idx != 1 {
		t.Fatalf("expected insertion point 1 for key between entries, got idx=%d ok=%v", idx, ok)
	}
}

func TestChildIndexForBoundaries(t *testing.T) {
	n := newInternal(1, []Entry{
		{Key: []byte("b")},
		{Key: []byte("d")},
		{Key: []byte("f")},
	})

	if idx := n.childIndexFor([]byte("a")); idx != 0 {
		t.Fatalf("expected child 0 for key before first separator, got %d", idx)
	}
	if idx := n.childIndexFor([]byte("b")); idx != 0 {
		t.Fatalf("expected child 0 for key equal to first separator, got %d", idx)
	}
	if idx := n.childIndexFor([]byte("c")); idx != 0 {
		t.Fatalf("expected child 0 for key between separators 0 and 1, got %d", idx)
	}
	if idx := n.childIndexFor([]byte("d")); idx != 1 {
		t.Fatalf("expected child 1 for key equal to second separator, got %d", idx)
	}
	if idx := n.childIndexFor([]byte("z")); idx != 2 {
		t.Fatalf("expected last child for key after all separators, got %d", idx)
	}
}

func TestIsEmptyRoot(t *testing.T) {
	if !newLeaf(nil).isEmptyRoot() {
		t.Fatalf("expected empty leaf to report isEmptyRoot")
	}
	if leafWithKeys("a").isEmptyRoot() {
		t.Fatalf("expected non-empty leaf to not report isEmptyRoot")
	}
	if newInternal(1, []Entry{{Key: []byte("a")}}).isEmptyRoot() {
		t.Fatalf("expected internal node to never report isEmptyRoot")
	}
}

func TestFirstKey(t *testing.T) {
	if got := leafWithKeys("m", "n").firstKey(); string(got) != "m" {
		t.Fatalf("expected firstKey 'm', got %q", got)
	}
	if got := newLeaf(nil).firstKey(); got != nil {
		t.Fatalf("expected nil firstKey for empty node, got %q", got)
	}
}

func TestDigestCacheSetOnceAndNeverInvalidated(t *testing.T) {
	n := leafWithKeys("a")
	if n.flags.valid {
		t.Fatalf("expected a freshly constructed Node to start with no cached digest")
	}
	first := digestOf(n)
	if !n.flags.valid {
		t.Fatalf("expected flags.valid to be set after digestOf")
	}
	second := digestOf(n)
	if first != second {
		t.Fatalf("expected the same digest from a second call on the same, never-mutated Node")
	}
}
