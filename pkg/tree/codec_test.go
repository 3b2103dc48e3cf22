package tree

import (
	"bytes"
	"testing"

	"github.com/prollytree/prollytree/pkg/digest"
)

func TestEncodeDecodeLeafRoundTrip(t *testing.T) {
	n := newLeaf([]Entry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	})
	got, err := decodeNode(encodeNode(n))
	if err != nil {
		t.Fatalf("decodeNode: %v", err)
	}
	if !got.Leaf || got.Level != 0 || len(got.Entries) != 2 {
		t.Fatalf("unexpected decoded node: %+v", got)
	}
	for i, e := range got.Entries {
		if !bytes.Equal(e.Key, n.Entries[i].Key) || !bytes.Equal(e.Value, n.Entries[i].Value) {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, e, n.Entries[i])
		}
	}
}

func TestEncodeDecodeInternalRoundTrip(t *testing.T) {
	n := newInternal(1, []Entry{
		{Key: []byte("a"), Child: digest.Sum([]byte("childA"))},
		{Key: []byte("m"), Child: digest.Sum([]byte("childM"))},
	})
	got, err := decodeNode(encodeNode(n))
	if err != nil {
		t.Fatalf("decodeNode: %v", err)
	}
	if got.Leaf || got.Level != 1 || len(got.Entries) != 2 {
		t.Fatalf("unexpected decoded node: %+v", got)
	}
	for i, e := range got.Entries {
		if e.Child != n.Entries[i].Child {
			t.Fatalf("entry %d child mismatch: got %v want %v", i, e.Child, n.Entries[i].Child)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	n1 := newLeaf([]Entry{{Key: []byte("x"), Value: []byte("1")}})
	n2 := newLeaf([]Entry{{Key: []byte("x"), Value: []byte("1")}})
	if !bytes.Equal(encodeNode(n1), encodeNode(n2)) {
		t.Fatalf("expected identical encodings for identical logical content")
	}
	if digestOf(n1) != digestOf(n2) {
		t.Fatalf("expected identical digests for identical logical content")
	}
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	_, err := decodeNode([]byte{1, 2, 3})
	kind, ok := KindOf(err)
	if !ok || kind != KindCorrupted {
		t.Fatalf("expected KindCorrupted for truncated header, got %v", err)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	n := newLeaf([]Entry{{Key: []byte("x"), Value: []byte("1")}})
	encoded := encodeNode(n)
	encoded[0] ^= 0xFF
	_, err := decodeNode(encoded)
	kind, ok := KindOf(err)
	if !ok || kind != KindCorrupted {
		t.Fatalf("expected KindCorrupted for bad magic, got %v", err)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	n := newLeaf([]Entry{{Key: []byte("x"), Value: []byte("1")}})
	encoded := append(encodeNode(n), 0xFF)
	_, err := decodeNode(encoded)
	kind, ok := KindOf(err)
	if !ok || kind != KindCorrupted {
		t.Fatalf("expected KindCorrupted for trailing bytes, got %v", err)
	}
}

func TestDigestOfMemoizesAcrossRepeatedCalls(t *testing.T) {
	n := newLeaf([]Entry{{Key: []byte("x"), Value: []byte("1")}})
	d1 := digestOf(n)
	if !n.flags.valid {
		t.Fatalf("expected flags.valid to be set after the first digestOf call")
	}
	d2 := digestOf(n)
	if d1 != d2 {
		t.Fatalf("expected repeated digestOf calls on an unchanged Node to return the same digest")
	}
}
