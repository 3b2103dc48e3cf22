package tree

import (
	"encoding/binary"
	"fmt"

	"github.com/prollytree/prollytree/pkg/digest"
)

// nodeMagic identifies the start of a canonically encoded node.
var nodeMagic = [4]byte{'p', 'l', 'y', '1'}

const nodeHeaderSize = 4 + 1 + 1 + 4 + 4 // magic + format version + leaf flag + level + entry count

// encodeNode produces the canonical, deterministic byte encoding of n. Two
// nodes with identical logical content (same Leaf/Level/Entries) always
// produce byte-identical output; this is the contract the node's digest is
// computed over.
func encodeNode(n *Node) []byte {
	buf := make([]byte, 0, nodeHeaderSize+64)
	buf = append(buf, nodeMagic[:]...)
	buf = append(buf, FormatVersion)
	if n.Leaf {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUint32(buf, n.Level)
	buf = appendUint32(buf, uint32(len(n.Entries)))

	for _, e := range n.Entries {
		buf = appendLenPrefixed(buf, e.Key)
		if n.Leaf {
			buf = appendLenPrefixed(buf, e.Value)
		} else {
			buf = append(buf, e.Child[:]...)
		}
	}
	return buf
}

// decodeNode parses bytes previously produced by encodeNode. It returns a
// *Error with Kind=KindCorrupted on any malformed input.
func decodeNode(data []byte) (*Node, error) {
	const op = "decodeNode"
	if len(data) < nodeHeaderSize {
		return nil, newErr(op, KindCorrupted, "truncated node header")
	}
	if data[0] != nodeMagic[0] || data[1] != nodeMagic[1] || data[2] != nodeMagic[2] || data[3] != nodeMagic[3] {
		return nil, newErr(op, KindCorrupted, "bad magic")
	}
	formatVersion := data[4]
	if formatVersion != FormatVersion {
		return nil, newErr(op, KindCorrupted, fmt.Sprintf("unsupported format version %d", formatVersion))
	}
	leaf := data[5] == 1
	level := binary.BigEndian.Uint32(data[6:10])
	count := binary.BigEndian.Uint32(data[10:14])

	pos := nodeHeaderSize
	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		key, next, err := readLenPrefixed(data, pos)
		if err != nil {
			return nil, newErr(op, KindCorrupted, "truncated key")
		}
		pos = next

		var e Entry
		e.Key = key
		if leaf {
			val, next, err := readLenPrefixed(data, pos)
			if err != nil {
				return nil, newErr(op, KindCorrupted, "truncated value")
			}
			pos = next
			e.Value = val
		} else {
			if pos+digest.Size > len(data) {
				return nil, newErr(op, KindCorrupted, "truncated child digest")
			}
			d, ok := digest.FromBytes(data[pos : pos+digest.Size])
			if !ok {
				return nil, newErr(op, KindCorrupted, "malformed child digest")
			}
			e.Child = d
			pos += digest.Size
		}
		entries = append(entries, e)
	}
	if pos != len(data) {
		return nil, newErr(op, KindCorrupted, "trailing bytes after last entry")
	}
	return &Node{Level: level, Leaf: leaf, Entries: entries}, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendLenPrefixed(buf []byte, b []byte) []byte {
	buf = appendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func readLenPrefixed(data []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, 0, fmt.Errorf("truncated length prefix")
	}
	n := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	if pos+int(n) > len(data) {
		return nil, 0, fmt.Errorf("truncated payload")
	}
	out := make([]byte, n)
	copy(out, data[pos:pos+int(n)])
	return out, pos + int(n), nil
}

// digestOf computes the content-addressed digest of n's canonical
// encoding, memoizing the result on n for the remainder of n's lifetime
// (n is never mutated in place after construction).
func digestOf(n *Node) digest.Digest {
	if n.flags.valid {
		return n.flags.hash
	}
	d := digest.Sum(encodeNode(n))
	n.flags.hash = d
	n.flags.valid = true
	return d
}
