package tree

import (
	"bytes"

	"github.com/prollytree/prollytree/pkg/digest"
)

// ProofStep is one node snapshot along a root-to-leaf path, in root-first
// order. It carries the node's canonical encoding verbatim so the
// verifier can recompute the node's own digest and check it against the
// reference its parent (the previous step) held.
type ProofStep struct {
	Encoded []byte
}

// Proof is a self-contained witness binding a (key, value-or-absence) pair
// to a root digest under a known Config. Proof verification never
// consults storage: every byte needed is embedded in the steps.
type Proof struct {
	Steps []ProofStep
}

// GenerateProof returns a Proof for key against root's current content.
// For keys that are not bound, the proof witnesses the leaf in which key
// would reside (search termination), which is sufficient for
// VerifyProof to confirm absence.
func (t *Tree) GenerateProof(key []byte) (*Proof, error) {
	const op = "GenerateProof"
	if len(key) == 0 {
		return nil, newErr(op, KindInvalidArgument, "empty key")
	}
	var steps []ProofStep
	n := t.root
	for {
		steps = append(steps, ProofStep{Encoded: encodeNode(n)})
		if n.Leaf {
			return &Proof{Steps: steps}, nil
		}
		if len(n.Entries) == 0 {
			return nil, newErr(op, KindInvariant, "internal node with zero entries")
		}
		idx := n.childIndexFor(key)
		child, err := t.fetchNode(n.Entries[idx].Child)
		if err != nil {
			return nil, err
		}
		n = child
	}
}

// VerifyProof checks that proof binds key to expectedValue (or to absence,
// if expectedValue is nil and expectedAbsent is true) under root, per cfg.
// It never touches storage: every digest comparison is recomputed from the
// bytes embedded in proof.
//
// VerifyProof first checks the root step's own digest against root, then
// walks the steps root-to-leaf, confirming that the digest computed for
// step i+1 appears as the child reference the parent step i follows
// toward key, and finally checks the leaf step's entry for key.
func VerifyProof(root digest.Digest, key []byte, expectedValue []byte, expectedAbsent bool, proof *Proof, cfg Config) bool {
	if len(proof.Steps) == 0 || len(key) == 0 {
		return false
	}
	// A proof is only meaningful relative to the Config that produced it:
	// cfg.DigestWidth claims the width every digest comparison below
	// assumes, and cfg.FormatVersion claims the encoding decodeNode
	// enforces. A caller-supplied cfg that disagrees with either does not
	// describe the bytes in proof, so verification must fail rather than
	// silently falling back to this package's own fixed constants.
	if cfg.DigestWidth != digest.Size || cfg.FormatVersion != FormatVersion {
		return false
	}

	nodes := make([]*Node, len(proof.Steps))
	for i, step := range proof.Steps {
		n, err := decodeNode(step.Encoded)
		if err != nil {
			return false
		}
		nodes[i] = n
	}

	// The root step must be literally the root.
	if digest.Sum(proof.Steps[0].Encoded) != root {
		return false
	}

	// Walk root-to-leaf, confirming each step is reached by following the
	// previous step's search path for key, and that the claimed child
	// digest equals the next step's own digest.
	for i := 0; i < len(nodes)-1; i++ {
		n := nodes[i]
		if n.Leaf {
			return false // a non-final step cannot be a leaf
		}
		if len(n.Entries) == 0 {
			return false
		}
		idx := n.childIndexFor(key)
		wantChild := n.Entries[idx].Child
		gotChild := digest.Sum(proof.Steps[i+1].Encoded)
		if wantChild != gotChild {
			return false
		}
	}

	leaf := nodes[len(nodes)-1]
	if !leaf.Leaf {
		return false
	}
	idx, ok := leaf.search(key)
	if expectedAbsent {
		if ok {
			return false
		}
		return true
	}
	if !ok {
		return false
	}
	return bytes.Equal(leaf.Entries[idx].Value, expectedValue)
}
