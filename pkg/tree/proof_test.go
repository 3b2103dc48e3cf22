package tree

import "testing"

func TestProofOfPresence(t *testing.T) {
	tr := newTestTree(t, DefaultConfig())
	if err := tr.Insert([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert([]byte("k2"), []byte("v2")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	proof, err := tr.GenerateProof([]byte("k1"))
	if err != nil {
		t.Fatalf("GenerateProof: %v", err)
	}
	root := tr.RootDigest()
	if !VerifyProof(root, []byte("k1"), []byte("v1"), false, proof, tr.cfg) {
		t.Fatalf("expected proof to verify against the correct value")
	}
	if VerifyProof(root, []byte("k1"), []byte("v2"), false, proof, tr.cfg) {
		t.Fatalf("expected proof to fail against a wrong value")
	}
}

func TestProofOfAbsence(t *testing.T) {
	tr := newTestTree(t, DefaultConfig())
	if err := tr.Insert([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert([]byte("k2"), []byte("v2")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	proof, err := tr.GenerateProof([]byte("k3"))
	if err != nil {
		t.Fatalf("GenerateProof: %v", err)
	}
	root := tr.RootDigest()
	if !VerifyProof(root, []byte("k3"), nil, true, proof, tr.cfg) {
		t.Fatalf("expected proof to verify absence")
	}
	if VerifyProof(root, []byte("k3"), []byte("anything"), false, proof, tr.cfg) {
		t.Fatalf("expected proof to fail verification against a non-empty claimed value")
	}
}

func TestProofTamperingDetected(t *testing.T) {
	tr := newTestTree(t, DefaultConfig())
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		if err := tr.Insert([]byte(k), []byte("val-"+k)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	proof, err := tr.GenerateProof([]byte("d"))
	if err != nil {
		t.Fatalf("GenerateProof: %v", err)
	}
	root := tr.RootDigest()
	if !VerifyProof(root, []byte("d"), []byte("val-d"), false, proof, tr.cfg) {
		t.Fatalf("expected untampered proof to verify")
	}

	tampered := &Proof{Steps: make([]ProofStep, len(proof.Steps))}
	for i, s := range proof.Steps {
		cp := make([]byte, len(s.Encoded))
		copy(cp, s.Encoded)
		tampered.Steps[i] = ProofStep{Encoded: cp}
	}
	last := tampered.Steps[len(tampered.Steps)-1].Encoded
	last[len(last)-1] ^= 0xFF
	if VerifyProof(root, []byte("d"), []byte("val-d"), false, tampered, tr.cfg) {
		t.Fatalf("expected tampered proof to fail verification")
	}
}

func TestVerifyProofRejectsMismatchedConfig(t *testing.T) {
	tr := newTestTree(t, DefaultConfig())
	if err := tr.Insert([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	proof, err := tr.GenerateProof([]byte("k1"))
	if err != nil {
		t.Fatalf("GenerateProof: %v", err)
	}
	root := tr.RootDigest()

	badWidth := tr.cfg
	badWidth.DigestWidth = 16
	if VerifyProof(root, []byte("k1"), []byte("v1"), false, proof, badWidth) {
		t.Fatalf("expected verification to fail for a cfg claiming the wrong digest width")
	}

	badVersion := tr.cfg
	badVersion.FormatVersion = tr.cfg.FormatVersion + 1
	if VerifyProof(root, []byte("k1"), []byte("v1"), false, proof, badVersion) {
		t.Fatalf("expected verification to fail for a cfg claiming the wrong format version")
	}
}

func TestVerifyProofNeverTouchesStorage(t *testing.T) {
	tr := newTestTree(t, DefaultConfig())
	if err := tr.Insert([]byte("only"), []byte("v")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	proof, err := tr.GenerateProof([]byte("only"))
	if err != nil {
		t.Fatalf("GenerateProof: %v", err)
	}
	root := tr.RootDigest()
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !VerifyProof(root, []byte("only"), []byte("v"), false, proof, tr.cfg) {
		t.Fatalf("expected verification to succeed after the backend is closed")
	}
}
