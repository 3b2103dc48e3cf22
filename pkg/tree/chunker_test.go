package tree

import "testing"

func TestChunkMaxEntriesRespectsBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinEntries = 2
	cfg.MaxEntries = 3
	cfg.PatternMask = 0
	cfg.PatternValue = 1 // unreachable, isolates max_entries behavior

	entries := make([]Entry, 10)
	for i := range entries {
		entries[i] = Entry{Key: []byte{byte(i)}, Value: []byte{byte(i)}}
	}
	groups := chunk(entries, true, cfg)
	total := 0
	for _, g := range groups {
		if len(g) > cfg.MaxEntries {
			t.Fatalf("group exceeds max_entries: %d", len(g))
		}
		total += len(g)
	}
	if total != len(entries) {
		t.Fatalf("expected all entries accounted for, got %d of %d", total, len(entries))
	}
}

func TestChunkIsPureFunctionOfContent(t *testing.T) {
	cfg := DefaultConfig()
	entries := []Entry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}
	g1 := chunk(entries, true, cfg)
	g2 := chunk(entries, true, cfg)
	if len(g1) != len(g2) {
		t.Fatalf("expected identical chunking for identical input, got %d vs %d groups", len(g1), len(g2))
	}
	for i := range g1 {
		if len(g1[i]) != len(g2[i]) {
			t.Fatalf("group %d differs in length between runs", i)
		}
	}
}

func TestChunkEmptyInput(t *testing.T) {
	if got := chunk(nil, true, DefaultConfig()); got != nil {
		t.Fatalf("expected nil groups for empty input, got %v", got)
	}
}

func TestChunkRollingHashRespectsMaxChunkSize(t *testing.T) {
	cfg := DefaultRollingConfig()
	cfg.MaxChunkSize = 5
	entries := make([]Entry, 30)
	for i := range entries {
		entries[i] = Entry{Key: []byte{byte(i)}, Value: []byte{byte(i * 7)}}
	}
	groups := chunk(entries, true, cfg)
	for _, g := range groups {
		if len(g) > cfg.MaxChunkSize {
			t.Fatalf("group exceeds max_chunk_size: %d", len(g))
		}
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	e := Entry{Key: []byte("k"), Value: []byte("v")}
	a := fingerprint(42, e, true)
	b := fingerprint(42, e, true)
	if a != b {
		t.Fatalf("expected deterministic fingerprint")
	}
	c := fingerprint(43, e, true)
	if a == c {
		t.Fatalf("expected different seeds to (almost certainly) produce different fingerprints")
	}
}
