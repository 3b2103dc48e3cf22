package tree

import "testing"

func TestConfigEqualDetectsDivergence(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if !a.Equal(b) {
		t.Fatalf("expected two default configs to be equal")
	}
	b.Seed++
	if a.Equal(b) {
		t.Fatalf("expected configs with different seeds to be unequal")
	}
}

func TestConfigMarshalUnmarshalRoundTrip(t *testing.T) {
	cfg := DefaultRollingConfig()
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalConfig(data)
	if err != nil {
		t.Fatalf("UnmarshalConfig: %v", err)
	}
	if !cfg.Equal(got) {
		t.Fatalf("round-tripped config differs: %+v vs %+v", cfg, got)
	}
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	data, err := cfg.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}
	got, err := LoadConfigYAML(data)
	if err != nil {
		t.Fatalf("LoadConfigYAML: %v", err)
	}
	if !cfg.Equal(got) {
		t.Fatalf("YAML round-tripped config differs: %+v vs %+v", cfg, got)
	}
}

func TestConfigValidateRejectsBadMaxEntriesRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = cfg.MinEntries - 1
	err := cfg.validate()
	kind, ok := KindOf(err)
	if !ok || kind != KindInvalidArgument {
		t.Fatalf("expected InvalidArgument for max_entries < min_entries, got %v", err)
	}
}

func TestConfigValidateRejectsBadChunkSizeRange(t *testing.T) {
	cfg := DefaultRollingConfig()
	cfg.MaxChunkSize = cfg.MinChunkSize - 1
	err := cfg.validate()
	kind, ok := KindOf(err)
	if !ok || kind != KindInvalidArgument {
		t.Fatalf("expected InvalidArgument for max_chunk_size < min_chunk_size, got %v", err)
	}
}

func TestConfigValidateRejectsUnknownChunker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunker = ChunkerKind("nonsense")
	err := cfg.validate()
	kind, ok := KindOf(err)
	if !ok || kind != KindInvalidArgument {
		t.Fatalf("expected InvalidArgument for unknown chunker, got %v", err)
	}
}

func TestConfigValidateRejectsWrongDigestWidth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DigestWidth = 16
	err := cfg.validate()
	kind, ok := KindOf(err)
	if !ok || kind != KindInvalidArgument {
		t.Fatalf("expected InvalidArgument for wrong digest_width, got %v", err)
	}
}
