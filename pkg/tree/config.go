package tree

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v2"
)

// ChunkerKind selects one of the two interchangeable chunking policies.
// The chosen policy is part of Config and therefore influences every root
// digest built under it.
type ChunkerKind string

const (
	// ChunkerMaxEntries is Policy A: max-entries with hash gating.
	ChunkerMaxEntries ChunkerKind = "max_entries"
	// ChunkerRollingHash is Policy B: a rolling hash over the serialized
	// entry stream, content-defined chunking analogous to rsync/Rabin.
	ChunkerRollingHash ChunkerKind = "rolling_hash"
)

// FormatVersion is the current node serialization format version written
// into every node header.
const FormatVersion uint8 = 1

// Config holds the chunker policy and digest parameters that are fixed for
// the lifetime of a tree. It is persisted once at tree creation under the
// storage backend's put_config("tree_config", ...) slot and an Open that
// finds a mismatching Config is refused (see Open).
type Config struct {
	// DigestWidth is the width, in bytes, of node digests. Fixed at 32
	// (pkg/digest.Size) for this implementation; carried explicitly in
	// Config so the persisted blob is self-describing.
	DigestWidth int `json:"digest_width" yaml:"digest_width"`
	// FormatVersion pins the node serialization format.
	FormatVersion uint8 `json:"format_version" yaml:"format_version"`
	// Chunker selects the active policy.
	Chunker ChunkerKind `json:"chunker" yaml:"chunker"`
	// Seed keys the fast fingerprint hash used for chunk-boundary
	// decisions under both policies. Two Configs with different Seed
	// values produce different tree shapes for the same key set.
	Seed uint64 `json:"seed" yaml:"seed"`

	// MaxEntries parameters (Policy A).
	MinEntries    int    `json:"min_entries,omitempty" yaml:"min_entries,omitempty"`
	MaxEntries    int    `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	PatternMask   uint32 `json:"pattern_mask,omitempty" yaml:"pattern_mask,omitempty"`
	PatternValue  uint32 `json:"pattern_value,omitempty" yaml:"pattern_value,omitempty"`

	// Rolling hash parameters (Policy B).
	RollingBase    uint64 `json:"rolling_base,omitempty" yaml:"rolling_base,omitempty"`
	RollingModulus uint64 `json:"rolling_modulus,omitempty" yaml:"rolling_modulus,omitempty"`
	MinChunkSize   int    `json:"min_chunk_size,omitempty" yaml:"min_chunk_size,omitempty"`
	MaxChunkSize   int    `json:"max_chunk_size,omitempty" yaml:"max_chunk_size,omitempty"`
	RollingPattern uint64 `json:"rolling_pattern,omitempty" yaml:"rolling_pattern,omitempty"`
	// RollingValue is the target value the rolling hash, ANDed with
	// RollingPattern, must equal for a boundary to fire (mirroring
	// PatternValue in Policy A). Defaults to 0 in DefaultRollingConfig, but
	// is an explicit Config field rather than an implicit literal so two
	// trees can be configured to chunk identically without also being
	// forced to target zero.
	RollingValue uint64 `json:"rolling_value,omitempty" yaml:"rolling_value,omitempty"`
}

// DefaultConfig returns Policy A with conservative fan-out, a reasonable
// default for small-to-medium trees and for tests.
func DefaultConfig() Config {
	return Config{
		DigestWidth:   32,
		FormatVersion: FormatVersion,
		Chunker:       ChunkerMaxEntries,
		Seed:          0x9e3779b97f4a7c15, // golden-ratio constant, an arbitrary but fixed default seed
		MinEntries:    4,
		MaxEntries:    16,
		PatternMask:   0x0f, // ~1-in-16 boundary probability at MinEntries..MaxEntries
		PatternValue:  0x00,
	}
}

// DefaultRollingConfig returns Policy B with typical content-defined
// chunking parameters.
func DefaultRollingConfig() Config {
	return Config{
		DigestWidth:    32,
		FormatVersion:  FormatVersion,
		Chunker:        ChunkerRollingHash,
		Seed:           0x9e3779b97f4a7c15,
		RollingBase:    257,
		RollingModulus: 1 << 31,
		MinChunkSize:   4,
		MaxChunkSize:   64,
		RollingPattern: 0x1f,
		RollingValue:   0x00,
	}
}

// Equal reports whether two Configs are byte-for-byte identical, the check
// Open uses to refuse opening a tree under a mismatched runtime Config.
func (c Config) Equal(other Config) bool {
	a, err1 := json.Marshal(c)
	b, err2 := json.Marshal(other)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Marshal encodes Config as the canonical JSON blob persisted to the
// backend's config side-channel.
func (c Config) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalConfig decodes a Config previously produced by Marshal.
func UnmarshalConfig(data []byte) (Config, error) {
	var c Config
	err := json.Unmarshal(data, &c)
	return c, err
}

// MarshalYAML encodes Config for operator-facing configuration files. This
// is a convenience for humans; the backend persists the JSON form from
// Marshal, not this one.
func (c Config) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// LoadConfigYAML decodes an operator-authored YAML configuration file into
// a Config.
func LoadConfigYAML(data []byte) (Config, error) {
	var c Config
	err := yaml.Unmarshal(data, &c)
	return c, err
}

func (c Config) validate() error {
	switch c.Chunker {
	case ChunkerMaxEntries:
		if c.MinEntries <= 0 || c.MaxEntries < c.MinEntries {
			return newErr("config.validate", KindInvalidArgument, "min_entries/max_entries out of range")
		}
	case ChunkerRollingHash:
		if c.MinChunkSize <= 0 || c.MaxChunkSize < c.MinChunkSize {
			return newErr("config.validate", KindInvalidArgument, "min_chunk_size/max_chunk_size out of range")
		}
	default:
		return newErr("config.validate", KindInvalidArgument, "unknown chunker kind: "+string(c.Chunker))
	}
	if c.DigestWidth != 32 {
		return newErr("config.validate", KindInvalidArgument, "digest_width must be 32")
	}
	return nil
}
