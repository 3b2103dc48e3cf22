// Package storage defines the content-addressed backend contract the tree
// driver depends on, plus several concrete implementations.
package storage

import "errors"

// ErrNotFound is returned by Get and GetConfig when the requested key is
// absent. Backends MUST return exactly this sentinel (or an error that
// wraps it) so callers can use errors.Is.
var ErrNotFound = errors.New("storage: not found")

// Backend is the capability set the tree driver requires of a storage
// implementation: a content-addressed map from digest to node bytes, plus a
// small side-channel for named, non-content-addressed configuration blobs.
//
// Put is idempotent: putting identical bytes under a digest that already
// holds them is a no-op. Backends MAY (but are not required to) detect and
// reject a Put of different bytes under an existing digest, since that
// would violate the content-addressing contract.
//
// Delete is optional. Append-only backends may implement it as a no-op;
// core correctness never depends on deletion actually freeing storage.
type Backend interface {
	// Put stores bytes under digest, encoded as a hex string by the
	// caller (pkg/tree owns the digest-to-string mapping so backends
	// never need to import pkg/digest).
	Put(digestHex string, data []byte) error
	// Get retrieves the bytes stored under digest. Returns ErrNotFound
	// if absent.
	Get(digestHex string) ([]byte, error)
	// Has reports whether digest is present, without transferring bytes.
	Has(digestHex string) (bool, error)
	// Delete removes digest's entry. MAY be a no-op; callers must not
	// depend on it actually freeing space.
	Delete(digestHex string) error

	// PutConfig stores a small named, non-content-addressed blob (e.g.
	// the persisted tree Config, or a root pointer).
	PutConfig(name string, data []byte) error
	// GetConfig retrieves a blob stored with PutConfig. Returns
	// ErrNotFound if absent.
	GetConfig(name string) ([]byte, error)

	// Close releases any resources (file handles, database handles)
	// held by the backend.
	Close() error
}
