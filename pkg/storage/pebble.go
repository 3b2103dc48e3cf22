package storage

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

const (
	pebbleNodePrefix   = "n:"
	pebbleConfigPrefix = "c:"
)

// PebbleStore is a Backend backed by an embedded cockroachdb/pebble LSM
// instance. Node bytes live under the "n:" key prefix; config blobs live
// under "c:", within the same Pebble instance — the single-keyspace,
// prefix-partitioned convention used throughout this codebase's storage
// layer.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (creating if necessary) a Pebble instance at dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (p *PebbleStore) Put(digestHex string, data []byte) error {
	key := []byte(pebbleNodePrefix + digestHex)
	existing, closer, err := p.db.Get(key)
	if err == nil {
		eq := bytesEqual(existing, data)
		closer.Close()
		if eq {
			return nil
		}
		return errDigestMismatch(digestHex)
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}
	return p.db.Set(key, data, pebble.Sync)
}

func (p *PebbleStore) Get(digestHex string) ([]byte, error) {
	v, closer, err := p.db.Get([]byte(pebbleNodePrefix + digestHex))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	closer.Close()
	return cp, nil
}

func (p *PebbleStore) Has(digestHex string) (bool, error) {
	_, closer, err := p.db.Get([]byte(pebbleNodePrefix + digestHex))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

func (p *PebbleStore) Delete(digestHex string) error {
	return p.db.Delete([]byte(pebbleNodePrefix+digestHex), pebble.Sync)
}

func (p *PebbleStore) PutConfig(name string, data []byte) error {
	return p.db.Set([]byte(pebbleConfigPrefix+name), data, pebble.Sync)
}

func (p *PebbleStore) GetConfig(name string) ([]byte, error) {
	v, closer, err := p.db.Get([]byte(pebbleConfigPrefix + name))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	closer.Close()
	return cp, nil
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}

var _ Backend = (*PebbleStore)(nil)
