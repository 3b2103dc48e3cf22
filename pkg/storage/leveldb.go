package storage

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
)

const (
	levelDBNodePrefix   = "n:"
	levelDBConfigPrefix = "c:"
)

// LevelDBStore is a Backend backed by an embedded syndtr/goleveldb
// instance, using the same prefix-partitioned key space convention as
// PebbleStore.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDBStore opens (creating if necessary) a LevelDB instance at dir.
func OpenLevelDBStore(dir string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

func (l *LevelDBStore) Put(digestHex string, data []byte) error {
	key := []byte(levelDBNodePrefix + digestHex)
	existing, err := l.db.Get(key, nil)
	if err == nil {
		if bytesEqual(existing, data) {
			return nil
		}
		return errDigestMismatch(digestHex)
	}
	if !errors.Is(err, leveldb.ErrNotFound) {
		return err
	}
	return l.db.Put(key, data, nil)
}

func (l *LevelDBStore) Get(digestHex string) ([]byte, error) {
	v, err := l.db.Get([]byte(levelDBNodePrefix+digestHex), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (l *LevelDBStore) Has(digestHex string) (bool, error) {
	return l.db.Has([]byte(levelDBNodePrefix+digestHex), nil)
}

func (l *LevelDBStore) Delete(digestHex string) error {
	return l.db.Delete([]byte(levelDBNodePrefix+digestHex), nil)
}

func (l *LevelDBStore) PutConfig(name string, data []byte) error {
	return l.db.Put([]byte(levelDBConfigPrefix+name), data, nil)
}

func (l *LevelDBStore) GetConfig(name string) ([]byte, error) {
	v, err := l.db.Get([]byte(levelDBConfigPrefix+name), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (l *LevelDBStore) Close() error {
	return l.db.Close()
}

var _ Backend = (*LevelDBStore)(nil)
