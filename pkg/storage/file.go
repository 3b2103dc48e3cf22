// FileStore implements a persistent, file-based Backend using a flat
// directory layout with a write-ahead log for crash safety. Node bytes are
// snappy-compressed on disk; config blobs are stored uncompressed under a
// sibling directory since they are small and human-inspectable.
//
// Layout:
//
//	<dir>/
//	  LOCK          - flock-based exclusive lock
//	  wal           - write-ahead log (binary, append-only)
//	  nodes/        - node files (filename = digest hex, snappy-compressed)
//	  config/       - config files (filename = name, raw bytes)
package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/golang/snappy"
)

const (
	walPutNode   byte = 0x01
	walPutConfig byte = 0x02
	walDelete    byte = 0x03
	walCommit    byte = 0x04
)

// FileStore is a file-based persistent Backend. Safe for concurrent use
// from multiple goroutines within a single process; a file lock prevents
// concurrent access from other processes.
type FileStore struct {
	mu        sync.RWMutex
	dir       string
	nodesDir  string
	configDir string
	nodes     map[string][]byte // digest hex -> compressed bytes, cached
	config    map[string][]byte
	walFile   *os.File
	lockFd    int
	closed    bool
}

// OpenFileStore opens or creates a file-based store rooted at dir.
func OpenFileStore(dir string) (*FileStore, error) {
	nodesDir := filepath.Join(dir, "nodes")
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(nodesDir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: mkdir nodes: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: mkdir config: %w", err)
	}

	lockPath := filepath.Join(dir, "LOCK")
	lockFd, err := acquireLock(lockPath)
	if err != nil {
		return nil, fmt.Errorf("filestore: lock: %w", err)
	}

	fs := &FileStore{
		dir:       dir,
		nodesDir:  nodesDir,
		configDir: configDir,
		nodes:     make(map[string][]byte),
		config:    make(map[string][]byte),
		lockFd:    lockFd,
	}

	if err := fs.loadIndex(); err != nil {
		releaseLock(lockFd)
		return nil, fmt.Errorf("filestore: load index: %w", err)
	}
	if err := fs.replayWAL(); err != nil {
		releaseLock(lockFd)
		return nil, fmt.Errorf("filestore: replay wal: %w", err)
	}

	walPath := filepath.Join(dir, "wal")
	walFile, err := os.OpenFile(walPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		releaseLock(lockFd)
		return nil, fmt.Errorf("filestore: open wal: %w", err)
	}
	fs.walFile = walFile
	return fs, nil
}

func (fs *FileStore) Put(digestHex string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return errClosed
	}
	if existing, ok := fs.nodes[digestHex]; ok {
		if decoded, err := snappy.Decode(nil, existing); err == nil && bytesEqual(decoded, data) {
			return nil
		}
		return errDigestMismatch(digestHex)
	}
	compressed := snappy.Encode(nil, data)
	if err := fs.walWrite(walPutNode, digestHex, compressed); err != nil {
		return err
	}
	if err := fs.writeFile(fs.nodePath(digestHex), compressed); err != nil {
		return err
	}
	if err := fs.walCommitRecord(); err != nil {
		return err
	}
	fs.nodes[digestHex] = compressed
	return nil
}

func (fs *FileStore) Get(digestHex string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.closed {
		return nil, errClosed
	}
	compressed, ok := fs.nodes[digestHex]
	if !ok {
		return nil, ErrNotFound
	}
	return snappy.Decode(nil, compressed)
}

func (fs *FileStore) Has(digestHex string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.closed {
		return false, errClosed
	}
	_, ok := fs.nodes[digestHex]
	return ok, nil
}

func (fs *FileStore) Delete(digestHex string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return errClosed
	}
	if err := fs.walWrite(walDelete, digestHex, nil); err != nil {
		return err
	}
	if err := os.Remove(fs.nodePath(digestHex)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove: %w", err)
	}
	if err := fs.walCommitRecord(); err != nil {
		return err
	}
	delete(fs.nodes, digestHex)
	return nil
}

func (fs *FileStore) PutConfig(name string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return errClosed
	}
	if err := fs.walWrite(walPutConfig, name, data); err != nil {
		return err
	}
	if err := fs.writeFile(fs.configPath(name), data); err != nil {
		return err
	}
	if err := fs.walCommitRecord(); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	fs.config[name] = cp
	return nil
}

func (fs *FileStore) GetConfig(name string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.closed {
		return nil, errClosed
	}
	v, ok := fs.config[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil
	}
	fs.closed = true
	var firstErr error
	if fs.walFile != nil {
		if err := fs.walFile.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := fs.walFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	releaseLock(fs.lockFd)
	return firstErr
}

func (fs *FileStore) nodePath(digestHex string) string {
	return filepath.Join(fs.nodesDir, digestHex)
}

func (fs *FileStore) configPath(name string) string {
	return filepath.Join(fs.configDir, name)
}

func (fs *FileStore) writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("filestore: write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

func (fs *FileStore) loadIndex() error {
	nodeEntries, err := os.ReadDir(fs.nodesDir)
	if err != nil {
		return err
	}
	for _, e := range nodeEntries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) > 4 && name[len(name)-4:] == ".tmp" {
			os.Remove(filepath.Join(fs.nodesDir, name))
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.nodesDir, name))
		if err != nil {
			return err
		}
		fs.nodes[name] = data
	}

	configEntries, err := os.ReadDir(fs.configDir)
	if err != nil {
		return err
	}
	for _, e := range configEntries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) > 4 && name[len(name)-4:] == ".tmp" {
			os.Remove(filepath.Join(fs.configDir, name))
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.configDir, name))
		if err != nil {
			return err
		}
		fs.config[name] = data
	}
	return nil
}

// walWrite appends a record to the WAL.
// Format: [type:1][nameLen:4][name][valLen:4][val]
func (fs *FileStore) walWrite(op byte, name string, value []byte) error {
	var buf []byte
	buf = append(buf, op)
	nl := make([]byte, 4)
	binary.BigEndian.PutUint32(nl, uint32(len(name)))
	buf = append(buf, nl...)
	buf = append(buf, name...)
	vl := make([]byte, 4)
	binary.BigEndian.PutUint32(vl, uint32(len(value)))
	buf = append(buf, vl...)
	buf = append(buf, value...)
	if _, err := fs.walFile.Write(buf); err != nil {
		return fmt.Errorf("filestore: wal write: %w", err)
	}
	return nil
}

func (fs *FileStore) walCommitRecord() error {
	if _, err := fs.walFile.Write([]byte{walCommit}); err != nil {
		return fmt.Errorf("filestore: wal commit: %w", err)
	}
	return fs.walFile.Sync()
}

// replayWAL recovers any committed transaction that did not make it into
// nodes/ or config/ before a crash (the WAL commit marker is written after
// the data file, so this is a narrow window, but not an impossible one if
// the process died between writeFile and walCommitRecord's Sync).
func (fs *FileStore) replayWAL() error {
	walPath := filepath.Join(fs.dir, "wal")
	f, err := os.Open(walPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	type record struct {
		op    byte
		name  string
		value []byte
	}
	var pending []record
	pos := 0
	for pos < len(data) {
		op := data[pos]
		pos++
		switch op {
		case walCommit:
			for _, rec := range pending {
				switch rec.op {
				case walPutNode:
					if err := fs.writeFile(fs.nodePath(rec.name), rec.value); err != nil {
						return err
					}
					fs.nodes[rec.name] = rec.value
				case walPutConfig:
					if err := fs.writeFile(fs.configPath(rec.name), rec.value); err != nil {
						return err
					}
					fs.config[rec.name] = rec.value
				case walDelete:
					os.Remove(fs.nodePath(rec.name))
					delete(fs.nodes, rec.name)
				}
			}
			pending = pending[:0]
		case walPutNode, walPutConfig, walDelete:
			if pos+4 > len(data) {
				return nil
			}
			nl := binary.BigEndian.Uint32(data[pos : pos+4])
			pos += 4
			if pos+int(nl) > len(data) {
				return nil
			}
			name := string(data[pos : pos+int(nl)])
			pos += int(nl)
			if pos+4 > len(data) {
				return nil
			}
			vl := binary.BigEndian.Uint32(data[pos : pos+4])
			pos += 4
			if pos+int(vl) > len(data) {
				return nil
			}
			value := make([]byte, vl)
			copy(value, data[pos:pos+int(vl)])
			pos += int(vl)
			pending = append(pending, record{op: op, name: name, value: value})
		default:
			return nil
		}
	}
	return nil
}

func acquireLock(path string) (int, error) {
	fd, err := syscall.Open(path, syscall.O_CREAT|syscall.O_RDWR, 0o644)
	if err != nil {
		return -1, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("acquire flock: %w", err)
	}
	return fd, nil
}

func releaseLock(fd int) {
	syscall.Flock(fd, syscall.LOCK_UN)
	syscall.Close(fd)
}

var _ Backend = (*FileStore)(nil)
