package storage

import (
	"errors"
	"testing"
)

func backendCases(t *testing.T) map[string]Backend {
	t.Helper()
	mem := NewMemoryStore()
	t.Cleanup(func() { mem.Close() })

	fileDir := t.TempDir()
	fileStore, err := OpenFileStore(fileDir)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	t.Cleanup(func() { fileStore.Close() })

	pebbleDir := t.TempDir()
	pebbleStore, err := OpenPebbleStore(pebbleDir)
	if err != nil {
		t.Fatalf("OpenPebbleStore: %v", err)
	}
	t.Cleanup(func() { pebbleStore.Close() })

	levelDir := t.TempDir()
	levelStore, err := OpenLevelDBStore(levelDir)
	if err != nil {
		t.Fatalf("OpenLevelDBStore: %v", err)
	}
	t.Cleanup(func() { levelStore.Close() })

	return map[string]Backend{
		"memory":  mem,
		"file":    fileStore,
		"pebble":  pebbleStore,
		"leveldb": levelStore,
	}
}

func TestBackendPutGetHas(t *testing.T) {
	for name, b := range backendCases(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			if err := b.Put("aa", []byte("hello")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := b.Get("aa")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != "hello" {
				t.Fatalf("expected hello, got %q", got)
			}
			has, err := b.Has("aa")
			if err != nil || !has {
				t.Fatalf("expected Has=true, got %v, err=%v", has, err)
			}
			has, err = b.Has("bb")
			if err != nil || has {
				t.Fatalf("expected Has=false for missing key")
			}
		})
	}
}

func TestBackendGetMissingReturnsNotFound(t *testing.T) {
	for name, b := range backendCases(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			_, err := b.Get("missing")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestBackendPutIdempotent(t *testing.T) {
	for name, b := range backendCases(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			if err := b.Put("cc", []byte("v1")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := b.Put("cc", []byte("v1")); err != nil {
				t.Fatalf("re-Put of identical bytes should be a no-op, got: %v", err)
			}
			if err := b.Put("cc", []byte("v2")); err == nil {
				t.Fatalf("expected error putting different bytes under existing digest")
			}
		})
	}
}

func TestBackendConfig(t *testing.T) {
	for name, b := range backendCases(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			_, err := b.GetConfig("tree_config")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound before PutConfig, got %v", err)
			}
			if err := b.PutConfig("tree_config", []byte("cfg-bytes")); err != nil {
				t.Fatalf("PutConfig: %v", err)
			}
			got, err := b.GetConfig("tree_config")
			if err != nil {
				t.Fatalf("GetConfig: %v", err)
			}
			if string(got) != "cfg-bytes" {
				t.Fatalf("expected cfg-bytes, got %q", got)
			}
		})
	}
}

func TestBackendDelete(t *testing.T) {
	for name, b := range backendCases(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			if err := b.Put("dd", []byte("v")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := b.Delete("dd"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := b.Get("dd"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}
