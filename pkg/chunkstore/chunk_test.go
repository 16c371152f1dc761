package chunkstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/snapdisk/snapdisk/pkg/dedupindex"
)

func TestHashBytesDeterministic(t *testing.T) {
	data := []byte("hello snapdisk")
	h1 := HashBytes(data)
	h2 := HashBytes(data)
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s != %s", h1, h2)
	}
	if len(h1) != HashSize {
		t.Fatalf("hash length = %d, want %d", len(h1), HashSize)
	}
}

func TestLocalChunkStoreAndDedup(t *testing.T) {
	target := t.TempDir()
	data := []byte("some chunk payload")
	chunk := NewLocalChunk(data)

	stored, err := chunk.AlreadyStored(target, nil)
	if err != nil {
		t.Fatalf("AlreadyStored: %v", err)
	}
	if stored {
		t.Fatal("chunk should not be stored yet")
	}

	n, err := chunk.Store(target, CompressionNone, nil)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if n != int64(len(data)) {
		t.Fatalf("stored %d bytes, want %d", n, len(data))
	}

	stored, err = chunk.AlreadyStored(target, nil)
	if err != nil {
		t.Fatalf("AlreadyStored after store: %v", err)
	}
	if !stored {
		t.Fatal("chunk should be reported stored after Store")
	}

	plain, _ := shardPaths(target, chunk.Hash())
	if _, err := os.Stat(plain); err != nil {
		t.Fatalf("expected pool file at %s: %v", plain, err)
	}
}

func TestLocalChunkStoreGzip(t *testing.T) {
	target := t.TempDir()
	data := []byte("compress me please, compress me please")
	chunk := NewLocalChunk(data)

	if _, err := chunk.Store(target, CompressionGzip, nil); err != nil {
		t.Fatalf("Store gzip: %v", err)
	}

	_, gz := shardPaths(target, chunk.Hash())
	if _, err := os.Stat(gz); err != nil {
		t.Fatalf("expected gzip pool file at %s: %v", gz, err)
	}
}

func TestAlreadyStoredConsultsIndexFirst(t *testing.T) {
	target := t.TempDir()
	idx := dedupindex.Open(target)

	hash := HashBytes([]byte("indexed chunk"))
	idx.Record(hash)

	stored, err := alreadyStored(target, hash, idx)
	if err != nil {
		t.Fatalf("alreadyStored: %v", err)
	}
	if !stored {
		t.Fatal("index should have short-circuited to stored=true")
	}
}

func TestShardPathsUseFirstTwoHexChars(t *testing.T) {
	hash := "ab" + strings.Repeat("0", HashSize-2)
	plain, gz := shardPaths("/pool", hash)
	wantDir := filepath.Join("/pool", "chunks", "ab")
	if filepath.Dir(plain) != wantDir {
		t.Fatalf("plain dir = %s, want %s", filepath.Dir(plain), wantDir)
	}
	if filepath.Dir(gz) != wantDir {
		t.Fatalf("gz dir = %s, want %s", filepath.Dir(gz), wantDir)
	}
}
