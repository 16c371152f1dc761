// Package chunkstore implements the content-addressed chunk pool: the
// Chunk polymorphism over eager (local) and lazy (remote) backing
// stores, and the on-disk layout that dedups chunks by SHA-384
// identity. It is the Go rendition of the teacher's content.Chunk /
// content.ChunkStore pair, generalized from BLAKE3 file chunks to
// SHA-384 disk-image chunks and from an in-process store to a sharded
// pool directory.
package chunkstore

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/snapdisk/snapdisk/pkg/dedupindex"
)

// HashSize is the length, in hex characters, of a chunk identity.
const HashSize = 96 // sha512.Size384 * 2

// Compression names the supported pool-entry encodings.
type Compression string

const (
	// CompressionNone stores chunk bytes as-is.
	CompressionNone Compression = ""
	// CompressionGzip stores chunk bytes gzip-encoded.
	CompressionGzip Compression = "gz"
)

// Chunk is the uniform contract for an immutable, content-addressed
// block of image data, whether its bytes are already in memory
// (localChunk) or must be fetched on demand from a peer (remoteChunk).
type Chunk interface {
	// Hash returns the chunk's 96-hex-character SHA-384 identity.
	Hash() string
	// Len returns the chunk's uncompressed byte length.
	Len() int64
	// Bytes materializes the chunk's payload, fetching it if necessary.
	Bytes() ([]byte, error)
	// AlreadyStored reports whether this chunk's identity already has
	// a pool entry (compressed or not) under target.
	AlreadyStored(target string, idx *dedupindex.Index) (bool, error)
	// Store writes the chunk's payload into target's pool under the
	// requested compression and returns the on-disk byte count.
	Store(target string, compression Compression, idx *dedupindex.Index) (int64, error)
}

// HashBytes computes a chunk identity from raw bytes.
func HashBytes(data []byte) string {
	sum := sha512.Sum384(data)
	return hex.EncodeToString(sum[:])
}

// shardPaths returns the uncompressed and gzip pool paths for hash.
func shardPaths(target, hash string) (plain, gz string) {
	shard := hash[:2]
	dir := filepath.Join(target, "chunks", shard)
	return filepath.Join(dir, hash), filepath.Join(dir, hash+".gz")
}

func alreadyStored(target, hash string, idx *dedupindex.Index) (bool, error) {
	if idx != nil && idx.Has(hash) {
		return true, nil
	}
	plain, gz := shardPaths(target, hash)
	if _, err := os.Stat(plain); err == nil {
		if idx != nil {
			idx.Record(hash)
		}
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if _, err := os.Stat(gz); err == nil {
		if idx != nil {
			idx.Record(hash)
		}
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	return false, nil
}

func store(target, hash string, data []byte, compression Compression, idx *dedupindex.Index) (int64, error) {
	plain, gz := shardPaths(target, hash)
	dir := filepath.Dir(plain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("chunkstore: create shard dir %s: %w", dir, err)
	}

	var n int64
	switch compression {
	case CompressionNone:
		if err := os.WriteFile(plain, data, 0o644); err != nil {
			return 0, fmt.Errorf("chunkstore: write %s: %w", plain, err)
		}
		n = int64(len(data))
	case CompressionGzip:
		f, err := os.Create(gz)
		if err != nil {
			return 0, fmt.Errorf("chunkstore: create %s: %w", gz, err)
		}
		defer f.Close()

		counting := &countingWriter{w: f}
		gw := gzip.NewWriter(counting)
		if _, err := gw.Write(data); err != nil {
			gw.Close()
			return 0, fmt.Errorf("chunkstore: gzip write %s: %w", gz, err)
		}
		if err := gw.Close(); err != nil {
			return 0, fmt.Errorf("chunkstore: gzip close %s: %w", gz, err)
		}
		n = counting.n
	default:
		return 0, fmt.Errorf("chunkstore: unknown compression %q", compression)
	}

	if idx != nil {
		idx.Record(hash)
	}
	return n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
