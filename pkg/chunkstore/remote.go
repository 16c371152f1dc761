package chunkstore

import (
	"fmt"

	"github.com/snapdisk/snapdisk/pkg/dedupindex"
	"github.com/snapdisk/snapdisk/pkg/snapdiskerr"
)

// FetchFunc retrieves the bytes for a remote chunk on first access.
type FetchFunc func() ([]byte, error)

// remoteChunk declares its identity and size up front but defers
// fetching the payload until Bytes/Store actually need it, mirroring
// the teacher's lazy remote-chunk variant. A hash mismatch between the
// declared identity and the fetched bytes is an Assertion failure:
// corruption, not a recoverable condition.
type remoteChunk struct {
	hash   string
	size   int64
	fetch  FetchFunc
	cached []byte
}

// NewRemoteChunk wraps a lazily-fetched chunk whose identity and size
// are already known from a prior get_chunk_hash response.
func NewRemoteChunk(hash string, size int64, fetch FetchFunc) Chunk {
	return &remoteChunk{hash: hash, size: size, fetch: fetch}
}

func (c *remoteChunk) Hash() string { return c.hash }
func (c *remoteChunk) Len() int64   { return c.size }

func (c *remoteChunk) Bytes() ([]byte, error) {
	if c.cached != nil {
		return c.cached, nil
	}
	data, err := c.fetch()
	if err != nil {
		return nil, err
	}
	if got := HashBytes(data); got != c.hash {
		return nil, snapdiskerr.Assertion(
			"fetched chunk hash mismatch: declared %s, got %s", c.hash, got)
	}
	if int64(len(data)) != c.size {
		return nil, snapdiskerr.Assertion(
			"fetched chunk size mismatch: declared %d, got %d", c.size, len(data))
	}
	c.cached = data
	return data, nil
}

func (c *remoteChunk) AlreadyStored(target string, idx *dedupindex.Index) (bool, error) {
	return alreadyStored(target, c.hash, idx)
}

func (c *remoteChunk) Store(target string, compression Compression, idx *dedupindex.Index) (int64, error) {
	data, err := c.Bytes()
	if err != nil {
		return 0, fmt.Errorf("chunkstore: materialize remote chunk %s: %w", c.hash, err)
	}
	return store(target, c.hash, data, compression, idx)
}
