package chunkstore

import "github.com/snapdisk/snapdisk/pkg/dedupindex"

// localChunk owns its bytes outright; its identity is computed eagerly
// at construction, mirroring the teacher's eager local-chunk variant.
type localChunk struct {
	hash string
	data []byte
}

// NewLocalChunk wraps data as a Chunk, computing its SHA-384 identity.
func NewLocalChunk(data []byte) Chunk {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &localChunk{hash: HashBytes(buf), data: buf}
}

func (c *localChunk) Hash() string { return c.hash }
func (c *localChunk) Len() int64   { return int64(len(c.data)) }

func (c *localChunk) Bytes() ([]byte, error) {
	return c.data, nil
}

func (c *localChunk) AlreadyStored(target string, idx *dedupindex.Index) (bool, error) {
	return alreadyStored(target, c.hash, idx)
}

func (c *localChunk) Store(target string, compression Compression, idx *dedupindex.Index) (int64, error) {
	return store(target, c.hash, c.data, compression, idx)
}
