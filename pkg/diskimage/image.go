// Package diskimage implements the uniform disk-image contract (C4):
// a device name, size, and chunk size, plus a streaming chunk
// iterator, satisfied by a local seekable file and by a remote image
// driven over the wire protocol. It is the Go rendition of the
// teacher's pkg/content chunking functions, generalized from an
// eager, whole-file-to-slice chunker to a streaming iterator capable
// of walking a disk image far larger than memory, and split into
// local/remote variants mirroring content.Chunk's local/remote split.
package diskimage

import (
	"github.com/snapdisk/snapdisk/pkg/chunkstore"
)

// Image is the uniform contract a snapshot writer and an image server
// both consume, regardless of whether the bytes live on local disk or
// behind a remote wire connection.
type Image interface {
	DeviceName() string
	DiskSize() int64
	ChunkSize() int64
	ChunkCount() int64

	// IterChunks returns a ChunkIterator starting at startOffset, which
	// must be zero or a multiple of ChunkSize.
	IterChunks(startOffset int64) (ChunkIterator, error)

	// Close releases whatever resource backs the image (an open file,
	// a live endpoint).
	Close() error
}

// ChunkIterator yields chunks in ascending image-offset order. Next
// returns (chunk, true, nil) while chunks remain, (nil, false, nil)
// once exhausted, and (nil, false, err) on failure; a failed iterator
// must not be reused.
type ChunkIterator interface {
	Next() (chunkstore.Chunk, bool, error)
}

// ChunkCount computes ceil(diskSize / chunkSize), the shared formula
// used by both the local and remote image implementations.
func ChunkCount(diskSize, chunkSize int64) int64 {
	if chunkSize <= 0 {
		return 0
	}
	return (diskSize + chunkSize - 1) / chunkSize
}
