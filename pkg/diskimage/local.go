package diskimage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/snapdisk/snapdisk/pkg/chunkstore"
	"github.com/snapdisk/snapdisk/pkg/snapdiskerr"
)

// localImage reads chunks from a seekable file opened for the
// lifetime of the image, matching the scoped-acquisition pattern
// (opened on construction, closed on all exit paths) the design calls
// for.
type localImage struct {
	f          *os.File
	deviceName string
	diskSize   int64
	chunkSize  int64
}

// Open opens path for reading and determines its size by seeking to
// the end, returning an Image the caller must Close when done.
func Open(path string, chunkSize int64) (Image, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("diskimage: chunk size must be positive, got %d", chunkSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("diskimage: open %s: %w", path, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("diskimage: determine size of %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("diskimage: rewind %s: %w", path, err)
	}

	return &localImage{
		f:          f,
		deviceName: filepath.Base(path),
		diskSize:   size,
		chunkSize:  chunkSize,
	}, nil
}

func (img *localImage) DeviceName() string { return img.deviceName }
func (img *localImage) DiskSize() int64    { return img.diskSize }
func (img *localImage) ChunkSize() int64   { return img.chunkSize }
func (img *localImage) ChunkCount() int64  { return ChunkCount(img.diskSize, img.chunkSize) }

func (img *localImage) Close() error { return img.f.Close() }

func (img *localImage) IterChunks(startOffset int64) (ChunkIterator, error) {
	if startOffset < 0 || startOffset%img.chunkSize != 0 {
		return nil, snapdiskerr.Assertion(
			"diskimage: start offset %d is not a multiple of chunk size %d", startOffset, img.chunkSize)
	}
	return &localIterator{img: img, offset: startOffset}, nil
}

type localIterator struct {
	img    *localImage
	offset int64
}

func (it *localIterator) Next() (chunkstore.Chunk, bool, error) {
	if it.offset >= it.img.diskSize {
		return nil, false, nil
	}

	remaining := it.img.diskSize - it.offset
	want := it.img.chunkSize
	if remaining < want {
		want = remaining
	}

	buf := make([]byte, want)
	if _, err := it.img.f.ReadAt(buf, it.offset); err != nil && err != io.EOF {
		return nil, false, fmt.Errorf("diskimage: read chunk at offset %d: %w", it.offset, err)
	}

	it.offset += want
	return chunkstore.NewLocalChunk(buf), true, nil
}
