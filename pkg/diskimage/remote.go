package diskimage

import (
	"context"
	"fmt"

	"github.com/snapdisk/snapdisk/pkg/chunkstore"
	"github.com/snapdisk/snapdisk/pkg/endpoint"
	"github.com/snapdisk/snapdisk/pkg/snapdiskerr"
	"github.com/snapdisk/snapdisk/pkg/wireproto"
)

// remoteImage drives the wire protocol against a live endpoint to
// expose a peer's disk image as an Image. Close sends "quit" and
// expects a status=ok response before releasing the endpoint.
type remoteImage struct {
	ep         endpoint.Endpoint
	deviceName string
	diskSize   int64
	chunkSize  int64
}

// OpenRemote connects to spec (dispatching to a native SSH session for
// the ssh scheme, and to the endpoint registry otherwise), fetches the
// peer's image metadata, and verifies its chunk size matches
// wantChunkSize.
func OpenRemote(ctx context.Context, spec *endpoint.Spec, wantChunkSize int64) (Image, error) {
	var ep endpoint.Endpoint
	var err error
	if spec.Scheme == endpoint.SchemeSSH {
		ep, err = endpoint.DialSSH(spec)
	} else {
		ep, err = endpoint.Dial(ctx, spec)
	}
	if err != nil {
		return nil, fmt.Errorf("diskimage: connect to remote image: %w", err)
	}

	frame, err := wireproto.SendRecv(ep, wireproto.Request{Cmd: wireproto.CmdGetImageMetadata}, nil)
	if err != nil {
		ep.Close()
		return nil, fmt.Errorf("diskimage: get_image_metadata: %w", err)
	}
	var meta wireproto.ImageMetadataResponse
	if err := frame.Decode(&meta); err != nil {
		ep.Close()
		return nil, err
	}

	if wantChunkSize > 0 && meta.ChunkSize != wantChunkSize {
		ep.Close()
		return nil, snapdiskerr.Assertion(
			"remote image chunk size %d does not match requested %d", meta.ChunkSize, wantChunkSize)
	}

	return &remoteImage{
		ep:         ep,
		deviceName: meta.DeviceName,
		diskSize:   meta.DiskSize,
		chunkSize:  meta.ChunkSize,
	}, nil
}

func (img *remoteImage) DeviceName() string { return img.deviceName }
func (img *remoteImage) DiskSize() int64    { return img.diskSize }
func (img *remoteImage) ChunkSize() int64   { return img.chunkSize }
func (img *remoteImage) ChunkCount() int64  { return ChunkCount(img.diskSize, img.chunkSize) }

// Close requests a clean server shutdown of this session and releases
// the endpoint regardless of whether the server acknowledges it.
func (img *remoteImage) Close() error {
	frame, err := wireproto.SendRecv(img.ep, wireproto.Request{Cmd: wireproto.CmdQuit}, nil)
	closeErr := img.ep.Close()
	if err != nil {
		return fmt.Errorf("diskimage: quit: %w", err)
	}
	_ = frame
	return closeErr
}

func (img *remoteImage) IterChunks(startOffset int64) (ChunkIterator, error) {
	if startOffset < 0 || startOffset%img.chunkSize != 0 {
		return nil, snapdiskerr.Assertion(
			"diskimage: start offset %d is not a multiple of chunk size %d", startOffset, img.chunkSize)
	}
	return &remoteIterator{img: img, offset: startOffset}, nil
}

type remoteIterator struct {
	img    *remoteImage
	offset int64
}

func (it *remoteIterator) Next() (chunkstore.Chunk, bool, error) {
	if it.offset >= it.img.diskSize {
		return nil, false, nil
	}

	remaining := it.img.diskSize - it.offset
	length := it.img.chunkSize
	if remaining < length {
		length = remaining
	}
	offset := it.offset

	frame, err := wireproto.SendRecv(it.img.ep,
		wireproto.Request{Cmd: wireproto.CmdGetChunkHash, Offset: offset, Length: length}, nil)
	if err != nil {
		return nil, false, fmt.Errorf("diskimage: get_chunk_hash at offset %d: %w", offset, err)
	}
	var hashResp wireproto.ChunkHashResponse
	if err := frame.Decode(&hashResp); err != nil {
		return nil, false, err
	}

	chunk := chunkstore.NewRemoteChunk(hashResp.Hash, hashResp.Size, func() ([]byte, error) {
		dataFrame, err := wireproto.SendRecv(it.img.ep,
			wireproto.Request{Cmd: wireproto.CmdGetChunkData, Offset: offset, Length: length}, nil)
		if err != nil {
			return nil, fmt.Errorf("diskimage: get_chunk_data at offset %d: %w", offset, err)
		}
		return dataFrame.Payload, nil
	})

	it.offset += length
	return chunk, true, nil
}
