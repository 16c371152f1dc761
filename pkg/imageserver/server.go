// Package imageserver implements the image-server side of the remote
// disk-image protocol (C5): a sequential command loop that answers
// get_image_metadata, get_chunk_hash, get_chunk_data, and quit over a
// single endpoint, serving one local Image at a time. It is the Go
// rendition of the teacher's pkg/wire command-dispatch servers,
// generalized from signed CBOR command frames to the plain
// JSON-control-message frames this protocol specifies, and from a
// multi-peer router to the one-endpoint-per-process model described
// by the design.
package imageserver

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/snapdisk/snapdisk/pkg/chunkstore"
	"github.com/snapdisk/snapdisk/pkg/diskimage"
	"github.com/snapdisk/snapdisk/pkg/endpoint"
	"github.com/snapdisk/snapdisk/pkg/metrics"
	"github.com/snapdisk/snapdisk/pkg/snapdiskerr"
	"github.com/snapdisk/snapdisk/pkg/wireproto"
)

// Server answers the disk-image protocol for one Image over one
// Endpoint. It caches the most recently materialized (offset, chunk)
// pair so a get_chunk_data immediately following the get_chunk_hash
// that named the same offset doesn't re-read the backing image.
type Server struct {
	ep           endpoint.Endpoint
	img          diskimage.Image
	maxChunkSize int64
	metrics      *metrics.Metrics

	cachedOffset int64
	cachedChunk  chunkstore.Chunk
	haveCached   bool
}

// New constructs a Server. maxChunkSize is the policy ceiling on any
// requested length; a request exceeding it is answered with a
// recovered Command error rather than torn down.
func New(ep endpoint.Endpoint, img diskimage.Image, maxChunkSize int64, m *metrics.Metrics) *Server {
	return &Server{ep: ep, img: img, maxChunkSize: maxChunkSize, metrics: m}
}

// Serve runs the command loop until the client sends quit or the
// endpoint terminates. A clean quit and a peer disconnect
// (EndpointTerminated) both return nil; any other receive error is
// returned.
func (s *Server) Serve() error {
	for {
		frame, err := wireproto.Recv(s.ep)
		if err != nil {
			if snapdiskerr.Is(err, snapdiskerr.CodeEndpointTerminated) {
				logrus.Info("imageserver: peer disconnected")
				return nil
			}
			return err
		}

		var req wireproto.Request
		if err := frame.Decode(&req); err != nil {
			s.replyError(err)
			continue
		}

		logrus.WithFields(logrus.Fields{"cmd": req.Cmd, "offset": req.Offset}).Debug("imageserver: command")

		quit, err := s.dispatch(req)
		if err != nil {
			s.recordOutcome(req.Cmd, false)
			s.replyError(err)
			continue
		}
		s.recordOutcome(req.Cmd, true)
		if quit {
			logrus.Info("imageserver: client requested shutdown")
			return nil
		}
	}
}

func (s *Server) dispatch(req wireproto.Request) (quit bool, err error) {
	switch req.Cmd {
	case wireproto.CmdGetImageMetadata:
		return false, s.handleMetadata()
	case wireproto.CmdGetChunkHash:
		return false, s.handleChunkHash(req)
	case wireproto.CmdGetChunkData:
		return false, s.handleChunkData(req)
	case wireproto.CmdQuit:
		return true, s.handleQuit()
	default:
		return false, snapdiskerr.Command("unknown command %q", req.Cmd)
	}
}

func (s *Server) handleMetadata() error {
	return wireproto.Send(s.ep, wireproto.ImageMetadataResponse{
		Status:     "ok",
		DeviceName: s.img.DeviceName(),
		DiskSize:   s.img.DiskSize(),
		ChunkSize:  s.img.ChunkSize(),
	}, nil)
}

func (s *Server) handleChunkHash(req wireproto.Request) error {
	chunk, err := s.chunkAt(req)
	if err != nil {
		return err
	}
	return wireproto.Send(s.ep, wireproto.ChunkHashResponse{
		Status: "ok",
		Offset: req.Offset,
		Hash:   chunk.Hash(),
		Size:   chunk.Len(),
	}, nil)
}

func (s *Server) handleChunkData(req wireproto.Request) error {
	chunk, err := s.chunkAt(req)
	if err != nil {
		return err
	}
	data, err := chunk.Bytes()
	if err != nil {
		return fmt.Errorf("imageserver: materialize chunk at offset %d: %w", req.Offset, err)
	}
	return wireproto.Send(s.ep, wireproto.ChunkDataResponse{
		Status: "ok",
		Offset: req.Offset,
		Hash:   chunk.Hash(),
	}, data)
}

func (s *Server) handleQuit() error {
	return wireproto.Send(s.ep, wireproto.StatusResponse{Status: "ok", Text: "goodbye"}, nil)
}

// chunkAt returns the chunk at req.Offset, honoring the single-entry
// cache and the max_chunk_size policy.
func (s *Server) chunkAt(req wireproto.Request) (chunkstore.Chunk, error) {
	length := req.Length
	if length == 0 {
		length = s.img.ChunkSize()
	}
	if s.maxChunkSize > 0 && length > s.maxChunkSize {
		return nil, snapdiskerr.Command(
			"requested length %d exceeds max_chunk_size %d", length, s.maxChunkSize)
	}
	if req.Offset%s.img.ChunkSize() != 0 {
		return nil, snapdiskerr.Command("offset %d is not chunk-aligned", req.Offset)
	}

	if s.haveCached && s.cachedOffset == req.Offset {
		return s.cachedChunk, nil
	}

	iter, err := s.img.IterChunks(req.Offset)
	if err != nil {
		return nil, fmt.Errorf("imageserver: seek to offset %d: %w", req.Offset, err)
	}
	chunk, ok, err := iter.Next()
	if err != nil {
		return nil, fmt.Errorf("imageserver: read chunk at offset %d: %w", req.Offset, err)
	}
	if !ok {
		return nil, snapdiskerr.Command("offset %d is beyond the end of the image", req.Offset)
	}

	s.cachedOffset = req.Offset
	s.cachedChunk = chunk
	s.haveCached = true
	return chunk, nil
}

func (s *Server) replyError(err error) {
	var derr *snapdiskerr.Error
	text := err.Error()
	if errors.As(err, &derr) {
		logrus.WithError(err).Warn("imageserver: recovered command error")
	} else {
		logrus.WithError(err).Warn("imageserver: recovered error")
	}
	if sendErr := wireproto.Send(s.ep, wireproto.StatusResponse{Status: "error", Text: text}, nil); sendErr != nil {
		logrus.WithError(sendErr).Error("imageserver: failed to send error response")
	}
}

func (s *Server) recordOutcome(cmd string, ok bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.ServerCommandsTotal.WithLabelValues(cmd).Inc()
	if !ok {
		s.metrics.ServerErrorsTotal.WithLabelValues(cmd).Inc()
	}
}
