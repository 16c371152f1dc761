package snapshot

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/snapdisk/snapdisk/pkg/chunkstore"
	"github.com/snapdisk/snapdisk/pkg/dedupindex"
	"github.com/snapdisk/snapdisk/pkg/diskimage"
	"github.com/snapdisk/snapdisk/pkg/metrics"
	"github.com/snapdisk/snapdisk/pkg/snapdiskerr"
)

// Mode selects how a Writer treats an existing manifest file.
type Mode int

const (
	// Create refuses to proceed if the manifest file already exists.
	Create Mode = iota
	// Resume requires the manifest file to exist and continues from
	// its recorded chunk prefix, after verifying geometry matches.
	Resume
	// Overwrite starts a fresh manifest regardless of what's on disk.
	Overwrite
)

// ProgressFunc is invoked whenever enough bytes have been appended
// since the last call to cross the writer's commit period, and once
// more when the snapshot completes. By contract it calls w.Commit().
type ProgressFunc func(w *Writer) error

// Writer orchestrates snapshot creation against a chunk pool under
// target, writing manifest <target>/<name>.json.
type Writer struct {
	img          diskimage.Image
	target       string
	name         string
	compression  chunkstore.Compression
	progress     ProgressFunc
	commitPeriod int64
	metrics      *metrics.Metrics
	idx          *dedupindex.Index

	manifest         *Manifest
	path             string
	position         int64
	bytesSinceCommit int64

	chunksDeduplicated int64
	chunksStored       int64
}

// New opens or creates a manifest per mode and returns a Writer
// positioned at the correct resume offset.
func New(img diskimage.Image, target, name string, compression chunkstore.Compression, mode Mode,
	commitPeriod int64, m *metrics.Metrics, progress ProgressFunc) (*Writer, error) {

	name = normalizeName(name)
	deviceName := normalizeName(img.DeviceName())
	path := manifestPath(target, name)

	var manifest *Manifest
	var position int64

	switch mode {
	case Create:
		if _, err := os.Stat(path); err == nil {
			return nil, snapdiskerr.SnapshotWriter("manifest %s already exists (mode=create)", path)
		}
		manifest = freshManifest(img, target, name, deviceName)

	case Overwrite:
		manifest = freshManifest(img, target, name, deviceName)

	case Resume:
		existing, err := loadManifest(path)
		if err != nil {
			return nil, snapdiskerr.SnapshotWriter("resume requires an existing manifest at %s: %v", path, err)
		}
		if existing.Meta.DiskSize != img.DiskSize() || existing.Meta.ChunkSize != img.ChunkSize() {
			return nil, snapdiskerr.SnapshotWriter(
				"resume geometry mismatch: manifest has disk_size=%d chunk_size=%d, image has disk_size=%d chunk_size=%d",
				existing.Meta.DiskSize, existing.Meta.ChunkSize, img.DiskSize(), img.ChunkSize())
		}
		manifest = existing
		position = int64(len(existing.Chunks)) * img.ChunkSize()

	default:
		return nil, fmt.Errorf("snapshot: unknown mode %v", mode)
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create target directory %s: %w", target, err)
	}

	return &Writer{
		img:          img,
		target:       target,
		name:         name,
		compression:  compression,
		progress:     progress,
		commitPeriod: commitPeriod,
		metrics:      m,
		idx:          dedupindex.Open(target),
		manifest:     manifest,
		path:         path,
		position:     position,
	}, nil
}

func freshManifest(img diskimage.Image, target, name, deviceName string) *Manifest {
	now := nowUTC()
	return &Manifest{
		Meta: Meta{
			DiskSize:   img.DiskSize(),
			ChunkSize:  img.ChunkSize(),
			ChunkCount: img.ChunkCount(),
			DeviceName: deviceName,
			StartTS:    now,
			EndTS:      now,
			Version:    ManifestVersion,
			Target:     target,
			Name:       name,
		},
		Chunks: []string{},
	}
}

// Position returns the current byte offset into the image, clamped to
// its disk size.
func (w *Writer) Position() int64 {
	if w.position > w.img.DiskSize() {
		return w.img.DiskSize()
	}
	return w.position
}

// Run walks the image from the writer's current position to its end,
// storing or deduplicating every chunk along the way and invoking the
// progress callback whenever the commit period is crossed, then once
// more at completion.
func (w *Writer) Run() error {
	if w.metrics != nil {
		w.metrics.ActiveSnapshots.Inc()
		defer w.metrics.ActiveSnapshots.Dec()
	}

	iter, err := w.img.IterChunks(w.position)
	if err != nil {
		return fmt.Errorf("snapshot: seek to offset %d: %w", w.position, err)
	}

	for {
		chunk, ok, err := iter.Next()
		if err != nil {
			return fmt.Errorf("snapshot: read chunk at offset %d: %w", w.position, err)
		}
		if !ok {
			break
		}

		if err := w.appendChunk(chunk); err != nil {
			return err
		}

		if w.commitPeriod > 0 && w.bytesSinceCommit >= w.commitPeriod {
			if err := w.runProgress(); err != nil {
				return err
			}
		}
	}

	return w.runProgress()
}

func (w *Writer) appendChunk(chunk chunkstore.Chunk) error {
	stored, err := chunk.AlreadyStored(w.target, w.idx)
	if err != nil {
		return fmt.Errorf("snapshot: probe dedup for chunk at offset %d: %w", w.position, err)
	}

	if stored {
		w.chunksDeduplicated++
		if w.metrics != nil {
			w.metrics.ChunksDeduplicated.Inc()
		}
	} else {
		n, err := chunk.Store(w.target, w.compression, w.idx)
		if err != nil {
			return fmt.Errorf("snapshot: store chunk at offset %d: %w", w.position, err)
		}
		w.chunksStored++
		if w.metrics != nil {
			w.metrics.ChunksStored.Inc()
			w.metrics.BytesStoredOnDisk.Add(float64(n))
		}
	}

	w.manifest.Chunks = append(w.manifest.Chunks, chunk.Hash())
	w.manifest.Meta.EndTS = nowUTC()

	n := chunk.Len()
	w.position += n
	w.bytesSinceCommit += n
	if w.metrics != nil {
		w.metrics.BytesAppended.Add(float64(n))
	}

	logrus.WithFields(logrus.Fields{
		"offset": w.position - n,
		"hash":   chunk.Hash(),
		"dedup":  stored,
	}).Debug("snapshot: appended chunk")

	return nil
}

func (w *Writer) runProgress() error {
	w.bytesSinceCommit = 0
	if w.progress != nil {
		return w.progress(w)
	}
	return w.Commit()
}

// Commit writes the manifest to <path>.tmp and renames it into place,
// recomputing manifest_digest over the current chunk list.
func (w *Writer) Commit() error {
	w.manifest.Meta.ChunkCount = w.img.ChunkCount()
	w.manifest.Meta.ManifestDigest = computeDigest(w.manifest.Meta, w.manifest.Chunks)

	if err := writeAtomic(w.path, w.manifest); err != nil {
		return err
	}
	if err := w.idx.Flush(); err != nil {
		logrus.WithError(err).Warn("snapshot: failed to flush dedup index (advisory only)")
	}
	if w.metrics != nil {
		w.metrics.ManifestCommits.Inc()
	}
	logrus.WithFields(logrus.Fields{
		"path":     w.path,
		"chunks":   len(w.manifest.Chunks),
		"position": w.position,
	}).Info("snapshot: committed manifest")
	return nil
}

// Close performs a final commit, matching the design's
// commit-on-scope-exit contract.
func (w *Writer) Close() error {
	return w.Commit()
}
