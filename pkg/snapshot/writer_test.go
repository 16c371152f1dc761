package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/snapdisk/snapdisk/pkg/chunkstore"
	"github.com/snapdisk/snapdisk/pkg/diskimage"
)

func writeTestDisk(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 7)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestCreateModeRefusesExistingManifest(t *testing.T) {
	diskPath := writeTestDisk(t, 4000)
	target := t.TempDir()

	img, err := diskimage.Open(diskPath, 1000)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	w, err := New(img, target, "snap", chunkstore.CompressionNone, Create, 0, nil, nil)
	if err != nil {
		t.Fatalf("New (first): %v", err)
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := New(img, target, "snap", chunkstore.CompressionNone, Create, 0, nil, nil); err == nil {
		t.Fatal("expected Create mode to refuse an existing manifest")
	}
}

func TestResumeAppendsZeroNewChunksOnUnchangedImage(t *testing.T) {
	diskPath := writeTestDisk(t, 4000)
	target := t.TempDir()

	img1, err := diskimage.Open(diskPath, 1000)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w1, err := New(img1, target, "snap", chunkstore.CompressionNone, Create, 0, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w1.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	firstChunks := append([]string{}, w1.manifest.Chunks...)
	img1.Close()

	img2, err := diskimage.Open(diskPath, 1000)
	if err != nil {
		t.Fatalf("Open (resume): %v", err)
	}
	defer img2.Close()

	w2, err := New(img2, target, "snap", chunkstore.CompressionNone, Resume, 0, nil, nil)
	if err != nil {
		t.Fatalf("New (resume): %v", err)
	}
	if w2.Position() != img2.DiskSize() {
		t.Fatalf("resume should start at the end of a completed snapshot, position=%d", w2.Position())
	}
	if err := w2.Run(); err != nil {
		t.Fatalf("Run (resume): %v", err)
	}

	if len(w2.manifest.Chunks) != len(firstChunks) {
		t.Fatalf("resume appended chunks: got %d, want %d (unchanged)", len(w2.manifest.Chunks), len(firstChunks))
	}
	for i := range firstChunks {
		if w2.manifest.Chunks[i] != firstChunks[i] {
			t.Fatalf("chunk[%d] changed across resume: %s != %s", i, w2.manifest.Chunks[i], firstChunks[i])
		}
	}
}

func TestResumeRejectsChunkSizeMismatch(t *testing.T) {
	diskPath := writeTestDisk(t, 4000)
	target := t.TempDir()

	img1, err := diskimage.Open(diskPath, 1000)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w1, err := New(img1, target, "snap", chunkstore.CompressionNone, Create, 0, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w1.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	img1.Close()

	img2, err := diskimage.Open(diskPath, 500)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img2.Close()

	if _, err := New(img2, target, "snap", chunkstore.CompressionNone, Resume, 0, nil, nil); err == nil {
		t.Fatal("expected a chunk-size mismatch to be rejected on resume")
	}
}

func TestDedupWritesOneFileForIdenticalChunks(t *testing.T) {
	size := 3000
	data := make([]byte, size)
	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	target := t.TempDir()

	img, err := diskimage.Open(path, 1000)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	w, err := New(img, target, "snap", chunkstore.CompressionNone, Create, 0, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(w.manifest.Chunks) != 3 {
		t.Fatalf("manifest has %d chunk entries, want 3", len(w.manifest.Chunks))
	}
	if w.manifest.Chunks[0] != w.manifest.Chunks[1] || w.manifest.Chunks[1] != w.manifest.Chunks[2] {
		t.Fatal("identical chunks must share the same identity")
	}
	if w.chunksStored != 1 || w.chunksDeduplicated != 2 {
		t.Fatalf("stored=%d deduplicated=%d, want stored=1 deduplicated=2", w.chunksStored, w.chunksDeduplicated)
	}
}
