// Package snapshot implements the snapshot writer (C6): the
// orchestration loop that walks an Image's chunks, dedups and stores
// each one into a chunkstore pool, and commits a JSON manifest
// recording the ordered chunk identity list. It is the Go rendition of
// the teacher's pkg/content manifest/provider pair, generalized from
// an in-memory content manifest to a resumable on-disk snapshot of a
// block device.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"lukechampine.com/blake3"
)

// ManifestVersion is the fixed meta.version of every manifest this
// package writes.
const ManifestVersion = 1

const timeLayout = "2006-01-02T15:04:05Z"

// Meta is the manifest's meta object.
type Meta struct {
	DiskSize       int64  `json:"disk_size"`
	ChunkSize      int64  `json:"chunk_size"`
	ChunkCount     int64  `json:"chunk_count"`
	DeviceName     string `json:"device_name"`
	StartTS        string `json:"start_ts"`
	EndTS          string `json:"end_ts"`
	Version        int    `json:"version"`
	Target         string `json:"target"`
	Name           string `json:"name"`
	ManifestDigest string `json:"manifest_digest"`
}

// Manifest is the on-disk JSON shape of a snapshot.
type Manifest struct {
	Meta   Meta     `json:"meta"`
	Chunks []string `json:"chunks"`
}

// normalizeName applies NFC normalization so visually identical names
// from different locales always compare and serialize identically.
func normalizeName(s string) string {
	return norm.NFC.String(s)
}

// nowUTC returns the current instant formatted per the manifest's
// fixed UTC timestamp layout.
func nowUTC() string {
	return time.Now().UTC().Format(timeLayout)
}

// manifestPath returns the path of the manifest file for name under
// target.
func manifestPath(target, name string) string {
	return filepath.Join(target, normalizeName(name)+".json")
}

// loadManifest reads and parses the manifest file at path.
func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("snapshot: parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// computeDigest computes the BLAKE3-256 hex digest over the meta
// fields that precede manifest_digest in the struct, followed by the
// ordered chunk identity list, giving a cheap whole-manifest integrity
// check independent of any single chunk's SHA-384 identity.
func computeDigest(meta Meta, chunks []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n%d\n%d\n%s\n%s\n%s\n%d\n%s\n%s\n",
		meta.DiskSize, meta.ChunkSize, meta.ChunkCount, meta.DeviceName,
		meta.StartTS, meta.EndTS, meta.Version, meta.Target, meta.Name)
	for _, h := range chunks {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	sum := blake3.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", sum)
}

// writeAtomic serializes m to path.tmp and renames it into place.
func writeAtomic(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal manifest: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("snapshot: create target dir %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}
