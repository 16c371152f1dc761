// Package dedupindex implements an optional, purely advisory cache of
// chunk identities already known to be present in a pool, persisted as
// canonical CBOR. It exists only to let AlreadyStored short-circuit a
// stat() for pools with millions of entries: a hash listed in the
// index is reported as stored without checking the filesystem, and a
// hash not listed is checked with a stat. A missing or unparseable
// file yields an empty index, which only costs extra stat calls. The
// canonical-encoding approach is adapted from the
// teacher's cborcanon helper, generalized from signed protocol frames
// to a flat set of hex digests.
package dedupindex

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

const fileName = ".index.cbor"

var canonicalMode cbor.EncMode

func init() {
	var err error
	canonicalMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("dedupindex: failed to build canonical CBOR mode: " + err.Error())
	}
}

// document is the on-disk shape of the index file.
type document struct {
	Hashes []string `cbor:"hashes"`
}

// Index is an in-memory set of known-stored chunk hashes, backed by a
// CBOR file under the pool's target directory.
type Index struct {
	mu      sync.Mutex
	path    string
	known   map[string]struct{}
	dirty   bool
}

// Open loads the index for target, if present. A missing or corrupt
// file yields an empty, usable index rather than an error, since the
// index is purely advisory.
func Open(target string) *Index {
	idx := &Index{
		path:  filepath.Join(target, "chunks", fileName),
		known: make(map[string]struct{}),
	}
	data, err := os.ReadFile(idx.path)
	if err != nil {
		return idx
	}
	var doc document
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return idx
	}
	for _, h := range doc.Hashes {
		idx.known[h] = struct{}{}
	}
	return idx
}

// Has reports whether hash is recorded as already stored.
func (idx *Index) Has(hash string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.known[hash]
	return ok
}

// Record marks hash as stored, scheduling a flush.
func (idx *Index) Record(hash string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.known[hash]; ok {
		return
	}
	idx.known[hash] = struct{}{}
	idx.dirty = true
}

// Flush persists the index to disk if it has changed since the last
// flush. Failures are returned but are safe for callers to ignore,
// since the index is advisory.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	doc := document{Hashes: make([]string, 0, len(idx.known))}
	for h := range idx.known {
		doc.Hashes = append(doc.Hashes, h)
	}

	data, err := canonicalMode.Marshal(doc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		return err
	}

	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}
