package snapshot

import "testing"

func TestComputeDigestDeterministic(t *testing.T) {
	meta := Meta{DiskSize: 100, ChunkSize: 10, ChunkCount: 10, DeviceName: "dev", Name: "snap"}
	chunks := []string{"aa", "bb", "cc"}

	d1 := computeDigest(meta, chunks)
	d2 := computeDigest(meta, chunks)
	if d1 != d2 {
		t.Fatal("digest must be deterministic for identical inputs")
	}
}

func TestComputeDigestChangesWithChunks(t *testing.T) {
	meta := Meta{DiskSize: 100, ChunkSize: 10}
	d1 := computeDigest(meta, []string{"aa", "bb"})
	d2 := computeDigest(meta, []string{"aa", "cc"})
	if d1 == d2 {
		t.Fatal("digest should change when the chunk list changes")
	}
}

func TestNormalizeNameUnifiesNFDAndNFC(t *testing.T) {
	nfd := "café" // "e" followed by a combining acute accent
	nfc := "café"  // precomposed "e with acute"
	if normalizeName(nfd) != normalizeName(nfc) {
		t.Fatalf("NFD and NFC forms should normalize identically: %q != %q",
			normalizeName(nfd), normalizeName(nfc))
	}
}

func TestManifestPathUsesNormalizedName(t *testing.T) {
	p1 := manifestPath("/tmp/pool", "café")
	p2 := manifestPath("/tmp/pool", "café")
	if p1 != p2 {
		t.Fatalf("manifest path should be the same for equivalent Unicode forms: %q != %q", p1, p2)
	}
}
