package dedupindex

import "testing"

func TestRecordHasFlushRoundTrip(t *testing.T) {
	target := t.TempDir()
	idx := Open(target)

	if idx.Has("abc") {
		t.Fatal("fresh index should not know about abc")
	}

	idx.Record("abc")
	if !idx.Has("abc") {
		t.Fatal("Has should report true right after Record")
	}

	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reloaded := Open(target)
	if !reloaded.Has("abc") {
		t.Fatal("reloaded index should still know about abc")
	}
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	idx := Open(t.TempDir())
	if idx.Has("anything") {
		t.Fatal("index over an empty directory should know nothing")
	}
}

func TestFlushNoopWhenClean(t *testing.T) {
	idx := Open(t.TempDir())
	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush on untouched index: %v", err)
	}
}
