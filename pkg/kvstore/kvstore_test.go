package kvstore

import (
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := openStore(t)

	if err := s.Put([]byte("a"), []byte("1"), true); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(v) != "1" {
		t.Fatalf("expected a=1, got %q ok=%v", v, ok)
	}

	if err := s.Delete([]byte("a"), true); err != nil {
		t.Fatal(err)
	}
	_, ok, err = s.Get([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected a to be gone after delete")
	}
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	s := openStore(t)
	_, ok, err := s.Get([]byte("missing"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected missing key to report not found")
	}
}

func TestIterateVisitsKeysInOrder(t *testing.T) {
	s := openStore(t)
	for _, k := range []string{"b", "a", "c"} {
		if err := s.Put([]byte(k), []byte(k), false); err != nil {
			t.Fatal(err)
		}
	}

	var seen []string
	err := s.Iterate(nil, nil, func(e Entry) bool {
		seen = append(seen, string(e.Key))
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestBatchCommitIsAtomic(t *testing.T) {
	s := openStore(t)
	b, err := s.NewBatch()
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Put([]byte("x"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := b.Put([]byte("y"), []byte("2")); err != nil {
		t.Fatal(err)
	}
	if err := b.Commit(true); err != nil {
		t.Fatal(err)
	}

	for _, k := range []string{"x", "y"} {
		_, ok, err := s.Get([]byte(k))
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("expected %s to be present after batch commit", k)
		}
	}
}

func TestOperationsFailAfterClose(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte("a"), []byte("1"), true); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestCreateBackupAndRestore(t *testing.T) {
	s := openStore(t)
	if err := s.Put([]byte("a"), []byte("1"), true); err != nil {
		t.Fatal(err)
	}

	backupDir := filepath.Join(t.TempDir(), "backup")
	if err := s.CreateBackup(backupDir); err != nil {
		t.Fatal(err)
	}

	restored, err := RestoreFromBackup(backupDir)
	if err != nil {
		t.Fatal(err)
	}
	defer restored.Close()

	v, ok, err := restored.Get([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(v) != "1" {
		t.Fatalf("expected restored a=1, got %q ok=%v", v, ok)
	}
}
