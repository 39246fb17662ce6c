package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func tempWALPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.wal")
}

func TestAppendAndRecoverReplaysInOrder(t *testing.T) {
	path := tempWALPath(t)
	w, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	var positions []Position
	for i := 0; i < 5; i++ {
		pos, err := w.Append(KindInsert, []byte{byte(i)})
		if err != nil {
			t.Fatal(err)
		}
		positions = append(positions, pos)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	w2, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Close()

	var seen []byte
	err = w2.Recover(func(rec Record) error {
		seen = append(seen, rec.Payload[0])
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range seen {
		if b != byte(i) {
			t.Fatalf("replay order wrong: got %v", seen)
		}
	}
	if len(seen) != 5 {
		t.Fatalf("replayed %d records, want 5", len(seen))
	}
}

func TestCheckpointSkipsEarlierRecordsOnRecover(t *testing.T) {
	path := tempWALPath(t)
	w, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := w.Append(KindInsert, []byte("a")); err != nil {
		t.Fatal(err)
	}
	checkpointPos := w.GetPosition()
	if err := w.Checkpoint(checkpointPos); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(KindInsert, []byte("b")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	w2, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Close()

	var replayed []string
	err = w2.Recover(func(rec Record) error {
		replayed = append(replayed, string(rec.Payload))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(replayed) != 1 || replayed[0] != "b" {
		t.Fatalf("expected only post-checkpoint record, got %v", replayed)
	}
}

func TestTornTailIsTruncatedNotAnError(t *testing.T) {
	path := tempWALPath(t)
	w, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(KindInsert, []byte("good")); err != nil {
		t.Fatal(err)
	}
	goodTail := w.GetPosition()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	w2, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Close()

	if w2.GetPosition() != goodTail {
		t.Fatalf("tail = %d, want %d after truncating torn tail", w2.GetPosition(), goodTail)
	}

	if _, err := w2.Append(KindInsert, []byte("more")); err != nil {
		t.Fatalf("append after torn-tail recovery should succeed: %v", err)
	}
}

func TestOperatingOnClosedWALFails(t *testing.T) {
	path := tempWALPath(t)
	w, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(KindInsert, []byte("x")); err == nil {
		t.Fatal("expected WALClosed error")
	}
}
