package heap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSegmentRotatesAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "test_heap")

	h, err := Open(basePath)
	if err != nil {
		t.Fatal(err)
	}
	h.maxSegmentSize = 120 // force rotation quickly
	defer h.Close()

	doc1 := []byte("small doc 1")
	off1, err := h.Write(doc1, 1, 1, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.segments) != 1 {
		t.Errorf("expected 1 segment, got %d", len(h.segments))
	}

	doc2 := []byte("small doc 2")
	if _, err := h.Write(doc2, 2, 2, -1); err != nil {
		t.Fatal(err)
	}

	doc3 := []byte("small doc 3 causes rotation")
	off3, err := h.Write(doc3, 3, 3, -1)
	if err != nil {
		t.Fatal(err)
	}

	if len(h.segments) != 2 {
		t.Errorf("expected 2 segments after rotation, got %d", len(h.segments))
	}

	files, _ := filepath.Glob(basePath + "_*.data")
	if len(files) != 2 {
		t.Errorf("expected 2 physical files, got %d: %v", len(files), files)
	}

	d1, _, err := h.Read(off1)
	if err != nil || string(d1) != string(doc1) {
		t.Errorf("doc1 mismatch: %v %q", err, d1)
	}
	d3, _, err := h.Read(off3)
	if err != nil || string(d3) != string(doc3) {
		t.Errorf("doc3 mismatch: %v %q", err, d3)
	}
}

func TestSegmentsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "test_heap")

	h, err := Open(basePath)
	if err != nil {
		t.Fatal(err)
	}
	h.maxSegmentSize = 60

	id1, _ := h.Write([]byte("A"), 1, 1, -1)
	id2, _ := h.Write([]byte("B"), 2, 2, -1)
	id3, _ := h.Write([]byte("C"), 3, 3, -1)

	if len(h.segments) < 2 {
		t.Errorf("expected at least 2 segments, got %d", len(h.segments))
	}
	segCount := len(h.segments)
	h.Close()

	h2, err := Open(basePath)
	if err != nil {
		t.Fatal(err)
	}
	defer h2.Close()

	if len(h2.segments) != segCount {
		t.Errorf("expected %d segments after reopen, got %d", segCount, len(h2.segments))
	}

	if d, _, _ := h2.Read(id1); string(d) != "A" {
		t.Error("failed to read A")
	}
	if d, _, _ := h2.Read(id2); string(d) != "B" {
		t.Error("failed to read B")
	}
	if d, _, _ := h2.Read(id3); string(d) != "C" {
		t.Error("failed to read C")
	}

	if _, err := h2.Write([]byte("D"), 4, 4, -1); err != nil {
		t.Fatal(err)
	}
}

func TestOpenRejectsGarbageSegmentHeader(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "test_heap")
	badSeg := basePath + "_001.data"
	if err := os.WriteFile(badSeg, []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x00}, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(basePath); err == nil {
		t.Error("expected error opening segment with bad magic")
	}
}
