// Package heap is the physical, append-only row store underneath
// pkg/catalog. Rows are written once per version; updates append a new
// version and link it to the previous one via PrevOffset, giving the
// catalog's MVCC layer a version chain per row without rewriting
// history. Deletes are logical: the Valid byte flips in place and
// DeleteLSN records when.
package heap

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	Magic                 = 0x52485045 // "RHPE" - Row Heap
	Version               = 1
	HeaderSize            = 14 // Magic(4) + Version(2) + NextOffset(8)
	EntryHeaderSize       = 37 // Length(4) + Valid(1) + RowID(8) + CreateLSN(8) + DeleteLSN(8) + PrevOffset(8)
	DefaultMaxSegmentSize = 64 * 1024 * 1024
)

// RecordHeader is the fixed-size metadata preceding every row version's
// bytes on disk. RowID is carried on every version so a heap scan alone
// is enough to rebuild the row-id-to-offset map after a restart.
type RecordHeader struct {
	Valid      bool
	RowID      uint64
	CreateLSN  uint64
	DeleteLSN  uint64
	PrevOffset int64 // -1 if this is the first version of its row
}

// Segment is one rotated file of the heap; the heap is a sequence of
// segments addressed by a single global byte offset.
type Segment struct {
	ID          int
	Path        string
	StartOffset int64
	Size        int64
	File        *os.File
}

// RowHeap is the segmented, append-only physical store for row bytes.
// Offsets it returns from Write are stable physical row pointers used by
// the catalog's primary index and version chains.
type RowHeap struct {
	basePath       string
	segments       []*Segment
	activeSegment  *Segment
	nextOffset     int64
	maxSegmentSize int64
	mu             sync.RWMutex
}

// Open opens an existing heap rooted at path, or creates one if absent.
// Segment files are named "<path>_NNN.data".
func Open(path string) (*RowHeap, error) {
	h := &RowHeap{
		basePath:       path,
		segments:       make([]*Segment, 0),
		maxSegmentSize: DefaultMaxSegmentSize,
	}

	var globalOffset int64
	id := 1
	for {
		segPath := fmt.Sprintf("%s_%03d.data", path, id)
		file, err := os.OpenFile(segPath, os.O_RDWR, 0666)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("open segment %s: %w", segPath, err)
		}
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, err
		}
		h.segments = append(h.segments, &Segment{
			ID: id, Path: segPath, StartOffset: globalOffset, Size: info.Size(), File: file,
		})
		globalOffset += info.Size()
		id++
	}

	if len(h.segments) == 0 {
		if err := h.createSegment(1, 0); err != nil {
			return nil, err
		}
		return h, nil
	}

	h.activeSegment = h.segments[len(h.segments)-1]
	if err := h.loadActiveSegmentState(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *RowHeap) createSegment(id int, startOffset int64) error {
	segPath := fmt.Sprintf("%s_%03d.data", h.basePath, id)
	file, err := os.OpenFile(segPath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return fmt.Errorf("create segment %s: %w", segPath, err)
	}

	seg := &Segment{ID: id, Path: segPath, StartOffset: startOffset, File: file}
	h.segments = append(h.segments, seg)
	h.activeSegment = seg

	if err := h.writeHeader(seg); err != nil {
		return err
	}
	seg.Size = int64(HeaderSize)
	h.nextOffset = startOffset + int64(HeaderSize)
	return nil
}

func (h *RowHeap) loadActiveSegmentState() error {
	seg := h.activeSegment
	if _, err := seg.File.Seek(0, 0); err != nil {
		return err
	}

	var magic uint32
	if err := binary.Read(seg.File, binary.LittleEndian, &magic); err != nil {
		return err
	}
	if magic != Magic {
		return fmt.Errorf("invalid heap magic in segment %d", seg.ID)
	}

	var version uint16
	if err := binary.Read(seg.File, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != Version {
		return fmt.Errorf("unsupported heap version %d", version)
	}

	var localNext int64
	if err := binary.Read(seg.File, binary.LittleEndian, &localNext); err != nil {
		return err
	}
	h.nextOffset = seg.StartOffset + localNext

	if stat, err := seg.File.Stat(); err == nil && stat.Size() > localNext {
		// A crash landed between appending bytes and persisting the header;
		// the file itself is the more truthful source of the write pointer.
		h.nextOffset = seg.StartOffset + stat.Size()
		_ = h.updateNextOffset()
	}
	return nil
}

func (h *RowHeap) writeHeader(seg *Segment) error {
	if _, err := seg.File.Seek(0, 0); err != nil {
		return err
	}
	if err := binary.Write(seg.File, binary.LittleEndian, uint32(Magic)); err != nil {
		return err
	}
	if err := binary.Write(seg.File, binary.LittleEndian, uint16(Version)); err != nil {
		return err
	}
	if err := binary.Write(seg.File, binary.LittleEndian, int64(HeaderSize)); err != nil {
		return err
	}
	return seg.File.Sync()
}

func (h *RowHeap) updateNextOffset() error {
	seg := h.activeSegment
	if _, err := seg.File.Seek(6, 0); err != nil { // past Magic+Version
		return err
	}
	localOffset := h.nextOffset - seg.StartOffset
	return binary.Write(seg.File, binary.LittleEndian, localOffset)
}

// Write appends one row version and returns its global offset. prevOffset
// chains to the previous version of the same row, or -1 for the first.
func (h *RowHeap) Write(doc []byte, rowID uint64, createLSN uint64, prevOffset int64) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	needed := int64(EntryHeaderSize + len(doc))
	currentLocal := h.nextOffset - h.activeSegment.StartOffset

	if currentLocal+needed > h.maxSegmentSize {
		if err := h.createSegment(h.activeSegment.ID+1, h.nextOffset); err != nil {
			return 0, fmt.Errorf("rotate segment: %w", err)
		}
	}

	offset := h.nextOffset
	seg := h.activeSegment
	localOffset := offset - seg.StartOffset

	if _, err := seg.File.Seek(localOffset, 0); err != nil {
		return 0, err
	}

	docLen := uint32(len(doc))
	if err := binary.Write(seg.File, binary.LittleEndian, docLen); err != nil {
		return 0, err
	}
	if err := binary.Write(seg.File, binary.LittleEndian, uint8(1)); err != nil {
		return 0, err
	}
	if err := binary.Write(seg.File, binary.LittleEndian, rowID); err != nil {
		return 0, err
	}
	if err := binary.Write(seg.File, binary.LittleEndian, createLSN); err != nil {
		return 0, err
	}
	if err := binary.Write(seg.File, binary.LittleEndian, uint64(0)); err != nil {
		return 0, err
	}
	if err := binary.Write(seg.File, binary.LittleEndian, prevOffset); err != nil {
		return 0, err
	}
	if _, err := seg.File.Write(doc); err != nil {
		return 0, err
	}

	h.nextOffset += int64(EntryHeaderSize + int(docLen))
	seg.Size = h.nextOffset - seg.StartOffset

	if err := h.updateNextOffset(); err != nil {
		return 0, err
	}
	return offset, nil
}

func (h *RowHeap) segmentFor(offset int64) (*Segment, error) {
	for _, seg := range h.segments {
		if offset >= seg.StartOffset && offset < seg.StartOffset+seg.Size {
			return seg, nil
		}
	}
	if offset < h.nextOffset && offset >= h.activeSegment.StartOffset {
		return h.activeSegment, nil
	}
	return nil, fmt.Errorf("segment not found for offset %d", offset)
}

// Read retrieves the row bytes and header at offset.
func (h *RowHeap) Read(offset int64) ([]byte, *RecordHeader, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seg, err := h.segmentFor(offset)
	if err != nil {
		return nil, nil, err
	}
	localOffset := offset - seg.StartOffset
	if _, err := seg.File.Seek(localOffset, 0); err != nil {
		return nil, nil, err
	}

	var docLen uint32
	var valid uint8
	var rowID, createLSN, deleteLSN uint64
	var prevOffset int64
	for _, f := range []func() error{
		func() error { return binary.Read(seg.File, binary.LittleEndian, &docLen) },
		func() error { return binary.Read(seg.File, binary.LittleEndian, &valid) },
		func() error { return binary.Read(seg.File, binary.LittleEndian, &rowID) },
		func() error { return binary.Read(seg.File, binary.LittleEndian, &createLSN) },
		func() error { return binary.Read(seg.File, binary.LittleEndian, &deleteLSN) },
		func() error { return binary.Read(seg.File, binary.LittleEndian, &prevOffset) },
	} {
		if err := f(); err != nil {
			return nil, nil, err
		}
	}

	doc := make([]byte, docLen)
	if _, err := io.ReadFull(seg.File, doc); err != nil {
		return nil, nil, err
	}

	return doc, &RecordHeader{Valid: valid == 1, RowID: rowID, CreateLSN: createLSN, DeleteLSN: deleteLSN, PrevOffset: prevOffset}, nil
}

// Delete marks the version at offset invalid as of deleteLSN. The bytes
// stay on disk; nothing in this package reclaims them.
func (h *RowHeap) Delete(offset int64, deleteLSN uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	seg, err := h.segmentFor(offset)
	if err != nil {
		return err
	}
	localOffset := offset - seg.StartOffset
	validOffset := localOffset + 4
	deleteLSNOffset := localOffset + 4 + 1 + 8 + 8

	if _, err := seg.File.Seek(validOffset, 0); err != nil {
		return err
	}
	if err := binary.Write(seg.File, binary.LittleEndian, uint8(0)); err != nil {
		return err
	}
	if _, err := seg.File.Seek(deleteLSNOffset, 0); err != nil {
		return err
	}
	return binary.Write(seg.File, binary.LittleEndian, deleteLSN)
}

func (h *RowHeap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for _, seg := range h.segments {
		if seg.File != nil {
			if err := seg.File.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (h *RowHeap) Path() string { return h.basePath }

// Iterator walks every version record across every segment, in physical
// write order, used for full table scans and for the recovery pass.
type Iterator struct {
	h           *RowHeap
	segmentIdx  int
	currentFile *os.File
	currentPos  int64
}

func (h *RowHeap) NewIterator() (*Iterator, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.segments) == 0 {
		return nil, fmt.Errorf("no segments to iterate")
	}
	seg := h.segments[0]
	f, err := os.Open(seg.Path)
	if err != nil {
		return nil, err
	}
	return &Iterator{h: h, segmentIdx: 0, currentFile: f, currentPos: HeaderSize}, nil
}

// Next returns the next record's bytes, header, and global offset; io.EOF
// once every segment is exhausted.
func (it *Iterator) Next() ([]byte, *RecordHeader, int64, error) {
	for {
		it.h.mu.RLock()
		if it.segmentIdx >= len(it.h.segments) {
			it.h.mu.RUnlock()
			return nil, nil, 0, io.EOF
		}
		seg := it.h.segments[it.segmentIdx]
		startOffset := seg.StartOffset
		it.h.mu.RUnlock()

		globalOffset := startOffset + it.currentPos
		if _, err := it.currentFile.Seek(it.currentPos, 0); err != nil {
			return nil, nil, 0, err
		}

		headerBuf := make([]byte, EntryHeaderSize)
		if _, err := io.ReadFull(it.currentFile, headerBuf); err != nil {
			if err == io.EOF {
				if err := it.nextSegment(); err != nil {
					return nil, nil, 0, err
				}
				continue
			}
			return nil, nil, 0, err
		}

		docLen := binary.LittleEndian.Uint32(headerBuf[0:4])
		valid := headerBuf[4]
		rowID := binary.LittleEndian.Uint64(headerBuf[5:13])
		createLSN := binary.LittleEndian.Uint64(headerBuf[13:21])
		deleteLSN := binary.LittleEndian.Uint64(headerBuf[21:29])
		prevOffset := int64(binary.LittleEndian.Uint64(headerBuf[29:37]))

		doc := make([]byte, docLen)
		if _, err := io.ReadFull(it.currentFile, doc); err != nil {
			return nil, nil, 0, err
		}

		it.currentPos += int64(EntryHeaderSize) + int64(docLen)

		return doc, &RecordHeader{Valid: valid == 1, RowID: rowID, CreateLSN: createLSN, DeleteLSN: deleteLSN, PrevOffset: prevOffset}, globalOffset, nil
	}
}

func (it *Iterator) nextSegment() error {
	it.currentFile.Close()
	it.segmentIdx++

	it.h.mu.RLock()
	defer it.h.mu.RUnlock()

	if it.segmentIdx >= len(it.h.segments) {
		return io.EOF
	}
	seg := it.h.segments[it.segmentIdx]
	f, err := os.Open(seg.Path)
	if err != nil {
		return err
	}
	it.currentFile = f
	it.currentPos = HeaderSize
	return nil
}

func (it *Iterator) Close() {
	if it.currentFile != nil {
		it.currentFile.Close()
	}
}
