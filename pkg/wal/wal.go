// Package wal is the write-ahead log underneath pkg/catalog. Every
// mutation is appended and fsynced here before it is applied to the row
// store, so a crash can always replay forward from the last checkpoint.
package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/geeqodb/geeqodb/pkg/dberrors"
)

// WAL is a single append-only log file plus the bookkeeping needed to
// resume appends and replay records after a restart.
type WAL struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	writer  *bufio.Writer
	options Options

	nextSeq        uint64
	tail           Position
	lastCheckpoint Position

	batchBytes int64
	closed     bool

	ticker *time.Ticker
	done   chan struct{}
}

// Open opens the log at path, creating it if absent. It performs a
// forward scan to recover the append cursor (next sequence number and
// tail byte offset): any record past the last checkpoint whose CRC fails
// or whose declared length runs past the end of the file is a torn
// write from an unclean shutdown, not corruption, and is truncated
// silently. A failure found before the last checkpoint is real
// corruption and is reported as WALCorrupt, since it means data the
// store believes is durable cannot be trusted.
func Open(path string, opts Options) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open wal file %s: %w", path, err)
	}

	w := &WAL{
		path:    path,
		file:    f,
		options: opts,
		done:    make(chan struct{}),
	}

	if err := w.scanAndRecoverCursor(); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.Seek(int64(w.tail), io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	w.writer = bufio.NewWriterSize(f, opts.BufferSize)

	if opts.SyncPolicy == SyncInterval {
		w.ticker = time.NewTicker(opts.SyncIntervalDuration)
		go w.backgroundSync()
	}

	return w, nil
}

// scanAndRecoverCursor walks the file from the start once, establishing
// nextSeq, tail and lastCheckpoint, and truncating a torn tail in place.
func (w *WAL) scanAndRecoverCursor() error {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := &frameReader{f: w.file}

	var pos Position
	var maxSeq uint64
	var lastCheckpoint Position

	for {
		rec, badAt, err := r.readOne(pos)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if badAt >= 0 {
			if Position(badAt) < lastCheckpoint {
				return &dberrors.WALCorruptError{Position: uint64(badAt), Reason: "checksum or length mismatch before last checkpoint"}
			}
			if truncErr := w.file.Truncate(int64(badAt)); truncErr != nil {
				return truncErr
			}
			pos = Position(badAt)
			break
		}

		if rec.Seq+1 > maxSeq {
			maxSeq = rec.Seq + 1
		}
		if rec.Kind == KindCheckpoint && len(rec.Payload) == 8 {
			lastCheckpoint = Position(binary.LittleEndian.Uint64(rec.Payload))
		}
		pos += Position(frameHeaderSize + 8 + len(rec.Payload))
	}

	w.nextSeq = maxSeq
	w.tail = pos
	w.lastCheckpoint = lastCheckpoint
	return nil
}

// Append writes one record and returns its position. Under SyncEveryWrite
// this also fsyncs before returning, matching "durable means after
// fsync."
func (w *WAL) Append(kind RecordKind, payload []byte) (Position, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, &dberrors.WALClosedError{}
	}

	seq := w.nextSeq
	frame := encodeFrame(kind, seq, payload)
	pos := w.tail

	n, err := w.writer.Write(frame)
	if err != nil {
		return 0, err
	}

	w.nextSeq++
	w.tail += Position(n)
	w.batchBytes += int64(n)

	switch w.options.SyncPolicy {
	case SyncEveryWrite:
		if err := w.syncLocked(); err != nil {
			return 0, err
		}
	case SyncBatch:
		if w.batchBytes >= w.options.SyncBatchBytes {
			if err := w.syncLocked(); err != nil {
				return 0, err
			}
		}
	}

	return pos, nil
}

// Sync forces the buffered writer and the file to durable storage.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return &dberrors.WALClosedError{}
	}
	return w.syncLocked()
}

func (w *WAL) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.batchBytes = 0
	return nil
}

// GetPosition returns the position the next Append will land at.
func (w *WAL) GetPosition() Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tail
}

// Checkpoint records that everything up to pos has been durably applied
// to the row store, so a future Recover can skip straight past it. pos
// is normally a value previously returned by Append or GetPosition.
func (w *WAL) Checkpoint(pos Position) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return &dberrors.WALClosedError{}
	}
	w.mu.Unlock()

	payload := make([]byte, 8)
	binary.LittleEndian.PutUint64(payload, uint64(pos))
	if _, err := w.Append(KindCheckpoint, payload); err != nil {
		return err
	}
	if err := w.Sync(); err != nil {
		return err
	}

	w.mu.Lock()
	w.lastCheckpoint = pos
	w.mu.Unlock()
	return nil
}

// Recover replays every record after the last checkpoint, in order,
// calling apply for each. Checkpoint records themselves are not passed
// to apply. The database is expected to refuse traffic until this
// returns.
func (w *WAL) Recover(apply func(Record) error) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return &dberrors.WALClosedError{}
	}
	threshold := w.lastCheckpoint
	w.mu.Unlock()

	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := &frameReader{f: f}
	var pos Position
	for {
		rec, badAt, err := r.readOne(pos)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if badAt >= 0 {
			// Already truncated away at Open time in the normal path; if
			// reached here the file changed underneath us.
			return nil
		}

		rec.Pos = pos
		pos += Position(frameHeaderSize + 8 + len(rec.Payload))

		if rec.Kind == KindCheckpoint || rec.Pos < threshold {
			continue
		}
		if err := apply(rec); err != nil {
			return err
		}
	}
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}

	if err := w.syncLocked(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *WAL) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			w.Sync()
		case <-w.done:
			return
		}
	}
}

// frameReader reads frames sequentially from a file positioned wherever
// the caller left it. readOne returns (record, -1, nil) on success, or
// (zero, badOffset, nil) when the frame at badOffset is truncated or
// fails its checksum, so the caller can decide corruption vs. torn tail.
type frameReader struct {
	f *os.File
}

func (r *frameReader) readOne(at Position) (Record, int64, error) {
	header := make([]byte, frameHeaderSize)
	n, err := io.ReadFull(r.f, header)
	if err == io.EOF && n == 0 {
		return Record{}, -1, io.EOF
	}
	if err != nil {
		return Record{}, int64(at), nil
	}

	bodyLen := binary.LittleEndian.Uint32(header[0:4])
	kind := RecordKind(header[4])
	crc := binary.LittleEndian.Uint32(header[5:9])

	if bodyLen < 8 || bodyLen > 256*1024*1024 {
		return Record{}, int64(at), nil
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r.f, body); err != nil {
		return Record{}, int64(at), nil
	}

	if !verifyChecksum(body, crc) {
		return Record{}, int64(at), nil
	}

	seq, payload := decodeBody(kind, body)
	return Record{Kind: kind, Seq: seq, Payload: payload}, -1, nil
}
