package wal

import (
	"encoding/binary"
)

// RecordKind names the mutation or control event a WAL record carries.
type RecordKind uint8

const (
	KindBeginTxn RecordKind = iota + 1
	KindCommit
	KindAbort
	KindInsert
	KindUpdate
	KindDelete
	KindSchemaChange
	KindCheckpoint
)

func (k RecordKind) String() string {
	switch k {
	case KindBeginTxn:
		return "BeginTxn"
	case KindCommit:
		return "Commit"
	case KindAbort:
		return "Abort"
	case KindInsert:
		return "Insert"
	case KindUpdate:
		return "Update"
	case KindDelete:
		return "Delete"
	case KindSchemaChange:
		return "SchemaChange"
	case KindCheckpoint:
		return "Checkpoint"
	default:
		return "Unknown"
	}
}

// Position identifies a byte offset in the log file. Positions returned
// by Append are strictly increasing and are the unit Checkpoint and
// incremental backup ranges are expressed in.
type Position int64

// Record is one WAL entry: a kind, its log sequence number, and an
// opaque payload the catalog encodes and decodes.
type Record struct {
	Kind RecordKind
	Seq  uint64
	Pos  Position
	Payload []byte
}

// frameHeaderSize is len(4) + kind(1) + crc32(4); the body that follows
// is seq(8) + payload, per the on-disk layout
// [len:u32][kind:u8][crc32:u32][payload].
const frameHeaderSize = 4 + 1 + 4

func encodeFrame(kind RecordKind, seq uint64, payload []byte) []byte {
	body := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint64(body[0:8], seq)
	copy(body[8:], payload)

	crc := checksum(body)

	frame := make([]byte, frameHeaderSize+len(body))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(body)))
	frame[4] = byte(kind)
	binary.LittleEndian.PutUint32(frame[5:9], crc)
	copy(frame[9:], body)
	return frame
}

func decodeBody(kind RecordKind, body []byte) (seq uint64, payload []byte) {
	seq = binary.LittleEndian.Uint64(body[0:8])
	payload = body[8:]
	return seq, payload
}
