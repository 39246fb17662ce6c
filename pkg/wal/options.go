package wal

import "time"

// SyncPolicy controls when Append forces an fsync.
type SyncPolicy int

const (
	// SyncEveryWrite fsyncs after every Append. Safest, slowest.
	SyncEveryWrite SyncPolicy = iota
	// SyncInterval fsyncs on a background timer.
	SyncInterval
	// SyncBatch fsyncs once a byte threshold has accumulated.
	SyncBatch
)

// Options configures a WAL instance.
type Options struct {
	// BufferSize is the bufio buffer between Append and the OS.
	BufferSize int

	SyncPolicy SyncPolicy

	// SyncIntervalDuration is used when SyncPolicy is SyncInterval.
	SyncIntervalDuration time.Duration

	// SyncBatchBytes is used when SyncPolicy is SyncBatch.
	SyncBatchBytes int64
}

func DefaultOptions() Options {
	return Options{
		BufferSize:            64 * 1024,
		SyncPolicy:            SyncEveryWrite,
		SyncIntervalDuration:  200 * time.Millisecond,
		SyncBatchBytes:        1 * 1024 * 1024,
	}
}
