package kvstore

import "github.com/geeqodb/geeqodb/pkg/dberrors"

// CreateBackup writes a full checkpoint of the store to dir, the
// pebble-native equivalent of pkg/backup's heap-segment copy.
func (s *Store) CreateBackup(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &dberrors.DatabaseClosedError{}
	}
	return s.db.Checkpoint(dir)
}

// RestoreFromBackup opens a store directly against a directory
// previously produced by CreateBackup.
func RestoreFromBackup(dir string) (*Store, error) {
	return Open(dir)
}
