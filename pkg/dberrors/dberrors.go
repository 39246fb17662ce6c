// Package dberrors defines the stable, named error kinds used across the
// database engine. Each kind is a concrete struct with an Error() method,
// never a sentinel value or a wrapped string, so callers can type-switch
// or use errors.As against a specific kind.
package dberrors

import "fmt"

// DatabaseClosedError is returned when an operation is attempted against
// a database that has already been closed.
type DatabaseClosedError struct{}

func (e *DatabaseClosedError) Error() string { return "database is closed" }

// WALClosedError is returned when an operation is attempted against a
// write-ahead log that has already been closed.
type WALClosedError struct{}

func (e *WALClosedError) Error() string { return "write-ahead log is closed" }

// WALCorruptError is returned when corruption is detected before the last
// checkpoint position. A torn tail after the last checkpoint is not an
// error and is truncated silently during recovery.
type WALCorruptError struct {
	Position uint64
	Reason   string
}

func (e *WALCorruptError) Error() string {
	return fmt.Sprintf("wal corrupt at position %d: %s", e.Position, e.Reason)
}

// TableAlreadyExistsError is returned by CREATE TABLE for a name already
// registered in the catalog.
type TableAlreadyExistsError struct {
	Name string
}

func (e *TableAlreadyExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Name)
}

// TableNotFoundError is returned when an operation references an unknown
// table name.
type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Name)
}

// ColumnNotFoundError is returned when an operation references an unknown
// column name on an otherwise known table.
type ColumnNotFoundError struct {
	Table  string
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found on table %q", e.Column, e.Table)
}

// ColumnCountMismatchError is returned by INSERT when the supplied tuple
// has a different arity than the table's schema.
type ColumnCountMismatchError struct {
	Table    string
	Expected int
	Got      int
}

func (e *ColumnCountMismatchError) Error() string {
	return fmt.Sprintf("table %q expects %d columns, got %d", e.Table, e.Expected, e.Got)
}

// TypeMismatchError is returned when a tuple value's runtime type does not
// match its column's declared logical type.
type TypeMismatchError struct {
	Table  string
	Column string
	Want   string
	Got    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("table %q column %q: expected %s, got %s", e.Table, e.Column, e.Want, e.Got)
}

// IndexAlreadyExistsError is returned when registering an index name that
// is already present in the registry.
type IndexAlreadyExistsError struct {
	Name string
}

func (e *IndexAlreadyExistsError) Error() string {
	return fmt.Sprintf("index %q already exists", e.Name)
}

// IndexNotFoundError is returned when the registry has no index with the
// given name.
type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %q not found", e.Name)
}

// TransactionNotActiveError is returned by commit/abort on a transaction
// that is not in the Active state.
type TransactionNotActiveError struct {
	TxnID uint64
}

func (e *TransactionNotActiveError) Error() string {
	return fmt.Sprintf("transaction %d is not active", e.TxnID)
}

// SerializationConflictError is returned at commit time for a Serializable
// transaction whose write set conflicts with a concurrently committed one.
type SerializationConflictError struct {
	TxnID     uint64
	Conflict  string
}

func (e *SerializationConflictError) Error() string {
	return fmt.Sprintf("transaction %d: serialization conflict on %s", e.TxnID, e.Conflict)
}

// BackupCorruptedError is returned when a backup manifest's CRCs do not
// match its files, or a file the manifest lists is missing.
type BackupCorruptedError struct {
	Dir    string
	Reason string
}

func (e *BackupCorruptedError) Error() string {
	return fmt.Sprintf("backup %q corrupted: %s", e.Dir, e.Reason)
}

// BackupNotFoundError is returned when a named backup directory or
// manifest cannot be located.
type BackupNotFoundError struct {
	Name string
}

func (e *BackupNotFoundError) Error() string {
	return fmt.Sprintf("backup %q not found", e.Name)
}

// NotPrimaryError is returned by a backup replica that receives a client
// operation it cannot service directly.
type NotPrimaryError struct {
	NodeID  string
	Primary string
}

func (e *NotPrimaryError) Error() string {
	return fmt.Sprintf("replica %q is not primary (forwarding to %q)", e.NodeID, e.Primary)
}

// InvalidStateTransitionError is returned when a replica or transaction
// attempts a state transition outside of its permitted set.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// PrimaryAlreadyExistsError is returned when registering a second Primary
// for the same view.
type PrimaryAlreadyExistsError struct {
	View    uint64
	Current string
}

func (e *PrimaryAlreadyExistsError) Error() string {
	return fmt.Sprintf("view %d already has primary %q", e.View, e.Current)
}

// ReplicaNotFoundError is returned when the replica registry has no entry
// for the given node id.
type ReplicaNotFoundError struct {
	NodeID string
}

func (e *ReplicaNotFoundError) Error() string {
	return fmt.Sprintf("replica %q not found", e.NodeID)
}

// InvalidArgumentsError is returned for malformed caller input that is
// rejected before any state is touched.
type InvalidArgumentsError struct {
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments: %s", e.Reason)
}

// ConnectionClosedError is returned when a network peer closes a
// connection mid-operation.
type ConnectionClosedError struct{}

func (e *ConnectionClosedError) Error() string { return "connection closed" }

// OperationTimedOutError is returned by caller-side timeouts.
type OperationTimedOutError struct {
	Operation string
}

func (e *OperationTimedOutError) Error() string {
	return fmt.Sprintf("operation %q timed out", e.Operation)
}

// Legacy index/key errors kept from the teacher's B-tree layer, reused
// unchanged by pkg/index.

// DuplicateKeyError is returned by a unique index on a repeated key.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key violation: key %q already exists in unique index", e.Key)
}

// InvalidKeyTypeError is returned when a key's runtime type does not
// match the index's declared key type.
type InvalidKeyTypeError struct {
	Name     string
	TypeName string
}

func (e *InvalidKeyTypeError) Error() string {
	return fmt.Sprintf("invalid key type for index %q: %s", e.Name, e.TypeName)
}
