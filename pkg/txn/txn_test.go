package txn

import "testing"

func TestBeginAssignsMonotonicIDs(t *testing.T) {
	m := NewManager()
	a := m.Begin(ReadCommitted, 0)
	b := m.Begin(ReadCommitted, 0)
	if a.ID == 0 || b.ID <= a.ID {
		t.Fatalf("expected monotonic ids >= 1, got %d then %d", a.ID, b.ID)
	}
	if a.Status != Active {
		t.Fatalf("expected new transaction Active, got %s", a.Status)
	}
}

func TestCommitRequiresActive(t *testing.T) {
	m := NewManager()
	tx := m.Begin(ReadCommitted, 0)
	if err := m.Commit(tx.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Commit(tx.ID); err == nil {
		t.Fatal("expected TransactionNotActiveError on double commit")
	}
	if err := m.Abort(tx.ID); err == nil {
		t.Fatal("expected TransactionNotActiveError aborting a committed transaction")
	}
}

func TestAbortRequiresActive(t *testing.T) {
	m := NewManager()
	tx := m.Begin(ReadCommitted, 0)
	if err := m.Abort(tx.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Abort(tx.ID); err == nil {
		t.Fatal("expected TransactionNotActiveError on double abort")
	}
}

func TestUnknownTransactionNotActive(t *testing.T) {
	m := NewManager()
	if err := m.Commit(999); err == nil {
		t.Fatal("expected TransactionNotActiveError for unknown id")
	}
}

func TestRepeatableReadSnapshotIsFixedAtBegin(t *testing.T) {
	m := NewManager()
	tx := m.Begin(RepeatableRead, 42)
	if tx.SnapshotLSN != 42 {
		t.Fatalf("expected snapshot lsn 42, got %d", tx.SnapshotLSN)
	}
}

func TestSerializableCommitConflictsOnOverlappingWriteSet(t *testing.T) {
	m := NewManager()
	a := m.Begin(Serializable, 0)
	b := m.Begin(Serializable, 0)

	a.RecordWrite("accounts", "1")
	b.RecordWrite("accounts", "1")

	if err := m.Commit(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Commit(b.ID); err == nil {
		t.Fatal("expected SerializationConflictError for overlapping write sets")
	}
}

func TestSerializableCommitSucceedsOnDisjointWriteSet(t *testing.T) {
	m := NewManager()
	a := m.Begin(Serializable, 0)
	b := m.Begin(Serializable, 0)

	a.RecordWrite("accounts", "1")
	b.RecordWrite("accounts", "2")

	if err := m.Commit(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Commit(b.ID); err != nil {
		t.Fatalf("expected disjoint write sets to commit cleanly, got %v", err)
	}
}

func TestActiveIDsReflectsOpenTransactionsOnly(t *testing.T) {
	m := NewManager()
	a := m.Begin(ReadCommitted, 0)
	b := m.Begin(ReadCommitted, 0)
	m.Commit(a.ID)

	ids := m.ActiveIDs()
	if len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("expected only %d active, got %v", b.ID, ids)
	}
}
