package index

import (
	"testing"

	"github.com/geeqodb/geeqodb/pkg/types"
)

func TestBTreeInsertGetRemove(t *testing.T) {
	bt := NewBTree(false)
	for i := 0; i < 500; i++ {
		if err := bt.Insert(types.IntKey(i), types.RowID(i+1)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if bt.Count() != 500 {
		t.Fatalf("count = %d, want 500", bt.Count())
	}
	if rid, ok := bt.Get(types.IntKey(42)); !ok || rid != types.RowID(43) {
		t.Fatalf("get 42 = (%v,%v), want (43,true)", rid, ok)
	}
	if !bt.Remove(types.IntKey(42), 43) {
		t.Fatal("remove 42 failed")
	}
	if _, ok := bt.Get(types.IntKey(42)); ok {
		t.Fatal("42 still present after remove")
	}
}

func TestBTreeUniqueDuplicateRejected(t *testing.T) {
	bt := NewBTree(true)
	if err := bt.Insert(types.IntKey(1), 1); err != nil {
		t.Fatal(err)
	}
	if err := bt.Insert(types.IntKey(1), 2); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestBTreeRangeOrder(t *testing.T) {
	bt := NewBTree(false)
	for i := 0; i < 100; i++ {
		bt.Insert(types.IntKey(i), types.RowID(i+1))
	}
	it := bt.Range(types.IntKey(10), types.IntKey(20))
	defer it.Close()
	count := 0
	var last types.Comparable
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		if last != nil && e.Key.Compare(last) < 0 {
			t.Fatal("range not in ascending order")
		}
		last = e.Key
		count++
	}
	if count != 11 {
		t.Fatalf("range count = %d, want 11", count)
	}
}

func TestSkipListInsertGetRemove(t *testing.T) {
	sl := NewSkipList(false)
	for i := 0; i < 500; i++ {
		if err := sl.Insert(types.IntKey(i), types.RowID(i+1)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if sl.Count() != 500 {
		t.Fatalf("count = %d, want 500", sl.Count())
	}
	if rid, ok := sl.Get(types.IntKey(77)); !ok || rid != types.RowID(78) {
		t.Fatalf("get 77 = (%v,%v), want (78,true)", rid, ok)
	}
	if !sl.Remove(types.IntKey(77), 78) {
		t.Fatal("remove 77 failed")
	}
	if _, ok := sl.Get(types.IntKey(77)); ok {
		t.Fatal("77 still present after remove")
	}
}

func TestSkipListUniqueDuplicateRejected(t *testing.T) {
	sl := NewSkipList(true)
	if err := sl.Insert(types.IntKey(1), 1); err != nil {
		t.Fatal(err)
	}
	if err := sl.Insert(types.IntKey(1), 2); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	idx, err := r.Create("idx_age", "users", "age", ShapeBTree, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create("idx_age", "users", "age", ShapeBTree, false); err == nil {
		t.Fatal("expected IndexAlreadyExistsError")
	}
	got, err := r.Get("idx_age")
	if err != nil || got != idx {
		t.Fatalf("Get returned wrong handle: %v %v", got, err)
	}
	if _, ok := r.ForColumn("users", "age"); !ok {
		t.Fatal("ForColumn should find idx_age")
	}
	r.DropTable("users")
	if _, err := r.Get("idx_age"); err == nil {
		t.Fatal("expected IndexNotFoundError after DropTable")
	}
}
