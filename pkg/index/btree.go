package index

import (
	"fmt"
	"sync"

	"github.com/geeqodb/geeqodb/pkg/dberrors"
	"github.com/geeqodb/geeqodb/pkg/types"
)

// defaultBtreeOrder is the minimum degree (t) used unless a caller
// specifies otherwise; leaves/nodes hold up to 2t-1 keys.
const defaultBtreeOrder = 32

// BTree is an ordered secondary index backed by a latch-crabbed B+Tree.
// Lookups are O(log n); range scans walk the leaf chain in key order.
type BTree struct {
	t      int
	root   *btreeNode
	unique bool
	mu     sync.RWMutex
}

// NewBTree creates an empty B-tree index. unique controls whether a
// repeated key is rejected (primary/unique indexes) or accumulates
// multiple row-ids (ordinary secondary indexes).
func NewBTree(unique bool) *BTree {
	return &BTree{t: defaultBtreeOrder, root: newBtreeNode(defaultBtreeOrder, true), unique: unique}
}

func (b *BTree) Unique() bool { return b.unique }

func (b *BTree) Insert(key types.Comparable, rowID types.RowID) error {
	return b.upsert(key, func(old types.RowID, exists bool) (types.RowID, error) {
		if exists && b.unique {
			return 0, &dberrors.DuplicateKeyError{Key: fmt.Sprintf("%v", key)}
		}
		return rowID, nil
	})
}

func (b *BTree) upsert(key types.Comparable, fn func(old types.RowID, exists bool) (types.RowID, error)) error {
	b.mu.Lock()
	root := b.root
	root.Lock()

	if root.isFull() {
		newRoot := newBtreeNode(b.t, false)
		newRoot.children = append(newRoot.children, root)
		newRoot.splitChild(0)
		b.root = newRoot
		b.mu.Unlock()

		newRoot.Lock()
		root.Unlock()
		return b.upsertTopDown(newRoot, key, fn)
	}

	b.mu.Unlock()
	return b.upsertTopDown(root, key, fn)
}

func (b *BTree) upsertTopDown(curr *btreeNode, key types.Comparable, fn func(old types.RowID, exists bool) (types.RowID, error)) error {
	defer func() {
		if curr != nil {
			curr.Unlock()
		}
	}()

	for !curr.leaf {
		i := 0
		for i < curr.n && key.Compare(curr.keys[i]) >= 0 {
			i++
		}

		child := curr.children[i]
		child.Lock()

		if child.isFull() {
			curr.splitChild(i)
			if key.Compare(curr.keys[i]) >= 0 {
				child.Unlock()
				child = curr.children[i+1]
				child.Lock()
			}
		}

		curr.Unlock()
		curr = child
	}

	return curr.upsertNonFull(key, b.unique, fn)
}

func (b *BTree) Remove(key types.Comparable, rowID types.RowID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	matchRowID := rowID.Valid()
	if b.root.n == 0 {
		return false
	}
	removed := b.root.remove(key, rowID, matchRowID)
	if !b.root.leaf && b.root.n == 0 && len(b.root.children) == 1 {
		b.root = b.root.children[0]
	}
	return removed
}

func (b *BTree) Get(key types.Comparable) (types.RowID, bool) {
	b.mu.RLock()
	curr := b.root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.leaf {
		i := 0
		for i < curr.n && key.Compare(curr.keys[i]) >= 0 {
			i++
		}
		child := curr.children[i]
		child.RLock()
		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()
	for j := 0; j < curr.n; j++ {
		if key.Compare(curr.keys[j]) == 0 {
			return curr.rowIDs[j], true
		}
	}
	return 0, false
}

func (b *BTree) Range(lo, hi types.Comparable) RangeIterator {
	b.mu.RLock()
	node, idx := b.root.findLeafLowerBound(lo)
	b.mu.RUnlock()
	return &btreeRangeIterator{node: node, idx: idx, hi: hi}
}

func (b *BTree) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	node := leftmostLeaf(b.root)
	for node != nil {
		count += node.n
		node = node.next
	}
	return count
}

func (b *BTree) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.root = newBtreeNode(b.t, true)
}

func leftmostLeaf(n *btreeNode) *btreeNode {
	for !n.leaf {
		n = n.children[0]
	}
	return n
}

type btreeRangeIterator struct {
	node *btreeNode
	idx  int
	hi   types.Comparable
	done bool
}

func (it *btreeRangeIterator) Next() (Entry, bool) {
	if it.done || it.node == nil {
		return Entry{}, false
	}
	for it.node != nil {
		if it.idx >= it.node.n {
			it.node = it.node.next
			it.idx = 0
			continue
		}
		key := it.node.keys[it.idx]
		if it.hi != nil && key.Compare(it.hi) > 0 {
			it.done = true
			return Entry{}, false
		}
		entry := Entry{Key: key, RowID: it.node.rowIDs[it.idx]}
		it.idx++
		return entry, true
	}
	return Entry{}, false
}

func (it *btreeRangeIterator) Close() {}
