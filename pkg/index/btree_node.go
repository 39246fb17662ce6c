package index

import (
	"sort"
	"sync"

	"github.com/geeqodb/geeqodb/pkg/types"
)

// btreeNode is one node of the B+Tree: internal nodes hold only
// separator keys and children, leaves hold (key, row-id) pairs and are
// chained left-to-right for range scans. Concurrency is by per-node
// RWMutex latch crabbing: a descent holds at most a node and its child
// locked at once.
type btreeNode struct {
	t        int
	keys     []types.Comparable
	rowIDs   []types.RowID
	children []*btreeNode
	leaf     bool
	n        int
	next     *btreeNode
	mu       sync.RWMutex
}

func newBtreeNode(t int, leaf bool) *btreeNode {
	return &btreeNode{
		t:        t,
		leaf:     leaf,
		keys:     make([]types.Comparable, 0, 2*t-1),
		rowIDs:   make([]types.RowID, 0, 2*t-1),
		children: make([]*btreeNode, 0, 2*t),
	}
}

func (n *btreeNode) Lock()    { if n != nil { n.mu.Lock() } }
func (n *btreeNode) Unlock()  { if n != nil { n.mu.Unlock() } }
func (n *btreeNode) RLock()   { if n != nil { n.mu.RLock() } }
func (n *btreeNode) RUnlock() { if n != nil { n.mu.RUnlock() } }

func (n *btreeNode) isFull() bool { return n.n == 2*n.t-1 }

func (n *btreeNode) findLeafLowerBound(key types.Comparable) (*btreeNode, int) {
	var i int
	if key == nil {
		i = 0
	} else {
		i = sort.Search(n.n, func(i int) bool { return n.keys[i].Compare(key) >= 0 })
	}
	if n.leaf {
		return n, i
	}
	return n.children[i].findLeafLowerBound(key)
}

// upsertNonFull inserts or updates in a leaf that is guaranteed not full
// (preventive splitting on the way down), running fn as the
// read-modify-write callback while the leaf latch is held.
func (n *btreeNode) upsertNonFull(key types.Comparable, unique bool, fn func(old types.RowID, exists bool) (types.RowID, error)) error {
	i := n.n - 1

	if n.leaf {
		idx := sort.Search(n.n, func(j int) bool { return n.keys[j].Compare(key) >= 0 })

		if idx < n.n && n.keys[idx].Compare(key) == 0 {
			if unique {
				newVal, err := fn(n.rowIDs[idx], true)
				if err != nil {
					return err
				}
				n.rowIDs[idx] = newVal
				return nil
			}
			// Non-unique: scan forward for an exact (key, existing) match is
			// not meaningful since multiple row-ids share this key; treat as
			// a fresh append unless the caller's fn signals otherwise via
			// exists=false semantics is ambiguous here, so non-unique
			// indexes always insert a new slot.
			newVal, err := fn(0, false)
			if err != nil {
				return err
			}
			n.insertAt(idx, key, newVal)
			return nil
		}

		newVal, err := fn(0, false)
		if err != nil {
			return err
		}
		n.insertAt(idx, key, newVal)
		return nil
	}

	for i >= 0 && key.Compare(n.keys[i]) < 0 {
		i--
	}
	i++
	if n.children[i].n == 2*n.children[i].t-1 {
		n.splitChild(i)
		if key.Compare(n.keys[i]) >= 0 {
			i++
		}
	}
	return n.children[i].upsertNonFull(key, unique, fn)
}

func (n *btreeNode) insertAt(idx int, key types.Comparable, rowID types.RowID) {
	n.keys = append(n.keys, nil)
	n.rowIDs = append(n.rowIDs, 0)
	copy(n.keys[idx+1:], n.keys[idx:])
	copy(n.rowIDs[idx+1:], n.rowIDs[idx:])
	n.keys[idx] = key
	n.rowIDs[idx] = rowID
	n.n++
}

func (n *btreeNode) splitChild(i int) {
	t := n.t
	y := n.children[i]
	z := newBtreeNode(t, y.leaf)

	if y.leaf {
		mid := t - 1
		z.n = y.n - mid
		z.keys = append(z.keys, y.keys[mid:]...)
		z.rowIDs = append(z.rowIDs, y.rowIDs[mid:]...)

		y.keys = y.keys[:mid]
		y.rowIDs = y.rowIDs[:mid]
		y.n = mid

		z.next = y.next
		y.next = z

		n.keys = append(n.keys, nil)
		copy(n.keys[i+1:], n.keys[i:])
		n.keys[i] = z.keys[0]

		n.children = append(n.children, nil)
		copy(n.children[i+2:], n.children[i+1:])
		n.children[i+1] = z
		n.n++
		return
	}

	mid := t - 1
	z.n = t - 1
	z.keys = append(z.keys, y.keys[mid+1:]...)
	z.children = append(z.children, y.children[mid+1:]...)

	upKey := y.keys[mid]

	y.keys = y.keys[:mid]
	y.children = y.children[:mid+1]
	y.n = mid

	n.keys = append(n.keys, nil)
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = upKey

	n.children = append(n.children, nil)
	copy(n.children[i+2:], n.children[i+1:])
	n.children[i+1] = z
	n.n++
}

func (n *btreeNode) remove(key types.Comparable, rowID types.RowID, matchRowID bool) bool {
	idx := sort.Search(n.n, func(i int) bool { return n.keys[i].Compare(key) >= 0 })

	if n.leaf {
		removed := false
		for idx < n.n && n.keys[idx].Compare(key) == 0 {
			if !matchRowID || n.rowIDs[idx] == rowID {
				n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
				n.rowIDs = append(n.rowIDs[:idx], n.rowIDs[idx+1:]...)
				n.n--
				removed = true
				if matchRowID {
					break
				}
				continue
			}
			idx++
		}
		return removed
	}

	childIdx := idx
	if idx < n.n && n.keys[idx].Compare(key) == 0 {
		childIdx = idx + 1
	}

	child := n.children[childIdx]
	if child.n < n.t {
		n.fill(childIdx)
	}

	return n.removeRecursive(key, rowID, matchRowID)
}

func (n *btreeNode) removeRecursive(key types.Comparable, rowID types.RowID, matchRowID bool) bool {
	idx := sort.Search(n.n, func(i int) bool { return n.keys[i].Compare(key) >= 0 })

	childIdx := idx
	if idx < n.n && n.keys[idx].Compare(key) == 0 {
		childIdx = idx + 1
	}
	if childIdx > n.n {
		childIdx = n.n
	}

	ok := n.children[childIdx].remove(key, rowID, matchRowID)
	if ok {
		n.fixSeparators()
	}
	return ok
}

func (n *btreeNode) fixSeparators() {
	if n.leaf {
		return
	}
	for i := 0; i < n.n; i++ {
		curr := n.children[i+1]
		for !curr.leaf {
			curr = curr.children[0]
		}
		if curr.n > 0 {
			n.keys[i] = curr.keys[0]
		}
	}
}

func (n *btreeNode) fill(i int) {
	switch {
	case i != 0 && n.children[i-1].n >= n.t:
		n.borrowFromPrev(i)
	case i != n.n && n.children[i+1].n >= n.t:
		n.borrowFromNext(i)
	case i != n.n:
		n.merge(i)
	default:
		n.merge(i - 1)
	}
}

func (n *btreeNode) borrowFromPrev(i int) {
	child := n.children[i]
	sibling := n.children[i-1]

	if child.leaf {
		child.keys = append([]types.Comparable{nil}, child.keys...)
		child.rowIDs = append([]types.RowID{0}, child.rowIDs...)
		child.keys[0] = sibling.keys[sibling.n-1]
		child.rowIDs[0] = sibling.rowIDs[sibling.n-1]
		child.n++

		sibling.keys = sibling.keys[:sibling.n-1]
		sibling.rowIDs = sibling.rowIDs[:sibling.n-1]
		sibling.n--

		n.keys[i-1] = child.keys[0]
		return
	}

	child.keys = append([]types.Comparable{nil}, child.keys...)
	child.children = append([]*btreeNode{nil}, child.children...)
	child.keys[0] = n.keys[i-1]
	child.children[0] = sibling.children[sibling.n]
	child.n++

	n.keys[i-1] = sibling.keys[sibling.n-1]
	sibling.keys = sibling.keys[:sibling.n-1]
	sibling.children = sibling.children[:sibling.n]
	sibling.n--
}

func (n *btreeNode) borrowFromNext(i int) {
	child := n.children[i]
	sibling := n.children[i+1]

	if child.leaf {
		child.keys = append(child.keys, sibling.keys[0])
		child.rowIDs = append(child.rowIDs, sibling.rowIDs[0])
		child.n++

		sibling.keys = append([]types.Comparable{}, sibling.keys[1:]...)
		sibling.rowIDs = append([]types.RowID{}, sibling.rowIDs[1:]...)
		sibling.n--

		n.keys[i] = sibling.keys[0]
		return
	}

	child.keys = append(child.keys, n.keys[i])
	child.children = append(child.children, sibling.children[0])
	child.n++

	n.keys[i] = sibling.keys[0]
	sibling.keys = append([]types.Comparable{}, sibling.keys[1:]...)
	sibling.children = append([]*btreeNode{}, sibling.children[1:]...)
	sibling.n--
}

func (n *btreeNode) merge(i int) {
	child := n.children[i]
	sibling := n.children[i+1]

	if child.leaf {
		child.keys = append(child.keys, sibling.keys...)
		child.rowIDs = append(child.rowIDs, sibling.rowIDs...)
		child.next = sibling.next
		child.n = len(child.keys)
	} else {
		child.keys = append(child.keys, n.keys[i])
		child.keys = append(child.keys, sibling.keys...)
		child.children = append(child.children, sibling.children...)
		child.n = len(child.keys)
	}

	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	n.children = append(n.children[:i+1], n.children[i+2:]...)
	n.n--
}
