package index

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/geeqodb/geeqodb/pkg/dberrors"
	"github.com/geeqodb/geeqodb/pkg/types"
)

// MaxSkipListLevel bounds tower height; levels are numbered 0..15.
const MaxSkipListLevel = 16

// skipListP is the level-promotion probability (geometric distribution).
const skipListP = 0.5

type skipNode struct {
	key     types.Comparable
	rowID   types.RowID
	marked  atomic.Bool
	forward []atomic.Pointer[skipNode]
}

func newSkipNode(level int, key types.Comparable, rowID types.RowID) *skipNode {
	return &skipNode{key: key, rowID: rowID, forward: make([]atomic.Pointer[skipNode], level)}
}

// SkipList is a probabilistic ordered index with lock-free, CAS-installed
// towers. currentLevel tracks the number of non-empty levels (0 for an
// empty list); Clear resets it to 0.
type SkipList struct {
	head         *skipNode
	currentLevel atomic.Int32
	unique       bool
	count        atomic.Int64
	rnd          *rand.Rand
}

// NewSkipList creates an empty skip-list index.
func NewSkipList(unique bool) *SkipList {
	sl := &SkipList{
		head:   newSkipNode(MaxSkipListLevel, nil, 0),
		unique: unique,
		rnd:    rand.New(rand.NewSource(1)),
	}
	sl.currentLevel.Store(0)
	return sl
}

func (s *SkipList) Unique() bool { return s.unique }

func (s *SkipList) randomLevel() int {
	level := 1
	for level < MaxSkipListLevel && s.rnd.Float64() < skipListP {
		level++
	}
	return level
}

// findPredecessors locates, at every level, the last node whose key is
// strictly less than key (update[]) and the first candidate node at
// level 0 whose key is >= key (succ).
func (s *SkipList) findPredecessors(key types.Comparable) (update [MaxSkipListLevel]*skipNode, succ *skipNode) {
	curr := s.head
	top := int(s.currentLevel.Load())
	for level := top - 1; level >= 0; level-- {
		next := curr.forward[level].Load()
		for next != nil && (key == nil || next.key.Compare(key) < 0) {
			curr = next
			next = curr.forward[level].Load()
		}
		update[level] = curr
	}
	for level := top; level < MaxSkipListLevel; level++ {
		update[level] = s.head
	}
	succ = curr.forward[0].Load()
	return update, succ
}

func (s *SkipList) Insert(key types.Comparable, rowID types.RowID) error {
	for {
		update, succ := s.findPredecessors(key)
		if succ != nil && succ.key.Compare(key) == 0 && !succ.marked.Load() {
			if s.unique {
				return &dberrors.DuplicateKeyError{Key: fmt.Sprintf("%v", key)}
			}
		}

		level := s.randomLevel()
		node := newSkipNode(level, key, rowID)
		for l := 0; l < level; l++ {
			node.forward[l].Store(update[l].forward[l].Load())
		}

		// Install at level 0 with a CAS; retry the whole search on
		// contention (lock-free).
		if !update[0].forward[0].CompareAndSwap(node.forward[0].Load(), node) {
			continue
		}
		for l := 1; l < level; l++ {
			for {
				node.forward[l].Store(update[l].forward[l].Load())
				if update[l].forward[l].CompareAndSwap(node.forward[l].Load(), node) {
					break
				}
				update, _ = s.findPredecessors(key)
			}
		}

		for {
			cur := s.currentLevel.Load()
			if int32(level) <= cur || s.currentLevel.CompareAndSwap(cur, int32(level)) {
				break
			}
		}
		s.count.Add(1)
		return nil
	}
}

func (s *SkipList) Remove(key types.Comparable, rowID types.RowID) bool {
	matchRowID := rowID.Valid()
	removedAny := false
	for {
		_, succ := s.findPredecessors(key)
		found := false
		for n := succ; n != nil && n.key.Compare(key) == 0; n = n.forward[0].Load() {
			if n.marked.Load() {
				continue
			}
			if matchRowID && n.rowID != rowID {
				continue
			}
			if n.marked.CompareAndSwap(false, true) {
				s.count.Add(-1)
				removedAny = true
				found = true
				if matchRowID {
					break
				}
			}
		}
		if !found || matchRowID {
			break
		}
	}
	return removedAny
}

func (s *SkipList) Get(key types.Comparable) (types.RowID, bool) {
	_, succ := s.findPredecessors(key)
	for n := succ; n != nil && n.key.Compare(key) == 0; n = n.forward[0].Load() {
		if !n.marked.Load() {
			return n.rowID, true
		}
	}
	return 0, false
}

func (s *SkipList) Range(lo, hi types.Comparable) RangeIterator {
	_, succ := s.findPredecessors(lo)
	return &skipRangeIterator{next: succ, hi: hi}
}

func (s *SkipList) Count() int { return int(s.count.Load()) }

func (s *SkipList) Clear() {
	s.head = newSkipNode(MaxSkipListLevel, nil, 0)
	s.currentLevel.Store(0)
	s.count.Store(0)
}

type skipRangeIterator struct {
	next *skipNode
	hi   types.Comparable
	done bool
}

func (it *skipRangeIterator) Next() (Entry, bool) {
	for !it.done && it.next != nil {
		n := it.next
		it.next = n.forward[0].Load()
		if n.marked.Load() {
			continue
		}
		if it.hi != nil && n.key.Compare(it.hi) > 0 {
			it.done = true
			return Entry{}, false
		}
		return Entry{Key: n.key, RowID: n.rowID}, true
	}
	return Entry{}, false
}

func (it *skipRangeIterator) Close() {}
