// Package planner turns a logical query plan into a physical one:
// choosing access methods, join order and parallelism hints by cost.
package planner

import "github.com/geeqodb/geeqodb/pkg/types"

// PredicateOperator names a single-column comparison, generalizing the
// teacher's scan-condition operator set with a column reference so a
// predicate can be pushed down onto whichever table produces it.
type PredicateOperator int

const (
	OpEqual PredicateOperator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpBetween
)

// Predicate is one column comparison a Filter node evaluates, or that
// predicate pushdown moves down onto a Scan.
type Predicate struct {
	Column   string
	Operator PredicateOperator
	Value    types.Comparable
	ValueEnd types.Comparable // only used by OpBetween
}

func Equal(column string, v types.Comparable) Predicate {
	return Predicate{Column: column, Operator: OpEqual, Value: v}
}

func Between(column string, lo, hi types.Comparable) Predicate {
	return Predicate{Column: column, Operator: OpBetween, Value: lo, ValueEnd: hi}
}

// Matches reports whether a row's value for this predicate's column
// satisfies it.
func (p Predicate) Matches(v types.Comparable) bool {
	switch p.Operator {
	case OpEqual:
		return v.Compare(p.Value) == 0
	case OpNotEqual:
		return v.Compare(p.Value) != 0
	case OpGreaterThan:
		return v.Compare(p.Value) > 0
	case OpGreaterOrEqual:
		return v.Compare(p.Value) >= 0
	case OpLessThan:
		return v.Compare(p.Value) < 0
	case OpLessOrEqual:
		return v.Compare(p.Value) <= 0
	case OpBetween:
		return v.Compare(p.Value) >= 0 && v.Compare(p.ValueEnd) <= 0
	default:
		return false
	}
}

// IsSeekable reports whether this predicate alone can drive an
// IndexSeek (equality) or IndexRange (ordered bound) access method
// instead of a full table scan.
func (p Predicate) IsSeekable() bool {
	switch p.Operator {
	case OpEqual, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpBetween:
		return true
	default:
		return false
	}
}

// IsRange reports whether the predicate bounds an ordered range rather
// than a single equality point.
func (p Predicate) IsRange() bool {
	switch p.Operator {
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpBetween:
		return true
	default:
		return false
	}
}
