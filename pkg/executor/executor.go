// Package executor interprets a physical plan against the catalog,
// producing result sets for queries and row counts for mutations. Every
// mutation goes through the catalog's WAL-before-apply path; the
// executor itself holds no durable state.
package executor

import (
	"sort"

	"github.com/geeqodb/geeqodb/pkg/catalog"
	"github.com/geeqodb/geeqodb/pkg/planner"
	"github.com/geeqodb/geeqodb/pkg/types"
)

// ResultSet is the outcome of a query: a column list and the matching
// rows. Mutations return RowCount with no Columns, per spec 4.7.
type ResultSet struct {
	Columns  []string
	Rows     []types.Row
	RowCount int
}

// Executor runs physical plans and mutation statements against one
// catalog.
type Executor struct {
	catalog *catalog.Catalog
}

// New builds an executor over cat.
func New(cat *catalog.Catalog) *Executor {
	return &Executor{catalog: cat}
}

// Execute interprets a read-only physical plan as of snapshotLSN.
func (e *Executor) Execute(plan *planner.PhysicalNode, snapshotLSN uint64) (*ResultSet, error) {
	rows, columns, err := e.run(plan, snapshotLSN)
	if err != nil {
		return nil, err
	}
	return &ResultSet{Columns: columns, Rows: rows, RowCount: len(rows)}, nil
}

func (e *Executor) run(n *planner.PhysicalNode, snapshotLSN uint64) ([]types.Row, []string, error) {
	switch n.AccessMethod {
	case planner.AccessTableScan:
		_, rows, err := e.catalog.Scan(n.Table, snapshotLSN)
		if err != nil {
			return nil, nil, err
		}
		return filterRows(rows, n.Table, n.Predicates, e.catalog), e.columnsOf(n.Table), nil

	case planner.AccessIndexSeek:
		eqPred := equalityOn(n.Predicates, n.IndexInfo.Column)
		rows, err := e.catalog.Lookup(n.Table, n.IndexInfo.Name, eqPred.Value, snapshotLSN)
		if err != nil {
			return nil, nil, err
		}
		return filterRows(rows, n.Table, n.Predicates, e.catalog), e.columnsOf(n.Table), nil

	case planner.AccessIndexRange:
		pred := rangeOn(n.Predicates, n.IndexInfo.Column)
		lo, hi := rangeBounds(pred)
		rows, err := e.catalog.Range(n.Table, n.IndexInfo.Name, lo, hi, snapshotLSN)
		if err != nil {
			return nil, nil, err
		}
		return filterRows(rows, n.Table, n.Predicates, e.catalog), e.columnsOf(n.Table), nil

	case planner.AccessHashJoin:
		return e.runHashJoin(n, snapshotLSN)

	case planner.AccessNestedLoopJoin:
		return e.runNestedLoopJoin(n, snapshotLSN)

	case planner.AccessProject:
		rows, cols, err := e.run(n.Children[0], snapshotLSN)
		if err != nil {
			return nil, nil, err
		}
		return projectRows(rows, cols, n.Columns), n.Columns, nil

	case planner.AccessAggregate:
		rows, cols, err := e.run(n.Children[0], snapshotLSN)
		if err != nil {
			return nil, nil, err
		}
		return runAggregate(rows, cols, n.GroupBy, n.Aggregates)

	case planner.AccessSort:
		rows, cols, err := e.run(n.Children[0], snapshotLSN)
		if err != nil {
			return nil, nil, err
		}
		sortRows(rows, cols, n.SortBy)
		return rows, cols, nil

	case planner.AccessLimit:
		rows, cols, err := e.run(n.Children[0], snapshotLSN)
		if err != nil {
			return nil, nil, err
		}
		if n.Limit < len(rows) {
			rows = rows[:n.Limit]
		}
		return rows, cols, nil
	}
	return nil, nil, nil
}

func (e *Executor) columnsOf(table string) []string {
	schema, err := e.catalog.Table(table)
	if err != nil {
		return nil
	}
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = c.Name
	}
	return cols
}

// filterRows applies any predicate not already satisfied by the access
// method itself (e.g. a second predicate on a different column than
// the one an IndexSeek used).
func filterRows(rows []types.Row, table string, preds []planner.Predicate, cat *catalog.Catalog) []types.Row {
	if len(preds) == 0 {
		return rows
	}
	schema, err := cat.Table(table)
	if err != nil {
		return rows
	}
	var out []types.Row
	for _, row := range rows {
		if rowMatchesAll(row, schema, preds) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatchesAll(row types.Row, schema types.Schema, preds []planner.Predicate) bool {
	for _, p := range preds {
		col := schema.IndexOf(p.Column)
		if col < 0 || !p.Matches(row[col]) {
			return false
		}
	}
	return true
}

func equalityOn(preds []planner.Predicate, column string) planner.Predicate {
	for _, p := range preds {
		if p.Column == column && p.Operator == planner.OpEqual {
			return p
		}
	}
	return planner.Predicate{}
}

func rangeOn(preds []planner.Predicate, column string) planner.Predicate {
	for _, p := range preds {
		if p.Column == column {
			return p
		}
	}
	return planner.Predicate{}
}

func rangeBounds(p planner.Predicate) (lo, hi types.Comparable) {
	switch p.Operator {
	case planner.OpBetween:
		return p.Value, p.ValueEnd
	case planner.OpGreaterThan, planner.OpGreaterOrEqual:
		return p.Value, nil
	case planner.OpLessThan, planner.OpLessOrEqual:
		return nil, p.Value
	default:
		return nil, nil
	}
}

func projectRows(rows []types.Row, cols []string, keep []string) []types.Row {
	idx := make([]int, len(keep))
	for i, k := range keep {
		idx[i] = indexOfString(cols, k)
	}
	out := make([]types.Row, len(rows))
	for i, row := range rows {
		projected := make(types.Row, len(keep))
		for j, c := range idx {
			if c >= 0 {
				projected[j] = row[c]
			}
		}
		out[i] = projected
	}
	return out
}

func indexOfString(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

func sortRows(rows []types.Row, cols []string, keys []planner.SortKey) {
	positions := make([]int, len(keys))
	for i, k := range keys {
		positions[i] = indexOfString(cols, k.Column)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for k, pos := range positions {
			if pos < 0 {
				continue
			}
			cmp := rows[i][pos].Compare(rows[j][pos])
			if cmp == 0 {
				continue
			}
			if keys[k].Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
