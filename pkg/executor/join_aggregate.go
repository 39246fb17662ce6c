package executor

import (
	"fmt"

	"github.com/geeqodb/geeqodb/pkg/planner"
	"github.com/geeqodb/geeqodb/pkg/types"
)

// runHashJoin builds an in-memory hash table on the smaller (left, per
// the planner's build-side choice) input and probes it with the right
// input, the access method spec 4.7 requires for equi-joins.
func (e *Executor) runHashJoin(n *planner.PhysicalNode, snapshotLSN uint64) ([]types.Row, []string, error) {
	buildRows, buildCols, err := e.run(n.Children[0], snapshotLSN)
	if err != nil {
		return nil, nil, err
	}
	probeRows, probeCols, err := e.run(n.Children[1], snapshotLSN)
	if err != nil {
		return nil, nil, err
	}

	if len(n.JoinOn) == 0 {
		return nestedLoop(buildRows, buildCols, probeRows, probeCols, nil), append(append([]string{}, buildCols...), probeCols...), nil
	}

	buildKeyIdx := indexOfString(buildCols, n.JoinOn[0].LeftColumn)
	probeKeyIdx := indexOfString(probeCols, n.JoinOn[0].RightColumn)
	if buildKeyIdx < 0 {
		buildKeyIdx = indexOfString(buildCols, n.JoinOn[0].RightColumn)
	}
	if probeKeyIdx < 0 {
		probeKeyIdx = indexOfString(probeCols, n.JoinOn[0].LeftColumn)
	}

	table := make(map[string][]types.Row)
	if buildKeyIdx >= 0 {
		for _, row := range buildRows {
			k := fmt.Sprint(row[buildKeyIdx])
			table[k] = append(table[k], row)
		}
	}

	var out []types.Row
	for _, prow := range probeRows {
		if probeKeyIdx < 0 {
			continue
		}
		k := fmt.Sprint(prow[probeKeyIdx])
		for _, brow := range table[k] {
			out = append(out, concatRows(brow, prow))
		}
	}
	cols := append(append([]string{}, buildCols...), probeCols...)
	return out, cols, nil
}

// runNestedLoopJoin is the executor's fallback join, probing every
// right-input row for every left-input row; used when the planner
// found no usable equi-join condition.
func (e *Executor) runNestedLoopJoin(n *planner.PhysicalNode, snapshotLSN uint64) ([]types.Row, []string, error) {
	leftRows, leftCols, err := e.run(n.Children[0], snapshotLSN)
	if err != nil {
		return nil, nil, err
	}
	rightRows, rightCols, err := e.run(n.Children[1], snapshotLSN)
	if err != nil {
		return nil, nil, err
	}
	cols := append(append([]string{}, leftCols...), rightCols...)
	return nestedLoop(leftRows, leftCols, rightRows, rightCols, n.JoinOn), cols, nil
}

func nestedLoop(leftRows []types.Row, leftCols []string, rightRows []types.Row, rightCols []string, on []planner.JoinCondition) []types.Row {
	var leftIdx, rightIdx int = -1, -1
	if len(on) > 0 {
		leftIdx = indexOfString(leftCols, on[0].LeftColumn)
		rightIdx = indexOfString(rightCols, on[0].RightColumn)
	}

	var out []types.Row
	for _, lrow := range leftRows {
		for _, rrow := range rightRows {
			if leftIdx >= 0 && rightIdx >= 0 {
				if lrow[leftIdx].Compare(rrow[rightIdx]) != 0 {
					continue
				}
			}
			out = append(out, concatRows(lrow, rrow))
		}
	}
	return out
}

func concatRows(a, b types.Row) types.Row {
	out := make(types.Row, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// runAggregate groups rows by GroupBy columns and evaluates each
// aggregate expression per group using an in-memory hash table, the
// strategy spec 4.7 names for aggregation.
func runAggregate(rows []types.Row, cols []string, groupBy []string, aggs []planner.AggregateExpr) ([]types.Row, []string, error) {
	groupIdx := make([]int, len(groupBy))
	for i, g := range groupBy {
		groupIdx[i] = indexOfString(cols, g)
	}

	type group struct {
		key  types.Row
		rows []types.Row
	}
	order := make([]string, 0)
	groups := make(map[string]*group)

	for _, row := range rows {
		key := make(types.Row, len(groupIdx))
		for i, idx := range groupIdx {
			if idx >= 0 {
				key[i] = row[idx]
			}
		}
		k := fmt.Sprint(key)
		g, ok := groups[k]
		if !ok {
			g = &group{key: key}
			groups[k] = g
			order = append(order, k)
		}
		g.rows = append(g.rows, row)
	}

	outCols := append([]string{}, groupBy...)
	for _, a := range aggs {
		name := a.Alias
		if name == "" {
			name = aggFuncName(a.Func) + "(" + a.Column + ")"
		}
		outCols = append(outCols, name)
	}

	var out []types.Row
	for _, k := range order {
		g := groups[k]
		row := append(types.Row{}, g.key...)
		for _, a := range aggs {
			row = append(row, evalAggregate(a, g.rows, cols))
		}
		out = append(out, row)
	}
	return out, outCols, nil
}

func aggFuncName(f planner.AggregateFunc) string {
	switch f {
	case planner.AggCount:
		return "COUNT"
	case planner.AggSum:
		return "SUM"
	case planner.AggMin:
		return "MIN"
	case planner.AggMax:
		return "MAX"
	default:
		return "AGG"
	}
}

func evalAggregate(a planner.AggregateExpr, rows []types.Row, cols []string) types.Comparable {
	if a.Func == planner.AggCount {
		return types.IntKey(int64(len(rows)))
	}
	idx := indexOfString(cols, a.Column)
	if idx < 0 || len(rows) == 0 {
		return types.NullKey{}
	}
	best := rows[0][idx]
	sum := 0.0
	for _, row := range rows {
		v := row[idx]
		if f, ok := v.(types.FloatKey); ok {
			sum += float64(f)
		} else if i, ok := v.(types.IntKey); ok {
			sum += float64(i)
		}
		switch a.Func {
		case planner.AggMin:
			if v.Compare(best) < 0 {
				best = v
			}
		case planner.AggMax:
			if v.Compare(best) > 0 {
				best = v
			}
		}
	}
	switch a.Func {
	case planner.AggSum:
		return types.FloatKey(sum)
	case planner.AggMin, planner.AggMax:
		return best
	default:
		return types.NullKey{}
	}
}
