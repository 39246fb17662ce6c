package planner

import (
	"sort"

	"github.com/geeqodb/geeqodb/pkg/dberrors"
	"github.com/geeqodb/geeqodb/pkg/index"
	"github.com/geeqodb/geeqodb/pkg/stats"
	"github.com/geeqodb/geeqodb/pkg/types"
)

// SchemaSource resolves a table's schema, letting the planner validate
// column references without depending on pkg/catalog directly.
type SchemaSource interface {
	Table(name string) (types.Schema, error)
}

// Planner turns logical plans into physical ones, applying a fixed
// sequence of rewrite rules: predicate pushdown, access-method
// selection, join ordering, then parallelism/accelerator hints.
type Planner struct {
	schema  SchemaSource
	indexes *index.Registry
	stats   *stats.Catalog
}

// New builds a planner against the given schema source, index registry
// and statistics catalog.
func New(schema SchemaSource, indexes *index.Registry, statsCatalog *stats.Catalog) *Planner {
	return &Planner{schema: schema, indexes: indexes, stats: statsCatalog}
}

// Plan compiles a logical tree into a physical one.
func (p *Planner) Plan(logical *LogicalNode) (*PhysicalNode, error) {
	if err := p.validate(logical); err != nil {
		return nil, err
	}

	pushed := p.pushDownPredicates(logical, nil)
	phys, err := p.selectAccessMethods(pushed)
	if err != nil {
		return nil, err
	}
	phys = p.orderJoins(phys)
	p.applyParallelismHints(phys)
	return phys, nil
}

// validate checks every referenced table and column exists, producing
// TableNotFound/ColumnNotFound the way spec 4.6 requires.
func (p *Planner) validate(n *LogicalNode) error {
	switch n.Kind {
	case LogicalScan:
		if _, err := p.schema.Table(n.Table); err != nil {
			return err
		}
	case LogicalFilter:
		table, err := p.scanTableOf(n)
		if err == nil {
			for _, pred := range n.Predicates {
				if err := p.checkColumn(table, pred.Column); err != nil {
					return err
				}
			}
		}
	case LogicalProject:
		table, err := p.scanTableOf(n)
		if err == nil {
			for _, col := range n.Columns {
				if err := p.checkColumn(table, col); err != nil {
					return err
				}
			}
		}
	}
	for _, c := range n.Children {
		if err := p.validate(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) checkColumn(table, column string) error {
	schema, err := p.schema.Table(table)
	if err != nil {
		return err
	}
	if schema.IndexOf(column) < 0 {
		return &dberrors.ColumnNotFoundError{Table: table, Column: column}
	}
	return nil
}

// scanTableOf finds the table a node's subtree ultimately scans, for
// column-reference validation; returns an error if none is found (an
// empty subtree has nothing to validate against).
func (p *Planner) scanTableOf(n *LogicalNode) (string, error) {
	cur := n
	for cur != nil {
		if cur.Kind == LogicalScan {
			return cur.Table, nil
		}
		if len(cur.Children) == 0 {
			break
		}
		cur = cur.Children[0]
	}
	return "", &dberrors.InvalidArgumentsError{Reason: "no underlying scan to validate columns against"}
}

// pushDownPredicates moves Filter predicates down onto the nearest Scan
// beneath them, the first rewrite rule, applied in fixed order before
// access-method selection so a Scan already knows what it can push into
// an index seek or range.
func (p *Planner) pushDownPredicates(n *LogicalNode, inherited []Predicate) *LogicalNode {
	switch n.Kind {
	case LogicalScan:
		return &LogicalNode{Kind: LogicalScan, Table: n.Table, Predicates: inherited}
	case LogicalFilter:
		combined := append(append([]Predicate{}, inherited...), n.Predicates...)
		return p.pushDownPredicates(n.Children[0], combined)
	default:
		out := &LogicalNode{
			Kind: n.Kind, Table: n.Table, Columns: n.Columns, JoinOn: n.JoinOn,
			GroupBy: n.GroupBy, Aggregates: n.Aggregates, SortBy: n.SortBy, Limit: n.Limit,
		}
		for _, child := range n.Children {
			out.Children = append(out.Children, p.pushDownPredicates(child, nil))
		}
		return out
	}
}

// selectAccessMethods is the second rewrite rule: choose TableScan,
// IndexSeek or IndexRange for each scan, preferring IndexSeek over
// IndexRange over TableScan on a tie in estimated cost.
func (p *Planner) selectAccessMethods(n *LogicalNode) (*PhysicalNode, error) {
	switch n.Kind {
	case LogicalScan:
		return p.planScan(n), nil

	case LogicalProject:
		child, err := p.selectAccessMethods(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &PhysicalNode{
			AccessMethod: AccessProject, Columns: n.Columns, Children: []*PhysicalNode{child},
			EstimatedRows: child.EstimatedRows, EstimatedCost: child.EstimatedCost,
		}, nil

	case LogicalJoin:
		left, err := p.selectAccessMethods(n.Children[0])
		if err != nil {
			return nil, err
		}
		right, err := p.selectAccessMethods(n.Children[1])
		if err != nil {
			return nil, err
		}
		return p.planJoin(left, right, n.JoinOn), nil

	case LogicalAggregate:
		child, err := p.selectAccessMethods(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &PhysicalNode{
			AccessMethod: AccessAggregate, GroupBy: n.GroupBy, Aggregates: n.Aggregates,
			Children: []*PhysicalNode{child}, EstimatedRows: child.EstimatedRows,
		}, nil

	case LogicalSort:
		child, err := p.selectAccessMethods(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &PhysicalNode{
			AccessMethod: AccessSort, SortBy: n.SortBy, Children: []*PhysicalNode{child},
			EstimatedRows: child.EstimatedRows, EstimatedCost: child.EstimatedCost,
		}, nil

	case LogicalLimit:
		child, err := p.selectAccessMethods(n.Children[0])
		if err != nil {
			return nil, err
		}
		rows := n.Limit
		if int64(rows) > child.EstimatedRows && child.EstimatedRows > 0 {
			rows = int(child.EstimatedRows)
		}
		return &PhysicalNode{
			AccessMethod: AccessLimit, Limit: n.Limit, Children: []*PhysicalNode{child},
			EstimatedRows: int64(rows),
		}, nil
	}
	return nil, &dberrors.InvalidArgumentsError{Reason: "unknown logical node kind"}
}

// planScan picks between TableScan, IndexSeek and IndexRange for one
// scan node, given whatever predicates pushdown attached to it.
func (p *Planner) planScan(n *LogicalNode) *PhysicalNode {
	tableRows := p.stats.TableRows(n.Table)

	best := &PhysicalNode{
		AccessMethod: AccessTableScan, Table: n.Table, Predicates: n.Predicates,
		EstimatedRows: tableRows, EstimatedCost: p.stats.ScanCost(n.Table),
	}

	for _, pred := range n.Predicates {
		if !pred.IsSeekable() {
			continue
		}
		desc, ok := p.indexes.ForColumn(n.Table, pred.Column)
		if !ok {
			continue
		}

		var candidate *PhysicalNode
		if pred.Operator == OpEqual {
			cost := p.stats.IndexSeekCost(n.Table, desc.Name)
			sel := p.stats.EqualitySelectivity(desc.Name)
			candidate = &PhysicalNode{
				AccessMethod: AccessIndexSeek, Table: n.Table, Predicates: n.Predicates,
				IndexInfo:     IndexInfo{Name: desc.Name, Column: pred.Column},
				EstimatedRows: int64(sel * float64(tableRows)), EstimatedCost: cost,
			}
		} else if pred.IsRange() {
			sel := stats.UnknownSelectivity
			cost := p.stats.IndexRangeCost(n.Table, desc.Name, sel)
			candidate = &PhysicalNode{
				AccessMethod: AccessIndexRange, Table: n.Table, Predicates: n.Predicates,
				IndexInfo:     IndexInfo{Name: desc.Name, Column: pred.Column},
				EstimatedRows: int64(sel * float64(tableRows)), EstimatedCost: cost,
			}
		}
		if candidate == nil {
			continue
		}
		if betterAccessMethod(candidate, best) {
			best = candidate
		}
	}
	return best
}

// betterAccessMethod reports whether candidate should replace current,
// by cost first and then by the IndexSeek > IndexRange > TableScan
// tie-break when costs are equal.
func betterAccessMethod(candidate, current *PhysicalNode) bool {
	if candidate.EstimatedCost != current.EstimatedCost {
		return candidate.EstimatedCost < current.EstimatedCost
	}
	return accessMethodRank(candidate.AccessMethod) < accessMethodRank(current.AccessMethod)
}

func accessMethodRank(m AccessMethod) int {
	switch m {
	case AccessIndexSeek:
		return 0
	case AccessIndexRange:
		return 1
	default:
		return 2
	}
}

// planJoin picks HashJoin when a usable equi-join condition is present,
// building the hash table on the smaller input, and falls back to
// NestedLoopJoin otherwise.
func (p *Planner) planJoin(left, right *PhysicalNode, on []JoinCondition) *PhysicalNode {
	outputCard := estimateJoinCardinality(left.EstimatedRows, right.EstimatedRows)

	if len(on) > 0 {
		build, probe := left, right
		if right.EstimatedRows < left.EstimatedRows {
			build, probe = right, left
		}
		return &PhysicalNode{
			AccessMethod: AccessHashJoin, JoinOn: on, Children: []*PhysicalNode{build, probe},
			EstimatedRows: outputCard,
			EstimatedCost: stats.HashJoinCost(left.EstimatedRows, right.EstimatedRows, outputCard),
		}
	}

	return &PhysicalNode{
		AccessMethod: AccessNestedLoopJoin, JoinOn: on, Children: []*PhysicalNode{left, right},
		EstimatedRows: outputCard,
		EstimatedCost: stats.NestedLoopJoinCost(left.EstimatedRows, right.EstimatedRows),
	}
}

func estimateJoinCardinality(leftRows, rightRows int64) int64 {
	if leftRows < rightRows {
		return leftRows
	}
	return rightRows
}

// orderJoins is the third rewrite rule: a greedy left-deep join order,
// visiting a join tree's leaf scans in ascending estimated row count so
// the cheapest inputs build the join from the bottom up.
func (p *Planner) orderJoins(n *PhysicalNode) *PhysicalNode {
	if n.AccessMethod != AccessHashJoin && n.AccessMethod != AccessNestedLoopJoin {
		for i, child := range n.Children {
			n.Children[i] = p.orderJoins(child)
		}
		return n
	}

	leaves := collectJoinLeaves(n)
	for i := range leaves {
		leaves[i] = p.orderJoins(leaves[i])
	}
	sort.SliceStable(leaves, func(i, j int) bool {
		return leaves[i].EstimatedRows < leaves[j].EstimatedRows
	})

	result := leaves[0]
	for _, leaf := range leaves[1:] {
		result = p.planJoin(result, leaf, n.JoinOn)
	}
	return result
}

// collectJoinLeaves flattens a tree of joins (hash and nested-loop
// alike) into its non-join leaf inputs.
func collectJoinLeaves(n *PhysicalNode) []*PhysicalNode {
	var leaves []*PhysicalNode
	var walk func(*PhysicalNode)
	walk = func(cur *PhysicalNode) {
		if cur.AccessMethod == AccessHashJoin || cur.AccessMethod == AccessNestedLoopJoin {
			for _, c := range cur.Children {
				walk(c)
			}
			return
		}
		leaves = append(leaves, cur)
	}
	walk(n)
	return leaves
}

// applyParallelismHints is the fourth rewrite rule: any node whose
// estimated row count crosses the accelerator threshold gets a
// parallelism/accelerator hint.
func (p *Planner) applyParallelismHints(n *PhysicalNode) {
	if n.EstimatedRows > stats.AcceleratorThreshold {
		n.UseAccelerator = true
		n.ParallelDegree = 4
	}
	for _, c := range n.Children {
		p.applyParallelismHints(c)
	}
}
