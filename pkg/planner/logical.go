package planner

// LogicalKind names a logical plan node's operator.
type LogicalKind int

const (
	LogicalScan LogicalKind = iota
	LogicalFilter
	LogicalProject
	LogicalJoin
	LogicalAggregate
	LogicalSort
	LogicalLimit
)

// LogicalNode is one node of the unoptimized query tree the planner
// accepts as input, built directly from the parsed query.
type LogicalNode struct {
	Kind LogicalKind

	// LogicalScan
	Table string

	// LogicalFilter
	Predicates []Predicate

	// LogicalProject
	Columns []string

	// LogicalJoin
	JoinOn []JoinCondition

	// LogicalAggregate
	GroupBy    []string
	Aggregates []AggregateExpr

	// LogicalSort
	SortBy []SortKey

	// LogicalLimit
	Limit int

	Children []*LogicalNode
}

// JoinCondition is an equi-join predicate between a column on the left
// input and a column on the right input.
type JoinCondition struct {
	LeftColumn  string
	RightColumn string
}

// AggregateFunc names a supported aggregate function.
type AggregateFunc int

const (
	AggCount AggregateFunc = iota
	AggSum
	AggMin
	AggMax
)

// AggregateExpr is one aggregate expression in a GROUP BY clause.
type AggregateExpr struct {
	Func   AggregateFunc
	Column string
	Alias  string
}

// SortKey is one ORDER BY column, ascending unless Descending is set.
type SortKey struct {
	Column     string
	Descending bool
}

// Scan builds a leaf logical scan node over table.
func Scan(table string) *LogicalNode {
	return &LogicalNode{Kind: LogicalScan, Table: table}
}

// Filter wraps child with a predicate list.
func Filter(child *LogicalNode, predicates ...Predicate) *LogicalNode {
	return &LogicalNode{Kind: LogicalFilter, Predicates: predicates, Children: []*LogicalNode{child}}
}

// Project wraps child, keeping only the named columns.
func Project(child *LogicalNode, columns ...string) *LogicalNode {
	return &LogicalNode{Kind: LogicalProject, Columns: columns, Children: []*LogicalNode{child}}
}

// Join combines left and right on the given equi-join conditions.
func Join(left, right *LogicalNode, on ...JoinCondition) *LogicalNode {
	return &LogicalNode{Kind: LogicalJoin, JoinOn: on, Children: []*LogicalNode{left, right}}
}
