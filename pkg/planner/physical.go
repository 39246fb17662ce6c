package planner

// AccessMethod names how a physical scan node reaches its rows.
type AccessMethod int

const (
	AccessTableScan AccessMethod = iota
	AccessIndexSeek
	AccessIndexRange
	AccessHashJoin
	AccessNestedLoopJoin
	AccessAggregate
	AccessSort
	AccessLimit
	AccessProject
)

func (a AccessMethod) String() string {
	switch a {
	case AccessTableScan:
		return "TableScan"
	case AccessIndexSeek:
		return "IndexSeek"
	case AccessIndexRange:
		return "IndexRange"
	case AccessHashJoin:
		return "HashJoin"
	case AccessNestedLoopJoin:
		return "NestedLoopJoin"
	case AccessAggregate:
		return "Aggregate"
	case AccessSort:
		return "Sort"
	case AccessLimit:
		return "Limit"
	case AccessProject:
		return "Project"
	default:
		return "Unknown"
	}
}

// IndexInfo names the index a physical scan node uses, when its access
// method is IndexSeek or IndexRange.
type IndexInfo struct {
	Name   string
	Column string
}

// PhysicalNode is one node of the optimized, executable plan: an access
// method, the predicates it evaluates, the columns it produces, and
// execution hints (parallel degree, accelerator use) set by the
// rewrite rules.
type PhysicalNode struct {
	AccessMethod AccessMethod
	Table        string
	Predicates   []Predicate
	Columns      []string
	Children     []*PhysicalNode
	IndexInfo    IndexInfo

	UseAccelerator bool
	ParallelDegree int

	JoinOn     []JoinCondition
	GroupBy    []string
	Aggregates []AggregateExpr
	SortBy     []SortKey
	Limit      int

	EstimatedRows int64
	EstimatedCost float64
}
