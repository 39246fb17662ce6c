// Package stats implements the cost model and selectivity estimates the
// planner uses to pick access methods and join order. Statistics are
// kept per table and per index; a table or index with no recorded
// statistics gets a conservative large-row estimate rather than an
// error, since a missing estimate must never make a plan look cheaper
// than it is.
package stats

import "math"

// conservativeRowEstimate is used for any table or index with no
// recorded statistics, so a cold table never looks artificially cheap
// to the cost model.
const conservativeRowEstimate = 1_000_000

// AcceleratorThreshold is the row count above which the planner attaches
// a parallelism/accelerator hint to a physical node.
const AcceleratorThreshold = 1_000_000

// TableStatistics holds the row count for one table.
type TableStatistics struct {
	Rows int64
}

// IndexStatistics holds the row and distinct-value counts for one index.
type IndexStatistics struct {
	Rows          int64
	DistinctCount int64
}

// Catalog is the subset of statistics bookkeeping the cost model reads.
// It is a plain in-memory table, separate from pkg/catalog's schema
// catalog, so the planner can be exercised and tested without a live
// database.
type Catalog struct {
	tables  map[string]TableStatistics
	indexes map[string]IndexStatistics
}

// NewCatalog returns an empty statistics catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tables:  make(map[string]TableStatistics),
		indexes: make(map[string]IndexStatistics),
	}
}

// AddTableStatistics records (or replaces) the row count for a table.
func (c *Catalog) AddTableStatistics(table string, rows int64) {
	c.tables[table] = TableStatistics{Rows: rows}
}

// AddIndexStatistics records (or replaces) the row and distinct counts
// for an index.
func (c *Catalog) AddIndexStatistics(index string, rows, distinct int64) {
	c.indexes[index] = IndexStatistics{Rows: rows, DistinctCount: distinct}
}

// TableRows returns a table's estimated row count, falling back to the
// conservative default when no statistics have been recorded.
func (c *Catalog) TableRows(table string) int64 {
	if s, ok := c.tables[table]; ok {
		return s.Rows
	}
	return conservativeRowEstimate
}

// IndexRows returns an index's estimated row count, falling back to the
// conservative default when no statistics have been recorded.
func (c *Catalog) IndexRows(index string) int64 {
	if s, ok := c.indexes[index]; ok {
		return s.Rows
	}
	return conservativeRowEstimate
}

// EqualitySelectivity estimates the fraction of rows matching an
// equality predicate on index, as 1/distinct_count. An index with no
// recorded distinct count falls back to the unknown-predicate default.
func (c *Catalog) EqualitySelectivity(index string) float64 {
	s, ok := c.indexes[index]
	if !ok || s.DistinctCount <= 0 {
		return UnknownSelectivity
	}
	return 1.0 / float64(s.DistinctCount)
}

// UnknownSelectivity is the default fraction assumed for a predicate the
// cost model cannot estimate more precisely.
const UnknownSelectivity = 0.1

// RangeSelectivity estimates the fraction of rows in [lo, hi] as the
// fraction of the index's key range the bounds cover. Callers that
// cannot determine the key's domain span should use UnknownSelectivity
// instead.
func RangeSelectivity(lo, hi, domainLo, domainHi float64) float64 {
	if domainHi <= domainLo {
		return UnknownSelectivity
	}
	span := (hi - lo) / (domainHi - domainLo)
	if span < 0 {
		return 0
	}
	if span > 1 {
		return 1
	}
	return span
}

// ScanCost is the cost of a full table scan: one unit per row.
func (c *Catalog) ScanCost(table string) float64 {
	return float64(c.TableRows(table))
}

// IndexSeekCost is the cost of an equality lookup through index on
// table: log2(index rows) to descend the structure, plus the expected
// number of matching rows read back from the table.
func (c *Catalog) IndexSeekCost(table, index string) float64 {
	idxRows := float64(c.IndexRows(index))
	sel := c.EqualitySelectivity(index)
	return log2(idxRows) + sel*float64(c.TableRows(table))
}

// IndexRangeCost is the cost of a bounded range scan through index on
// table, given the estimated selectivity of the range.
func (c *Catalog) IndexRangeCost(table, index string, rangeSelectivity float64) float64 {
	idxRows := float64(c.IndexRows(index))
	return log2(idxRows) + rangeSelectivity*float64(c.TableRows(table))
}

// HashJoinCost is the cost of a hash join between two inputs with
// estimated row counts leftRows/rightRows producing an estimated
// cardinality outputCard.
func HashJoinCost(leftRows, rightRows, outputCard int64) float64 {
	return float64(leftRows + rightRows + outputCard)
}

// NestedLoopJoinCost is the cost of a nested-loop join: one probe of
// the right input per row of the left input.
func NestedLoopJoinCost(leftRows, rightRows int64) float64 {
	return float64(leftRows) * float64(rightRows)
}

// ParallelCost divides a cost estimate by the chosen degree of
// parallelism; degree <= 1 leaves the cost unchanged.
func ParallelCost(cost float64, degree int) float64 {
	if degree <= 1 {
		return cost
	}
	return cost / float64(degree)
}

// NeedsAccelerator reports whether a table's estimated row count crosses
// the threshold at which the planner attaches a parallelism/accelerator
// hint to the physical plan.
func (c *Catalog) NeedsAccelerator(table string) bool {
	return c.TableRows(table) > AcceleratorThreshold
}

func log2(x float64) float64 {
	if x <= 1 {
		return 0
	}
	return math.Log2(x)
}
