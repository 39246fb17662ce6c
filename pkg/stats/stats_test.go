package stats

import "testing"

func TestMissingStatisticsFallBackToConservativeEstimate(t *testing.T) {
	c := NewCatalog()
	if rows := c.TableRows("unknown"); rows != conservativeRowEstimate {
		t.Fatalf("expected conservative estimate, got %d", rows)
	}
}

func TestEqualitySelectivityIsInverseDistinctCount(t *testing.T) {
	c := NewCatalog()
	c.AddIndexStatistics("age_idx", 1000, 50)
	got := c.EqualitySelectivity("age_idx")
	want := 1.0 / 50.0
	if got != want {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestEqualitySelectivityUnknownWithoutStats(t *testing.T) {
	c := NewCatalog()
	if got := c.EqualitySelectivity("missing_idx"); got != UnknownSelectivity {
		t.Fatalf("expected unknown default %f, got %f", UnknownSelectivity, got)
	}
}

func TestScanCostEqualsTableRows(t *testing.T) {
	c := NewCatalog()
	c.AddTableStatistics("t", 500)
	if got := c.ScanCost("t"); got != 500 {
		t.Fatalf("expected 500, got %f", got)
	}
}

func TestIndexSeekCheaperThanScanOnSelectiveIndex(t *testing.T) {
	c := NewCatalog()
	c.AddTableStatistics("t", 10000)
	c.AddIndexStatistics("t_age_idx", 10000, 100)

	seek := c.IndexSeekCost("t", "t_age_idx")
	scan := c.ScanCost("t")
	if seek >= scan {
		t.Fatalf("expected index seek (%f) cheaper than scan (%f)", seek, scan)
	}
}

func TestHashJoinCheaperThanNestedLoopForLargeInputs(t *testing.T) {
	hash := HashJoinCost(10000, 10000, 10000)
	loop := NestedLoopJoinCost(10000, 10000)
	if hash >= loop {
		t.Fatalf("expected hash join (%f) cheaper than nested loop (%f)", hash, loop)
	}
}

func TestParallelCostDividesByDegree(t *testing.T) {
	if got := ParallelCost(100, 4); got != 25 {
		t.Fatalf("expected 25, got %f", got)
	}
	if got := ParallelCost(100, 0); got != 100 {
		t.Fatalf("expected unchanged cost for degree<=1, got %f", got)
	}
}

func TestNeedsAcceleratorCrossesThreshold(t *testing.T) {
	c := NewCatalog()
	c.AddTableStatistics("small", 1000)
	c.AddTableStatistics("big", 2_000_000)

	if c.NeedsAccelerator("small") {
		t.Fatal("small table should not need accelerator")
	}
	if !c.NeedsAccelerator("big") {
		t.Fatal("big table should need accelerator")
	}
}
