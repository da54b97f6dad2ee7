package gate

import "github.com/bkyoung/covgate/internal/domain"

// ThresholdPolicy derives the coverage target a change must meet.
//
// Small changes get leniency: when the absolute number of uncovered lines is
// at or below UncoveredLimit, only the LeniencyFloor applies, so a 12-line
// change with 2 uncovered lines is not blocked by a high baseline. Larger
// changes must meet the baseline coverage of the reference branch.
type ThresholdPolicy struct {
	// LeniencyFloor is the reduced target fraction for small changes.
	LeniencyFloor float64
	// UncoveredLimit is the largest uncovered-line count that still
	// qualifies for leniency.
	UncoveredLimit int
	// MaxAggregateDrop is the largest tolerated fall, in percentage
	// points, of aggregate coverage versus baseline before the gate fails
	// outright even when diff coverage passes.
	MaxAggregateDrop float64
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() ThresholdPolicy {
	return ThresholdPolicy{
		LeniencyFloor:    0.75,
		UncoveredLimit:   5,
		MaxAggregateDrop: 10,
	}
}

// TargetFraction returns the coverage fraction this change must reach.
func (p ThresholdPolicy) TargetFraction(baseline float64, stats domain.LineStats) float64 {
	if stats.Uncovered > p.UncoveredLimit {
		return baseline
	}
	return p.LeniencyFloor
}

// AggregateDropExceeded reports whether aggregate coverage has fallen too
// far below baseline. Both values are percentages. A drop this large with
// passing diff coverage usually means the test pipelines did not run
// properly.
func (p ThresholdPolicy) AggregateDropExceeded(current, baseline float64) bool {
	return current < baseline-p.MaxAggregateDrop
}
