// Package gate decides whether a change introduces untested lines. It joins
// parsed diff records against a coverage index, aggregates line statistics,
// derives the target coverage for the change, and composes the pass/fail
// outcome.
package gate

import (
	"github.com/bkyoung/covgate/internal/domain"
)

// Reconcile classifies every changed line of one file against its coverage
// map: lines without instrumentation are ignored, the rest are covered or
// uncovered. The fold is order-independent.
//
// An empty (but non-nil) map means the report resolved the file yet recorded
// no lines for it, so every changed line counts as uncovered.
func Reconcile(record domain.ChangeRecord, cov domain.CoverageMap) domain.LineStats {
	if len(cov) == 0 {
		return domain.LineStats{Uncovered: len(record.LinesChanged)}
	}

	var stats domain.LineStats
	for _, line := range record.LinesChanged {
		covered, known := cov[line]
		switch {
		case !known:
			stats.Ignored++
		case covered:
			stats.Covered++
		default:
			stats.Uncovered++
		}
	}
	return stats
}

// UncoveredLines returns the changed lines the coverage map marks as
// uncovered, preserving diff order. Lines without instrumentation are not
// included.
func UncoveredLines(record domain.ChangeRecord, cov domain.CoverageMap) []int {
	var uncovered []int
	for _, line := range record.LinesChanged {
		if covered, known := cov[line]; known && !covered {
			uncovered = append(uncovered, line)
		}
	}
	return uncovered
}
