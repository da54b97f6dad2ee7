package domain

// ChangeRecord captures the post-change path of a file touched by a diff
// and the 1-based line numbers added or modified in the new file version.
// Records are immutable once produced by the diff parser.
type ChangeRecord struct {
	File         string
	LinesChanged []int
}

// CoverageMap maps a 1-based line number to its covered status for one
// source file. A line absent from the map has no coverage instrumentation
// at all, which is distinct from being uncovered.
type CoverageMap map[int]bool

// LineStats aggregates the classification of changed lines. Every changed
// line lands in exactly one bucket.
type LineStats struct {
	Covered   int
	Uncovered int
	Ignored   int
}

// Add combines two stats counter-wise. Addition is commutative and
// associative, so per-file stats can be folded in any order.
func (s LineStats) Add(other LineStats) LineStats {
	return LineStats{
		Covered:   s.Covered + other.Covered,
		Uncovered: s.Uncovered + other.Uncovered,
		Ignored:   s.Ignored + other.Ignored,
	}
}

// Total returns the number of classified lines.
func (s LineStats) Total() int {
	return s.Covered + s.Uncovered + s.Ignored
}

// Coverage returns the fraction of instrumented changed lines that are
// covered, and false when no changed line carries instrumentation. Ignored
// lines never enter the denominator.
func (s LineStats) Coverage() (float64, bool) {
	denominator := s.Covered + s.Uncovered
	if denominator == 0 {
		return 0, false
	}
	return float64(s.Covered) / float64(denominator), true
}

// FileReport is the per-file unit the renderer consumes: the change record,
// the subset of changed lines known to be uncovered, and the full coverage
// map so surrounding context lines can be annotated too.
type FileReport struct {
	File           string
	LinesChanged   []int
	UncoveredLines []int
	Coverage       CoverageMap
}

// GateResult is the outcome of one gate evaluation.
type GateResult struct {
	Passed         bool
	DiffCoverage   float64 // fraction in [0,1]
	TargetCoverage float64 // fraction in [0,1]
	LinesRequired  int
	Stats          LineStats
	Message        string
}
