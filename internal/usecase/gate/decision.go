package gate

import (
	"fmt"
	"math"
	"strings"

	"github.com/bkyoung/covgate/internal/coverage"
	"github.com/bkyoung/covgate/internal/domain"
)

// Renderer produces the human-readable annotated listing of uncovered lines.
type Renderer interface {
	Render(reports []domain.FileReport) (string, error)
}

// Evaluator joins a parsed diff against a coverage index and decides
// pass/fail. It holds no mutable state; every evaluation is a one-shot
// computation over its inputs.
type Evaluator struct {
	policy   ThresholdPolicy
	renderer Renderer
}

// NewEvaluator constructs an evaluator with the given policy and renderer.
func NewEvaluator(policy ThresholdPolicy, renderer Renderer) *Evaluator {
	return &Evaluator{policy: policy, renderer: renderer}
}

// Evaluate computes diff coverage for the change records, derives the target
// from the baseline fraction, and returns the gate decision. Files the index
// cannot attribute are invisible to the decision; a diff touching no
// instrumented lines passes unconditionally.
func (e *Evaluator) Evaluate(changes []domain.ChangeRecord, index coverage.Index, baseline float64) (domain.GateResult, error) {
	var stats domain.LineStats
	var reports []domain.FileReport

	for _, change := range changes {
		cov, ok := index.Lookup(change.File)
		if !ok {
			continue
		}
		stats = stats.Add(Reconcile(change, cov))
		reports = append(reports, domain.FileReport{
			File:           change.File,
			LinesChanged:   change.LinesChanged,
			UncoveredLines: UncoveredLines(change, cov),
			Coverage:       cov,
		})
	}

	total, instrumented := stats.Coverage()
	if !instrumented {
		// Nothing attributable: unattributable changes never block a merge.
		total = 1.0
	}

	target := e.policy.TargetFraction(baseline, stats)
	result := domain.GateResult{
		Passed:         total >= target,
		DiffCoverage:   total,
		TargetCoverage: target,
		Stats:          stats,
	}
	if result.Passed {
		return result, nil
	}

	result.LinesRequired = linesRequired(target, total, stats)
	message, err := e.failureMessage(result, reports)
	if err != nil {
		return domain.GateResult{}, err
	}
	result.Message = message
	return result, nil
}

// linesRequired is how many more covered lines would lift the diff to the
// target. The epsilon keeps binary float noise from bumping the ceiling one
// line too high (0.95-0.94 is not exactly 0.01).
func linesRequired(target, total float64, stats domain.LineStats) int {
	instrumented := stats.Covered + stats.Uncovered
	missing := (target - total) * float64(instrumented)
	return int(math.Ceil(missing - 1e-9))
}

func (e *Evaluator) failureMessage(result domain.GateResult, reports []domain.FileReport) (string, error) {
	detail, err := e.renderer.Render(reports)
	if err != nil {
		return "", fmt.Errorf("render uncovered lines: %w", err)
	}

	plural := ""
	if result.LinesRequired != 1 {
		plural = "s"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n❗Coverage of %g%% did not meet target of %g%%.❗\n",
		result.DiffCoverage*100, result.TargetCoverage*100)
	fmt.Fprintf(&b, "❗You require at least %d more line%s of coverage❗\n\n",
		result.LinesRequired, plural)
	b.WriteString(detail)
	return b.String(), nil
}
