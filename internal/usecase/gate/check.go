package gate

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/bkyoung/covgate/internal/coverage"
	"github.com/bkyoung/covgate/internal/diff"
	"github.com/bkyoung/covgate/internal/domain"
)

const defaultTargetBranch = "main"

// GitEngine abstracts the local repository operations the check flow needs.
type GitEngine interface {
	Fetch(ctx context.Context, remote, branch string) error
	MergeBase(ctx context.Context, targetBranch string) (string, error)
	DiffAgainst(ctx context.Context, ref string, includeUncommitted bool) (string, error)
}

// StatusClient looks up pipeline state on the hosting service.
type StatusClient interface {
	LatestCoverage(ctx context.Context, commitSHA string) (float64, error)
	TargetBranch(ctx context.Context, sourceBranch string) (string, bool, error)
}

// CheckRequest describes a full gate run for the current HEAD.
type CheckRequest struct {
	Branch            string
	ReportPath        string
	SummaryPath       string
	Dialect           coverage.Dialect
	OverrideThreshold float64 // percent; zero means no override
}

// CheckResult is the outcome of a full gate run. Gate is nil when the
// aggregate did not decrease and the diff gate never ran.
type CheckResult struct {
	ReferenceHash string
	Baseline      float64 // percent
	Current       float64 // percent
	Gate          *domain.GateResult
	Passed        bool
	Message       string
}

// CheckerDeps captures the collaborators for the full gate flow.
type CheckerDeps struct {
	Git            GitEngine
	Statuses       StatusClient
	Evaluator      *Evaluator
	Policy         ThresholdPolicy
	CoverageConfig coverage.Config

	// Progress is where human-readable progress lines are written.
	// Defaults to io.Discard.
	Progress io.Writer

	// OpenFile opens report artifacts. Defaults to os.Open.
	OpenFile func(name string) (io.ReadCloser, error)
}

// Checker orchestrates the full CI gate: baseline lookup, aggregate
// comparison, and the diff coverage decision.
type Checker struct {
	git       GitEngine
	statuses  StatusClient
	evaluator *Evaluator
	policy    ThresholdPolicy
	covCfg    coverage.Config
	progress  io.Writer
	openFile  func(name string) (io.ReadCloser, error)
}

// NewChecker constructs a Checker from its dependencies.
func NewChecker(deps CheckerDeps) *Checker {
	progress := deps.Progress
	if progress == nil {
		progress = io.Discard
	}
	openFile := deps.OpenFile
	if openFile == nil {
		openFile = func(name string) (io.ReadCloser, error) {
			return os.Open(name)
		}
	}
	return &Checker{
		git:       deps.Git,
		statuses:  deps.Statuses,
		evaluator: deps.Evaluator,
		policy:    deps.Policy,
		covCfg:    deps.CoverageConfig,
		progress:  progress,
		openFile:  openFile,
	}
}

// Check runs the full gate. The baseline comes from the merge base's
// pipeline statuses unless an override threshold bootstraps it. The diff
// gate only runs when the aggregate actually decreased; an override skips
// it entirely.
func (c *Checker) Check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	target, found, err := c.statuses.TargetBranch(ctx, req.Branch)
	if err != nil {
		return CheckResult{}, fmt.Errorf("resolve target branch: %w", err)
	}
	if !found || target == "" {
		target = defaultTargetBranch
	}

	override := req.OverrideThreshold > 0
	referenceHash := "(using override coverage)"
	var baseline float64
	if override {
		baseline = req.OverrideThreshold
	} else {
		if err := c.git.Fetch(ctx, "origin", target); err != nil {
			return CheckResult{}, fmt.Errorf("fetch %s: %w", target, err)
		}
		referenceHash, err = c.git.MergeBase(ctx, target)
		if err != nil {
			return CheckResult{}, fmt.Errorf("merge base with %s: %w", target, err)
		}
		baseline, err = c.statuses.LatestCoverage(ctx, referenceHash)
		if err != nil {
			return CheckResult{}, fmt.Errorf("baseline coverage for %s: %w", referenceHash, err)
		}
	}

	baseline = round4(baseline)
	fmt.Fprintf(c.progress, "coverage on reference hash %s=%g\n", referenceHash, baseline)

	current, err := c.AggregateCoverage(req.SummaryPath, req.Dialect)
	if err != nil {
		return CheckResult{}, err
	}
	current = round4(current)
	fmt.Fprintf(c.progress, "current_coverage on HEAD=%g\n", current)

	result := CheckResult{
		ReferenceHash: referenceHash,
		Baseline:      baseline,
		Current:       current,
		Passed:        true,
	}
	if current >= baseline || override {
		return result, nil
	}

	gateResult, err := c.DiffCoverage(ctx, req.ReportPath, req.Dialect, referenceHash, baseline/100)
	if err != nil {
		return CheckResult{}, err
	}
	result.Gate = &gateResult

	if !gateResult.Passed {
		result.Passed = false
		result.Message = fmt.Sprintf(
			"Overall coverage has decreased and diff coverage %g%% is below the target coverage of %g%%\n%s",
			gateResult.DiffCoverage*100, gateResult.TargetCoverage*100, gateResult.Message)
		return result, nil
	}

	if c.policy.AggregateDropExceeded(current, baseline) {
		result.Passed = false
		result.Message = fmt.Sprintf(
			"Coverage has decreased by more than %g%%, but diff coverage was ok. Check whether the test pipelines ran properly.",
			c.policy.MaxAggregateDrop)
		return result, nil
	}

	return result, nil
}

// DiffCoverage evaluates the diff gate for one report against a reference.
// The baseline is a fraction; the effective target comes from the policy.
func (c *Checker) DiffCoverage(ctx context.Context, reportPath string, dialect coverage.Dialect, ref string, baseline float64) (domain.GateResult, error) {
	diffText, err := c.git.DiffAgainst(ctx, ref, false)
	if err != nil {
		return domain.GateResult{}, fmt.Errorf("diff against %s: %w", ref, err)
	}
	changes, err := diff.Parse(diffText)
	if err != nil {
		return domain.GateResult{}, err
	}

	f, err := c.openFile(reportPath)
	if err != nil {
		return domain.GateResult{}, fmt.Errorf("open coverage report: %w", err)
	}
	defer f.Close()

	index, err := coverage.NewIndex(f, dialect, c.covCfg)
	if err != nil {
		return domain.GateResult{}, fmt.Errorf("parse %s report: %w", dialect.DisplayName(), err)
	}

	return c.evaluator.Evaluate(changes, index, baseline)
}

// AggregateCoverage extracts the whole-tree coverage percentage from a
// rendered summary artifact. HTML artifacts are treated as Jacoco summary
// pages; anything else is parsed as a Cobertura report.
func (c *Checker) AggregateCoverage(path string, dialect coverage.Dialect) (float64, error) {
	f, err := c.openFile(path)
	if err != nil {
		return 0, fmt.Errorf("open coverage summary: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".html") || dialect == coverage.DialectJacoco {
		pct, err := coverage.SummaryFromHTML(f)
		if err != nil {
			return 0, fmt.Errorf("summary from %s: %w", path, err)
		}
		return pct, nil
	}

	pct, err := coverage.SummaryFromXML(f, c.covCfg)
	if err != nil {
		return 0, fmt.Errorf("summary from %s: %w", path, err)
	}
	return pct, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
