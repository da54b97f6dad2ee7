package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bkyoung/covgate/internal/coverage"
	"github.com/bkyoung/covgate/internal/domain"
	"github.com/bkyoung/covgate/internal/usecase/gate"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// ErrGateFailed indicates the coverage gate did not pass. The failure
// message has already been written to the command output when this is
// returned.
var ErrGateFailed = errors.New("coverage gate failed")

// GateRunner runs the full CI gate against GitLab pipeline state.
type GateRunner interface {
	Check(ctx context.Context, req gate.CheckRequest) (gate.CheckResult, error)
}

// DiffEvaluator evaluates diff coverage for a single report without any
// hosting-service credentials.
type DiffEvaluator interface {
	DiffCoverage(ctx context.Context, reportPath string, dialect coverage.Dialect, ref string, baseline float64) (domain.GateResult, error)
	AggregateCoverage(path string, dialect coverage.Dialect) (float64, error)
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	// NewGateRunner builds the full gate flow for a project and token.
	// Credentials arrive as command arguments, so the runner cannot be
	// constructed ahead of time.
	NewGateRunner func(projectID, token string) GateRunner

	// CurrentBranch reports the checked-out branch of the working
	// repository, used when check is invoked without a branch argument.
	CurrentBranch func(ctx context.Context) (string, error)

	DiffEvaluator  DiffEvaluator
	DefaultDialect string
	Args           Arguments
	Version        string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "covgate",
		Short: "Diff coverage gate for CI pipelines",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(checkCommand(deps))
	root.AddCommand(diffCommand(deps))
	root.AddCommand(summaryCommand(deps))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.PreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func checkCommand(deps Dependencies) *cobra.Command {
	var module string
	var reportPath string
	var summaryPath string
	var dialectName string
	var overrideThreshold float64

	cmd := &cobra.Command{
		Use:   "check <project-id> <token> [branch]",
		Short: "Run the full coverage gate against pipeline state",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, err := resolveDialect(dialectName, deps.DefaultDialect)
			if err != nil {
				return err
			}

			branch, err := resolveBranch(cmd.Context(), args, deps.CurrentBranch)
			if err != nil {
				return err
			}

			report := reportPath
			summary := summaryPath
			if report == "" {
				report = defaultReportPath(module, dialect)
			}
			if summary == "" {
				summary = defaultSummaryPath(module, dialect)
			}

			runner := deps.NewGateRunner(args[0], args[1])
			result, err := runner.Check(cmd.Context(), gate.CheckRequest{
				Branch:            branch,
				ReportPath:        report,
				SummaryPath:       summary,
				Dialect:           dialect,
				OverrideThreshold: overrideThreshold,
			})
			if err != nil {
				return err
			}
			if !result.Passed {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
				return ErrGateFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&module, "module", "api-test", "Module directory containing the coverage build output")
	cmd.Flags().StringVar(&reportPath, "report", "", "Coverage report file (overrides the module layout)")
	cmd.Flags().StringVar(&summaryPath, "summary", "", "Aggregate summary artifact (overrides the module layout)")
	cmd.Flags().StringVar(&dialectName, "dialect", "", "Coverage report dialect (jacoco, cobertura)")
	cmd.Flags().Float64Var(&overrideThreshold, "override-threshold", 0, "Baseline coverage percent to bootstrap a pipeline with")

	return cmd
}

func diffCommand(deps Dependencies) *cobra.Command {
	var dialectName string

	cmd := &cobra.Command{
		Use:   "diff <report> <commit> <target-coverage>",
		Short: "Evaluate diff coverage for a report against a reference",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, err := resolveDialect(dialectName, deps.DefaultDialect)
			if err != nil {
				return err
			}
			target, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid target coverage %q: %w", args[2], err)
			}

			result, err := deps.DiffEvaluator.DiffCoverage(cmd.Context(), args[0], dialect, args[1], target)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Coverage=%g%%\n", result.DiffCoverage*100)
			if !result.Passed {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
				return ErrGateFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dialectName, "dialect", "", "Coverage report dialect (jacoco, cobertura)")

	return cmd
}

func summaryCommand(deps Dependencies) *cobra.Command {
	var dialectName string

	cmd := &cobra.Command{
		Use:   "summary <artifact>",
		Short: "Print aggregate coverage from a summary artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, err := resolveDialect(dialectName, deps.DefaultDialect)
			if err != nil {
				return err
			}

			pct, err := deps.DiffEvaluator.AggregateCoverage(args[0], dialect)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Coverage=%g%%\n", pct)
			return nil
		},
	}

	cmd.Flags().StringVar(&dialectName, "dialect", "", "Coverage report dialect (jacoco, cobertura)")

	return cmd
}

// resolveBranch returns the explicit branch argument, or falls back to the
// checked-out branch of the working repository.
func resolveBranch(ctx context.Context, args []string, detect func(ctx context.Context) (string, error)) (string, error) {
	if len(args) > 2 {
		return args[2], nil
	}
	if detect == nil {
		return "", errors.New("no branch given and branch detection is unavailable")
	}
	branch, err := detect(ctx)
	if err != nil {
		return "", fmt.Errorf("detecting current branch: %w", err)
	}
	return branch, nil
}

func resolveDialect(flagValue, defaultValue string) (coverage.Dialect, error) {
	name := flagValue
	if name == "" {
		name = defaultValue
	}
	if name == "" {
		name = string(coverage.DialectJacoco)
	}
	return coverage.ParseDialect(name)
}

// defaultReportPath mirrors the conventional build layouts: a Jacoco
// aggregate lives under the module's site directory, a Cobertura report
// under target/.
func defaultReportPath(module string, dialect coverage.Dialect) string {
	if dialect == coverage.DialectCobertura {
		return filepath.Join("target", "coverage.xml")
	}
	return filepath.Join(module, "target", "site", "jacoco-aggregate", "jacoco.xml")
}

func defaultSummaryPath(module string, dialect coverage.Dialect) string {
	if dialect == coverage.DialectCobertura {
		return filepath.Join("target", "coverage.xml")
	}
	return filepath.Join(module, "target", "site", "jacoco-aggregate", "index.html")
}
