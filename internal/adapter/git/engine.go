// Package git resolves the reference commit and extracts the diff the gate
// evaluates, backed by go-git with an exec fallback for operations that need
// the real working tree.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	formatdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Engine provides the version-control operations the gate needs.
type Engine struct {
	repoDir string
}

// NewEngine constructs a Git engine for the provided repository directory.
func NewEngine(repoDir string) *Engine {
	return &Engine{repoDir: repoDir}
}

// Fetch updates the remote tracking ref for the target branch so the
// merge-base is computed against the remote's current tip.
func (e *Engine) Fetch(ctx context.Context, remote, branch string) error {
	_, err := runGitCommand(ctx, e.repoDir, "fetch", remote, branch)
	return err
}

// MergeBase returns the hash of the merge base between HEAD and
// origin/<targetBranch>.
func (e *Engine) MergeBase(ctx context.Context, targetBranch string) (string, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}

	headCommit, err := resolveCommit(repo, "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}

	targetCommit, err := resolveCommit(repo, "origin/"+targetBranch)
	if err != nil {
		return "", fmt.Errorf("resolve target branch: %w", err)
	}

	bases, err := headCommit.MergeBase(targetCommit)
	if err != nil {
		return "", fmt.Errorf("compute merge base: %w", err)
	}
	if len(bases) == 0 {
		return "", fmt.Errorf("no merge base between HEAD and origin/%s", targetBranch)
	}
	return bases[0].Hash.String(), nil
}

// DiffAgainst returns the unified diff between the given ref and HEAD with
// zero context lines, the shape the diff parser expects. When
// includeUncommitted is set the working tree is diffed instead of the HEAD
// commit, which requires the git binary.
func (e *Engine) DiffAgainst(ctx context.Context, ref string, includeUncommitted bool) (string, error) {
	if includeUncommitted {
		return runGitCommand(ctx, e.repoDir, "diff", ref, "-U0")
	}

	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}

	baseCommit, err := resolveCommit(repo, ref)
	if err != nil {
		return "", fmt.Errorf("resolve base ref: %w", err)
	}
	headCommit, err := resolveCommit(repo, "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}

	patch, err := baseCommit.PatchContext(ctx, headCommit)
	if err != nil {
		return "", fmt.Errorf("compute patch: %w", err)
	}

	var buf bytes.Buffer
	encoder := formatdiff.NewUnifiedEncoder(&buf, 0)
	if err := encoder.Encode(patch); err != nil {
		return "", fmt.Errorf("encode patch: %w", err)
	}
	return buf.String(), nil
}

// CurrentBranch returns the name of the checked-out branch.
func (e *Engine) CurrentBranch(ctx context.Context) (string, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	name := head.Name()
	if name.IsBranch() {
		return name.Short(), nil
	}
	return "", fmt.Errorf("detached HEAD")
}

func resolveCommit(repo *goGit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		name := plumbing.Revision(candidate)
		hash, err := repo.ResolveRevision(name)
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("unable to resolve ref %s", ref)
}

func runGitCommand(ctx context.Context, repoDir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repoDir}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %v: %w", args, ctx.Err())
		}
		if stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("git %v: %w", args, err)
	}
	return stdout.String(), nil
}
