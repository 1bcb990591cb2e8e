// Package gitops is the engine's git gateway. Every mutation cycle is
// bracketed by a stash checkpoint; passing cycles commit (or open a PR
// branch), failing cycles revert the working tree to the checkpoint.
// All commands run with the project root as working directory and use
// explicit argument lists, never shell string concatenation.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Gateway runs git (and gh, for PR mode) against one project.
type Gateway struct {
	dir    string
	logger *zap.SugaredLogger
}

// New returns a Gateway rooted at the project directory.
func New(projectDir string) *Gateway {
	return &Gateway{dir: projectDir, logger: zap.S()}
}

func (g *Gateway) run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = g.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out := strings.TrimRight(stdout.String(), "\r\n")
	if err != nil {
		return out, fmt.Errorf("%s %s: %w (%s)",
			name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func (g *Gateway) git(ctx context.Context, args ...string) (string, error) {
	return g.run(ctx, "git", args...)
}

// HasRepo reports whether the project directory is inside a git work tree.
func (g *Gateway) HasRepo(ctx context.Context) bool {
	out, err := g.git(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// CurrentBranch returns the checked-out branch name.
func (g *Gateway) CurrentBranch(ctx context.Context) (string, error) {
	return g.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// Stash checkpoints the working tree under a label. A clean tree
// produces no stash entry; Revert and StashDrop tolerate an empty
// stash.
func (g *Gateway) Stash(ctx context.Context, label string) error {
	_, err := g.git(ctx, "stash", "push", "--include-untracked", "-m", label)
	if err != nil && strings.Contains(err.Error(), "No local changes") {
		return nil
	}
	return err
}

// StashDrop discards the most recent checkpoint after a successful cycle.
func (g *Gateway) StashDrop(ctx context.Context) error {
	_, err := g.git(ctx, "stash", "drop")
	if err != nil && isEmptyStash(err) {
		return nil
	}
	return err
}

// Revert restores the pre-cycle state after a failed cycle. Order
// matters: discard tracked modifications, remove new untracked files,
// then restore the checkpoint.
func (g *Gateway) Revert(ctx context.Context) error {
	if _, err := g.git(ctx, "checkout", "--", "."); err != nil {
		return fmt.Errorf("discarding tracked changes: %w", err)
	}
	if _, err := g.git(ctx, "clean", "-fd", "--", "."); err != nil {
		return fmt.Errorf("removing untracked files: %w", err)
	}
	if _, err := g.git(ctx, "stash", "pop"); err != nil && !isEmptyStash(err) {
		return fmt.Errorf("restoring checkpoint: %w", err)
	}
	return nil
}

// Commit stages everything and commits with the given message.
func (g *Gateway) Commit(ctx context.Context, message string) error {
	if _, err := g.git(ctx, "add", "-A", "--", "."); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}
	if _, err := g.git(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// CommitPR commits the cycle's changes on a new branch, pushes it, opens
// a pull request via gh, and returns to the original branch. Returns the
// PR URL when gh succeeds.
func (g *Gateway) CommitPR(ctx context.Context, message, branch string) (string, error) {
	base, err := g.CurrentBranch(ctx)
	if err != nil {
		return "", fmt.Errorf("reading current branch: %w", err)
	}

	if _, err := g.git(ctx, "checkout", "-b", branch); err != nil {
		return "", fmt.Errorf("creating branch %s: %w", branch, err)
	}
	if err := g.Commit(ctx, message); err != nil {
		// Leave the tree intact but get back on the base branch.
		_, _ = g.git(ctx, "checkout", base)
		return "", err
	}
	if _, err := g.git(ctx, "push", "-u", "origin", branch); err != nil {
		_, _ = g.git(ctx, "checkout", base)
		return "", fmt.Errorf("pushing branch %s: %w", branch, err)
	}

	prURL, err := g.run(ctx, "gh", "pr", "create",
		"--title", message,
		"--body", "Automated improvement by evonest.",
		"--head", branch,
	)
	if err != nil {
		g.logger.Warnw("gh pr create failed; branch pushed without PR", "branch", branch, "err", err)
		prURL = ""
	}

	if _, err := g.git(ctx, "checkout", base); err != nil {
		return prURL, fmt.Errorf("returning to branch %s: %w", base, err)
	}
	return prURL, nil
}

// ChangedFiles lists paths that differ from HEAD, including untracked
// files, relative to the project root.
func (g *Gateway) ChangedFiles(ctx context.Context) ([]string, error) {
	out, err := g.git(ctx, "status", "--porcelain", "--", ".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		// Renames show as "old -> new"; keep the new path.
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		path = strings.Trim(path, `"`)
		if path != "" {
			files = append(files, path)
		}
	}
	return files, nil
}

// DiffStat returns the diffstat against HEAD, or "no changes".
func (g *Gateway) DiffStat(ctx context.Context) string {
	out, err := g.git(ctx, "diff", "--stat", "HEAD", "--", ".")
	if err != nil || out == "" {
		return "no changes"
	}
	return out
}

// RecentLog returns the last n one-line commit summaries.
func (g *Gateway) RecentLog(ctx context.Context, n int) (string, error) {
	out, err := g.git(ctx, "log", "--oneline", fmt.Sprintf("-%d", n))
	if err != nil {
		return "", nil // fresh repos have no commits; not an error for context building
	}
	return out, nil
}

// LsFiles returns tracked file paths.
func (g *Gateway) LsFiles(ctx context.Context) ([]string, error) {
	out, err := g.git(ctx, "ls-files")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// sourceExtensions are counted when sizing the Observe turn budget.
var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".rs": true, ".java": true, ".kt": true, ".rb": true, ".c": true, ".h": true,
	".cpp": true, ".hpp": true, ".cs": true, ".swift": true, ".scala": true,
	".sh": true, ".sql": true, ".ex": true, ".exs": true, ".zig": true,
}

// CountSourceFiles counts tracked files with a source extension.
func (g *Gateway) CountSourceFiles(ctx context.Context) (int, error) {
	files, err := g.LsFiles(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, f := range files {
		if sourceExtensions[strings.ToLower(filepath.Ext(f))] {
			count++
		}
	}
	return count, nil
}

func isEmptyStash(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "No stash entries") || strings.Contains(msg, "No stash found")
}
