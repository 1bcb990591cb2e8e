package phases

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/gitops"
	"github.com/HendryAvila/evonest/internal/state"
)

const verifyCommandTimeout = 5 * time.Minute

// VerifyResult is the gate between Execute and commit.
type VerifyResult struct {
	BuildPassed  bool
	TestPassed   bool
	Overall      bool
	ChangedFiles []string
	DiffStat     string
	CommitMsg    string
	Notes        string
}

// Verify runs the configured build and test commands and inspects the
// working tree. A changed file matching a boundary pattern fails the
// cycle even when build and tests pass.
func Verify(ctx context.Context, st *state.ProjectState, cfg *config.Config, git *gitops.Gateway, cycle int) *VerifyResult {
	res := &VerifyResult{BuildPassed: true, TestPassed: true}
	var notes []string

	if cfg.Verify.Build != "" {
		if err := runVerifyCommand(ctx, st, cfg.Verify.Build); err != nil {
			res.BuildPassed = false
			notes = append(notes, "build: FAILED")
			st.Logf("    Build: FAILED (%v)", err)
		} else {
			notes = append(notes, "build: passed")
			st.Log("    Build: PASSED")
		}
	}

	if cfg.Verify.Test != "" {
		if err := runVerifyCommand(ctx, st, cfg.Verify.Test); err != nil {
			res.TestPassed = false
			notes = append(notes, "tests: FAILED")
			st.Logf("    Tests: FAILED (%v)", err)
		} else {
			notes = append(notes, "tests: passed")
			st.Log("    Tests: PASSED")
		}
	}

	changed, err := git.ChangedFiles(ctx)
	if err != nil {
		st.Logf("    Changed-files check failed: %v", err)
	}
	res.ChangedFiles = changed
	res.DiffStat = git.DiffStat(ctx)

	res.Overall = res.BuildPassed && res.TestPassed
	if violated := boundaryViolations(changed, cfg.BoundaryPatterns); len(violated) > 0 {
		res.Overall = false
		notes = append(notes, "boundary violation: "+strings.Join(violated, ", "))
		st.Logf("    Boundary violation: %s", strings.Join(violated, ", "))
	}

	planText, _ := st.ReadText(st.PlanPath())
	res.CommitMsg = ExtractCommitMessage(planText, cycle)
	res.Notes = strings.Join(notes, ", ")
	return res
}

// runVerifyCommand splits the configured command into binary plus
// arguments and runs it directly. No shell is involved, so commands
// needing pipes or globs belong in a script the config points at.
func runVerifyCommand(ctx context.Context, st *state.ProjectState, command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	runCtx, cancel := context.WithTimeout(ctx, verifyCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, fields[0], fields[1:]...)
	cmd.Dir = st.Project
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("timed out after %s", verifyCommandTimeout)
	}
	if err != nil {
		tail := output.String()
		if len(tail) > 500 {
			tail = tail[len(tail)-500:]
		}
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(tail))
	}
	return nil
}

// boundaryViolations returns the changed paths that match a protected
// pattern. Patterns match as path prefixes or filepath globs.
func boundaryViolations(changed, patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	var violated []string
	for _, file := range changed {
		norm := filepath.ToSlash(file)
		for _, pat := range patterns {
			if matchesBoundary(norm, pat) {
				violated = append(violated, file)
				break
			}
		}
	}
	return violated
}

func matchesBoundary(path, pattern string) bool {
	pattern = filepath.ToSlash(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	if strings.HasPrefix(path, strings.TrimSuffix(pattern, "/")+"/") || path == strings.TrimSuffix(pattern, "/") {
		return true
	}
	if ok, err := filepath.Match(pattern, path); err == nil && ok {
		return true
	}
	// Let a glob on the basename protect files anywhere in the tree.
	if !strings.Contains(pattern, "/") {
		if ok, err := filepath.Match(pattern, filepath.Base(path)); err == nil && ok {
			return true
		}
	}
	return false
}
