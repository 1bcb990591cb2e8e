// Package improve turns an accepted proposal into code: the proposal
// document becomes the plan, Execute and Verify run against it, and the
// proposal is archived to done/ once the outcome is durable. No persona
// statistics are touched; improve runs outside the evolution scheduler.
package improve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/gitops"
	"github.com/HendryAvila/evonest/internal/lock"
	"github.com/HendryAvila/evonest/internal/phases"
	"github.com/HendryAvila/evonest/internal/state"
)

// Proposal is one pending proposal file with the metadata read from its
// head: the title from the `# ...: <title>` heading and the priority
// from the first bold field line whose value is high, medium or low.
type Proposal struct {
	Path     string
	Title    string
	Priority string
}

var priorityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

// List loads every pending proposal, oldest first.
func List(st *state.ProjectState) ([]Proposal, error) {
	paths, err := st.ListProposals()
	if err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}
	var props []Proposal
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		title, priority := parseHead(string(data))
		props = append(props, Proposal{Path: p, Title: title, Priority: priority})
	}
	return props, nil
}

// parseHead extracts the title and priority from a proposal document.
// The heading label is localized, so the title is whatever follows the
// first colon; the priority value is always english high/medium/low.
func parseHead(content string) (title, priority string) {
	priority = "medium"
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if title == "" && strings.HasPrefix(line, "# ") {
			if _, after, ok := strings.Cut(line[2:], ": "); ok {
				title = strings.TrimSpace(after)
			} else {
				title = strings.TrimSpace(line[2:])
			}
			continue
		}
		if strings.HasPrefix(line, "**") {
			_, after, ok := strings.Cut(line, "**: ")
			if !ok {
				continue
			}
			val := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(after, "  ")))
			if _, known := priorityRank[val]; known {
				priority = val
				return title, priority
			}
		}
	}
	return title, priority
}

// pick selects the proposal to implement: an explicit filename wins,
// otherwise the highest priority and, within a priority, the oldest
// file (List returns oldest first).
func pick(props []Proposal, filename string) (*Proposal, error) {
	if len(props) == 0 {
		return nil, fmt.Errorf("no pending proposals")
	}
	if filename != "" {
		name := filepath.Base(filename)
		for i := range props {
			if filepath.Base(props[i].Path) == name {
				return &props[i], nil
			}
		}
		return nil, fmt.Errorf("proposal not found: %s", name)
	}
	best := 0
	for i := 1; i < len(props); i++ {
		if priorityRank[props[i].Priority] < priorityRank[props[best].Priority] {
			best = i
		}
	}
	return &props[best], nil
}

// Run implements one proposal. filename selects a specific proposal;
// empty means auto-select by priority then age.
func Run(ctx context.Context, st *state.ProjectState, cfg *config.Config, lm phases.LM, git *gitops.Gateway, filename string) (string, error) {
	lk, err := lock.Acquire(st.LockPath())
	if err != nil {
		return "", err
	}
	defer lk.Release()

	props, err := List(st)
	if err != nil {
		return "", err
	}
	prop, err := pick(props, filename)
	if err != nil {
		return "", err
	}
	st.Logf("Improve: implementing %q (%s)", prop.Title, filepath.Base(prop.Path))

	content, err := os.ReadFile(prop.Path)
	if err != nil {
		return "", fmt.Errorf("reading proposal: %w", err)
	}
	if err := st.WriteText(st.PlanPath(), string(content)); err != nil {
		return "", fmt.Errorf("writing plan: %w", err)
	}

	slug := state.Slugify(prop.Title)
	if err := git.Stash(ctx, "evonest-improve-"+slug); err != nil {
		return "", fmt.Errorf("stashing before execute: %w", err)
	}

	execRes, err := phases.Execute(ctx, st, cfg, lm, nil)
	if err != nil || !execRes.Success {
		if rerr := git.Revert(ctx); rerr != nil {
			return "", fmt.Errorf("reverting after failed execute: %w", rerr)
		}
		return fmt.Sprintf("Improve failed during execution; %q stays pending.", prop.Title), nil
	}

	verify := phases.Verify(ctx, st, cfg, git, 0)
	switch {
	case verify.Overall && len(verify.ChangedFiles) == 0:
		// Design-only proposal: nothing to commit, archive it anyway.
		if err := git.StashDrop(ctx); err != nil {
			return "", fmt.Errorf("dropping stash: %w", err)
		}
		if _, err := st.MarkProposalDone(prop.Path); err != nil {
			return "", err
		}
		return fmt.Sprintf("Improve finished with no code changes; %q archived.", prop.Title), nil

	case verify.Overall:
		msg := "improve: " + prop.Title
		if cfg.CodeOutput == "pr" {
			url, err := git.CommitPR(ctx, msg, "evonest/improve-"+slug)
			if err != nil {
				return "", fmt.Errorf("committing improvement: %w", err)
			}
			if url != "" {
				st.Logf("Improve: pull request %s", url)
			}
		} else {
			if err := git.Commit(ctx, msg); err != nil {
				return "", fmt.Errorf("committing improvement: %w", err)
			}
		}
		if err := git.StashDrop(ctx); err != nil {
			return "", fmt.Errorf("dropping stash: %w", err)
		}
		if _, err := st.MarkProposalDone(prop.Path); err != nil {
			return "", err
		}
		return fmt.Sprintf("Improve succeeded: %q implemented (%d file(s) changed).",
			prop.Title, len(verify.ChangedFiles)), nil

	default:
		st.Log("Improve: verify failed, reverting")
		if err := git.Revert(ctx); err != nil {
			return "", fmt.Errorf("reverting after failed verify: %w", err)
		}
		return fmt.Sprintf("Improve failed verification; %q stays pending.", prop.Title), nil
	}
}
