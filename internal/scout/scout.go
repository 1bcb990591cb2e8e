// Package scout runs the external-search phase: the LM searches outside
// the repository for relevant developments, scores them for relevance,
// and findings above the configured threshold become stimuli for the
// next Observe. A persistent cache keyed on (source_url, title) keeps
// findings from being injected twice.
package scout

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/envelope"
	"github.com/HendryAvila/evonest/internal/phases"
	"github.com/HendryAvila/evonest/internal/runner"
	"github.com/HendryAvila/evonest/internal/state"
)

//go:embed prompts/scout.md
var scoutPrompt string

const seenContextLimit = 50

// Summary reports what one scout pass found and injected.
type Summary struct {
	Found            int
	Injected         int
	SkippedScore     int
	SkippedDuplicate int
}

// Finding is one entry from the scout envelope.
type Finding struct {
	Title             string `json:"title"`
	SourceURL         string `json:"source_url"`
	RelevanceScore    int    `json:"relevance_score"`
	Summary           string `json:"summary"`
	MutationDirection string `json:"mutation_direction,omitempty"`
}

type scoutEnvelope struct {
	Findings []Finding `json:"findings"`
}

// ShouldRun reports whether scout is due this cycle.
func ShouldRun(p *state.Progress, cfg *config.Config) bool {
	if !cfg.ScoutEnabled || cfg.ScoutCycleInterval <= 0 || p.TotalCycles == 0 {
		return false
	}
	return p.TotalCycles-p.LastScoutCycle >= cfg.ScoutCycleInterval
}

// FindingID derives a stable short identifier from the dedup key.
func FindingID(sourceURL, title string) string {
	sum := sha256.Sum256([]byte(title + "|" + sourceURL))
	return hex.EncodeToString(sum[:])[:12]
}

// Run executes one scout pass and applies its findings.
func Run(ctx context.Context, st *state.ProjectState, cfg *config.Config, lm phases.LM, currentCycle int) (*Summary, error) {
	prompt, err := buildPrompt(st)
	if err != nil {
		return nil, err
	}

	result, err := lm.Run(ctx, runner.Request{
		Prompt:       prompt,
		Model:        cfg.Model,
		MaxTurns:     cfg.MaxTurns.Scout,
		AllowedTools: runner.ScoutTools,
		Dir:          st.Project,
	})
	if err != nil {
		return nil, fmt.Errorf("scout: %w", err)
	}
	if !result.Success {
		st.Log("  Scout: LM run failed, skipping application")
		return &Summary{}, nil
	}
	return Apply(st, cfg, result.Output, currentCycle)
}

func buildPrompt(st *state.ProjectState) (string, error) {
	parts := []string{scoutPrompt}

	if identity, err := st.ReadIdentity(); err == nil && identity != "" {
		parts = append(parts, "\n---\n\n## Project Identity\n\n"+identity)
	}
	if env, err := st.ReadEnvironment(); err == nil && len(env.Keywords) > 0 {
		parts = append(parts, "\n---\n\n## Search Keywords\n\n- "+strings.Join(env.Keywords, "\n- "))
	}

	cache, err := st.ReadScoutCache()
	if err != nil {
		return "", fmt.Errorf("reading scout cache: %w", err)
	}
	if len(cache.Seen) > 0 {
		seen := cache.Seen
		if len(seen) > seenContextLimit {
			seen = seen[len(seen)-seenContextLimit:]
		}
		var lines []string
		for _, f := range seen {
			lines = append(lines, fmt.Sprintf("- %s (%s)", f.Title, f.ID))
		}
		parts = append(parts, "\n---\n\n## Already Reported Findings (do not repeat)\n\n"+strings.Join(lines, "\n"))
	}

	return strings.Join(parts, "\n"), nil
}

// Apply parses the scout envelope, injects qualifying findings as
// stimuli, and records every titled finding (injected or not) in the
// cache so it is never re-evaluated. Findings without a title are skipped.
func Apply(st *state.ProjectState, cfg *config.Config, output string, currentCycle int) (*Summary, error) {
	sum := &Summary{}

	var env scoutEnvelope
	if !envelope.Decode(output, &env) {
		st.Log("  Scout: JSON parse failed, skipping application")
		return sum, nil
	}
	if len(env.Findings) == 0 {
		return sum, nil
	}

	cache, err := st.ReadScoutCache()
	if err != nil {
		return sum, fmt.Errorf("reading scout cache: %w", err)
	}

	sum.Found = len(env.Findings)
	for _, f := range env.Findings {
		if f.Title == "" {
			continue
		}
		if cache.HasSeen(f.SourceURL, f.Title) {
			sum.SkippedDuplicate++
			continue
		}

		if f.RelevanceScore >= cfg.ScoutMinRelevance {
			if _, err := st.AddStimulus(renderStimulus(f)); err != nil {
				return sum, fmt.Errorf("injecting scout stimulus: %w", err)
			}
			sum.Injected++
		} else {
			sum.SkippedScore++
		}

		cache.Seen = append(cache.Seen, state.SeenFinding{
			ID:        FindingID(f.SourceURL, f.Title),
			SourceURL: f.SourceURL,
			Title:     f.Title,
			Cycle:     currentCycle,
		})
	}

	if err := st.WriteScoutCache(cache); err != nil {
		return sum, fmt.Errorf("writing scout cache: %w", err)
	}
	return sum, nil
}

func renderStimulus(f Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Scout Finding: %s\n\n", f.Title)
	if f.SourceURL != "" {
		fmt.Fprintf(&b, "**Source**: %s\n", f.SourceURL)
	}
	fmt.Fprintf(&b, "**Relevance**: %d/10\n\n", f.RelevanceScore)
	b.WriteString("## Summary\n\n" + f.Summary + "\n")
	if f.MutationDirection != "" {
		b.WriteString("\n## Suggested Direction\n\n" + f.MutationDirection + "\n")
	}
	return b.String()
}
