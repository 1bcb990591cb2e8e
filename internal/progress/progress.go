package progress

import (
	"fmt"
	"sort"
	"strings"

	"github.com/HendryAvila/evonest/internal/state"
)

// Update records the outcome of one cycle into the progress state:
// global counters, per-mutation stats, and area touch counts derived
// from the changed files. Weights for all mutations are recalculated
// afterwards.
func Update(p *state.Progress, personaID, adversarialID string, success bool, changedFiles []string) {
	p.TotalCycles++
	if success {
		p.TotalSuccesses++
	} else {
		p.TotalFailures++
	}

	touch(p.PersonaStats, personaID, success, p.TotalCycles)
	if adversarialID != "" {
		touch(p.AdversarialStats, adversarialID, success, p.TotalCycles)
	}

	for _, f := range changedFiles {
		area := AreaOf(f)
		if area == "" {
			continue
		}
		p.AreaTouches[area]++
		if p.AreaTouches[area] >= ConvergenceThreshold {
			p.ConvergenceFlags[area] = true
		}
	}

	RecalculateWeights(p, p.TotalCycles)
}

func touch(stats map[string]*state.MutationStat, id string, success bool, cycle int) {
	stat, ok := stats[id]
	if !ok {
		stat = &state.MutationStat{Weight: 1.0}
		stats[id] = stat
	}
	stat.Uses++
	if success {
		stat.Successes++
	} else {
		stat.Failures++
	}
	stat.LastUsedCycle = cycle
}

// AreaOf maps a changed file path to its convergence area: the first
// path segment, or the filename itself for top-level files.
func AreaOf(path string) string {
	path = strings.TrimSpace(strings.ReplaceAll(path, "\\", "/"))
	path = strings.TrimPrefix(path, "./")
	if path == "" {
		return ""
	}
	if i := strings.Index(path, "/"); i > 0 {
		return path[:i]
	}
	return path
}

// BuildConvergenceContext renders the converging-areas annotation added
// to Observe prompts, or "" when nothing has converged yet.
func BuildConvergenceContext(p *state.Progress) string {
	var areas []string
	for area, flagged := range p.ConvergenceFlags {
		if flagged {
			areas = append(areas, area)
		}
	}
	if len(areas) == 0 {
		return ""
	}
	sort.Strings(areas)

	var b strings.Builder
	b.WriteString("## Convergence Notice\n\n")
	b.WriteString("These areas have been modified repeatedly in recent cycles. ")
	b.WriteString("Prefer improvements elsewhere unless something there is genuinely broken:\n\n")
	for _, area := range areas {
		fmt.Fprintf(&b, "- %s (%d touches)\n", area, p.AreaTouches[area])
	}
	return b.String()
}

// Report renders the detailed statistics view behind evonest_progress.
func Report(p *state.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycles: %d | successes: %d | failures: %d\n\n",
		p.TotalCycles, p.TotalSuccesses, p.TotalFailures)

	b.WriteString("## Persona Weights\n\n")
	writeStatTable(&b, p.PersonaStats)

	if len(p.AdversarialStats) > 0 {
		b.WriteString("\n## Adversarial Weights\n\n")
		writeStatTable(&b, p.AdversarialStats)
	}

	if len(p.AreaTouches) > 0 {
		b.WriteString("\n## Area Touches\n\n")
		areas := make([]string, 0, len(p.AreaTouches))
		for area := range p.AreaTouches {
			areas = append(areas, area)
		}
		sort.Slice(areas, func(i, j int) bool {
			if p.AreaTouches[areas[i]] != p.AreaTouches[areas[j]] {
				return p.AreaTouches[areas[i]] > p.AreaTouches[areas[j]]
			}
			return areas[i] < areas[j]
		})
		for _, area := range areas {
			mark := ""
			if p.ConvergenceFlags[area] {
				mark = " [converging]"
			}
			fmt.Fprintf(&b, "- %s: %d%s\n", area, p.AreaTouches[area], mark)
		}
	}

	return b.String()
}

func writeStatTable(b *strings.Builder, stats map[string]*state.MutationStat) {
	if len(stats) == 0 {
		b.WriteString("No runs recorded yet.\n")
		return
	}
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := stats[id]
		fmt.Fprintf(b, "- %s: weight %.2f (uses %d, ok %d, fail %d, last cycle %d)\n",
			id, s.Weight, s.Uses, s.Successes, s.Failures, s.LastUsedCycle)
	}
}
