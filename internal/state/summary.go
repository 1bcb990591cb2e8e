package state

import (
	"fmt"
	"sort"
	"strings"
)

// Summary builds the human-readable status report backing the status
// tool and CLI command.
func (s *ProjectState) Summary() (string, error) {
	if !s.Initialized() {
		return fmt.Sprintf("Project not initialized: %s\nRun evonest_init first.", s.Project), nil
	}

	progress, err := s.ReadProgress()
	if err != nil {
		return "", fmt.Errorf("reading progress: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Evolution Status: %s\n\n", s.Project)

	rate := 0.0
	if progress.TotalCycles > 0 {
		rate = float64(progress.TotalSuccesses) / float64(progress.TotalCycles) * 100
	}
	fmt.Fprintf(&b, "Cycles: %d (success: %d, failure: %d, rate: %.0f%%)\n",
		progress.TotalCycles, progress.TotalSuccesses, progress.TotalFailures, rate)

	if resume, _ := s.ReadCautiousResume(); resume != nil {
		fmt.Fprintf(&b, "Cautious session paused at cycle %d (token %s); resume or cancel it.\n",
			resume.Cycle, resume.Token)
	}
	if fileExists(s.LockPath()) {
		b.WriteString("Lock present: a run may be in progress.\n")
	}

	stimuli, _ := s.ListStimuli()
	decisions, _ := s.ListDecisions()
	proposals, _ := s.ListProposals()
	fmt.Fprintf(&b, "Pending: %d stimuli, %d decisions, %d proposals\n",
		len(stimuli), len(decisions), len(proposals))

	if len(progress.ConvergenceFlags) > 0 {
		var areas []string
		for area, flagged := range progress.ConvergenceFlags {
			if flagged {
				areas = append(areas, area)
			}
		}
		sort.Strings(areas)
		if len(areas) > 0 {
			fmt.Fprintf(&b, "Converging areas: %s\n", strings.Join(areas, ", "))
		}
	}

	if advice, err := s.ReadAdvice(); err == nil && !advice.Empty() {
		fmt.Fprintf(&b, "\nStrategic direction (cycle %d): %s\n",
			advice.GeneratedCycle, advice.StrategicDirection)
	}

	return b.String(), nil
}
