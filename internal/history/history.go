// Package history renders cycle records for prompts and for the
// evonest_history tool. Records live as JSON files under
// .evonest/history/; the sqlite index in internal/memory mirrors them
// for aggregate queries but the files stay the source of truth.
package history

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/evonest/internal/state"
)

// Recent returns the last count cycle records, newest first.
func Recent(st *state.ProjectState, count int) ([]*state.CycleRecord, error) {
	paths, err := st.ListHistoryFiles()
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	var recs []*state.CycleRecord
	for i := len(paths) - 1; i >= 0 && len(recs) < count; i-- {
		rec, err := st.ReadCycleRecord(paths[i])
		if err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// BuildSummary renders the recent-cycles section injected into Observe
// prompts, newest first. Returns "" when no history exists.
func BuildSummary(st *state.ProjectState, count int) (string, error) {
	recs, err := Recent(st, count)
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("## Recent Cycle History\n\n")
	for _, rec := range recs {
		b.WriteString("- " + summaryLine(rec) + "\n")
	}
	return b.String(), nil
}

func summaryLine(rec *state.CycleRecord) string {
	status := "FAILED"
	if rec.Success {
		status = "SUCCESS"
	}
	parts := []string{
		fmt.Sprintf("**%s**: %s", rec.Timestamp, status),
		"persona=" + orDash(rec.Mutation.Persona),
	}
	if rec.Mutation.Adversarial != "" {
		parts = append(parts, "adversarial="+rec.Mutation.Adversarial)
	}
	parts = append(parts, fmt.Sprintf("%ds", rec.DurationSeconds))
	if rec.ImprovementTitle != "" {
		parts = append(parts, rec.ImprovementTitle)
	}
	return strings.Join(parts, " | ")
}

// Report renders the detailed listing behind evonest_history.
func Report(st *state.ProjectState, count int) (string, error) {
	recs, err := Recent(st, count)
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "No cycles recorded yet.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d cycle(s), newest first:\n\n", len(recs))
	for _, rec := range recs {
		status := "FAILED"
		if rec.Success {
			status = "SUCCESS"
		}
		fmt.Fprintf(&b, "## Cycle %d — %s (%s)\n", rec.Cycle, status, rec.Timestamp)
		fmt.Fprintf(&b, "- Mutation: persona=%s adversarial=%s\n",
			orDash(rec.Mutation.Persona), orDash(rec.Mutation.Adversarial))
		fmt.Fprintf(&b, "- Duration: %ds\n", rec.DurationSeconds)
		if rec.ImprovementTitle != "" {
			fmt.Fprintf(&b, "- Improvement: %s\n", rec.ImprovementTitle)
		}
		if rec.CommitMessage != "" {
			fmt.Fprintf(&b, "- Commit: %s\n", rec.CommitMessage)
		}
		if len(rec.ChangedFiles) > 0 {
			fmt.Fprintf(&b, "- Changed files: %s\n", strings.Join(rec.ChangedFiles, ", "))
		}
		if rec.Notes != "" {
			fmt.Fprintf(&b, "- Notes: %s\n", rec.Notes)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
