package phases

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/evonest/internal/backlog"
	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/envelope"
	"github.com/HendryAvila/evonest/internal/state"
)

type observeEnvelope struct {
	Improvements []backlog.Improvement `json:"improvements"`
}

// saveObservations routes the improvements in an Observe envelope:
// proposal and ecosystem items become proposal files for human review,
// everything else enters the backlog. Entries without a title are kept
// under a fallback title.
func saveObservations(st *state.ProjectState, cfg *config.Config, output, personaID string) {
	var env observeEnvelope
	if !envelope.Decode(output, &env) || len(env.Improvements) == 0 {
		zap.S().Debugw("observe produced no parseable improvements")
		return
	}

	cycle := currentCycle(st)
	var regular []backlog.Improvement
	for _, imp := range env.Improvements {
		switch imp.Category {
		case "proposal", "ecosystem":
			writeProposal(st, cfg, imp, personaID, cycle)
		default:
			regular = append(regular, imp)
		}
	}

	if len(regular) > 0 {
		if _, err := backlog.SaveObservations(st, regular, personaID, cycle); err != nil {
			zap.S().Warnw("saving observations to backlog failed", "err", err)
		}
	}
}

// saveAllAsProposals writes every improvement as a proposal regardless
// of category. Analyze mode uses this so nothing reaches the backlog.
func saveAllAsProposals(st *state.ProjectState, cfg *config.Config, output, personaID string) int {
	var env observeEnvelope
	if !envelope.Decode(output, &env) {
		zap.S().Warnw("analyze output had no parseable improvements")
		return 0
	}
	cycle := currentCycle(st)
	saved := 0
	for _, imp := range env.Improvements {
		if writeProposal(st, cfg, imp, personaID, cycle) {
			saved++
		}
	}
	return saved
}

// proposalLabels localizes the proposal document per config.language.
type proposalLabels struct {
	heading, priority, persona, cycle, status, statusValue string
	description, files, footer1, footer2                   string
}

var proposalLocales = map[string]proposalLabels{
	"english": {
		heading: "Proposal", priority: "Priority", persona: "From persona",
		cycle: "Cycle", status: "Status", statusValue: "pending review",
		description: "Description", files: "Relevant Files",
		footer1: "*This is a design-level proposal. No code was changed.*  ",
		footer2: "*Review, reject, or act on this as the team sees fit.*",
	},
	"korean": {
		heading: "제안", priority: "우선순위", persona: "작성 페르소나",
		cycle: "사이클", status: "상태", statusValue: "검토 대기",
		description: "설명", files: "관련 파일",
		footer1: "*이것은 설계 수준의 제안입니다. 코드는 변경되지 않았습니다.*  ",
		footer2: "*팀에서 검토, 거부 또는 실행하세요.*",
	},
}

func writeProposal(st *state.ProjectState, cfg *config.Config, imp backlog.Improvement, personaID string, cycle int) bool {
	lbl, ok := proposalLocales[strings.ToLower(cfg.Language)]
	if !ok {
		lbl = proposalLocales["english"]
	}

	title := imp.Title
	if title == "" {
		title = "Untitled Proposal"
	}
	priority := imp.Priority
	if priority == "" {
		priority = "medium"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", lbl.heading, title)
	fmt.Fprintf(&b, "**%s**: %s  \n", lbl.priority, priority)
	fmt.Fprintf(&b, "**%s**: %s  \n", lbl.persona, personaID)
	fmt.Fprintf(&b, "**%s**: %d  \n", lbl.cycle, cycle)
	fmt.Fprintf(&b, "**%s**: %s\n\n", lbl.status, lbl.statusValue)
	fmt.Fprintf(&b, "## %s\n\n%s\n", lbl.description, imp.Description)
	if len(imp.Files) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", lbl.files)
		for _, f := range imp.Files {
			b.WriteString("- " + f + "\n")
		}
	}
	b.WriteString("\n---\n\n" + lbl.footer1 + "\n" + lbl.footer2 + "\n")

	if _, err := st.SaveProposal(personaID, title, b.String()); err != nil {
		zap.S().Warnw("saving proposal failed", "title", title, "err", err)
		return false
	}
	return true
}

// ExtractCommitMessage pulls the commit message from the plan envelope,
// falling back to a generic cycle message.
func ExtractCommitMessage(planText string, cycle int) string {
	var env struct {
		CommitMessage string `json:"commit_message"`
	}
	if envelope.Decode(planText, &env) && env.CommitMessage != "" {
		return env.CommitMessage
	}
	return fmt.Sprintf("evolve: auto-improvement (cycle %d)", cycle)
}
