package phases

import (
	"context"
	"strings"

	"github.com/HendryAvila/evonest/internal/backlog"
	"github.com/HendryAvila/evonest/internal/gitops"
	"github.com/HendryAvila/evonest/internal/history"
	"github.com/HendryAvila/evonest/internal/progress"
	"github.com/HendryAvila/evonest/internal/state"
)

const (
	staticLogCount  = 5
	staticTreeLimit = 150
	historyCount    = 5
)

// GatherStaticContext collects deterministic project signals once per
// run so Observe does not spend turns rediscovering them: recent git
// history and the tracked file tree. Anything that fails is silently
// skipped; a project without git simply gets no signals.
func GatherStaticContext(ctx context.Context, git *gitops.Gateway) string {
	var sections []string

	if log, err := git.RecentLog(ctx, staticLogCount); err == nil && log != "" {
		sections = append(sections, "### Recent Git History\n\n```\n"+log+"\n```")
	}

	if files, err := git.LsFiles(ctx); err == nil && len(files) > 0 {
		if len(files) > staticTreeLimit {
			files = files[:staticTreeLimit]
		}
		sections = append(sections, "### Source File Tree\n\n```\n"+strings.Join(files, "\n")+"\n```")
	}

	if len(sections) == 0 {
		return ""
	}
	return "## Pre-gathered Project Signals\n\n" + strings.Join(sections, "\n\n")
}

func observeHistory(st *state.ProjectState) string {
	summary, err := history.BuildSummary(st, historyCount)
	if err != nil {
		return ""
	}
	return summary
}

func convergenceContext(p *state.Progress) string {
	return progress.BuildConvergenceContext(p)
}

func backlogContext(st *state.ProjectState) string {
	ctx, err := backlog.BuildContext(st)
	if err != nil {
		return ""
	}
	return ctx
}

func currentCycle(st *state.ProjectState) int {
	p, err := st.ReadProgress()
	if err != nil {
		return 0
	}
	return p.TotalCycles
}
