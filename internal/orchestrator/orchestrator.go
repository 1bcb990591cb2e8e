// Package orchestrator drives the evolution loop: per cycle it gates
// meta-observe and scout, selects a mutation, runs Observe, Plan,
// Execute, and Verify, and settles the outcome through git (commit or
// PR on pass, revert on fail). The project lock is held for the whole
// run; cautious mode pauses after Plan and leaves a resume descriptor.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/evonest/internal/backlog"
	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/gitops"
	"github.com/HendryAvila/evonest/internal/lock"
	"github.com/HendryAvila/evonest/internal/memory"
	"github.com/HendryAvila/evonest/internal/meta"
	"github.com/HendryAvila/evonest/internal/mutations"
	"github.com/HendryAvila/evonest/internal/phases"
	"github.com/HendryAvila/evonest/internal/progress"
	"github.com/HendryAvila/evonest/internal/scout"
	"github.com/HendryAvila/evonest/internal/state"
)

// timeNow is swapped in tests for deterministic timestamps.
var timeNow = time.Now

// Options tune one evolution or analysis run. Zero values fall back to
// the resolved configuration.
type Options struct {
	Cycles        int
	NoMeta        bool
	NoScout       bool
	ObserveMode   string // auto | quick | deep; overrides config when set
	PersonaID     string
	AdversarialID string
	Group         string
	AllPersonas   bool
	Cautious      bool
}

// Engine binds the state directory, resolved configuration, LM runner,
// and git gateway for one project.
type Engine struct {
	st  *state.ProjectState
	cfg *config.Config
	lm  phases.LM
	git *gitops.Gateway

	verifyFailed bool
}

// VerifyFailed reports whether any cycle of the last run failed
// verification and was rolled back.
func (e *Engine) VerifyFailed() bool { return e.verifyFailed }

// New builds an engine. The LM is an interface so tests can substitute
// a scripted runner.
func New(st *state.ProjectState, cfg *config.Config, lm phases.LM, git *gitops.Gateway) *Engine {
	return &Engine{st: st, cfg: cfg, lm: lm, git: git}
}

// cycleOutcome carries everything recordOutcome needs to settle one cycle.
type cycleOutcome struct {
	cycle         int
	personaID     string
	adversarialID string
	success       bool
	started       time.Time
	title         string
	commitMessage string
	changedFiles  []string
	notes         string
}

// RunEvolve executes up to opts.Cycles evolution cycles and returns a
// human-readable run summary. A pending cautious session is cancelled
// before the run starts; dry-run configs redirect to analysis.
func (e *Engine) RunEvolve(ctx context.Context, opts Options) (string, error) {
	if e.cfg.DryRun {
		e.st.Log("dry_run is deprecated; redirecting to analyze")
		return e.RunAnalyze(ctx, opts)
	}
	if opts.ObserveMode != "" {
		e.cfg.ObserveMode = opts.ObserveMode
	}

	lk, err := lock.Acquire(e.st.LockPath())
	if err != nil {
		return "", err
	}
	defer lk.Release()

	if err := e.st.EnsureDirs(); err != nil {
		return "", err
	}
	if pending, err := e.st.ReadCautiousResume(); err == nil && pending != nil {
		if err := e.st.ClearCautiousResume(); err != nil {
			return "", fmt.Errorf("clearing stale cautious session: %w", err)
		}
		e.st.Log("Pending cautious session cancelled by new run")
	}

	idx := e.openIndex()
	if idx != nil {
		defer idx.Close()
	}

	cycles := opts.Cycles
	if cycles <= 0 {
		cycles = e.cfg.MaxCyclesPerRun
	}
	var queue []state.Persona
	if opts.AllPersonas {
		queue, err = mutations.SweepPersonas(e.st, e.cfg, opts.Group)
		if err != nil {
			return "", err
		}
		cycles = len(queue)
	}

	staticContext := phases.GatherStaticContext(ctx, e.git)
	sourceFiles, err := e.git.CountSourceFiles(ctx)
	if err != nil {
		sourceFiles = 0
	}

	succeeded, ran := 0, 0
	for i := 0; i < cycles; i++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		p, err := e.st.ReadProgress()
		if err != nil {
			return "", fmt.Errorf("reading progress: %w", err)
		}
		cycle := p.TotalCycles + 1
		e.st.Logf("=== Cycle %d (%d/%d this run) ===", cycle, i+1, cycles)

		e.maybeMeta(ctx, p, opts)
		e.maybeScout(ctx, p, opts)

		selOpts := mutations.Options{
			PersonaID:     opts.PersonaID,
			AdversarialID: opts.AdversarialID,
			Group:         opts.Group,
		}
		// A deterministic persona sweep still rolls adversarials
		// probabilistically; they are orthogonal to persona choice.
		if opts.AllPersonas {
			selOpts.PersonaID = queue[i].ID
		}
		sel, err := mutations.Select(e.st, e.cfg, p, selOpts)
		if err != nil {
			return "", err
		}
		advID := ""
		if sel.Adversarial != nil {
			advID = sel.Adversarial.ID
		}
		e.st.Logf("  Mutation: persona=%s adversarial=%s", sel.Persona.ID, orNone(advID))

		started := timeNow()
		out := &cycleOutcome{
			cycle:         cycle,
			personaID:     sel.Persona.ID,
			adversarialID: advID,
			started:       started,
		}

		deep := phases.ResolveDeep(e.cfg, cycle)
		obsRes, err := phases.Observe(ctx, e.st, e.cfg, e.lm, sel, phases.ObserveOptions{
			Deep:          deep,
			StaticContext: staticContext,
			MaxTurns:      phases.ObserveTurns(e.cfg, sourceFiles, deep),
		})
		if err != nil || !obsRes.Success {
			out.notes = "observe failed"
			if err := e.recordOutcome(idx, out); err != nil {
				return "", err
			}
			ran++
			continue
		}

		planRes, err := phases.Plan(ctx, e.st, e.cfg, e.lm)
		if err != nil || !planRes.Success {
			out.notes = "plan failed"
			if err := e.recordOutcome(idx, out); err != nil {
				return "", err
			}
			ran++
			continue
		}
		if planRes.NoImprovements {
			e.st.Log("  Plan: no improvements worth making, stopping run")
			break
		}
		out.title = phases.ImprovementTitle(planRes.Output)

		if opts.Cautious {
			return e.pauseCautious(cycle, sel.Persona.ID, advID)
		}

		if err := e.executeAndSettle(ctx, out, planRes.Output, sel.Decisions, idx); err != nil {
			return "", err
		}
		ran++
		if out.success {
			succeeded++
		}
	}

	return fmt.Sprintf("Evolution run finished: %d cycle(s) run, %d succeeded.", ran, succeeded), nil
}

// maybeMeta runs meta-observe when due. A failed pass is logged and the
// cycle proceeds; a successful pass stamps last_meta_cycle.
func (e *Engine) maybeMeta(ctx context.Context, p *state.Progress, opts Options) {
	if opts.NoMeta || !meta.ShouldRun(p, e.cfg) {
		return
	}
	e.st.Log("  Meta-observe: interval reached, running")
	sum, err := meta.Run(ctx, e.st, e.cfg, e.lm, p.TotalCycles)
	if err != nil {
		e.st.Logf("  Meta-observe error: %v", err)
		return
	}
	e.st.Logf("  Meta-observe: +%d personas, +%d adversarials, %d stimuli",
		sum.AddedPersonas, sum.AddedAdversarial, sum.AutoStimuli)
	p.LastMetaCycle = p.TotalCycles
	if err := e.st.WriteProgress(p); err != nil {
		e.st.Logf("  Meta-observe: progress write failed: %v", err)
	}
}

// maybeScout runs the scout pass when due, stamping last_scout_cycle on
// success.
func (e *Engine) maybeScout(ctx context.Context, p *state.Progress, opts Options) {
	if opts.NoScout || !scout.ShouldRun(p, e.cfg) {
		return
	}
	e.st.Log("  Scout: interval reached, searching")
	sum, err := scout.Run(ctx, e.st, e.cfg, e.lm, p.TotalCycles)
	if err != nil {
		e.st.Logf("  Scout error: %v", err)
		return
	}
	e.st.Logf("  Scout: %d found, %d injected", sum.Found, sum.Injected)
	p.LastScoutCycle = p.TotalCycles
	if err := e.st.WriteProgress(p); err != nil {
		e.st.Logf("  Scout: progress write failed: %v", err)
	}
}

// pauseCautious writes the resume descriptor and returns the pause
// message. The working tree is untouched at this point; the stash only
// happens when Execute starts, so cancelling needs no git cleanup.
func (e *Engine) pauseCautious(cycle int, personaID, adversarialID string) (string, error) {
	token := uuid.NewString()[:8]
	desc := &state.CautiousResume{
		Token:         token,
		Cycle:         cycle,
		PersonaID:     personaID,
		AdversarialID: adversarialID,
		CreatedAt:     timeNow().UTC().Format(time.RFC3339),
	}
	if err := e.st.WriteCautiousResume(desc); err != nil {
		return "", fmt.Errorf("writing cautious descriptor: %w", err)
	}
	e.st.Logf("  Cautious pause after Plan (token %s)", token)
	return fmt.Sprintf(
		"CAUTIOUS MODE: paused after Plan for cycle %d.\nReview the plan in %s, then resume with token %q or cancel the session.",
		cycle, e.st.PlanPath(), token), nil
}

// Resume continues a paused cautious session: validate the token, replay
// Execute and Verify against the stored plan, settle, and clear the
// descriptor.
func (e *Engine) Resume(ctx context.Context, token string) (string, error) {
	desc, err := e.st.ReadCautiousResume()
	if err != nil {
		return "", fmt.Errorf("reading cautious descriptor: %w", err)
	}
	if desc == nil {
		return "", fmt.Errorf("no cautious session is pending")
	}
	if desc.Token != token {
		return "", fmt.Errorf("cautious resume token mismatch")
	}

	lk, err := lock.Acquire(e.st.LockPath())
	if err != nil {
		return "", err
	}
	defer lk.Release()

	planText, err := e.st.ReadText(e.st.PlanPath())
	if err != nil {
		return "", fmt.Errorf("reading stored plan: %w", err)
	}

	idx := e.openIndex()
	if idx != nil {
		defer idx.Close()
	}

	out := &cycleOutcome{
		cycle:         desc.Cycle,
		personaID:     desc.PersonaID,
		adversarialID: desc.AdversarialID,
		started:       timeNow(),
		title:         phases.ImprovementTitle(planText),
	}
	if err := e.executeAndSettle(ctx, out, planText, nil, idx); err != nil {
		return "", err
	}
	if err := e.st.ClearCautiousResume(); err != nil {
		return "", fmt.Errorf("clearing cautious descriptor: %w", err)
	}

	status := "failed"
	if out.success {
		status = "succeeded"
	}
	return fmt.Sprintf("Cautious cycle %d resumed and %s.", desc.Cycle, status), nil
}

// Cancel discards a pending cautious session. No stash exists before
// Execute, so removing the descriptor is the whole cleanup.
func (e *Engine) Cancel() (string, error) {
	desc, err := e.st.ReadCautiousResume()
	if err != nil {
		return "", fmt.Errorf("reading cautious descriptor: %w", err)
	}
	if desc == nil {
		return "No cautious session is pending.", nil
	}
	if err := e.st.ClearCautiousResume(); err != nil {
		return "", fmt.Errorf("clearing cautious descriptor: %w", err)
	}
	e.st.Logf("Cautious session for cycle %d cancelled", desc.Cycle)
	return fmt.Sprintf("Cautious session for cycle %d cancelled.", desc.Cycle), nil
}

// executeAndSettle runs Execute under a stash, verifies, and settles the
// working tree: commit or PR on pass, revert on fail, stash drop once
// the outcome is durable. It always records the cycle.
func (e *Engine) executeAndSettle(ctx context.Context, out *cycleOutcome, planText string, decisions []string, idx *memory.Index) error {
	stashLabel := fmt.Sprintf("evonest-cycle-%d", out.cycle)
	if err := e.git.Stash(ctx, stashLabel); err != nil {
		return fmt.Errorf("stashing before execute: %w", err)
	}

	execRes, err := phases.Execute(ctx, e.st, e.cfg, e.lm, decisions)
	if err != nil || !execRes.Success {
		out.notes = "execute failed"
		if rerr := e.git.Revert(ctx); rerr != nil {
			return fmt.Errorf("reverting after failed execute: %w", rerr)
		}
		return e.recordOutcome(idx, out)
	}

	verify := phases.Verify(ctx, e.st, e.cfg, e.git, out.cycle)
	out.changedFiles = verify.ChangedFiles
	out.notes = verify.Notes

	switch {
	case verify.Overall && len(verify.ChangedFiles) == 0:
		e.st.Log("  Verify passed but nothing changed")
		if err := e.git.StashDrop(ctx); err != nil {
			return fmt.Errorf("dropping stash: %w", err)
		}
		out.notes = joinNotes(out.notes, "no changes produced")

	case verify.Overall:
		out.commitMessage = verify.CommitMsg
		if e.cfg.CodeOutput == "pr" {
			branch := fmt.Sprintf("evonest/cycle-%d-%s", out.cycle, out.personaID)
			url, err := e.git.CommitPR(ctx, verify.CommitMsg, branch)
			if err != nil {
				return fmt.Errorf("committing cycle %d: %w", out.cycle, err)
			}
			if url != "" {
				out.notes = joinNotes(out.notes, "pr: "+url)
			}
		} else {
			if err := e.git.Commit(ctx, verify.CommitMsg); err != nil {
				return fmt.Errorf("committing cycle %d: %w", out.cycle, err)
			}
		}
		if err := e.git.StashDrop(ctx); err != nil {
			return fmt.Errorf("dropping stash: %w", err)
		}
		out.success = true
		e.settleBacklog(planText, true)
		if pruned, err := backlog.Prune(e.st, out.cycle); err == nil && pruned > 0 {
			e.st.Logf("  Backlog: pruned %d item(s)", pruned)
		}

	default:
		e.st.Log("  Verify failed, reverting")
		e.verifyFailed = true
		if err := e.git.Revert(ctx); err != nil {
			return fmt.Errorf("reverting after failed verify: %w", err)
		}
		e.settleBacklog(planText, false)
	}

	return e.recordOutcome(idx, out)
}

// settleBacklog marks the plan's selected backlog item completed on a
// passing cycle or bumps its attempt count on a failing one.
func (e *Engine) settleBacklog(planText string, passed bool) {
	id := phases.SelectedBacklogID(planText)
	if id == "" {
		return
	}
	status := "pending"
	if passed {
		status = "completed"
	}
	if err := backlog.UpdateStatus(e.st, id, status); err != nil {
		e.st.Logf("  Backlog: updating %s: %v", id, err)
	}
}

// recordOutcome updates scheduler statistics, appends the history file,
// and mirrors the record into the sqlite index.
func (e *Engine) recordOutcome(idx *memory.Index, out *cycleOutcome) error {
	p, err := e.st.ReadProgress()
	if err != nil {
		return fmt.Errorf("reading progress: %w", err)
	}
	progress.Update(p, out.personaID, out.adversarialID, out.success, out.changedFiles)
	if err := e.st.WriteProgress(p); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}

	rec := &state.CycleRecord{
		Cycle:            out.cycle,
		Timestamp:        out.started.UTC().Format(time.RFC3339),
		Success:          out.success,
		Mutation:         state.CycleMutation{Persona: out.personaID, Adversarial: out.adversarialID},
		DurationSeconds:  int(timeNow().Sub(out.started).Seconds()),
		ImprovementTitle: out.title,
		CommitMessage:    out.commitMessage,
		ChangedFiles:     out.changedFiles,
		Notes:            out.notes,
	}
	if err := e.st.RecordCycle(rec); err != nil {
		return fmt.Errorf("recording cycle %d: %w", out.cycle, err)
	}
	if idx != nil {
		if err := idx.Record(rec); err != nil {
			e.st.Logf("  History index: %v", err)
		}
	}

	status := "FAILURE"
	if out.success {
		status = "SUCCESS"
	}
	e.st.Logf("  Cycle %d: %s (%ds)", out.cycle, status, rec.DurationSeconds)
	return nil
}

// RunAnalyze runs Observe only, once per persona in the sweep (or once
// for the selected persona), saving every finding as a proposal.
func (e *Engine) RunAnalyze(ctx context.Context, opts Options) (string, error) {
	if opts.ObserveMode != "" {
		e.cfg.ObserveMode = opts.ObserveMode
	}

	lk, err := lock.Acquire(e.st.LockPath())
	if err != nil {
		return "", err
	}
	defer lk.Release()

	if err := e.st.EnsureDirs(); err != nil {
		return "", err
	}

	// Analysis sweeps every active persona unless one is forced. No
	// stimuli or decisions are consumed: analyze must leave human
	// inputs for the next evolve run.
	var queue []state.Persona
	if opts.PersonaID != "" {
		persona, err := mutations.FindPersona(e.st, opts.PersonaID)
		if err != nil {
			return "", err
		}
		queue = []state.Persona{*persona}
	} else {
		queue, err = mutations.SweepPersonas(e.st, e.cfg, opts.Group)
		if err != nil {
			return "", err
		}
	}

	staticContext := phases.GatherStaticContext(ctx, e.git)
	sourceFiles, err := e.git.CountSourceFiles(ctx)
	if err != nil {
		sourceFiles = 0
	}
	deep := e.cfg.ObserveMode == "deep"
	turns := phases.ObserveTurns(e.cfg, sourceFiles, deep)

	saved := 0
	for i := range queue {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		persona := queue[i]
		e.st.Logf("Analyze: persona %s (%d/%d)", persona.ID, i+1, len(queue))

		sel := &mutations.Selection{Persona: persona}
		res, err := phases.Observe(ctx, e.st, e.cfg, e.lm, sel, phases.ObserveOptions{
			Deep:          deep,
			AnalyzeMode:   true,
			StaticContext: staticContext,
			MaxTurns:      turns,
		})
		if err != nil {
			e.st.Logf("Analyze: persona %s: %v", persona.ID, err)
			continue
		}
		saved += res.ProposalsSaved
	}

	return fmt.Sprintf("Analysis finished: %d proposal(s) from %d persona(s). See %s.",
		saved, len(queue), e.st.ProposalsDir()), nil
}

func (e *Engine) openIndex() *memory.Index {
	idx, err := memory.Open(e.st.MemoryDBPath())
	if err != nil {
		e.st.Logf("History index unavailable: %v", err)
		return nil
	}
	return idx
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func joinNotes(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
