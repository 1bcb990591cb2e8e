// Package phases implements the Observe, Plan, Execute, and Verify
// steps of one evolution cycle. Each phase assembles a prompt from an
// embedded template plus project context, invokes the LM runner, writes
// its artifact under .evonest/, and parses the JSON envelope from the
// model's final message.
package phases

import (
	"context"
	"embed"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/envelope"
	"github.com/HendryAvila/evonest/internal/mutations"
	"github.com/HendryAvila/evonest/internal/runner"
	"github.com/HendryAvila/evonest/internal/state"
)

//go:embed prompts/*.md
var promptFS embed.FS

func loadPrompt(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".md")
	if err != nil {
		return ""
	}
	return string(data)
}

// LM is the slice of the runner the phases need. Satisfied by
// *runner.Runner; tests substitute a fake.
type LM interface {
	Run(ctx context.Context, req runner.Request) (*runner.Result, error)
}

// Result is the outcome of one phase invocation.
type Result struct {
	Phase          string
	Output         string
	Success        bool
	NoImprovements bool
	ProposalsSaved int
	Stderr         string
}

// ResolveDeep decides whether this cycle's Observe runs in deep mode.
// Explicit quick/deep settings win; auto goes deep on every
// deep_cycle_interval-th cycle.
func ResolveDeep(cfg *config.Config, cycle int) bool {
	switch cfg.ObserveMode {
	case "deep":
		return true
	case "quick":
		return false
	}
	return cfg.DeepCycleInterval > 0 && cycle > 0 && cycle%cfg.DeepCycleInterval == 0
}

// ObserveTurns sizes the Observe turn budget from the project's source
// file count: ratio times count, floored at the mode minimum and capped
// at the configured max_turns.
func ObserveTurns(cfg *config.Config, sourceFiles int, deep bool) int {
	ratio, floor, cap := cfg.ObserveTurnsQuickRate, cfg.ObserveTurnsMinQuick, cfg.MaxTurns.Observe
	if deep {
		ratio, floor, cap = cfg.ObserveTurnsDeepRate, cfg.ObserveTurnsMinDeep, cfg.MaxTurns.ObserveDeep
	}
	n := int(math.Ceil(float64(sourceFiles) * ratio))
	if n < floor {
		n = floor
	}
	if n > cap {
		n = cap
	}
	return n
}

// ObserveOptions tune one Observe invocation.
type ObserveOptions struct {
	Deep bool

	// AnalyzeMode saves every improvement as a proposal and skips the
	// backlog entirely.
	AnalyzeMode bool

	// StaticContext is the pre-gathered project signals section from
	// GatherStaticContext, injected so the model does not burn turns
	// rediscovering the file tree.
	StaticContext string

	// MaxTurns overrides the configured budget when positive.
	MaxTurns int
}

// Observe runs the observation phase under the selected mutation and
// routes the resulting improvements to the backlog and proposal queue.
func Observe(ctx context.Context, st *state.ProjectState, cfg *config.Config, lm LM, sel *mutations.Selection, opts ObserveOptions) (*Result, error) {
	name := "observe"
	if opts.Deep {
		name = "observe_deep"
	}
	parts := []string{loadPrompt(name)}

	if opts.StaticContext != "" {
		parts = append(parts, section(opts.StaticContext))
	}
	if identity, err := st.ReadIdentity(); err == nil && identity != "" {
		parts = append(parts, section("## Project Identity\n\n"+identity))
	}
	appendObserveContext(st, &parts)

	parts = append(parts, section(fmt.Sprintf("## Your Perspective This Cycle: %s\n\n%s",
		sel.Persona.Name, sel.Persona.Prompt)))
	if sel.Adversarial != nil {
		parts = append(parts, section(fmt.Sprintf("## Adversarial Challenge: %s\n\n%s",
			sel.Adversarial.Name, sel.Adversarial.Prompt)))
	}
	if s := bulletinSection("External Stimuli", sel.Stimuli); s != "" {
		parts = append(parts, section(s))
	}
	if s := bulletinSection("Human Decisions", sel.Decisions); s != "" {
		parts = append(parts, section(s))
	}
	if s := languageSection(cfg); s != "" {
		parts = append(parts, section(s))
	}

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = cfg.MaxTurns.Observe
		if opts.Deep {
			maxTurns = cfg.MaxTurns.ObserveDeep
		}
	}

	result, err := lm.Run(ctx, runner.Request{
		Prompt:       strings.Join(parts, "\n"),
		Model:        cfg.Model,
		MaxTurns:     maxTurns,
		AllowedTools: runner.ObserveTools,
		Dir:          st.Project,
	})
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}

	if werr := st.WriteText(st.ObservePath(), result.Output); werr != nil {
		zap.S().Warnw("saving observe output failed", "err", werr)
	}

	res := &Result{Phase: "observe", Output: result.Output, Success: result.Success, Stderr: result.Stderr}
	if !result.Success {
		return res, nil
	}

	if opts.AnalyzeMode {
		res.ProposalsSaved = saveAllAsProposals(st, cfg, result.Output, sel.Persona.ID)
		return res, nil
	}
	saveObservations(st, cfg, result.Output, sel.Persona.ID)
	return res, nil
}

// appendObserveContext adds the knowledge-base sections shared by every
// Observe prompt: history, convergence warnings, advisor guidance, and
// the cached ecosystem description.
func appendObserveContext(st *state.ProjectState, parts *[]string) {
	if history := observeHistory(st); history != "" {
		*parts = append(*parts, section(history))
	}
	if p, err := st.ReadProgress(); err == nil {
		if conv := convergenceContext(p); conv != "" {
			*parts = append(*parts, section(conv))
		}
	}
	if advice, err := st.ReadAdvice(); err == nil && !advice.Empty() {
		var b strings.Builder
		b.WriteString("## Advisor's Guidance (from accumulated experience)\n\n")
		fmt.Fprintf(&b, "**Strategic direction**: %s\n", advice.StrategicDirection)
		if len(advice.Priorities) > 0 {
			fmt.Fprintf(&b, "**Priorities**: %s\n", strings.Join(advice.Priorities, ", "))
		}
		if len(advice.Warnings) > 0 {
			fmt.Fprintf(&b, "**Warnings**: %s\n", strings.Join(advice.Warnings, ", "))
		}
		*parts = append(*parts, section(b.String()))
	}
	if env, err := st.ReadEnvironment(); err == nil && env.Description != "" {
		*parts = append(*parts, section("## Ecosystem Context\n\n"+env.Description))
	}
}

// Plan runs the planning phase over the saved Observe output.
func Plan(ctx context.Context, st *state.ProjectState, cfg *config.Config, lm LM) (*Result, error) {
	observeText, err := st.ReadText(st.ObservePath())
	if err != nil || observeText == "" {
		return &Result{Phase: "plan", Success: false}, nil
	}

	parts := []string{loadPrompt("plan")}
	if identity, rerr := st.ReadIdentity(); rerr == nil && identity != "" {
		parts = append(parts, section("## Project Identity\n\n"+identity))
	}
	if backlogCtx := backlogContext(st); backlogCtx != "" {
		parts = append(parts, section(backlogCtx))
	}
	if s := boundarySection(cfg); s != "" {
		parts = append(parts, section(s))
	}
	parts = append(parts, section("## Observations from Previous Phase\n\n"+observeText))
	if s := languageSection(cfg); s != "" {
		parts = append(parts, section(s))
	}

	result, err := lm.Run(ctx, runner.Request{
		Prompt:       strings.Join(parts, "\n"),
		Model:        cfg.Model,
		MaxTurns:     cfg.MaxTurns.Plan,
		AllowedTools: runner.PlanTools,
		Dir:          st.Project,
	})
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	if werr := st.WriteText(st.PlanPath(), result.Output); werr != nil {
		zap.S().Warnw("saving plan output failed", "err", werr)
	}

	res := &Result{Phase: "plan", Output: result.Output, Success: result.Success, Stderr: result.Stderr}
	if result.Success && PlanSaysNoImprovements(result.Output) {
		res.NoImprovements = true
	}
	return res, nil
}

// Execute runs the execution phase against the saved plan. The plan may
// be a Plan-phase envelope or a proposal document queued via improve.
func Execute(ctx context.Context, st *state.ProjectState, cfg *config.Config, lm LM, decisions []string) (*Result, error) {
	planText, err := st.ReadText(st.PlanPath())
	if err != nil || planText == "" {
		return &Result{Phase: "execute", Success: false}, nil
	}

	parts := []string{loadPrompt("execute")}
	if identity, rerr := st.ReadIdentity(); rerr == nil && identity != "" {
		parts = append(parts, section("## Project Identity\n\n"+identity))
	}
	if s := boundarySection(cfg); s != "" {
		parts = append(parts, section(s))
	}
	parts = append(parts, section("## Plan to Execute\n\n"+planText))
	if s := bulletinSection("Human Decisions", decisions); s != "" {
		parts = append(parts, section(s))
	}
	if s := languageSection(cfg); s != "" {
		parts = append(parts, section(s))
	}

	result, err := lm.Run(ctx, runner.Request{
		Prompt:       strings.Join(parts, "\n"),
		Model:        cfg.Model,
		MaxTurns:     cfg.MaxTurns.Execute,
		AllowedTools: runner.ExecuteTools,
		Dir:          st.Project,
	})
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	if werr := st.WriteText(st.ExecutePath(), result.Output); werr != nil {
		zap.S().Warnw("saving execute output failed", "err", werr)
	}
	return &Result{Phase: "execute", Output: result.Output, Success: result.Success, Stderr: result.Stderr}, nil
}

// PlanSaysNoImprovements detects the plan envelope's null sentinel and
// its common prose equivalents.
func PlanSaysNoImprovements(output string) bool {
	lower := strings.ToLower(output)
	for _, phrase := range []string{
		"no improvements",
		"nothing to do",
		`"selected_improvement": null`,
		`"selected_improvement":null`,
	} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// SelectedBacklogID extracts the chosen backlog item ID from the plan
// envelope, or "" when the plan did not pick a backlog item.
func SelectedBacklogID(planText string) string {
	var env struct {
		Selected *struct {
			ID string `json:"id"`
		} `json:"selected_improvement"`
	}
	if !envelope.Decode(planText, &env) || env.Selected == nil {
		return ""
	}
	return env.Selected.ID
}

// ImprovementTitle extracts the chosen improvement's title from the plan
// envelope.
func ImprovementTitle(planText string) string {
	var env struct {
		Selected *struct {
			Title string `json:"title"`
		} `json:"selected_improvement"`
	}
	if !envelope.Decode(planText, &env) || env.Selected == nil {
		return ""
	}
	return env.Selected.Title
}

func section(body string) string {
	return "\n---\n\n" + strings.TrimRight(body, "\n")
}

func bulletinSection(title string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", title)
	for _, item := range items {
		b.WriteString("\n" + strings.TrimSpace(item) + "\n")
	}
	return b.String()
}

func boundarySection(cfg *config.Config) string {
	if len(cfg.BoundaryPatterns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Protected Paths\n\n")
	b.WriteString("These paths must not be modified under any circumstances:\n\n")
	for _, pat := range cfg.BoundaryPatterns {
		b.WriteString("- " + pat + "\n")
	}
	return b.String()
}

func languageSection(cfg *config.Config) string {
	if strings.EqualFold(cfg.Language, "english") || cfg.Language == "" {
		return ""
	}
	return fmt.Sprintf("## Language Instruction\n\n"+
		"Write ALL content (descriptions, observations, titles, rationale, "+
		"commit messages) in **%s**. Use %s throughout your entire response.",
		cfg.Language, cfg.Language)
}
