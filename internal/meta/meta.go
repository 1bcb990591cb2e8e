// Package meta implements the meta-observe phase: the engine turns its
// attention on itself, generating project-specific dynamic personas and
// adversarial challenges from accumulated statistics, dropping one-shot
// stimuli, and distilling strategic advice for future Observe prompts.
package meta

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/envelope"
	"github.com/HendryAvila/evonest/internal/history"
	"github.com/HendryAvila/evonest/internal/mutations"
	"github.com/HendryAvila/evonest/internal/phases"
	"github.com/HendryAvila/evonest/internal/progress"
	"github.com/HendryAvila/evonest/internal/runner"
	"github.com/HendryAvila/evonest/internal/state"
)

//go:embed prompts/meta_observe.md
var metaPrompt string

// Summary reports what one meta-observe pass changed.
type Summary struct {
	ExpiredPersonas    int
	ExpiredAdversarial int
	AddedPersonas      int
	AddedAdversarial   int
	AutoStimuli        int
	AdviceSaved        bool
}

type metaEnvelope struct {
	NewPersonas     []state.Persona     `json:"new_personas"`
	NewAdversarials []state.Adversarial `json:"new_adversarials"`
	AutoStimuli     []string            `json:"auto_stimuli"`
	Advice          *state.Advice       `json:"advice"`
}

// ShouldRun reports whether meta-observe is due: at least one cycle has
// run and the configured interval has elapsed since the last pass. An
// interval of zero disables meta-observe entirely.
func ShouldRun(p *state.Progress, cfg *config.Config) bool {
	if cfg.MetaCycleInterval <= 0 || p.TotalCycles == 0 {
		return false
	}
	return p.TotalCycles-p.LastMetaCycle >= cfg.MetaCycleInterval
}

// ExpireDynamicMutations drops dynamic personas and adversarials whose
// TTL has elapsed. Returns the removed counts.
func ExpireDynamicMutations(st *state.ProjectState, currentCycle int) (int, int, error) {
	personas, err := st.ReadDynamicPersonas()
	if err != nil {
		return 0, 0, fmt.Errorf("reading dynamic personas: %w", err)
	}
	keptP := personas[:0]
	for _, p := range personas {
		if p.ExpiresCycle == 0 || p.ExpiresCycle > currentCycle {
			keptP = append(keptP, p)
		}
	}
	expiredP := len(personas) - len(keptP)
	if expiredP > 0 {
		if err := st.WriteDynamicPersonas(keptP); err != nil {
			return 0, 0, err
		}
	}

	advs, err := st.ReadDynamicAdversarials()
	if err != nil {
		return expiredP, 0, fmt.Errorf("reading dynamic adversarials: %w", err)
	}
	keptA := advs[:0]
	for _, a := range advs {
		if a.ExpiresCycle == 0 || a.ExpiresCycle > currentCycle {
			keptA = append(keptA, a)
		}
	}
	expiredA := len(advs) - len(keptA)
	if expiredA > 0 {
		if err := st.WriteDynamicAdversarials(keptA); err != nil {
			return expiredP, 0, err
		}
	}
	return expiredP, expiredA, nil
}

// Run executes one meta-observe pass: expire, prompt, apply.
func Run(ctx context.Context, st *state.ProjectState, cfg *config.Config, lm phases.LM, currentCycle int) (*Summary, error) {
	sum := &Summary{}
	var err error
	sum.ExpiredPersonas, sum.ExpiredAdversarial, err = ExpireDynamicMutations(st, currentCycle)
	if err != nil {
		return sum, err
	}

	prompt, err := buildPrompt(st)
	if err != nil {
		return sum, err
	}

	result, err := lm.Run(ctx, runner.Request{
		Prompt:       prompt,
		Model:        cfg.Model,
		MaxTurns:     cfg.MaxTurns.Meta,
		AllowedTools: runner.MetaTools,
		Dir:          st.Project,
	})
	if err != nil {
		return sum, fmt.Errorf("meta-observe: %w", err)
	}
	if !result.Success {
		st.Log("  Meta-observe: LM run failed, skipping application")
		return sum, nil
	}

	if err := apply(st, cfg, result.Output, currentCycle, sum); err != nil {
		return sum, err
	}
	return sum, nil
}

func buildPrompt(st *state.ProjectState) (string, error) {
	personas, err := mutations.LoadPersonas(st)
	if err != nil {
		return "", err
	}
	adversarials, err := mutations.LoadAdversarials(st)
	if err != nil {
		return "", err
	}

	parts := []string{metaPrompt, "\n---\n"}
	parts = append(parts, "## Current Personas\n"+rosterLines(personaIDs(personas)))
	parts = append(parts, "\n## Current Adversarial Challenges\n"+rosterLines(adversarialIDs(adversarials)))

	p, err := st.ReadProgress()
	if err != nil {
		return "", err
	}
	parts = append(parts, "\n## Progress Statistics\n```json\n"+progressSummary(p)+"\n```")

	bl, err := st.ReadBacklog()
	if err != nil {
		return "", err
	}
	parts = append(parts, "\n## Backlog Summary\n```json\n"+backlogSummary(bl)+"\n```")

	if hist, err := history.BuildSummary(st, 10); err == nil && hist != "" {
		parts = append(parts, "\n"+hist)
	}
	if conv := progress.BuildConvergenceContext(p); conv != "" {
		parts = append(parts, "\n"+conv)
	}
	if identity, err := st.ReadIdentity(); err == nil && identity != "" {
		parts = append(parts, "\n---\n\n## Project Identity\n\n"+identity)
	}
	return strings.Join(parts, "\n"), nil
}

func apply(st *state.ProjectState, cfg *config.Config, output string, currentCycle int, sum *Summary) error {
	var env metaEnvelope
	if !envelope.Decode(output, &env) {
		st.Log("  Meta-observe: JSON parse failed, skipping application")
		return nil
	}

	expiresCycle := currentCycle + cfg.DynamicMutationTTL

	dynPersonas, err := st.ReadDynamicPersonas()
	if err != nil {
		return err
	}
	allPersonas, err := mutations.LoadPersonas(st)
	if err != nil {
		return err
	}
	existing := map[string]bool{}
	for _, p := range allPersonas {
		existing[p.ID] = true
	}
	for _, p := range env.NewPersonas {
		if len(dynPersonas) >= cfg.MaxDynamicPersonas {
			break
		}
		if p.ID == "" || p.Prompt == "" || existing[p.ID] {
			continue
		}
		p.Dynamic = true
		p.ExpiresCycle = expiresCycle
		dynPersonas = append(dynPersonas, p)
		existing[p.ID] = true
		sum.AddedPersonas++
	}
	if sum.AddedPersonas > 0 {
		if err := st.WriteDynamicPersonas(dynPersonas); err != nil {
			return err
		}
	}

	dynAdvs, err := st.ReadDynamicAdversarials()
	if err != nil {
		return err
	}
	allAdvs, err := mutations.LoadAdversarials(st)
	if err != nil {
		return err
	}
	existingAdv := map[string]bool{}
	for _, a := range allAdvs {
		existingAdv[a.ID] = true
	}
	for _, a := range env.NewAdversarials {
		if len(dynAdvs) >= cfg.MaxDynamicAdvs {
			break
		}
		if a.ID == "" || a.Prompt == "" || existingAdv[a.ID] {
			continue
		}
		a.Dynamic = true
		a.ExpiresCycle = expiresCycle
		dynAdvs = append(dynAdvs, a)
		existingAdv[a.ID] = true
		sum.AddedAdversarial++
	}
	if sum.AddedAdversarial > 0 {
		if err := st.WriteDynamicAdversarials(dynAdvs); err != nil {
			return err
		}
	}

	for _, text := range env.AutoStimuli {
		if strings.TrimSpace(text) == "" {
			continue
		}
		content := "# Auto-Generated Stimulus (Meta-Observe)\n\n" + text
		if _, err := st.AddStimulus(content); err != nil {
			return err
		}
		sum.AutoStimuli++
	}

	if env.Advice != nil && env.Advice.StrategicDirection != "" {
		advice := *env.Advice
		advice.GeneratedCycle = currentCycle
		if err := st.WriteAdvice(advice); err != nil {
			return err
		}
		sum.AdviceSaved = true
	}
	return nil
}

func personaIDs(ps []state.Persona) []string {
	var lines []string
	for _, p := range ps {
		lines = append(lines, fmt.Sprintf("- %s: %s", p.ID, p.Name))
	}
	return lines
}

func adversarialIDs(as []state.Adversarial) []string {
	var lines []string
	for _, a := range as {
		lines = append(lines, fmt.Sprintf("- %s: %s", a.ID, a.Name))
	}
	return lines
}

func rosterLines(lines []string) string {
	if len(lines) == 0 {
		return "none"
	}
	return strings.Join(lines, "\n")
}

func progressSummary(p *state.Progress) string {
	type statView struct {
		Uses      int     `json:"uses"`
		Successes int     `json:"successes"`
		Weight    float64 `json:"weight"`
	}
	view := struct {
		TotalCycles      int                 `json:"total_cycles"`
		TotalSuccesses   int                 `json:"total_successes"`
		TotalFailures    int                 `json:"total_failures"`
		PersonaStats     map[string]statView `json:"persona_stats"`
		ConvergenceFlags map[string]bool     `json:"convergence_flags"`
	}{
		TotalCycles:      p.TotalCycles,
		TotalSuccesses:   p.TotalSuccesses,
		TotalFailures:    p.TotalFailures,
		PersonaStats:     map[string]statView{},
		ConvergenceFlags: p.ConvergenceFlags,
	}
	for id, s := range p.PersonaStats {
		view.PersonaStats[id] = statView{Uses: s.Uses, Successes: s.Successes, Weight: s.Weight}
	}
	data, _ := json.MarshalIndent(view, "", "  ")
	return string(data)
}

func backlogSummary(bl *state.Backlog) string {
	categories := map[string]bool{}
	pending, stale := 0, 0
	for _, item := range bl.Items {
		categories[item.Category] = true
		switch item.Status {
		case "pending":
			pending++
		case "stale":
			stale++
		}
	}
	var cats []string
	for c := range categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	view := struct {
		TotalItems int      `json:"total_items"`
		Pending    int      `json:"pending"`
		Stale      int      `json:"stale"`
		Categories []string `json:"categories"`
	}{len(bl.Items), pending, stale, cats}
	data, _ := json.MarshalIndent(view, "", "  ")
	return string(data)
}
