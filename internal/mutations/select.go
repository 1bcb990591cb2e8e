package mutations

import (
	"fmt"
	"math/rand/v2"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/state"
)

// randFloat and randIndex are swapped in tests for deterministic picks.
var (
	randFloat = rand.Float64
	randIndex = func(n int) int { return rand.IntN(n) }
)

// Selection is the mutation combination chosen for one cycle, plus the
// human inputs consumed at selection time.
type Selection struct {
	Persona     state.Persona
	Adversarial *state.Adversarial
	Stimuli     []string
	Decisions   []string
}

// Options force or constrain selection. Zero values mean "no constraint".
type Options struct {
	PersonaID     string
	AdversarialID string // "none" disables the adversarial roll
	Group         string
}

// Select picks the mutation combination for a cycle: weighted-random
// persona by scheduler weight, then an adversarial with probability
// cfg.AdversarialProb. Pending stimuli and decisions are consumed here
// so they influence exactly one cycle.
func Select(st *state.ProjectState, cfg *config.Config, progress *state.Progress, opts Options) (*Selection, error) {
	persona, err := pickPersona(st, cfg, progress, opts)
	if err != nil {
		return nil, err
	}

	adversarial, err := pickAdversarial(st, cfg, opts)
	if err != nil {
		return nil, err
	}

	stimuli, err := st.ConsumeStimuli()
	if err != nil {
		return nil, fmt.Errorf("consuming stimuli: %w", err)
	}
	decisions, err := st.ConsumeDecisions()
	if err != nil {
		return nil, fmt.Errorf("consuming decisions: %w", err)
	}

	return &Selection{
		Persona:     *persona,
		Adversarial: adversarial,
		Stimuli:     stimuli,
		Decisions:   decisions,
	}, nil
}

func pickPersona(st *state.ProjectState, cfg *config.Config, progress *state.Progress, opts Options) (*state.Persona, error) {
	if opts.PersonaID != "" {
		// Forced ID bypasses group and toggle filters.
		return FindPersona(st, opts.PersonaID)
	}

	personas, err := LoadPersonas(st)
	if err != nil {
		return nil, err
	}

	groups := cfg.ActiveGroups
	if opts.Group != "" {
		groups = []string{opts.Group}
	}
	candidates := FilterPersonas(personas, groups, cfg.Personas)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no enabled personas match the current filters")
	}

	idx := weightedIndex(candidates, progress)
	return &candidates[idx], nil
}

func pickAdversarial(st *state.ProjectState, cfg *config.Config, opts Options) (*state.Adversarial, error) {
	if opts.AdversarialID == "none" {
		return nil, nil
	}
	if opts.AdversarialID != "" {
		return FindAdversarial(st, opts.AdversarialID)
	}
	if randFloat() >= cfg.AdversarialProb {
		return nil, nil
	}

	advs, err := LoadAdversarials(st)
	if err != nil {
		return nil, err
	}
	candidates := FilterAdversarials(advs, cfg.Adversarials)
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[randIndex(len(candidates))], nil
}

// weightedIndex samples an index proportionally to scheduler weights.
// Personas with no stats get weight 1.0.
func weightedIndex(candidates []state.Persona, progress *state.Progress) int {
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, p := range candidates {
		w := 1.0
		if stat, ok := progress.PersonaStats[p.ID]; ok && stat.Weight > 0 {
			w = stat.Weight
		}
		weights[i] = w
		total += w
	}

	r := randFloat() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return i
		}
	}
	return len(candidates) - 1
}

// SweepPersonas returns the filtered persona list in catalog order, for
// all-personas runs where every enabled persona fires exactly once.
func SweepPersonas(st *state.ProjectState, cfg *config.Config, group string) ([]state.Persona, error) {
	personas, err := LoadPersonas(st)
	if err != nil {
		return nil, err
	}
	groups := cfg.ActiveGroups
	if group != "" {
		groups = []string{group}
	}
	candidates := FilterPersonas(personas, groups, cfg.Personas)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no enabled personas match the current filters")
	}
	return candidates, nil
}
