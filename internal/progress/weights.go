// Package progress implements the adaptive scheduler: per-mutation
// weight learning, cycle accounting, and convergence detection over the
// areas the engine keeps touching.
package progress

import (
	"math"

	"github.com/HendryAvila/evonest/internal/state"
)

const (
	weightMin          = 0.2
	weightMax          = 3.0
	recencyThreshold   = 3
	recencyBonus       = 0.3
	successCoefficient = 0.5
	failureCoefficient = 0.3

	// ConvergenceThreshold is the touch count at which an area is
	// flagged as converging.
	ConvergenceThreshold = 3
)

// CalculateWeight computes a mutation's scheduling weight from its
// statistics. Unused mutations stay at the neutral 1.0; otherwise the
// weight rewards success rate, penalizes failure rate, and adds a bonus
// when the mutation has rested for a few cycles. The result is clamped
// to [0.2, 3.0] and rounded to two decimals.
func CalculateWeight(stat *state.MutationStat, currentCycle int) float64 {
	if stat == nil || stat.Uses == 0 {
		return 1.0
	}

	uses := float64(stat.Uses)
	successRate := float64(stat.Successes) / uses
	failureRate := float64(stat.Failures) / uses

	w := 1.0 + successCoefficient*successRate - failureCoefficient*failureRate

	if currentCycle-stat.LastUsedCycle >= recencyThreshold {
		w += recencyBonus
	}

	w = math.Max(weightMin, math.Min(weightMax, w))
	return math.Round(w*100) / 100
}

// RecalculateWeights recomputes every persona and adversarial weight
// against the current cycle. Called after every cycle so resting
// mutations regain attractiveness.
func RecalculateWeights(p *state.Progress, currentCycle int) {
	for _, stat := range p.PersonaStats {
		stat.Weight = CalculateWeight(stat, currentCycle)
	}
	for _, stat := range p.AdversarialStats {
		stat.Weight = CalculateWeight(stat, currentCycle)
	}
}
