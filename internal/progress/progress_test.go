package progress

import (
	"strings"
	"testing"

	"github.com/HendryAvila/evonest/internal/state"
)

func emptyProgress() *state.Progress {
	return &state.Progress{
		PersonaStats:     map[string]*state.MutationStat{},
		AdversarialStats: map[string]*state.MutationStat{},
		AreaTouches:      map[string]int{},
		ConvergenceFlags: map[string]bool{},
	}
}

// --- CalculateWeight ---

func TestCalculateWeight_UnusedIsNeutral(t *testing.T) {
	if w := CalculateWeight(nil, 10); w != 1.0 {
		t.Errorf("nil stat weight = %v, want 1.0", w)
	}
	if w := CalculateWeight(&state.MutationStat{}, 10); w != 1.0 {
		t.Errorf("zero-use weight = %v, want 1.0", w)
	}
}

func TestCalculateWeight_SuccessAndFailure(t *testing.T) {
	// All successes, just used: 1.0 + 0.5*1.0 = 1.5.
	stat := &state.MutationStat{Uses: 4, Successes: 4, LastUsedCycle: 10}
	if w := CalculateWeight(stat, 10); w != 1.5 {
		t.Errorf("all-success weight = %v, want 1.5", w)
	}

	// All failures, just used: 1.0 - 0.3*1.0 = 0.7.
	stat = &state.MutationStat{Uses: 4, Failures: 4, LastUsedCycle: 10}
	if w := CalculateWeight(stat, 10); w != 0.7 {
		t.Errorf("all-failure weight = %v, want 0.7", w)
	}

	// Mixed: 2/4 success, 2/4 failure: 1.0 + 0.25 - 0.15 = 1.1.
	stat = &state.MutationStat{Uses: 4, Successes: 2, Failures: 2, LastUsedCycle: 10}
	if w := CalculateWeight(stat, 10); w != 1.1 {
		t.Errorf("mixed weight = %v, want 1.1", w)
	}
}

func TestCalculateWeight_RecencyBonus(t *testing.T) {
	stat := &state.MutationStat{Uses: 2, Successes: 2, LastUsedCycle: 5}
	// Rested for 3 cycles: 1.5 + 0.3 = 1.8.
	if w := CalculateWeight(stat, 8); w != 1.8 {
		t.Errorf("rested weight = %v, want 1.8", w)
	}
	// Used last cycle: no bonus.
	if w := CalculateWeight(stat, 6); w != 1.5 {
		t.Errorf("recent weight = %v, want 1.5", w)
	}
}

// --- Update ---

func TestUpdate_CountersAndStats(t *testing.T) {
	p := emptyProgress()

	Update(p, "architect", "", true, []string{"internal/cache/lru.go"})
	Update(p, "architect", "hostile-input", false, nil)

	if p.TotalCycles != 2 || p.TotalSuccesses != 1 || p.TotalFailures != 1 {
		t.Errorf("counters = %d/%d/%d", p.TotalCycles, p.TotalSuccesses, p.TotalFailures)
	}

	stat := p.PersonaStats["architect"]
	if stat == nil {
		t.Fatal("no persona stat recorded")
	}
	if stat.Uses != 2 || stat.Successes != 1 || stat.Failures != 1 || stat.LastUsedCycle != 2 {
		t.Errorf("persona stat = %+v", stat)
	}
	if stat.Weight == 0 {
		t.Error("weight not recalculated after update")
	}

	adv := p.AdversarialStats["hostile-input"]
	if adv == nil || adv.Uses != 1 || adv.Failures != 1 {
		t.Errorf("adversarial stat = %+v", adv)
	}
}

func TestUpdate_ConvergenceFlagging(t *testing.T) {
	p := emptyProgress()

	for i := 0; i < ConvergenceThreshold; i++ {
		Update(p, "architect", "", true, []string{"internal/server.go"})
	}

	if p.AreaTouches["internal"] != ConvergenceThreshold {
		t.Errorf("touches = %d, want %d", p.AreaTouches["internal"], ConvergenceThreshold)
	}
	if !p.ConvergenceFlags["internal"] {
		t.Error("area not flagged at threshold")
	}
}

// --- AreaOf ---

func TestAreaOf(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"internal/cache/lru.go", "internal"},
		{"./cmd/main.go", "cmd"},
		{"README.md", "README.md"},
		{"internal\\win\\path.go", "internal"},
		{"", ""},
		{"  ", ""},
	}
	for _, c := range cases {
		if got := AreaOf(c.in); got != c.want {
			t.Errorf("AreaOf(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// --- BuildConvergenceContext ---

func TestBuildConvergenceContext(t *testing.T) {
	p := emptyProgress()
	if got := BuildConvergenceContext(p); got != "" {
		t.Errorf("context for no flags = %q, want empty", got)
	}

	p.AreaTouches["internal"] = 4
	p.ConvergenceFlags["internal"] = true
	p.AreaTouches["docs"] = 3
	p.ConvergenceFlags["docs"] = true

	got := BuildConvergenceContext(p)
	if !strings.Contains(got, "## Convergence Notice") {
		t.Errorf("missing heading in %q", got)
	}
	if !strings.Contains(got, "- docs (3 touches)") || !strings.Contains(got, "- internal (4 touches)") {
		t.Errorf("missing area lines in %q", got)
	}
	// Sorted: docs before internal.
	if strings.Index(got, "docs") > strings.Index(got, "internal") {
		t.Error("areas not sorted")
	}
}

// --- Report ---

func TestReport(t *testing.T) {
	p := emptyProgress()
	got := Report(p)
	if !strings.Contains(got, "Cycles: 0") || !strings.Contains(got, "No runs recorded yet.") {
		t.Errorf("empty report = %q", got)
	}

	Update(p, "architect", "hostile-input", true, []string{"internal/x.go"})
	got = Report(p)
	for _, want := range []string{"Cycles: 1", "## Persona Weights", "architect", "## Adversarial Weights", "hostile-input", "## Area Touches", "- internal: 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}
