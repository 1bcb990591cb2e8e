package mutations

import (
	"testing"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/state"
)

func newState(t *testing.T) *state.ProjectState {
	t.Helper()
	st := state.New(t.TempDir())
	if err := st.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	return st
}

// --- Builtin catalogs ---

func TestBuiltinCatalogsDecode(t *testing.T) {
	personas, err := BuiltinPersonas()
	if err != nil {
		t.Fatalf("BuiltinPersonas: %v", err)
	}
	if len(personas) == 0 {
		t.Fatal("no builtin personas")
	}
	seen := map[string]bool{}
	for _, p := range personas {
		if p.ID == "" || p.Name == "" || p.Prompt == "" {
			t.Errorf("incomplete persona %+v", p)
		}
		if seen[p.ID] {
			t.Errorf("duplicate persona ID %s", p.ID)
		}
		seen[p.ID] = true
	}

	advs, err := BuiltinAdversarials()
	if err != nil {
		t.Fatalf("BuiltinAdversarials: %v", err)
	}
	if len(advs) == 0 {
		t.Fatal("no builtin adversarials")
	}
}

// --- LoadPersonas ---

func TestLoadPersonas_MergesDynamic(t *testing.T) {
	st := newState(t)
	dynamic := []state.Persona{
		{ID: "api-designer", Name: "API Designer", Prompt: "x", Dynamic: true},
		{ID: "architect", Name: "Shadow", Prompt: "x", Dynamic: true},
		{ID: "", Name: "Nameless", Prompt: "x"},
	}
	if err := st.WriteDynamicPersonas(dynamic); err != nil {
		t.Fatal(err)
	}

	builtin, err := BuiltinPersonas()
	if err != nil {
		t.Fatal(err)
	}
	merged, err := LoadPersonas(st)
	if err != nil {
		t.Fatalf("LoadPersonas: %v", err)
	}
	// Only the non-shadowing dynamic persona survives the merge.
	if len(merged) != len(builtin)+1 {
		t.Fatalf("merged = %d personas, want %d", len(merged), len(builtin)+1)
	}
	last := merged[len(merged)-1]
	if last.ID != "api-designer" || !last.Dynamic {
		t.Errorf("last persona = %+v, want dynamic api-designer", last)
	}
	for _, p := range merged {
		if p.ID == "architect" && p.Name == "Shadow" {
			t.Error("dynamic persona shadowed a builtin ID")
		}
	}
}

// --- Filters ---

func TestFilterPersonas(t *testing.T) {
	personas := []state.Persona{
		{ID: "a", Group: "tech"},
		{ID: "b", Group: "biz"},
		{ID: "c", Group: "tech"},
	}

	got := FilterPersonas(personas, []string{"tech"}, nil)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("group filter = %v", got)
	}

	got = FilterPersonas(personas, nil, map[string]bool{"b": false})
	if len(got) != 2 {
		t.Errorf("toggle filter kept %d, want 2", len(got))
	}

	// An explicit true toggle keeps the persona.
	got = FilterPersonas(personas, nil, map[string]bool{"b": true})
	if len(got) != 3 {
		t.Errorf("enabled toggle dropped personas: %v", got)
	}
}

// --- Find ---

func TestFindPersona(t *testing.T) {
	st := newState(t)
	p, err := FindPersona(st, "architect")
	if err != nil {
		t.Fatalf("FindPersona: %v", err)
	}
	if p.Name != "Architect" {
		t.Errorf("Name = %s", p.Name)
	}

	if _, err := FindPersona(st, "no-such"); err == nil {
		t.Error("expected error for unknown persona")
	}
}

// --- Select ---

func TestSelect_ForcedPersona(t *testing.T) {
	st := newState(t)
	cfg := config.Defaults()

	old := randFloat
	randFloat = func() float64 { return 0.99 } // no adversarial roll
	defer func() { randFloat = old }()

	progress, err := st.ReadProgress()
	if err != nil {
		t.Fatal(err)
	}
	sel, err := Select(st, cfg, progress, Options{PersonaID: "security-auditor"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Persona.ID != "security-auditor" {
		t.Errorf("Persona = %s", sel.Persona.ID)
	}
	if sel.Adversarial != nil {
		t.Errorf("Adversarial = %+v, want nil", sel.Adversarial)
	}
}

func TestSelect_AdversarialNoneAndForced(t *testing.T) {
	st := newState(t)
	cfg := config.Defaults()
	cfg.AdversarialProb = 1.0
	progress, err := st.ReadProgress()
	if err != nil {
		t.Fatal(err)
	}

	old := randFloat
	randFloat = func() float64 { return 0.0 }
	defer func() { randFloat = old }()

	sel, err := Select(st, cfg, progress, Options{PersonaID: "architect", AdversarialID: "none"})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Adversarial != nil {
		t.Error("'none' did not disable the adversarial roll")
	}

	sel, err = Select(st, cfg, progress, Options{PersonaID: "architect", AdversarialID: "hostile-input"})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Adversarial == nil || sel.Adversarial.ID != "hostile-input" {
		t.Errorf("Adversarial = %+v, want hostile-input", sel.Adversarial)
	}
}

func TestSelect_ConsumesStimuliAndDecisions(t *testing.T) {
	st := newState(t)
	cfg := config.Defaults()
	if _, err := st.AddStimulus("look at the cache layer"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddDecision("skip the CLI this week"); err != nil {
		t.Fatal(err)
	}

	old := randFloat
	randFloat = func() float64 { return 0.99 }
	defer func() { randFloat = old }()

	progress, err := st.ReadProgress()
	if err != nil {
		t.Fatal(err)
	}
	sel, err := Select(st, cfg, progress, Options{PersonaID: "architect"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Stimuli) != 1 || len(sel.Decisions) != 1 {
		t.Errorf("stimuli/decisions = %d/%d, want 1/1", len(sel.Stimuli), len(sel.Decisions))
	}

	// They fired once: a second selection sees none.
	sel, err = Select(st, cfg, progress, Options{PersonaID: "architect"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Stimuli) != 0 || len(sel.Decisions) != 0 {
		t.Error("stimuli or decisions consumed twice")
	}
}

// --- weightedIndex ---

func TestWeightedIndex(t *testing.T) {
	candidates := []state.Persona{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	progress := &state.Progress{PersonaStats: map[string]*state.MutationStat{
		"a": {Weight: 1.0},
		"b": {Weight: 2.0},
		// c has no stats and defaults to 1.0; total is 4.0.
	}}

	old := randFloat
	defer func() { randFloat = old }()

	randFloat = func() float64 { return 0.0 }
	if got := weightedIndex(candidates, progress); got != 0 {
		t.Errorf("r=0.0 picked %d, want 0", got)
	}
	randFloat = func() float64 { return 0.5 } // r = 2.0, lands inside b
	if got := weightedIndex(candidates, progress); got != 1 {
		t.Errorf("r=2.0 picked %d, want 1", got)
	}
	randFloat = func() float64 { return 0.99 } // r = 3.96, lands inside c
	if got := weightedIndex(candidates, progress); got != 2 {
		t.Errorf("r=3.96 picked %d, want 2", got)
	}
}

// --- SweepPersonas ---

func TestSweepPersonas(t *testing.T) {
	st := newState(t)
	cfg := config.Defaults()

	all, err := SweepPersonas(st, cfg, "")
	if err != nil {
		t.Fatalf("SweepPersonas: %v", err)
	}
	builtin, err := BuiltinPersonas()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(builtin) {
		t.Errorf("sweep = %d personas, want %d", len(all), len(builtin))
	}

	tech, err := SweepPersonas(st, cfg, "tech")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range tech {
		if p.Group != "tech" {
			t.Errorf("persona %s outside the tech group", p.ID)
		}
	}
	if len(tech) == 0 || len(tech) >= len(all) {
		t.Errorf("tech sweep = %d of %d", len(tech), len(all))
	}

	if _, err := SweepPersonas(st, cfg, "no-such-group"); err == nil {
		t.Error("expected error for empty candidate set")
	}
}
