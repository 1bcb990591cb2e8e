package scout

import (
	"context"
	"strings"
	"testing"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/runner"
	"github.com/HendryAvila/evonest/internal/state"
)

type fakeLM struct {
	requests []runner.Request
	result   *runner.Result
}

func (f *fakeLM) Run(_ context.Context, req runner.Request) (*runner.Result, error) {
	f.requests = append(f.requests, req)
	return f.result, nil
}

func newState(t *testing.T) *state.ProjectState {
	t.Helper()
	st := state.New(t.TempDir())
	if err := st.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	return st
}

// --- ShouldRun ---

func TestShouldRun(t *testing.T) {
	cfg := config.Defaults()
	cfg.ScoutCycleInterval = 5

	p := &state.Progress{TotalCycles: 10, LastScoutCycle: 5}
	if !ShouldRun(p, cfg) {
		t.Error("due scout not triggered")
	}

	p = &state.Progress{TotalCycles: 9, LastScoutCycle: 5}
	if ShouldRun(p, cfg) {
		t.Error("scout triggered one cycle early")
	}

	p = &state.Progress{TotalCycles: 0}
	if ShouldRun(p, cfg) {
		t.Error("scout triggered before any cycle ran")
	}

	cfg.ScoutEnabled = false
	p = &state.Progress{TotalCycles: 100}
	if ShouldRun(p, cfg) {
		t.Error("disabled scout still triggered")
	}

	cfg.ScoutEnabled = true
	cfg.ScoutCycleInterval = 0
	if ShouldRun(p, cfg) {
		t.Error("zero interval still triggered")
	}
}

// --- FindingID ---

func TestFindingID(t *testing.T) {
	a := FindingID("https://example.com/post", "New parser released")
	b := FindingID("https://example.com/post", "New parser released")
	if a != b {
		t.Error("same inputs produced different IDs")
	}
	if len(a) != 12 {
		t.Errorf("ID length = %d, want 12", len(a))
	}
	if a == FindingID("https://example.com/other", "New parser released") {
		t.Error("different URLs produced the same ID")
	}
}

// --- Apply ---

func scoutOutput(findings string) string {
	return "search notes\n```json\n{\"findings\": [" + findings + "]}\n```"
}

func TestApply_InjectsAndScoresAndDedupes(t *testing.T) {
	st := newState(t)
	cfg := config.Defaults()
	cfg.ScoutMinRelevance = 7

	out := scoutOutput(`
		{"title": "Fast JSON library", "source_url": "https://a.example", "relevance_score": 9, "summary": "s"},
		{"title": "Low signal post", "source_url": "https://b.example", "relevance_score": 3, "summary": "s"},
		{"title": "", "source_url": "https://c.example", "relevance_score": 9, "summary": "s"}`)

	sum, err := Apply(st, cfg, out, 12)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if sum.Found != 3 || sum.Injected != 1 || sum.SkippedScore != 1 {
		t.Errorf("summary = %+v", sum)
	}

	stimuli, err := st.ListStimuli()
	if err != nil {
		t.Fatal(err)
	}
	if len(stimuli) != 1 {
		t.Fatalf("stimuli = %d, want 1", len(stimuli))
	}
	content, err := st.ReadText(stimuli[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content, "# Scout Finding: Fast JSON library") ||
		!strings.Contains(content, "**Relevance**: 9/10") {
		t.Errorf("stimulus = %q", content)
	}

	// Both titled findings enter the cache, even the low-scoring one.
	cache, err := st.ReadScoutCache()
	if err != nil {
		t.Fatal(err)
	}
	if len(cache.Seen) != 2 {
		t.Fatalf("cache = %d entries, want 2", len(cache.Seen))
	}
	if cache.Seen[0].Cycle != 12 {
		t.Errorf("cache cycle = %d", cache.Seen[0].Cycle)
	}

	// A second pass with the same findings injects nothing.
	sum, err = Apply(st, cfg, out, 13)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Injected != 0 || sum.SkippedDuplicate != 2 {
		t.Errorf("second pass = %+v", sum)
	}
}

func TestApply_UnparseableOutput(t *testing.T) {
	st := newState(t)
	sum, err := Apply(st, config.Defaults(), "no envelope here", 1)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if sum.Found != 0 || sum.Injected != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

// --- Run ---

func TestRun_PromptIncludesContext(t *testing.T) {
	st := newState(t)
	cfg := config.Defaults()
	if err := st.WriteIdentity("A log aggregation daemon."); err != nil {
		t.Fatal(err)
	}
	if err := st.WriteEnvironment(state.Environment{Keywords: []string{"log shipping", "otel"}}); err != nil {
		t.Fatal(err)
	}
	if err := st.WriteScoutCache(&state.ScoutCache{Seen: []state.SeenFinding{
		{ID: "abc123def456", Title: "Old finding", SourceURL: "https://old.example"},
	}}); err != nil {
		t.Fatal(err)
	}

	lm := &fakeLM{result: &runner.Result{Output: scoutOutput(""), Success: true}}
	sum, err := Run(context.Background(), st, cfg, lm, 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Found != 0 {
		t.Errorf("summary = %+v", sum)
	}

	req := lm.requests[0]
	for _, want := range []string{
		"## Project Identity",
		"A log aggregation daemon.",
		"## Search Keywords",
		"- log shipping",
		"## Already Reported Findings (do not repeat)",
		"Old finding (abc123def456)",
	} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if req.AllowedTools != runner.ScoutTools {
		t.Errorf("AllowedTools = %s", req.AllowedTools)
	}
}

func TestRun_FailedLMSkipsApplication(t *testing.T) {
	st := newState(t)
	lm := &fakeLM{result: &runner.Result{Output: "partial", Success: false}}

	sum, err := Run(context.Background(), st, config.Defaults(), lm, 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Found != 0 || sum.Injected != 0 {
		t.Errorf("summary = %+v", sum)
	}
}
