package backlog

import (
	"strings"
	"testing"

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

func pendingItem(t *testing.T, st *state.ProjectState) state.BacklogItem {
	t.Helper()
	bl, err := st.ReadBacklog()
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range bl.Items {
		if item.Status == "pending" {
			return item
		}
	}
	t.Fatal("no pending item")
	return state.BacklogItem{}
}

// --- EffectiveTitle ---

func TestEffectiveTitle(t *testing.T) {
	if got := (Improvement{Title: "Fix cache"}).EffectiveTitle(); got != "Fix cache" {
		t.Errorf("got %q", got)
	}
	if got := (Improvement{Description: "desc only"}).EffectiveTitle(); got != "desc only" {
		t.Errorf("got %q", got)
	}
	if got := (Improvement{}).EffectiveTitle(); got != "untitled" {
		t.Errorf("got %q", got)
	}
}

// --- SaveObservations ---

func TestSaveObservations(t *testing.T) {
	st := newState(t)
	imps := []Improvement{
		{Title: "Fix cache", Category: "perf", Priority: "high", Files: []string{"internal/cache.go"}},
		{Title: "Add docs"},
	}

	added, err := SaveObservations(st, imps, "architect", 4)
	if err != nil {
		t.Fatalf("SaveObservations: %v", err)
	}
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}

	bl, err := st.ReadBacklog()
	if err != nil {
		t.Fatal(err)
	}
	if len(bl.Items) != 2 {
		t.Fatalf("backlog has %d items", len(bl.Items))
	}
	first := bl.Items[0]
	if !strings.HasPrefix(first.ID, "improve-") {
		t.Errorf("ID = %s", first.ID)
	}
	if first.SourcePersona != "architect" || first.SourceCycle != 4 || first.Status != "pending" {
		t.Errorf("item = %+v", first)
	}
	// Missing category and priority fall back to defaults.
	second := bl.Items[1]
	if second.Category != "general" || second.Priority != "medium" {
		t.Errorf("defaults = %s/%s", second.Category, second.Priority)
	}

	// Duplicate titles are skipped.
	added, err = SaveObservations(st, []Improvement{{Title: "Fix cache"}}, "refactorer", 5)
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 {
		t.Errorf("added = %d, want 0 for duplicate", added)
	}
}

// --- UpdateStatus ---

func TestUpdateStatus_AttemptsAndStale(t *testing.T) {
	st := newState(t)
	if _, err := SaveObservations(st, []Improvement{{Title: "Flaky"}}, "architect", 1); err != nil {
		t.Fatal(err)
	}
	item := pendingItem(t, st)

	// A round trip back to pending counts as one failed attempt.
	for attempt := 1; attempt < MaxAttempts; attempt++ {
		if err := UpdateStatus(st, item.ID, "in_progress"); err != nil {
			t.Fatal(err)
		}
		if err := UpdateStatus(st, item.ID, "pending"); err != nil {
			t.Fatal(err)
		}
		got := pendingItem(t, st)
		if got.Attempts != attempt {
			t.Fatalf("attempts = %d, want %d", got.Attempts, attempt)
		}
	}

	// The final failed attempt tips the item over to stale.
	if err := UpdateStatus(st, item.ID, "pending"); err != nil {
		t.Fatal(err)
	}
	bl, err := st.ReadBacklog()
	if err != nil {
		t.Fatal(err)
	}
	if bl.Items[0].Status != "stale" {
		t.Errorf("status = %s, want stale", bl.Items[0].Status)
	}
}

// --- Remove ---

func TestRemove(t *testing.T) {
	st := newState(t)
	if _, err := SaveObservations(st, []Improvement{{Title: "A"}, {Title: "B"}}, "architect", 1); err != nil {
		t.Fatal(err)
	}
	item := pendingItem(t, st)

	if err := Remove(st, item.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	bl, err := st.ReadBacklog()
	if err != nil {
		t.Fatal(err)
	}
	if len(bl.Items) != 1 {
		t.Errorf("backlog has %d items after remove", len(bl.Items))
	}
	for _, it := range bl.Items {
		if it.ID == item.ID {
			t.Error("removed item still present")
		}
	}

	if err := Remove(st, "improve-unknown"); err == nil {
		t.Error("expected error for unknown id")
	}
}

// --- Prune ---

func TestPrune(t *testing.T) {
	st := newState(t)
	bl := &state.Backlog{Items: []state.BacklogItem{
		{ID: "1", Title: "old done", Status: "completed", SourceCycle: 1},
		{ID: "2", Title: "old stale", Status: "stale", SourceCycle: 2},
		{ID: "3", Title: "old pending", Status: "pending", SourceCycle: 1},
		{ID: "4", Title: "fresh done", Status: "completed", SourceCycle: 30},
	}}
	if err := st.WriteBacklog(bl); err != nil {
		t.Fatal(err)
	}

	removed, err := Prune(st, 40)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	bl, err = st.ReadBacklog()
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, item := range bl.Items {
		ids[item.ID] = true
	}
	if !ids["3"] {
		t.Error("pending item was pruned")
	}
	if !ids["4"] {
		t.Error("recent completed item was pruned")
	}
	if ids["1"] || ids["2"] {
		t.Error("aged-out items survived")
	}
}

// --- BuildContext ---

func TestBuildContext(t *testing.T) {
	st := newState(t)
	got, err := BuildContext(st)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("context for empty backlog = %q", got)
	}

	imps := []Improvement{
		{Title: "Low thing", Priority: "low"},
		{Title: "High thing", Priority: "high"},
		{Title: "Medium thing"},
	}
	if _, err := SaveObservations(st, imps, "architect", 1); err != nil {
		t.Fatal(err)
	}

	got, err = BuildContext(st)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "## Accumulated Backlog") {
		t.Errorf("missing heading: %q", got)
	}
	hi := strings.Index(got, "High thing")
	mid := strings.Index(got, "Medium thing")
	lo := strings.Index(got, "Low thing")
	if hi < 0 || mid < 0 || lo < 0 {
		t.Fatalf("missing items: %q", got)
	}
	if !(hi < mid && mid < lo) {
		t.Error("items not ordered by priority")
	}
}

func TestBuildContext_CapsAtTen(t *testing.T) {
	st := newState(t)
	var imps []Improvement
	for i := 0; i < 15; i++ {
		imps = append(imps, Improvement{Title: strings.Repeat("x", i+1)})
	}
	if _, err := SaveObservations(st, imps, "architect", 1); err != nil {
		t.Fatal(err)
	}

	got, err := BuildContext(st)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(got, "\n- "); n != 10 {
		t.Errorf("context lists %d items, want 10", n)
	}
}

// --- Report ---

func TestReport(t *testing.T) {
	if got := Report(&state.Backlog{}); got != "Backlog is empty." {
		t.Errorf("empty report = %q", got)
	}

	bl := &state.Backlog{Items: []state.BacklogItem{
		{ID: "a", Title: "One", Category: "perf", Status: "pending"},
		{ID: "b", Title: "Two", Category: "docs", Status: "completed"},
	}}
	got := Report(bl)
	if !strings.Contains(got, "2 items") || !strings.Contains(got, "pending: 1") {
		t.Errorf("report = %q", got)
	}
	if !strings.Contains(got, "[pending] One (perf) id=a") {
		t.Errorf("missing item line: %q", got)
	}
}
