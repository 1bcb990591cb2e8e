package templates

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HendryAvila/evonest/internal/runner"
	"github.com/HendryAvila/evonest/internal/state"
)

type fakeLM struct {
	requests []runner.Request
	result   *runner.Result
	err      error
}

func (f *fakeLM) Run(_ context.Context, req runner.Request) (*runner.Result, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

// --- InitProject ---

func TestInitProject_CreatesTree(t *testing.T) {
	project := t.TempDir()

	res, err := InitProject(context.Background(), project, "", nil)
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	if res.Dir != filepath.Join(project, ".evonest") {
		t.Errorf("Dir = %s", res.Dir)
	}

	st := state.New(project)
	if !st.Initialized() {
		t.Error("project not initialized after InitProject")
	}

	for _, path := range []string{
		st.ConfigPath(),
		st.IdentityPath(),
		st.ProgressPath(),
		st.BacklogPath(),
		st.DynamicPersonasPath(),
		st.DynamicAdversarialsPath(),
		st.AdvicePath(),
		st.EnvironmentPath(),
		st.ScoutCachePath(),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing %s: %v", filepath.Base(path), err)
		}
	}

	// With no LM the identity falls back to the blank template.
	identity, err := st.ReadText(st.IdentityPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(identity, "# Project Identity") {
		t.Errorf("identity = %q", identity[:40])
	}

	msg := res.Message()
	if !strings.Contains(msg, "identity.md") || !strings.Contains(msg, "config.json") {
		t.Errorf("message missing next steps: %q", msg)
	}
}

func TestInitProject_MissingDirectory(t *testing.T) {
	_, err := InitProject(context.Background(), filepath.Join(t.TempDir(), "nope"), "", nil)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestInitProject_IsIdempotent(t *testing.T) {
	project := t.TempDir()

	first, err := InitProject(context.Background(), project, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Created) == 0 {
		t.Fatal("first run created nothing")
	}

	st := state.New(project)
	if err := st.WriteText(st.IdentityPath(), "# My Daemon\n\ncustom\n"); err != nil {
		t.Fatal(err)
	}

	second, err := InitProject(context.Background(), project, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Created) != 0 {
		t.Errorf("second run created %v, want none", second.Created)
	}

	identity, err := st.ReadText(st.IdentityPath())
	if err != nil {
		t.Fatal(err)
	}
	if identity != "# My Daemon\n\ncustom\n" {
		t.Error("re-init overwrote the edited identity")
	}
}

func TestInitProject_LevelAndToggles(t *testing.T) {
	project := t.TempDir()
	if _, err := InitProject(context.Background(), project, "cautious", nil); err != nil {
		t.Fatal(err)
	}

	st := state.New(project)
	raw, err := st.ReadText(st.ConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	var data struct {
		ActiveLevel  string          `json:"active_level"`
		Personas     map[string]bool `json:"personas"`
		Adversarials map[string]bool `json:"adversarials"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		t.Fatalf("generated config is not plain JSON: %v", err)
	}
	if data.ActiveLevel != "cautious" {
		t.Errorf("active_level = %q", data.ActiveLevel)
	}
	if !data.Personas["architect"] {
		t.Error("builtin persona toggle missing")
	}
	if !data.Adversarials["hostile-input"] {
		t.Error("builtin adversarial toggle missing")
	}
}

func TestInitProject_UsesIdentityDraft(t *testing.T) {
	project := t.TempDir()
	lm := &fakeLM{result: &runner.Result{
		Output:  "Here is the document:\n```markdown\n# Log Shipper\n\nA daemon that ships logs.\n```",
		Success: true,
	}}

	if _, err := InitProject(context.Background(), project, "", lm); err != nil {
		t.Fatal(err)
	}

	st := state.New(project)
	identity, err := st.ReadText(st.IdentityPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(identity, "# Log Shipper") {
		t.Errorf("identity = %q", identity)
	}

	req := lm.requests[0]
	if req.Dir != project || req.AllowedTools != runner.ObserveTools {
		t.Errorf("draft request = %+v", req)
	}
}

func TestInitProject_FailedDraftFallsBack(t *testing.T) {
	project := t.TempDir()
	lm := &fakeLM{result: &runner.Result{Output: "partial", Success: false}}

	if _, err := InitProject(context.Background(), project, "", lm); err != nil {
		t.Fatal(err)
	}

	st := state.New(project)
	identity, err := st.ReadText(st.IdentityPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(identity, "# Project Identity") {
		t.Error("failed draft did not fall back to the template")
	}
}

// --- DraftIdentity ---

func TestDraftIdentity_Errors(t *testing.T) {
	ctx := context.Background()
	project := t.TempDir()

	if _, err := DraftIdentity(ctx, project, nil); err == nil {
		t.Error("nil runner accepted")
	}

	lm := &fakeLM{result: &runner.Result{Output: "x", Success: false}}
	if _, err := DraftIdentity(ctx, project, lm); err == nil {
		t.Error("failed run accepted")
	}

	lm = &fakeLM{result: &runner.Result{Output: "I could not inspect the project.", Success: true}}
	if _, err := DraftIdentity(ctx, project, lm); err == nil {
		t.Error("headingless draft accepted")
	}
}

// --- CleanIdentityDraft ---

func TestCleanIdentityDraft(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			"fenced with preamble",
			"Sure, here it is:\n```markdown\n# Identity\n\nbody\n```\nDone!",
			"# Identity\n\nbody",
		},
		{
			"bare fence",
			"```\n# Identity\n```",
			"# Identity",
		},
		{
			"preamble before heading, no fence",
			"Some chatter first.\n\n# Identity\n\nbody",
			"# Identity\n\nbody",
		},
		{
			"no heading at all",
			"just prose, no document",
			"",
		},
	}
	for _, tc := range cases {
		if got := CleanIdentityDraft(tc.raw); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

// --- ensureGitignore ---

func TestEnsureGitignore(t *testing.T) {
	project := t.TempDir()
	path := filepath.Join(project, ".gitignore")
	if err := os.WriteFile(path, []byte("node_modules/\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ensureGitignore(project); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "node_modules/") {
		t.Error("existing entries lost")
	}
	if !strings.Contains(string(content), ".evonest/") {
		t.Error(".evonest/ not appended")
	}

	// Already listed: no change.
	before := string(content)
	if err := ensureGitignore(project); err != nil {
		t.Fatal(err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != before {
		t.Error("gitignore rewritten when entry already present")
	}
}
