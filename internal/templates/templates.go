// Package templates holds the embedded files written into a fresh
// .evonest/ directory and the project initializer that lays them down.
package templates

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/mutations"
	"github.com/HendryAvila/evonest/internal/phases"
	"github.com/HendryAvila/evonest/internal/runner"
	"github.com/HendryAvila/evonest/internal/state"
)

//go:embed assets/*.md assets/*.json
var assets embed.FS

// timeNow is swapped in tests for deterministic timestamps.
var timeNow = time.Now

func asset(name string) string {
	data, err := assets.ReadFile("assets/" + name)
	if err != nil {
		panic(fmt.Sprintf("templates: missing embedded asset %s: %v", name, err))
	}
	return string(data)
}

// InitResult reports what InitProject created.
type InitResult struct {
	Dir     string
	Created []string
}

// Message renders the init outcome with next-step hints.
func (r *InitResult) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Initialized: %s\n", r.Dir)
	if len(r.Created) > 0 {
		fmt.Fprintf(&b, "Created: %s\n", strings.Join(r.Created, ", "))
	}
	b.WriteString("\nNext steps:\n")
	fmt.Fprintf(&b, "  1. Edit %s and describe your project\n", filepath.Join(r.Dir, "identity.md"))
	fmt.Fprintf(&b, "  2. Edit %s and set verify commands\n", filepath.Join(r.Dir, "config.json"))
	b.WriteString("  3. Run a first analysis: evonest analyze, or evonest_analyze over MCP\n")
	return b.String()
}

// InitProject creates the .evonest/ tree in an existing project
// directory. Files that already exist are left alone, so re-running is
// safe. When lm is non-nil the identity document is auto-drafted by a
// short exploration run, falling back to the blank template.
func InitProject(ctx context.Context, project, level string, lm phases.LM) (*InitResult, error) {
	info, err := os.Stat(project)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("directory not found: %s", project)
	}

	st := state.New(project)
	if err := st.EnsureDirs(); err != nil {
		return nil, err
	}
	res := &InitResult{Dir: st.Dir()}

	cfgContent, err := renderConfig(level)
	if err != nil {
		return nil, err
	}
	if err := writeIfAbsent(st.ConfigPath(), cfgContent, res); err != nil {
		return nil, err
	}

	identity := draftIdentity(ctx, project, lm)
	if identity == "" {
		identity = asset("identity.md")
	}
	if err := writeIfAbsent(st.IdentityPath(), identity, res); err != nil {
		return nil, err
	}

	progressContent, err := renderProgress()
	if err != nil {
		return nil, err
	}
	if err := writeIfAbsent(st.ProgressPath(), progressContent, res); err != nil {
		return nil, err
	}

	seeds := []struct{ path, content string }{
		{st.BacklogPath(), "{\n  \"items\": []\n}\n"},
		{st.DynamicPersonasPath(), "[]\n"},
		{st.DynamicAdversarialsPath(), "[]\n"},
		{st.AdvicePath(), "{}\n"},
		{st.EnvironmentPath(), "{}\n"},
		{st.ScoutCachePath(), "{}\n"},
	}
	for _, s := range seeds {
		if err := writeIfAbsent(s.path, s.content, res); err != nil {
			return nil, err
		}
	}

	if err := ensureGitignore(project); err != nil {
		return nil, err
	}
	return res, nil
}

// renderConfig fills the embedded config template with the chosen level
// and the full toggle maps from the builtin mutation catalog.
func renderConfig(level string) (string, error) {
	var data map[string]any
	stripped := config.StripJSONCComments(asset("config.json"))
	if err := json.Unmarshal([]byte(stripped), &data); err != nil {
		return "", fmt.Errorf("parsing config template: %w", err)
	}
	if level != "" {
		data["active_level"] = level
	}

	personas, err := mutations.BuiltinPersonas()
	if err != nil {
		return "", err
	}
	toggles := map[string]bool{}
	for _, p := range personas {
		toggles[p.ID] = true
	}
	data["personas"] = toggles

	advs, err := mutations.BuiltinAdversarials()
	if err != nil {
		return "", err
	}
	advToggles := map[string]bool{}
	for _, a := range advs {
		advToggles[a.ID] = true
	}
	data["adversarials"] = advToggles

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}

func renderProgress() (string, error) {
	p := &state.Progress{
		Activation: state.Activation{
			InitializedAt: timeNow().UTC().Format(time.RFC3339),
		},
	}
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}

// DraftIdentity runs a short exploration pass against the project and
// returns a fresh identity draft, or an error when the run fails.
func DraftIdentity(ctx context.Context, project string, lm phases.LM) (string, error) {
	if lm == nil {
		return "", errors.New("no language model runner available")
	}
	result, err := lm.Run(ctx, runner.Request{
		Prompt:       asset("identity_draft.md"),
		Model:        "haiku",
		MaxTurns:     15,
		AllowedTools: runner.ObserveTools,
		Dir:          project,
	})
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", errors.New("identity drafting run did not complete")
	}
	draft := CleanIdentityDraft(result.Output)
	if draft == "" {
		return "", errors.New("identity drafting run produced no document")
	}
	return draft, nil
}

// draftIdentity asks a short cheap exploration run to write the identity
// document. Any failure falls back to the blank template.
func draftIdentity(ctx context.Context, project string, lm phases.LM) string {
	if lm == nil {
		return ""
	}
	result, err := lm.Run(ctx, runner.Request{
		Prompt:       asset("identity_draft.md"),
		Model:        "haiku",
		MaxTurns:     15,
		AllowedTools: runner.ObserveTools,
		Dir:          project,
	})
	if err != nil || !result.Success {
		return ""
	}
	return CleanIdentityDraft(result.Output)
}

var (
	fenceRe   = regexp.MustCompile("(?s)```(?:markdown|md)?\\s*\\n(.*?)```")
	headingRe = regexp.MustCompile(`(?m)^#\s+.+$`)
)

// CleanIdentityDraft strips code fences and any preamble before the
// first markdown heading from an LM-produced identity draft. Output
// with no heading is not a document and yields the empty string.
func CleanIdentityDraft(raw string) string {
	text := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	loc := headingRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	return strings.TrimSpace(text[loc[0]:])
}

func writeIfAbsent(path, content string, res *InitResult) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := state.WriteFileAtomic(path, []byte(content)); err != nil {
		return err
	}
	res.Created = append(res.Created, filepath.Base(path))
	return nil
}

// ensureGitignore appends .evonest/ to the project's .gitignore when it
// is not already listed.
func ensureGitignore(project string) error {
	path := filepath.Join(project, ".gitignore")
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading .gitignore: %w", err)
	}
	if strings.Contains(string(existing), ".evonest") {
		return nil
	}
	entry := "# Evonest evolution data\n.evonest/\n"
	if len(existing) > 0 {
		entry = strings.TrimRight(string(existing), "\n") + "\n\n" + entry
	}
	return os.WriteFile(path, []byte(entry), 0o644)
}
