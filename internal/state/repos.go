package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// --- Identity ---

// ReadIdentity returns the project identity document, or "" if absent.
func (s *ProjectState) ReadIdentity() (string, error) {
	return s.ReadText(s.IdentityPath())
}

// WriteIdentity replaces the project identity document.
func (s *ProjectState) WriteIdentity(content string) error {
	return s.WriteText(s.IdentityPath(), content)
}

// --- Progress ---

// ReadProgress loads progress.json, returning zeroed stats when missing.
func (s *ProjectState) ReadProgress() (*Progress, error) {
	p := &Progress{}
	if err := readJSON(s.ProgressPath(), p); err != nil {
		return nil, err
	}
	p.ensureMaps()
	return p, nil
}

// WriteProgress persists progress.json.
func (s *ProjectState) WriteProgress(p *Progress) error {
	return writeJSON(s.ProgressPath(), p)
}

// --- Backlog ---

// ReadBacklog loads backlog.json, returning an empty backlog when missing.
func (s *ProjectState) ReadBacklog() (*Backlog, error) {
	b := &Backlog{}
	if err := readJSON(s.BacklogPath(), b); err != nil {
		return nil, err
	}
	if b.Items == nil {
		b.Items = []BacklogItem{}
	}
	return b, nil
}

// WriteBacklog persists backlog.json.
func (s *ProjectState) WriteBacklog(b *Backlog) error {
	return writeJSON(s.BacklogPath(), b)
}

// --- Advice ---

func (s *ProjectState) ReadAdvice() (Advice, error) {
	var a Advice
	err := readJSON(s.AdvicePath(), &a)
	return a, err
}

func (s *ProjectState) WriteAdvice(a Advice) error {
	return writeJSON(s.AdvicePath(), a)
}

// --- Environment ---

func (s *ProjectState) ReadEnvironment() (Environment, error) {
	var e Environment
	err := readJSON(s.EnvironmentPath(), &e)
	return e, err
}

func (s *ProjectState) WriteEnvironment(e Environment) error {
	return writeJSON(s.EnvironmentPath(), e)
}

// --- Scout cache ---

func (s *ProjectState) ReadScoutCache() (*ScoutCache, error) {
	c := &ScoutCache{}
	err := readJSON(s.ScoutCachePath(), c)
	return c, err
}

func (s *ProjectState) WriteScoutCache(c *ScoutCache) error {
	return writeJSON(s.ScoutCachePath(), c)
}

// --- Dynamic mutations ---

func (s *ProjectState) ReadDynamicPersonas() ([]Persona, error) {
	var ps []Persona
	if err := readJSON(s.DynamicPersonasPath(), &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (s *ProjectState) WriteDynamicPersonas(ps []Persona) error {
	if ps == nil {
		ps = []Persona{}
	}
	return writeJSON(s.DynamicPersonasPath(), ps)
}

func (s *ProjectState) ReadDynamicAdversarials() ([]Adversarial, error) {
	var as []Adversarial
	if err := readJSON(s.DynamicAdversarialsPath(), &as); err != nil {
		return nil, err
	}
	return as, nil
}

func (s *ProjectState) WriteDynamicAdversarials(as []Adversarial) error {
	if as == nil {
		as = []Adversarial{}
	}
	return writeJSON(s.DynamicAdversarialsPath(), as)
}

// --- Stimuli ---
//
// Stimuli are markdown files dropped into stimuli/. They are consumed at
// the start of a cycle: read, injected into the Observe prompt, and moved
// into stimuli/.processed/ so they fire exactly once.

// AddStimulus writes a new stimulus file and returns its path.
func (s *ProjectState) AddStimulus(content string) (string, error) {
	name := fmt.Sprintf("stimulus-%s-%s.md", timeNow().Format("20060102-150405"), shortID())
	path := filepath.Join(s.StimuliDir(), name)
	if err := s.WriteText(path, content); err != nil {
		return "", err
	}
	return path, nil
}

// ListStimuli returns pending stimulus paths, sorted by name (oldest first).
func (s *ProjectState) ListStimuli() ([]string, error) {
	return listMarkdown(s.StimuliDir())
}

// ConsumeStimuli reads all pending stimuli and moves them into
// .processed/. Returns the contents in filename order.
func (s *ProjectState) ConsumeStimuli() ([]string, error) {
	paths, err := s.ListStimuli()
	if err != nil {
		return nil, err
	}
	var contents []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading stimulus %s: %w", p, err)
		}
		contents = append(contents, string(data))
		dest := filepath.Join(s.ProcessedDir(), filepath.Base(p))
		if err := os.Rename(p, dest); err != nil {
			return nil, fmt.Errorf("archiving stimulus %s: %w", p, err)
		}
	}
	return contents, nil
}

// --- Decisions ---
//
// Decisions are one-shot human directives. Unlike stimuli they are
// deleted after consumption, not archived.

// AddDecision writes a new decision file and returns its path.
func (s *ProjectState) AddDecision(content string) (string, error) {
	name := fmt.Sprintf("decision-%s-%s.md", timeNow().Format("20060102-150405"), shortID())
	path := filepath.Join(s.DecisionsDir(), name)
	if err := s.WriteText(path, content); err != nil {
		return "", err
	}
	return path, nil
}

// ListDecisions returns pending decision paths, sorted by name.
func (s *ProjectState) ListDecisions() ([]string, error) {
	return listMarkdown(s.DecisionsDir())
}

// ConsumeDecisions reads and deletes all pending decisions.
func (s *ProjectState) ConsumeDecisions() ([]string, error) {
	paths, err := s.ListDecisions()
	if err != nil {
		return nil, err
	}
	var contents []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading decision %s: %w", p, err)
		}
		contents = append(contents, string(data))
		if err := os.Remove(p); err != nil {
			return nil, fmt.Errorf("removing decision %s: %w", p, err)
		}
	}
	return contents, nil
}

// --- Proposals ---

// SaveProposal writes a proposal file named
// {personaID}-{titleSlug}-{HHMMSS}.md, adding -2, -3... on collision.
// Returns the written path.
func (s *ProjectState) SaveProposal(personaID, title, content string) (string, error) {
	base := fmt.Sprintf("%s-%s-%s", Slugify(personaID), Slugify(title), timeNow().Format("150405"))
	name := base + ".md"
	path, err := childPath(s.ProposalsDir(), name)
	if err != nil {
		return "", err
	}
	for i := 2; fileExists(path); i++ {
		name = fmt.Sprintf("%s-%d.md", base, i)
		path, err = childPath(s.ProposalsDir(), name)
		if err != nil {
			return "", err
		}
	}
	if err := s.WriteText(path, content); err != nil {
		return "", err
	}
	return path, nil
}

// ListProposals returns pending proposal paths (done/ excluded), sorted
// by name so timestamps order oldest first.
func (s *ProjectState) ListProposals() ([]string, error) {
	return listMarkdown(s.ProposalsDir())
}

// MarkProposalDone moves a proposal into proposals/done/ and returns the
// destination path.
func (s *ProjectState) MarkProposalDone(filename string) (string, error) {
	name := filepath.Base(filename)
	src, err := childPath(s.ProposalsDir(), name)
	if err != nil {
		return "", err
	}
	if !fileExists(src) {
		return "", fmt.Errorf("proposal not found: %s", name)
	}
	dest := filepath.Join(s.ProposalsDoneDir(), name)
	if err := os.MkdirAll(s.ProposalsDoneDir(), 0o755); err != nil {
		return "", fmt.Errorf("creating done dir: %w", err)
	}
	if err := os.Rename(src, dest); err != nil {
		return "", fmt.Errorf("archiving proposal: %w", err)
	}
	return dest, nil
}

// --- History ---

// RecordCycle writes a cycle record as history/cycle-NNNN.json.
func (s *ProjectState) RecordCycle(rec *CycleRecord) error {
	name := fmt.Sprintf("cycle-%04d.json", rec.Cycle)
	return writeJSON(filepath.Join(s.HistoryDir(), name), rec)
}

// ListHistoryFiles returns history file paths sorted ascending by name,
// which matches ascending cycle order.
func (s *ProjectState) ListHistoryFiles() ([]string, error) {
	entries, err := os.ReadDir(s.HistoryDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(s.HistoryDir(), e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadCycleRecord loads one history file.
func (s *ProjectState) ReadCycleRecord(path string) (*CycleRecord, error) {
	rec := &CycleRecord{}
	if err := readJSON(path, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// --- Cautious resume ---

// ReadCautiousResume loads the pause descriptor, or nil when no cautious
// session is pending.
func (s *ProjectState) ReadCautiousResume() (*CautiousResume, error) {
	if !fileExists(s.CautiousResumePath()) {
		return nil, nil
	}
	r := &CautiousResume{}
	if err := readJSON(s.CautiousResumePath(), r); err != nil {
		return nil, err
	}
	return r, nil
}

// WriteCautiousResume persists the pause descriptor.
func (s *ProjectState) WriteCautiousResume(r *CautiousResume) error {
	return writeJSON(s.CautiousResumePath(), r)
}

// ClearCautiousResume removes the pause descriptor.
func (s *ProjectState) ClearCautiousResume() error {
	err := os.Remove(s.CautiousResumePath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// --- helpers ---

func shortID() string {
	return uuid.NewString()[:8]
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// listMarkdown returns .md files directly under dir, sorted by name.
// Dotted names (like .processed) are skipped.
func listMarkdown(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
