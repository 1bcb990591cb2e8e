// Package state manages a project's .evonest/ knowledge base.
//
// ProjectState is the single container for everything the evolution engine
// persists between cycles: identity, progress statistics, backlog, dynamic
// mutations, advice, scout cache, stimuli, decisions, proposals, history,
// and per-cycle artifacts. All writes go through atomic temp-file+rename so
// a crashed cycle never leaves a half-written JSON behind.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// timeNow is swapped in tests to get deterministic filenames.
var timeNow = time.Now

// ProjectState gives typed access to a project's .evonest/ directory.
type ProjectState struct {
	// Project is the absolute path to the project root.
	Project string

	logger *zap.SugaredLogger
}

// New creates a ProjectState for the given project root. The path is
// cleaned and made absolute; the .evonest/ tree is NOT created; call
// EnsureDirs before writing.
func New(project string) *ProjectState {
	abs, err := filepath.Abs(project)
	if err != nil {
		abs = filepath.Clean(project)
	}
	return &ProjectState{Project: abs, logger: zap.S()}
}

// Dir returns the .evonest directory path.
func (s *ProjectState) Dir() string { return filepath.Join(s.Project, ".evonest") }

// File and directory accessors.

func (s *ProjectState) ConfigPath() string      { return filepath.Join(s.Dir(), "config.json") }
func (s *ProjectState) IdentityPath() string    { return filepath.Join(s.Dir(), "identity.md") }
func (s *ProjectState) ProgressPath() string    { return filepath.Join(s.Dir(), "progress.json") }
func (s *ProjectState) BacklogPath() string     { return filepath.Join(s.Dir(), "backlog.json") }
func (s *ProjectState) AdvicePath() string      { return filepath.Join(s.Dir(), "advice.json") }
func (s *ProjectState) EnvironmentPath() string { return filepath.Join(s.Dir(), "environment.json") }
func (s *ProjectState) ScoutCachePath() string  { return filepath.Join(s.Dir(), "scout.json") }
func (s *ProjectState) LockPath() string        { return filepath.Join(s.Dir(), ".lock") }
func (s *ProjectState) MemoryDBPath() string    { return filepath.Join(s.Dir(), "memory.db") }

func (s *ProjectState) DynamicPersonasPath() string {
	return filepath.Join(s.Dir(), "dynamic-personas.json")
}

func (s *ProjectState) DynamicAdversarialsPath() string {
	return filepath.Join(s.Dir(), "dynamic-adversarials.json")
}

func (s *ProjectState) StimuliDir() string   { return filepath.Join(s.Dir(), "stimuli") }
func (s *ProjectState) ProcessedDir() string { return filepath.Join(s.StimuliDir(), ".processed") }
func (s *ProjectState) DecisionsDir() string { return filepath.Join(s.Dir(), "decisions") }
func (s *ProjectState) ProposalsDir() string { return filepath.Join(s.Dir(), "proposals") }
func (s *ProjectState) ProposalsDoneDir() string {
	return filepath.Join(s.ProposalsDir(), "done")
}
func (s *ProjectState) HistoryDir() string { return filepath.Join(s.Dir(), "history") }
func (s *ProjectState) LogsDir() string    { return filepath.Join(s.Dir(), "logs") }

// Phase artifacts: latest output of each phase, overwritten every cycle.

func (s *ProjectState) ObservePath() string { return filepath.Join(s.Dir(), "observe.txt") }
func (s *ProjectState) PlanPath() string    { return filepath.Join(s.Dir(), "plan.txt") }
func (s *ProjectState) ExecutePath() string { return filepath.Join(s.Dir(), "execute.txt") }

// CautiousResumePath is the descriptor written when a cautious run pauses
// after the Plan phase.
func (s *ProjectState) CautiousResumePath() string {
	return filepath.Join(s.Dir(), ".cautious-resume")
}

// Initialized reports whether the project has an .evonest/ directory with
// a config file.
func (s *ProjectState) Initialized() bool {
	_, err := os.Stat(s.ConfigPath())
	return err == nil
}

// EnsureDirs creates the .evonest/ directory tree. Safe to call repeatedly.
func (s *ProjectState) EnsureDirs() error {
	dirs := []string{
		s.Dir(),
		s.HistoryDir(),
		s.LogsDir(),
		s.StimuliDir(),
		s.ProcessedDir(),
		s.DecisionsDir(),
		s.ProposalsDir(),
		s.ProposalsDoneDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}

// Log appends a timestamped line to today's run log and echoes it to the
// process logger. Logging never fails the caller.
func (s *ProjectState) Log(msg string) {
	s.logger.Info(msg)
	now := timeNow()
	logPath := filepath.Join(s.LogsDir(), "run-"+now.Format("20060102")+".log")
	line := fmt.Sprintf("[%s] %s\n", now.Format("15:04:05"), msg)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line)
}

// Logf is Log with formatting.
func (s *ProjectState) Logf(format string, args ...any) {
	s.Log(fmt.Sprintf(format, args...))
}
