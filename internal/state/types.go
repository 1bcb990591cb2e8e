package state

// Persona is a perspective the Observe phase adopts. Built-in personas
// ship with the binary; dynamic ones are generated by meta-observe and
// expire after a TTL measured in cycles.
type Persona struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Group        string `json:"group,omitempty"`
	Prompt       string `json:"prompt"`
	Dynamic      bool   `json:"dynamic,omitempty"`
	ExpiresCycle int    `json:"expires_cycle,omitempty"`
}

// Adversarial is a challenge layered on top of a persona to stress the
// improvement under hostile assumptions.
type Adversarial struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Prompt       string `json:"prompt"`
	Dynamic      bool   `json:"dynamic,omitempty"`
	ExpiresCycle int    `json:"expires_cycle,omitempty"`
}

// MutationStat tracks scheduler statistics for one persona or adversarial.
type MutationStat struct {
	Uses          int     `json:"uses"`
	Successes     int     `json:"successes"`
	Failures      int     `json:"failures"`
	Weight        float64 `json:"weight"`
	LastUsedCycle int     `json:"last_used_cycle"`
}

// Progress is the scheduler's persistent state: global counters,
// per-mutation statistics, and convergence tracking.
type Progress struct {
	TotalCycles      int                      `json:"total_cycles"`
	TotalSuccesses   int                      `json:"total_successes"`
	TotalFailures    int                      `json:"total_failures"`
	LastMetaCycle    int                      `json:"last_meta_cycle"`
	LastScoutCycle   int                      `json:"last_scout_cycle"`
	PersonaStats     map[string]*MutationStat `json:"persona_stats"`
	AdversarialStats map[string]*MutationStat `json:"adversarial_stats"`
	AreaTouches      map[string]int           `json:"area_touches"`
	ConvergenceFlags map[string]bool          `json:"convergence_flags"`
	Activation       Activation               `json:"activation"`
}

// Activation records when the project was initialized.
type Activation struct {
	InitializedAt string `json:"initialized_at,omitempty"`
}

// ensureMaps initializes nil maps so callers can index freely.
func (p *Progress) ensureMaps() {
	if p.PersonaStats == nil {
		p.PersonaStats = map[string]*MutationStat{}
	}
	if p.AdversarialStats == nil {
		p.AdversarialStats = map[string]*MutationStat{}
	}
	if p.AreaTouches == nil {
		p.AreaTouches = map[string]int{}
	}
	if p.ConvergenceFlags == nil {
		p.ConvergenceFlags = map[string]bool{}
	}
}

// BacklogItem is one improvement idea tracked across cycles.
type BacklogItem struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Category      string   `json:"category"`
	Priority      string   `json:"priority"`
	Files         []string `json:"files"`
	SourcePersona string   `json:"source_persona"`
	SourceCycle   int      `json:"source_cycle"`
	Status        string   `json:"status"`
	Attempts      int      `json:"attempts"`
}

// Backlog is the persistent list of improvement ideas.
type Backlog struct {
	Items []BacklogItem `json:"items"`
}

// Advice is the strategic direction distilled by meta-observe.
type Advice struct {
	StrategicDirection string   `json:"strategic_direction,omitempty"`
	Priorities         []string `json:"priorities,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
	GeneratedCycle     int      `json:"generated_cycle,omitempty"`
}

// Empty reports whether no advice has been generated yet.
func (a Advice) Empty() bool { return a.StrategicDirection == "" }

// Environment describes the project's ecosystem for the scout phase.
type Environment struct {
	Keywords    []string `json:"keywords,omitempty"`
	Description string   `json:"description,omitempty"`
}

// SeenFinding is a scout result that has already been injected or
// rejected. Findings are deduplicated on the (source_url, title) pair.
type SeenFinding struct {
	ID        string `json:"id"`
	SourceURL string `json:"source_url"`
	Title     string `json:"title"`
	Cycle     int    `json:"cycle"`
}

// ScoutCache persists scout dedup state between runs.
type ScoutCache struct {
	Seen []SeenFinding `json:"seen,omitempty"`
}

// HasSeen reports whether a (source_url, title) pair was already handled.
func (c *ScoutCache) HasSeen(sourceURL, title string) bool {
	for _, f := range c.Seen {
		if f.SourceURL == sourceURL && f.Title == title {
			return true
		}
	}
	return false
}

// CycleMutation names the mutation combination a cycle ran with.
type CycleMutation struct {
	Persona     string `json:"persona"`
	Adversarial string `json:"adversarial,omitempty"`
}

// CycleRecord is one entry in .evonest/history/.
type CycleRecord struct {
	Cycle            int           `json:"cycle"`
	Timestamp        string        `json:"timestamp"`
	Success          bool          `json:"success"`
	Mutation         CycleMutation `json:"mutation"`
	DurationSeconds  int           `json:"duration_seconds"`
	ImprovementTitle string        `json:"improvement_title,omitempty"`
	CommitMessage    string        `json:"commit_message,omitempty"`
	ChangedFiles     []string      `json:"changed_files,omitempty"`
	Notes            string        `json:"notes,omitempty"`
}

// CautiousResume is the descriptor a paused cautious run leaves behind.
// The token must be echoed back to resume or cancel the session.
type CautiousResume struct {
	Token         string `json:"token"`
	Cycle         int    `json:"cycle"`
	PersonaID     string `json:"persona_id"`
	AdversarialID string `json:"adversarial_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}
