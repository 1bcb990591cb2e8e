// Package config resolves the evolution engine configuration in three
// tiers: engine defaults, the project's .evonest/config.json (JSONC,
// // comments allowed), and runtime overrides from tool arguments or CLI
// flags. Environment variables slot between the file and runtime tiers.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/HendryAvila/evonest/internal/state"
)

// VerifyConfig holds the shell-free build and test commands run by the
// Verify phase. Empty means "skip that check".
type VerifyConfig struct {
	Build string `json:"build,omitempty"`
	Test  string `json:"test,omitempty"`
}

// MaxTurns caps the turn budget handed to each phase's LM run.
type MaxTurns struct {
	Observe     int `json:"observe"`
	ObserveDeep int `json:"observe_deep"`
	Plan        int `json:"plan"`
	Execute     int `json:"execute"`
	Meta        int `json:"meta"`
	Scout       int `json:"scout"`
}

// Level is a per-depth preset bundling model, observe mode, and turn caps.
type Level struct {
	Model       string   `json:"model"`
	ObserveMode string   `json:"observe_mode"`
	MaxTurns    MaxTurns `json:"max_turns"`
}

// Config is the fully resolved engine configuration.
type Config struct {
	Model              string  `json:"model"`
	MaxCyclesPerRun    int     `json:"max_cycles_per_run"`
	DryRun             bool    `json:"dry_run"`
	MetaCycleInterval  int     `json:"meta_cycle_interval"`
	MaxDynamicPersonas int     `json:"max_dynamic_personas"`
	MaxDynamicAdvs     int     `json:"max_dynamic_adversarials"`
	DynamicMutationTTL int     `json:"dynamic_mutation_ttl_cycles"`
	AdversarialProb    float64 `json:"adversarial_probability"`

	// CodeOutput is "commit" (direct commit) or "pr" (branch + pull request).
	CodeOutput string `json:"code_output"`

	ScoutEnabled          bool `json:"scout_enabled"`
	ScoutCycleInterval    int  `json:"scout_cycle_interval"`
	ScoutMinRelevance     int  `json:"scout_min_relevance_score"`

	// ActiveGroups filters persona selection; empty means all groups.
	ActiveGroups []string `json:"active_groups"`

	// Personas and Adversarials are per-ID toggle maps. A missing ID is
	// enabled. Forced IDs bypass these maps.
	Personas     map[string]bool `json:"personas"`
	Adversarials map[string]bool `json:"adversarials"`

	ObserveMode           string  `json:"observe_mode"` // auto | quick | deep
	DeepCycleInterval     int     `json:"deep_cycle_interval"`
	ObserveTurnsQuickRate float64 `json:"observe_turns_quick_ratio"`
	ObserveTurnsDeepRate  float64 `json:"observe_turns_deep_ratio"`
	ObserveTurnsMinQuick  int     `json:"observe_turns_min_quick"`
	ObserveTurnsMinDeep   int     `json:"observe_turns_min_deep"`

	Verify   VerifyConfig `json:"verify"`
	MaxTurns MaxTurns     `json:"max_turns"`

	// Language for generated documents (proposals, identity, advice).
	Language string `json:"language"`

	// ActiveLevel selects a preset from Levels: quick, standard, or deep.
	ActiveLevel string           `json:"active_level"`
	Levels      map[string]Level `json:"levels"`

	// BoundaryPatterns restrict which paths the Execute phase may touch.
	// Each entry is a path prefix or glob; empty means unrestricted.
	BoundaryPatterns []string `json:"boundary_patterns,omitempty"`

	configPath string
}

// Defaults returns the engine defaults (tier 1).
func Defaults() *Config {
	return &Config{
		Model:                 "sonnet",
		MaxCyclesPerRun:       5,
		MetaCycleInterval:     5,
		MaxDynamicPersonas:    5,
		MaxDynamicAdvs:        3,
		DynamicMutationTTL:    15,
		AdversarialProb:       0.2,
		CodeOutput:            "commit",
		ScoutEnabled:          true,
		ScoutCycleInterval:    10,
		ScoutMinRelevance:     6,
		Personas:              map[string]bool{},
		Adversarials:          map[string]bool{},
		ObserveMode:           "auto",
		DeepCycleInterval:     10,
		ObserveTurnsQuickRate: 0.10,
		ObserveTurnsDeepRate:  0.50,
		ObserveTurnsMinQuick:  15,
		ObserveTurnsMinDeep:   30,
		MaxTurns:              MaxTurns{Observe: 25, ObserveDeep: 100, Plan: 15, Execute: 25, Meta: 10, Scout: 15},
		Language:              "english",
		ActiveLevel:           "standard",
		Levels:                defaultLevels(),
	}
}

func defaultLevels() map[string]Level {
	return map[string]Level{
		"quick": {
			Model:       "haiku",
			ObserveMode: "quick",
			MaxTurns:    MaxTurns{Observe: 15, ObserveDeep: 40, Plan: 10, Execute: 20, Meta: 8, Scout: 10},
		},
		"standard": {
			Model:       "sonnet",
			ObserveMode: "auto",
			MaxTurns:    MaxTurns{Observe: 25, ObserveDeep: 100, Plan: 15, Execute: 25, Meta: 10, Scout: 15},
		},
		"deep": {
			Model:       "opus",
			ObserveMode: "deep",
			MaxTurns:    MaxTurns{Observe: 50, ObserveDeep: 150, Plan: 20, Execute: 35, Meta: 15, Scout: 20},
		},
	}
}

// Load resolves the configuration for a project. Order: defaults, level
// preset (chosen by the file's active_level), the full project file,
// EVONEST_* environment variables, then runtime overrides.
func Load(project string, overrides map[string]any) (*Config, error) {
	st := state.New(project)
	cfg := Defaults()
	cfg.configPath = st.ConfigPath()

	var fileData map[string]any
	raw, err := os.ReadFile(st.ConfigPath())
	if err == nil {
		stripped := StripJSONCComments(string(raw))
		if err := json.Unmarshal([]byte(stripped), &fileData); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", st.ConfigPath(), err)
		}
		// Levels and active_level apply first so the preset below uses
		// customized values.
		if lv, ok := fileData["levels"]; ok {
			if err := cfg.applyMap(map[string]any{"levels": lv}); err != nil {
				return nil, err
			}
		}
		if al, ok := fileData["active_level"].(string); ok {
			cfg.ActiveLevel = al
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", st.ConfigPath(), err)
	}

	cfg.applyLevel(cfg.ActiveLevel)

	if fileData != nil {
		if err := cfg.applyMap(fileData); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if len(overrides) > 0 {
		if err := cfg.applyMap(overrides); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies EVONEST_* environment variable overrides.
func (c *Config) applyEnv() {
	if model := os.Getenv("EVONEST_MODEL"); model != "" {
		c.Model = model
	}
	if v := os.Getenv("EVONEST_NO_META"); isTruthy(v) {
		c.MetaCycleInterval = 0
	}
	if v := os.Getenv("EVONEST_NO_SCOUT"); isTruthy(v) {
		c.ScoutEnabled = false
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// ErrInvalid marks configuration validation failures so callers can
// distinguish them from I/O errors.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.AdversarialProb < 0.0 || c.AdversarialProb > 1.0 {
		return fmt.Errorf("%w: adversarial_probability must be between 0.0 and 1.0, got %v", ErrInvalid, c.AdversarialProb)
	}
	// Zero is allowed: the engine acquires the lock, does nothing, and
	// exits cleanly.
	if c.MaxCyclesPerRun < 0 {
		return fmt.Errorf("%w: max_cycles_per_run must be >= 0, got %d", ErrInvalid, c.MaxCyclesPerRun)
	}
	if _, ok := c.Levels[c.ActiveLevel]; !ok {
		known := make([]string, 0, len(c.Levels))
		for name := range c.Levels {
			known = append(known, name)
		}
		return fmt.Errorf("%w: active_level must be one of %v, got %q", ErrInvalid, known, c.ActiveLevel)
	}
	switch c.CodeOutput {
	case "commit", "pr":
	default:
		return fmt.Errorf("%w: code_output must be \"commit\" or \"pr\", got %q", ErrInvalid, c.CodeOutput)
	}
	return nil
}

// applyLevel copies a level preset into model, observe mode, and turn caps.
func (c *Config) applyLevel(level string) {
	preset, ok := c.Levels[level]
	if !ok {
		return
	}
	c.Model = preset.Model
	c.ObserveMode = preset.ObserveMode
	c.MaxTurns = preset.MaxTurns
}

// ApplyLevelOverride applies a level preset on top of the resolved
// config, for runtime level arguments.
func (c *Config) ApplyLevelOverride(level string) error {
	if _, ok := c.Levels[level]; !ok {
		return fmt.Errorf("unknown level %q", level)
	}
	c.ActiveLevel = level
	c.applyLevel(level)
	return nil
}

// DisabledPersonaIDs returns IDs explicitly set to false in the toggle map.
func (c *Config) DisabledPersonaIDs() []string {
	return disabledIDs(c.Personas)
}

// DisabledAdversarialIDs returns IDs explicitly set to false in the toggle map.
func (c *Config) DisabledAdversarialIDs() []string {
	return disabledIDs(c.Adversarials)
}

func disabledIDs(m map[string]bool) []string {
	var ids []string
	for id, enabled := range m {
		if !enabled {
			ids = append(ids, id)
		}
	}
	return ids
}

// Save writes the configuration back to the project file.
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("config path not set: load from a project first")
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return state.WriteFileAtomic(c.configPath, append(data, '\n'))
}

// ToJSON returns the pretty-printed configuration.
func (c *Config) ToJSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	return string(data), nil
}

// Set assigns one configuration value by key. Dotted keys reach nested
// sections: "verify.test", "max_turns.observe", "personas.<id>". String
// values are coerced to the field's type.
func (c *Config) Set(key string, value any) error {
	if dot := strings.Index(key, "."); dot >= 0 {
		section, sub := key[:dot], key[dot+1:]
		switch section {
		case "personas":
			c.Personas[sub] = coerceBool(value)
			return nil
		case "adversarials":
			c.Adversarials[sub] = coerceBool(value)
			return nil
		case "verify":
			switch sub {
			case "build":
				c.Verify.Build = fmt.Sprint(value)
			case "test":
				c.Verify.Test = fmt.Sprint(value)
			default:
				return fmt.Errorf("unknown config key: %s", key)
			}
			return nil
		case "max_turns":
			n, err := coerceInt(value)
			if err != nil {
				return fmt.Errorf("config key %s: %w", key, err)
			}
			return c.MaxTurns.set(sub, n)
		}
		return fmt.Errorf("unknown config key: %s", key)
	}

	switch key {
	case "model":
		c.Model = fmt.Sprint(value)
	case "max_cycles_per_run":
		return setInt(&c.MaxCyclesPerRun, key, value)
	case "dry_run":
		c.DryRun = coerceBool(value)
	case "meta_cycle_interval":
		return setInt(&c.MetaCycleInterval, key, value)
	case "max_dynamic_personas":
		return setInt(&c.MaxDynamicPersonas, key, value)
	case "max_dynamic_adversarials":
		return setInt(&c.MaxDynamicAdvs, key, value)
	case "dynamic_mutation_ttl_cycles":
		return setInt(&c.DynamicMutationTTL, key, value)
	case "adversarial_probability":
		f, err := coerceFloat(value)
		if err != nil {
			return fmt.Errorf("config key %s: %w", key, err)
		}
		c.AdversarialProb = f
	case "code_output":
		c.CodeOutput = fmt.Sprint(value)
	case "scout_enabled":
		c.ScoutEnabled = coerceBool(value)
	case "scout_cycle_interval":
		return setInt(&c.ScoutCycleInterval, key, value)
	case "scout_min_relevance_score":
		return setInt(&c.ScoutMinRelevance, key, value)
	case "observe_mode":
		c.ObserveMode = fmt.Sprint(value)
	case "deep_cycle_interval":
		return setInt(&c.DeepCycleInterval, key, value)
	case "language":
		c.Language = fmt.Sprint(value)
	case "active_level":
		return c.ApplyLevelOverride(fmt.Sprint(value))
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func (m *MaxTurns) set(field string, n int) error {
	switch field {
	case "observe":
		m.Observe = n
	case "observe_deep":
		m.ObserveDeep = n
	case "plan":
		m.Plan = n
	case "execute":
		m.Execute = n
	case "meta":
		m.Meta = n
	case "scout":
		m.Scout = n
	default:
		return fmt.Errorf("unknown max_turns field: %s", field)
	}
	return nil
}

func setInt(dst *int, key string, value any) error {
	n, err := coerceInt(value)
	if err != nil {
		return fmt.Errorf("config key %s: %w", key, err)
	}
	*dst = n
	return nil
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return isTruthy(t)
	case float64:
		return t != 0
	}
	return false
}

func coerceInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}

func coerceFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}
