// Package mutations manages the mutation catalog: built-in personas and
// adversarial challenges shipped with the binary, plus dynamic ones
// generated by meta-observe and stored in the project's .evonest/.
package mutations

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/HendryAvila/evonest/internal/state"
)

//go:embed builtin/personas.json
var builtinPersonasJSON []byte

//go:embed builtin/adversarial.json
var builtinAdversarialsJSON []byte

// BuiltinPersonas decodes the embedded persona catalog.
func BuiltinPersonas() ([]state.Persona, error) {
	var ps []state.Persona
	if err := json.Unmarshal(builtinPersonasJSON, &ps); err != nil {
		return nil, fmt.Errorf("decoding builtin personas: %w", err)
	}
	return ps, nil
}

// BuiltinAdversarials decodes the embedded adversarial catalog.
func BuiltinAdversarials() ([]state.Adversarial, error) {
	var as []state.Adversarial
	if err := json.Unmarshal(builtinAdversarialsJSON, &as); err != nil {
		return nil, fmt.Errorf("decoding builtin adversarials: %w", err)
	}
	return as, nil
}

// LoadPersonas returns built-in personas followed by the project's
// dynamic ones. Dynamic entries shadowing a built-in ID are dropped.
func LoadPersonas(st *state.ProjectState) ([]state.Persona, error) {
	builtin, err := BuiltinPersonas()
	if err != nil {
		return nil, err
	}
	dynamic, err := st.ReadDynamicPersonas()
	if err != nil {
		return nil, fmt.Errorf("reading dynamic personas: %w", err)
	}

	seen := make(map[string]bool, len(builtin))
	for _, p := range builtin {
		seen[p.ID] = true
	}
	out := slices.Clone(builtin)
	for _, p := range dynamic {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

// LoadAdversarials returns built-in adversarials followed by the
// project's dynamic ones.
func LoadAdversarials(st *state.ProjectState) ([]state.Adversarial, error) {
	builtin, err := BuiltinAdversarials()
	if err != nil {
		return nil, err
	}
	dynamic, err := st.ReadDynamicAdversarials()
	if err != nil {
		return nil, fmt.Errorf("reading dynamic adversarials: %w", err)
	}

	seen := make(map[string]bool, len(builtin))
	for _, a := range builtin {
		seen[a.ID] = true
	}
	out := slices.Clone(builtin)
	for _, a := range dynamic {
		if a.ID == "" || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out, nil
}

// FilterPersonas applies group and toggle-map filters. Groups is the
// active-group allowlist (empty allows all); toggles maps ID → false
// for explicitly disabled personas.
func FilterPersonas(personas []state.Persona, groups []string, toggles map[string]bool) []state.Persona {
	var out []state.Persona
	for _, p := range personas {
		if len(groups) > 0 && !slices.Contains(groups, p.Group) {
			continue
		}
		if enabled, ok := toggles[p.ID]; ok && !enabled {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FilterAdversarials applies the toggle map.
func FilterAdversarials(advs []state.Adversarial, toggles map[string]bool) []state.Adversarial {
	var out []state.Adversarial
	for _, a := range advs {
		if enabled, ok := toggles[a.ID]; ok && !enabled {
			continue
		}
		out = append(out, a)
	}
	return out
}

// FindPersona looks up a persona by ID in the merged catalog.
func FindPersona(st *state.ProjectState, id string) (*state.Persona, error) {
	personas, err := LoadPersonas(st)
	if err != nil {
		return nil, err
	}
	for i := range personas {
		if personas[i].ID == id {
			return &personas[i], nil
		}
	}
	return nil, fmt.Errorf("unknown persona: %s", id)
}

// FindAdversarial looks up an adversarial by ID in the merged catalog.
func FindAdversarial(st *state.ProjectState, id string) (*state.Adversarial, error) {
	advs, err := LoadAdversarials(st)
	if err != nil {
		return nil, err
	}
	for i := range advs {
		if advs[i].ID == id {
			return &advs[i], nil
		}
	}
	return nil, fmt.Errorf("unknown adversarial: %s", id)
}
