package config

import "fmt"

// applyMap merges a decoded JSON object (project file or runtime
// overrides) into the config. Unknown keys are an error so typos in
// config files surface immediately.
func (c *Config) applyMap(data map[string]any) error {
	data = migrateLegacyToggles(c, data)

	for key, value := range data {
		switch key {
		case "verify":
			m, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("config key verify: expected object")
			}
			if b, ok := m["build"].(string); ok {
				c.Verify.Build = b
			}
			if t, ok := m["test"].(string); ok {
				c.Verify.Test = t
			}
		case "personas":
			if m, ok := value.(map[string]any); ok {
				for id, v := range m {
					c.Personas[id] = coerceBool(v)
				}
			}
		case "adversarials":
			if m, ok := value.(map[string]any); ok {
				for id, v := range m {
					c.Adversarials[id] = coerceBool(v)
				}
			}
		case "active_groups":
			c.ActiveGroups = toStringSlice(value)
		case "boundary_patterns":
			c.BoundaryPatterns = toStringSlice(value)
		case "max_turns":
			m, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("config key max_turns: expected object")
			}
			if err := applyMaxTurns(&c.MaxTurns, m); err != nil {
				return err
			}
		case "levels":
			m, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("config key levels: expected object")
			}
			for name, lvlData := range m {
				lvlMap, ok := lvlData.(map[string]any)
				if !ok {
					continue
				}
				existing := c.Levels[name]
				if model, ok := lvlMap["model"].(string); ok {
					existing.Model = model
				}
				if om, ok := lvlMap["observe_mode"].(string); ok {
					existing.ObserveMode = om
				}
				if mt, ok := lvlMap["max_turns"].(map[string]any); ok {
					if err := applyMaxTurns(&existing.MaxTurns, mt); err != nil {
						return err
					}
				}
				c.Levels[name] = existing
			}
		case "active_level":
			c.ActiveLevel = fmt.Sprint(value)
		case "observe_turns_quick_ratio":
			f, err := coerceFloat(value)
			if err != nil {
				return fmt.Errorf("config key %s: %w", key, err)
			}
			c.ObserveTurnsQuickRate = f
		case "observe_turns_deep_ratio":
			f, err := coerceFloat(value)
			if err != nil {
				return fmt.Errorf("config key %s: %w", key, err)
			}
			c.ObserveTurnsDeepRate = f
		case "observe_turns_min_quick":
			if err := setInt(&c.ObserveTurnsMinQuick, key, value); err != nil {
				return err
			}
		case "observe_turns_min_deep":
			if err := setInt(&c.ObserveTurnsMinDeep, key, value); err != nil {
				return err
			}
		default:
			if err := c.Set(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyMaxTurns(mt *MaxTurns, m map[string]any) error {
	for field, v := range m {
		n, err := coerceInt(v)
		if err != nil {
			return fmt.Errorf("config key max_turns.%s: %w", field, err)
		}
		if err := mt.set(field, n); err != nil {
			return err
		}
	}
	return nil
}

// migrateLegacyToggles converts the old disabled_personas and
// disabled_adversarials list form into the toggle-map form. The new keys
// win when both are present.
func migrateLegacyToggles(c *Config, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}

	if old, ok := out["disabled_personas"]; ok {
		delete(out, "disabled_personas")
		if _, hasNew := out["personas"]; !hasNew {
			merged := map[string]any{}
			for _, id := range toStringSlice(old) {
				merged[id] = false
			}
			out["personas"] = merged
		}
	}
	if old, ok := out["disabled_adversarials"]; ok {
		delete(out, "disabled_adversarials")
		if _, hasNew := out["adversarials"]; !hasNew {
			merged := map[string]any{}
			for _, id := range toStringSlice(old) {
				merged[id] = false
			}
			out["adversarials"] = merged
		}
	}
	return out
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return nil
}
