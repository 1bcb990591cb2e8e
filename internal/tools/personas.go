package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/mutations"
	"github.com/HendryAvila/evonest/internal/state"
)

// PersonasTool handles the evonest_personas MCP tool: list the mutation
// roster and flip per-ID toggles.
type PersonasTool struct{}

// NewPersonasTool creates a PersonasTool.
func NewPersonasTool() *PersonasTool {
	return &PersonasTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *PersonasTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_personas",
		mcp.WithDescription(
			"List personas and adversarial challenges with their enabled state, "+
				"or enable/disable them by ID. Disabled mutations are skipped by "+
				"the scheduler but kept in the roster.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithString("action",
			mcp.DefaultString("list"),
			mcp.Enum("list", "enable", "disable"),
		),
		mcp.WithArray("ids",
			mcp.Description("Persona or adversarial IDs to enable/disable"),
		),
		mcp.WithString("group",
			mcp.Description("Filter the listing to one persona group"),
		),
	)
}

// Handle processes the evonest_personas tool call.
func (t *PersonasTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, cfg, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}

	personas, err := mutations.LoadPersonas(st)
	if err != nil {
		return nil, err
	}
	adversarials, err := mutations.LoadAdversarials(st)
	if err != nil {
		return nil, err
	}

	action := req.GetString("action", "list")
	if action == "list" {
		return mcp.NewToolResultText(formatRoster(personas, adversarials, cfg, req.GetString("group", ""))), nil
	}

	ids := stringSliceArg(req, "ids")
	if len(ids) == 0 {
		return mcp.NewToolResultError("'ids' is required for enable/disable"), nil
	}

	known := map[string]bool{}
	isPersona := map[string]bool{}
	for _, p := range personas {
		known[p.ID], isPersona[p.ID] = true, true
	}
	for _, a := range adversarials {
		known[a.ID] = true
	}
	var unknown []string
	for _, id := range ids {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return mcp.NewToolResultError("unknown IDs: " + strings.Join(unknown, ", ")), nil
	}

	enabled := action == "enable"
	for _, id := range ids {
		if isPersona[id] {
			cfg.Personas[id] = enabled
		} else {
			cfg.Adversarials[id] = enabled
		}
	}
	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	verb := "Disabled"
	if enabled {
		verb = "Enabled"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s\n\n%s",
		verb, strings.Join(ids, ", "), formatRoster(personas, adversarials, cfg, ""))), nil
}

func formatRoster(personas []state.Persona, adversarials []state.Adversarial, cfg *config.Config, groupFilter string) string {
	groups := map[string][]state.Persona{}
	for _, p := range personas {
		g := p.Group
		if g == "" {
			g = "other"
		}
		if groupFilter != "" && g != groupFilter {
			continue
		}
		groups[g] = append(groups[g], p)
	}
	names := make([]string, 0, len(groups))
	total := 0
	for g, ps := range groups {
		names = append(names, g)
		total += len(ps)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "## Personas (%d)\n", total)
	for _, g := range names {
		ps := groups[g]
		sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
		fmt.Fprintf(&b, "\n### %s (%d)\n", g, len(ps))
		for _, p := range ps {
			b.WriteString(rosterLine(p.ID, p.Name, p.Dynamic, cfg.Personas))
		}
	}

	if groupFilter == "" {
		sort.Slice(adversarials, func(i, j int) bool { return adversarials[i].ID < adversarials[j].ID })
		fmt.Fprintf(&b, "\n## Adversarials (%d)\n", len(adversarials))
		for _, a := range adversarials {
			b.WriteString(rosterLine(a.ID, a.Name, a.Dynamic, cfg.Adversarials))
		}
	}
	return b.String()
}

func rosterLine(id, name string, dynamic bool, toggles map[string]bool) string {
	mark, suffix := "o", ""
	if on, found := toggles[id]; found && !on {
		mark, suffix = "x", " (disabled)"
	}
	if dynamic {
		suffix += " (dynamic)"
	}
	return fmt.Sprintf("  [%s] %s: %s%s\n", mark, id, name, suffix)
}
