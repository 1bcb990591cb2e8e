package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/orchestrator"
	"github.com/HendryAvila/evonest/internal/phases"
)

// EvolveTool handles the evonest_evolve MCP tool: full
// Observe, Plan, Execute, Verify cycles with git settlement.
type EvolveTool struct {
	lm phases.LM
}

// NewEvolveTool creates an EvolveTool backed by the given LM runner.
func NewEvolveTool(lm phases.LM) *EvolveTool {
	return &EvolveTool{lm: lm}
}

// Definition returns the MCP tool definition for registration.
func (t *EvolveTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_evolve",
		mcp.WithDescription(
			"Run autonomous evolution cycles against a project: each cycle observes "+
				"the codebase under a persona, plans one improvement, executes it, "+
				"verifies build and tests, and commits (or opens a PR) on success. "+
				"Failures are reverted. Use cautious=true to pause after planning.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithNumber("cycles",
			mcp.Description("Number of cycles to run (default from config)"),
		),
		mcp.WithBoolean("no_meta",
			mcp.Description("Skip the meta-observe pass this run"),
		),
		mcp.WithBoolean("no_scout",
			mcp.Description("Skip the scout pass this run"),
		),
		mcp.WithString("observe_mode",
			mcp.Description("Observation depth override"),
			mcp.Enum("auto", "quick", "deep"),
		),
		mcp.WithString("persona_id",
			mcp.Description("Force a specific persona"),
		),
		mcp.WithString("adversarial_id",
			mcp.Description("Force a specific adversarial challenge, or 'none' to disable"),
		),
		mcp.WithString("group",
			mcp.Description("Restrict persona selection to one group (biz, tech, quality)"),
		),
		mcp.WithBoolean("all_personas",
			mcp.Description("Run one cycle per active persona instead of weighted selection"),
		),
		mcp.WithBoolean("cautious",
			mcp.Description("Pause after the Plan phase and return a resume token"),
		),
		mcp.WithString("resume",
			mcp.Description("Resume token from a paused cautious session"),
		),
		mcp.WithBoolean("cancel",
			mcp.Description("Cancel the paused cautious session instead of resuming"),
		),
		mcp.WithString("level",
			mcp.Description("Depth preset override for this run"),
			mcp.Enum("quick", "standard", "deep"),
		),
	)
}

// Handle processes the evonest_evolve tool call.
func (t *EvolveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, cfg, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}
	if errRes := applyLevel(cfg, req.GetString("level", "")); errRes != nil {
		return errRes, nil
	}

	engine := newEngine(st, cfg, t.lm)

	if boolArg(req, "cancel", false) {
		msg, err := engine.Cancel()
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(msg), nil
	}
	if token := req.GetString("resume", ""); token != "" {
		msg, err := engine.Resume(ctx, token)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg), nil
	}

	opts := orchestrator.Options{
		Cycles:        intArg(req, "cycles", 0),
		NoMeta:        boolArg(req, "no_meta", false),
		NoScout:       boolArg(req, "no_scout", false),
		ObserveMode:   req.GetString("observe_mode", ""),
		PersonaID:     req.GetString("persona_id", ""),
		AdversarialID: req.GetString("adversarial_id", ""),
		Group:         req.GetString("group", ""),
		AllPersonas:   boolArg(req, "all_personas", false),
		Cautious:      boolArg(req, "cautious", false),
	}
	msg, err := engine.RunEvolve(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(msg), nil
}
