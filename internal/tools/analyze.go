package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/orchestrator"
	"github.com/HendryAvila/evonest/internal/phases"
)

// AnalyzeTool handles the evonest_analyze MCP tool: observation only,
// every finding becomes a proposal document and no code is changed.
type AnalyzeTool struct {
	lm phases.LM
}

// NewAnalyzeTool creates an AnalyzeTool backed by the given LM runner.
func NewAnalyzeTool(lm phases.LM) *AnalyzeTool {
	return &AnalyzeTool{lm: lm}
}

// Definition returns the MCP tool definition for registration.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_analyze",
		mcp.WithDescription(
			"Run the observation phase only. Every identified improvement is saved "+
				"as a proposal under .evonest/proposals/ for human review; nothing is "+
				"executed. By default every active persona contributes one pass.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithString("persona_id",
			mcp.Description("Analyze with a single persona instead of the full sweep"),
		),
		mcp.WithString("group",
			mcp.Description("Restrict the sweep to one persona group"),
		),
		mcp.WithString("observe_mode",
			mcp.Description("Observation depth override"),
			mcp.Enum("auto", "quick", "deep"),
		),
		mcp.WithString("level",
			mcp.Description("Depth preset override for this run"),
			mcp.Enum("quick", "standard", "deep"),
		),
	)
}

// Handle processes the evonest_analyze tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, cfg, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}
	if errRes := applyLevel(cfg, req.GetString("level", "")); errRes != nil {
		return errRes, nil
	}

	msg, err := newEngine(st, cfg, t.lm).RunAnalyze(ctx, orchestrator.Options{
		PersonaID:   req.GetString("persona_id", ""),
		Group:       req.GetString("group", ""),
		ObserveMode: req.GetString("observe_mode", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(msg), nil
}
