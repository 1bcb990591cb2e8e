package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/gitops"
	"github.com/HendryAvila/evonest/internal/improve"
	"github.com/HendryAvila/evonest/internal/phases"
)

// ImproveTool handles the evonest_improve MCP tool: implement one
// accepted proposal end to end.
type ImproveTool struct {
	lm phases.LM
}

// NewImproveTool creates an ImproveTool backed by the given LM runner.
func NewImproveTool(lm phases.LM) *ImproveTool {
	return &ImproveTool{lm: lm}
}

// Definition returns the MCP tool definition for registration.
func (t *ImproveTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_improve",
		mcp.WithDescription(
			"Implement a pending proposal: its document becomes the plan, the "+
				"Execute and Verify phases run against it, and the proposal is "+
				"archived on success. Without proposal_id the highest-priority, "+
				"oldest proposal is selected.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithString("proposal_id",
			mcp.Description("Filename of the proposal to implement (from evonest_proposals)"),
		),
		mcp.WithString("level",
			mcp.Description("Depth preset override for this run"),
			mcp.Enum("quick", "standard", "deep"),
		),
	)
}

// Handle processes the evonest_improve tool call.
func (t *ImproveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, cfg, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}
	if errRes := applyLevel(cfg, req.GetString("level", "")); errRes != nil {
		return errRes, nil
	}

	msg, err := improve.Run(ctx, st, cfg, t.lm, gitops.New(st.Project), req.GetString("proposal_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(msg), nil
}
