package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/history"
)

// HistoryTool handles the evonest_history MCP tool.
type HistoryTool struct{}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool() *HistoryTool {
	return &HistoryTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_history",
		mcp.WithDescription(
			"Show the most recent evolution cycles: persona, outcome, "+
				"duration and changed files per cycle.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of cycles to show (default 10)"),
		),
	)
}

// Handle processes the evonest_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, _, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}
	count := intArg(req, "count", 10)
	if count <= 0 {
		count = 10
	}
	report, err := history.Report(st, count)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(report), nil
}
