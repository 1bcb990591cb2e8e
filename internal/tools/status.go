package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusTool handles the evonest_status MCP tool.
type StatusTool struct{}

// NewStatusTool creates a StatusTool.
func NewStatusTool() *StatusTool {
	return &StatusTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_status",
		mcp.WithDescription(
			"Show a project's evolution status: cycle counts, pending stimuli and "+
				"decisions, proposals, and any paused cautious session.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
	)
}

// Handle processes the evonest_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, _, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}
	summary, err := st.Summary()
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(summary), nil
}
