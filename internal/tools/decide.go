package tools

import (
	"context"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
)

// DecideTool handles the evonest_decide MCP tool: record a human
// decision the next Execute phase must honor.
type DecideTool struct{}

// NewDecideTool creates a DecideTool.
func NewDecideTool() *DecideTool {
	return &DecideTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *DecideTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_decide",
		mcp.WithDescription(
			"Record a decision: a binding instruction consumed by the next "+
				"execution phase (e.g. \"use library X, not Y\"). Decisions "+
				"override whatever the plan would otherwise choose.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Decision text (markdown)"),
		),
	)
}

// Handle processes the evonest_decide tool call.
func (t *DecideTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, _, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}
	path, err := st.AddDecision(content)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText("Decision recorded: " + filepath.Base(path) +
		"\nIt will bind the next execution phase."), nil
}
