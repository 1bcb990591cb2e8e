package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/phases"
	"github.com/HendryAvila/evonest/internal/templates"
)

// InitTool handles the evonest_init MCP tool: it lays down the
// .evonest/ directory with config, identity, and seed state files.
type InitTool struct {
	lm phases.LM
}

// NewInitTool creates an InitTool. The LM is used to auto-draft the
// identity document; nil skips the draft.
func NewInitTool(lm phases.LM) *InitTool {
	return &InitTool{lm: lm}
}

// Definition returns the MCP tool definition for registration.
func (t *InitTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_init",
		mcp.WithDescription(
			"Initialize a project for autonomous evolution. Creates the .evonest/ "+
				"directory with configuration, a drafted identity document, and empty "+
				"state files. Safe to re-run: existing files are never overwritten.",
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to the target project directory"),
		),
		mcp.WithString("level",
			mcp.Description("Analysis depth preset. Defaults to 'standard'."),
			mcp.DefaultString("standard"),
			mcp.Enum("quick", "standard", "deep"),
		),
	)
}

// Handle processes the evonest_init tool call.
func (t *InitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}
	level := req.GetString("level", "standard")

	res, err := templates.InitProject(ctx, path, level, t.lm)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Message()), nil
}
