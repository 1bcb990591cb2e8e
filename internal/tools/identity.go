package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/phases"
	"github.com/HendryAvila/evonest/internal/templates"
)

// IdentityTool handles the evonest_identity MCP tool: view, replace, or
// re-draft the project identity document.
type IdentityTool struct {
	lm phases.LM
}

// NewIdentityTool creates an IdentityTool backed by the given runner.
func NewIdentityTool(lm phases.LM) *IdentityTool {
	return &IdentityTool{lm: lm}
}

// Definition returns the MCP tool definition for registration.
func (t *IdentityTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_identity",
		mcp.WithDescription(
			"View or edit the project identity document that anchors every "+
				"evolution phase. 'view' shows it, 'update' replaces it with "+
				"the given content, 'refresh' drafts a new version from the "+
				"current codebase and returns it for review without applying.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithString("action",
			mcp.DefaultString("view"),
			mcp.Enum("view", "update", "refresh"),
		),
		mcp.WithString("content",
			mcp.Description("Replacement document, required for action='update'"),
		),
	)
}

// Handle processes the evonest_identity tool call.
func (t *IdentityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, _, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}

	switch req.GetString("action", "view") {
	case "update":
		content := req.GetString("content", "")
		if content == "" {
			return mcp.NewToolResultError("'content' is required for action='update'"), nil
		}
		if err := st.WriteIdentity(content); err != nil {
			return nil, err
		}
		return mcp.NewToolResultText("Identity updated."), nil

	case "refresh":
		draft, err := templates.DraftIdentity(ctx, st.Project, t.lm)
		if err != nil {
			return mcp.NewToolResultError("Identity drafting failed: " + err.Error()), nil
		}
		return mcp.NewToolResultText("Proposed identity (not yet applied; use "+
			"action='update' to accept):\n\n" + draft), nil

	default:
		identity, err := st.ReadIdentity()
		if err != nil {
			return nil, err
		}
		if identity == "" {
			return mcp.NewToolResultText("No identity document yet. Run evonest_init " +
				"or use action='refresh' to draft one."), nil
		}
		return mcp.NewToolResultText(identity), nil
	}
}
