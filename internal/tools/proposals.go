package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/evonest/internal/improve"
)

// ProposalsTool handles the evonest_proposals MCP tool.
type ProposalsTool struct{}

// NewProposalsTool creates a ProposalsTool.
func NewProposalsTool() *ProposalsTool {
	return &ProposalsTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *ProposalsTool) Definition() mcp.Tool {
	return mcp.NewTool("evonest_proposals",
		mcp.WithDescription(
			"List pending proposals (highest priority first) or mark one as done, "+
				"which archives it to .evonest/proposals/done/.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Absolute path to the target project"),
		),
		mcp.WithString("action",
			mcp.Description("'list' shows pending proposals; 'done' archives one"),
			mcp.DefaultString("list"),
			mcp.Enum("list", "done"),
		),
		mcp.WithString("filename",
			mcp.Description("Proposal filename, required for action='done'"),
		),
	)
}

// Handle processes the evonest_proposals tool call.
func (t *ProposalsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, _, errRes := loadProject(req.GetString("project", ""), nil)
	if errRes != nil {
		return errRes, nil
	}

	if req.GetString("action", "list") == "done" {
		filename := req.GetString("filename", "")
		if filename == "" {
			return mcp.NewToolResultError("'filename' is required for action='done'"), nil
		}
		dest, err := st.MarkProposalDone(filename)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Proposal archived: " + dest), nil
	}

	props, err := improve.List(st)
	if err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return mcp.NewToolResultText("No pending proposals."), nil
	}
	rank := map[string]int{"high": 0, "medium": 1, "low": 2}
	sort.SliceStable(props, func(i, j int) bool {
		return rank[props[i].Priority] < rank[props[j].Priority]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Pending proposals (%d):\n", len(props))
	for i, p := range props {
		fmt.Fprintf(&b, "\n  [%d] %s\n", i+1, p.Title)
		fmt.Fprintf(&b, "      priority: %s\n", p.Priority)
		fmt.Fprintf(&b, "      %s\n", filepath.Base(p.Path))
	}
	b.WriteString("\nTo implement: evonest_improve(project, proposal_id=\"<filename>\")\n")
	b.WriteString("To archive:   evonest_proposals(project, action=\"done\", filename=\"<filename>\")")
	return mcp.NewToolResultText(b.String()), nil
}
